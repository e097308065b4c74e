package realtime

import (
	"log"
	"strings"
	"time"

	"ballup-api/apperr"
	"ballup-api/models"
	"ballup-api/utils"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Handler upgrades authenticated clients and runs their message loop.
type Handler struct {
	Hub    *Hub
	DB     *gorm.DB
	Secret string
}

func NewHandler(hub *Hub, db *gorm.DB, secret string) *Handler {
	return &Handler{Hub: hub, DB: db, Secret: secret}
}

// Upgrade validates the handshake before the protocol switch. Browsers
// cannot set headers on websocket connects, so the token rides in the
// `token` query param — same signed token as the REST API.
func (h *Handler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		log.Printf("🚫 [WS] Missing token on handshake from %s", c.IP())
		return apperr.New(apperr.Unauthenticated, "missing token in query")
	}

	claims, err := utils.ParseToken(h.Secret, token)
	if err != nil {
		log.Printf("❌ [WS] Rejected handshake from %s: %v", c.IP(), err)
		return apperr.New(apperr.Unauthenticated, "invalid or expired token")
	}

	c.Locals("user_id", claims.Subject)
	return c.Next()
}

// clientFrame is what connected clients may emit.
type clientFrame struct {
	Type    string  `json:"type"`
	GameID  string  `json:"game_id,omitempty"`
	Message string  `json:"message,omitempty"`
	Lat     float64 `json:"lat,omitempty"`
	Lng     float64 `json:"lng,omitempty"`
}

// Client-emitted frame types.
const (
	frameJoinGame      = "join-game"
	frameLeaveGame     = "leave-game"
	frameGameMessage   = "game-message"
	frameShareLocation = "share-location"
	frameTypingStart   = "typing-start"
	frameTypingStop    = "typing-stop"
)

// Serve is the connection loop. Every client lands in its personal room and
// the lobby; game rooms are joined on request.
func (h *Handler) Serve(conn *websocket.Conn) {
	userID, _ := conn.Locals("user_id").(string)
	client := NewClient(conn, userID)

	h.Hub.Subscribe(UserTopic(userID), client)
	h.Hub.Subscribe(TopicLobby, client)
	defer func() {
		h.Hub.UnsubscribeAll(client)
		conn.Close()
		log.Printf("👋 [WS] User %s disconnected", userID)
	}()

	log.Printf("🔌 [WS] User %s connected", userID)

	for {
		var frame clientFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}
		h.dispatch(client, frame)
	}
}

func (h *Handler) dispatch(client *Client, frame clientFrame) {
	switch frame.Type {
	case frameJoinGame:
		h.joinGameRoom(client, frame.GameID)
	case frameLeaveGame:
		h.Hub.Unsubscribe(GameTopic(frame.GameID), client)
	case frameGameMessage:
		h.relayMessage(client, frame)
	case frameShareLocation:
		h.relayLocation(client, frame)
	case frameTypingStart:
		h.relayTyping(client, frame.GameID, EventUserTyping)
	case frameTypingStop:
		h.relayTyping(client, frame.GameID, EventUserStopTyping)
	default:
		client.Send(Event{Type: EventNotification, Payload: fiber.Map{
			"message": "unknown message type: " + frame.Type,
		}})
	}
}

// joinGameRoom subscribes the client and replies with a state snapshot so
// late joiners start from the current attendance before incremental events.
func (h *Handler) joinGameRoom(client *Client, gameID string) {
	if gameID == "" {
		return
	}

	var game models.Game
	if err := h.DB.Preload("Participants").First(&game, "id = ?", gameID).Error; err != nil {
		client.Send(Event{Type: EventNotification, Payload: fiber.Map{
			"message": "game not found",
			"game_id": gameID,
		}})
		return
	}

	h.Hub.Subscribe(GameTopic(gameID), client)
	client.Send(Event{Type: EventGameState, Payload: game})
}

// relayMessage forwards chat to the game room. Chat is restricted to
// current participants, verified against the participant rows at send time.
func (h *Handler) relayMessage(client *Client, frame clientFrame) {
	if frame.GameID == "" || frame.Message == "" {
		return
	}

	if !h.isParticipant(frame.GameID, client.UserID) {
		client.Send(Event{Type: EventNotification, Payload: fiber.Map{
			"message": "only participants can chat in a game room",
			"game_id": frame.GameID,
		}})
		return
	}

	h.broadcast(client, GameTopic(frame.GameID), Event{
		Type: EventGameMessage,
		Payload: fiber.Map{
			"game_id": frame.GameID,
			"user_id": client.UserID,
			"message": frame.Message,
			"sent_at": time.Now().UTC().Format(time.RFC3339),
		},
	})
}

func (h *Handler) relayLocation(client *Client, frame clientFrame) {
	if frame.GameID == "" {
		return
	}
	h.broadcast(client, GameTopic(frame.GameID), Event{
		Type: EventPlayerLocation,
		Payload: fiber.Map{
			"game_id": frame.GameID,
			"user_id": client.UserID,
			"lat":     frame.Lat,
			"lng":     frame.Lng,
		},
	})
}

func (h *Handler) relayTyping(client *Client, gameID, eventType string) {
	if gameID == "" {
		return
	}
	h.broadcast(client, GameTopic(gameID), Event{
		Type:    eventType,
		Payload: fiber.Map{"game_id": gameID, "user_id": client.UserID},
	})
}

func (h *Handler) broadcast(sender *Client, topic string, event Event) {
	room, ok := h.Hub.get(topic)
	if !ok {
		return
	}
	room.Broadcast(sender, event)
}

func (h *Handler) isParticipant(gameID, userID string) bool {
	var count int64
	h.DB.Model(&models.GameParticipant{}).
		Where("game_id = ? AND user_id = ?", gameID, userID).
		Count(&count)
	return count > 0
}
