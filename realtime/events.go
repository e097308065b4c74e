// realtime decouples domain mutations from socket fan-out: services publish
// events through the Publisher interface and the hub relays them to rooms.
package realtime

// Server-emitted event types.
const (
	EventGameState      = "game-state"
	EventPlayerJoined   = "player-joined"
	EventPlayerLeft     = "player-left"
	EventGameCancelled  = "game-cancelled"
	EventGameUpdated    = "game-updated"
	EventNewGameCreated = "new-game-created"
	EventNotification   = "notification"
	EventGameMessage    = "game-message"
	EventPlayerLocation = "player-location"
	EventUserTyping     = "user-typing"
	EventUserStopTyping = "user-stop-typing"
)

// TopicLobby is joined by every connected client; game discovery events
// (new-game-created) fan out here.
const TopicLobby = "lobby"

func GameTopic(gameID string) string { return "game:" + gameID }
func UserTopic(userID string) string { return "user:" + userID }

// Event is one push message delivered to a room.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Publisher is what the domain services see. The hub implements it; tests
// and socketless deployments use NopPublisher.
type Publisher interface {
	Publish(topic string, event Event)
}

// NopPublisher drops every event. Used when sockets are disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(string, Event) {}
