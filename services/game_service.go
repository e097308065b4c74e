package services

import (
	"errors"
	"strings"
	"time"

	"ballup-api/apperr"
	"ballup-api/models"
	"ballup-api/realtime"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GameService owns the game lifecycle: creation, join/leave bookkeeping,
// status transitions, and the event fan-out after each committed mutation.
type GameService struct {
	DB        *gorm.DB
	Publisher realtime.Publisher
}

func NewGameService(db *gorm.DB, pub realtime.Publisher) *GameService {
	if pub == nil {
		pub = realtime.NopPublisher{}
	}
	return &GameService{DB: db, Publisher: pub}
}

type CreateGameRequest struct {
	LocationID         string    `json:"location_id" validate:"required"`
	Title              string    `json:"title" validate:"required,min=3,max=100"`
	Description        string    `json:"description" validate:"max=500"`
	ScheduledTime      time.Time `json:"scheduled_time" validate:"required"`
	DurationMinutes    int       `json:"duration_minutes" validate:"required,min=15,max=480"`
	MaxPlayers         int       `json:"max_players" validate:"required,min=2,max=50"`
	SkillLevelRequired string    `json:"skill_level_required" validate:"omitempty,oneof=beginner intermediate advanced"`
}

type UpdateGameRequest struct {
	Title              *string    `json:"title" validate:"omitempty,min=3,max=100"`
	Description        *string    `json:"description" validate:"omitempty,max=500"`
	ScheduledTime      *time.Time `json:"scheduled_time"`
	DurationMinutes    *int       `json:"duration_minutes" validate:"omitempty,min=15,max=480"`
	MaxPlayers         *int       `json:"max_players" validate:"omitempty,min=2,max=50"`
	SkillLevelRequired *string    `json:"skill_level_required" validate:"omitempty,oneof=beginner intermediate advanced"`
}

// recountPlayers recomputes the derived attendance from the authoritative
// participant rows. Always a fresh COUNT, never an in-place increment, so
// concurrent joins and leaves can't drift the cached value.
func recountPlayers(tx *gorm.DB, gameID string) (int, error) {
	var n int64
	err := tx.Model(&models.GameParticipant{}).
		Where("game_id = ?", gameID).
		Count(&n).Error
	return int(n), err
}

// isDuplicateKey recognizes a unique-constraint violation across drivers:
// gorm's translated error when available, otherwise the raw postgres and
// sqlite messages.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}

// CreateGame persists the game and auto-enrolls the creator as its first
// participant in the same transaction.
func (s *GameService) CreateGame(creatorID string, req CreateGameRequest) (*models.Game, error) {
	if err := checkStruct(req); err != nil {
		return nil, err
	}
	if !req.ScheduledTime.After(time.Now()) {
		return nil, apperr.New(apperr.ValidationFailed, "scheduled_time must be in the future")
	}

	var location models.Location
	if err := s.DB.First(&location, "id = ? AND is_active = ?", req.LocationID, true).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.NotFound, "location not found")
		}
		return nil, apperr.Wrap(err, apperr.Internal, "failed to load location")
	}

	game := &models.Game{
		ID:                 uuid.NewString(),
		LocationID:         location.ID,
		CreatedBy:          creatorID,
		Title:              req.Title,
		Description:        req.Description,
		ScheduledTime:      req.ScheduledTime,
		DurationMinutes:    req.DurationMinutes,
		MaxPlayers:         req.MaxPlayers,
		SkillLevelRequired: req.SkillLevelRequired,
		Status:             models.GameScheduled,
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(game).Error; err != nil {
			return err
		}

		participant := &models.GameParticipant{
			ID:     uuid.NewString(),
			GameID: game.ID,
			UserID: creatorID,
			Status: models.ParticipantJoined,
		}
		if err := tx.Create(participant).Error; err != nil {
			return err
		}

		count, err := recountPlayers(tx, game.ID)
		if err != nil {
			return err
		}
		game.CurrentPlayers = count
		if err := tx.Model(game).Update("current_players", count).Error; err != nil {
			return err
		}

		if err := tx.Model(&models.Location{}).Where("id = ?", location.ID).
			Update("games_hosted", gorm.Expr("games_hosted + 1")).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).Where("id = ?", creatorID).
			Update("games_created", gorm.Expr("games_created + 1")).Error
	})
	if err != nil {
		return nil, apperr.Wrap(err, apperr.Internal, "failed to create game")
	}

	s.Publisher.Publish(realtime.TopicLobby, realtime.Event{
		Type: realtime.EventNewGameCreated, Payload: game,
	})
	return game, nil
}

// JoinGame adds the user and recomputes attendance inside one transaction.
// The unique (game_id, user_id) index is the only double-join guard; the
// capacity check is read-then-write, so a pair of truly simultaneous joins
// on the last slot can over-admit by one — known, accepted behavior.
func (s *GameService) JoinGame(userID, gameID string) (*models.Game, error) {
	var game models.Game
	if err := s.DB.First(&game, "id = ?", gameID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.NotFound, "game not found")
		}
		return nil, apperr.Wrap(err, apperr.Internal, "failed to load game")
	}

	if game.Status != models.GameScheduled {
		return nil, apperr.Newf(apperr.InvalidState, "cannot join a %s game", game.Status)
	}
	if game.CurrentPlayers >= game.MaxPlayers {
		return nil, apperr.New(apperr.CapacityExceeded, "game is full")
	}

	var existing int64
	if err := s.DB.Model(&models.GameParticipant{}).
		Where("game_id = ? AND user_id = ?", gameID, userID).
		Count(&existing).Error; err != nil {
		return nil, apperr.Wrap(err, apperr.Internal, "failed to check participation")
	}
	if existing > 0 {
		return nil, apperr.New(apperr.InvalidState, "already joined this game")
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		participant := &models.GameParticipant{
			ID:     uuid.NewString(),
			GameID: gameID,
			UserID: userID,
			Status: models.ParticipantJoined,
		}
		if err := tx.Create(participant).Error; err != nil {
			return err
		}

		count, err := recountPlayers(tx, gameID)
		if err != nil {
			return err
		}
		game.CurrentPlayers = count
		return tx.Model(&models.Game{}).Where("id = ?", gameID).
			Update("current_players", count).Error
	})
	if err != nil {
		// The unique index decided a concurrent duplicate join; anything
		// else is a storage failure and must say so.
		if isDuplicateKey(err) {
			return nil, apperr.Wrap(err, apperr.InvalidState, "already joined this game")
		}
		return nil, apperr.Wrap(err, apperr.Internal, "failed to join game")
	}

	s.Publisher.Publish(realtime.GameTopic(gameID), realtime.Event{
		Type: realtime.EventPlayerJoined,
		Payload: fiber.Map{
			"game_id":         gameID,
			"user_id":         userID,
			"current_players": game.CurrentPlayers,
			"max_players":     game.MaxPlayers,
		},
	})
	return &game, nil
}

// LeaveGame removes the participant row and recomputes attendance; the
// cleared row lets the same user join again later.
func (s *GameService) LeaveGame(userID, gameID string) (*models.Game, error) {
	var game models.Game
	if err := s.DB.First(&game, "id = ?", gameID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.NotFound, "game not found")
		}
		return nil, apperr.Wrap(err, apperr.Internal, "failed to load game")
	}

	var participant models.GameParticipant
	if err := s.DB.Where("game_id = ? AND user_id = ?", gameID, userID).
		First(&participant).Error; err != nil {
		return nil, apperr.New(apperr.NotFound, "you are not a participant of this game")
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&participant).Error; err != nil {
			return err
		}

		count, err := recountPlayers(tx, gameID)
		if err != nil {
			return err
		}
		game.CurrentPlayers = count
		return tx.Model(&models.Game{}).Where("id = ?", gameID).
			Update("current_players", count).Error
	})
	if err != nil {
		return nil, apperr.Wrap(err, apperr.Internal, "failed to leave game")
	}

	s.Publisher.Publish(realtime.GameTopic(gameID), realtime.Event{
		Type: realtime.EventPlayerLeft,
		Payload: fiber.Map{
			"game_id":         gameID,
			"user_id":         userID,
			"current_players": game.CurrentPlayers,
			"max_players":     game.MaxPlayers,
		},
	})
	return &game, nil
}

// UpdateGame applies only the provided fields, creator-gated.
func (s *GameService) UpdateGame(requesterID, gameID string, req UpdateGameRequest) (*models.Game, error) {
	if err := checkStruct(req); err != nil {
		return nil, err
	}

	var game models.Game
	if err := s.DB.First(&game, "id = ?", gameID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.NotFound, "game not found")
		}
		return nil, apperr.Wrap(err, apperr.Internal, "failed to load game")
	}

	if !CanMutate(requesterID, game.CreatedBy) {
		return nil, apperr.New(apperr.Forbidden, "only the game creator can update it")
	}
	if game.IsTerminal() {
		return nil, apperr.Newf(apperr.InvalidState, "cannot update a %s game", game.Status)
	}

	changed := fiber.Map{}
	if req.Title != nil {
		game.Title = *req.Title
		changed["title"] = game.Title
	}
	if req.Description != nil {
		game.Description = *req.Description
		changed["description"] = game.Description
	}
	if req.ScheduledTime != nil {
		if !req.ScheduledTime.After(time.Now()) {
			return nil, apperr.New(apperr.ValidationFailed, "scheduled_time must be in the future")
		}
		game.ScheduledTime = *req.ScheduledTime
		changed["scheduled_time"] = game.ScheduledTime
	}
	if req.DurationMinutes != nil {
		game.DurationMinutes = *req.DurationMinutes
		changed["duration_minutes"] = game.DurationMinutes
	}
	if req.MaxPlayers != nil {
		if *req.MaxPlayers < game.CurrentPlayers {
			return nil, apperr.New(apperr.ValidationFailed, "max_players cannot drop below current attendance")
		}
		game.MaxPlayers = *req.MaxPlayers
		changed["max_players"] = game.MaxPlayers
	}
	if req.SkillLevelRequired != nil {
		game.SkillLevelRequired = *req.SkillLevelRequired
		changed["skill_level_required"] = game.SkillLevelRequired
	}

	if len(changed) == 0 {
		return &game, nil
	}

	// Persist only the changed columns. A whole-struct save would write
	// back the current_players loaded above and could revert a join that
	// committed in between.
	if err := s.DB.Model(&models.Game{}).Where("id = ?", game.ID).
		Updates(map[string]any(changed)).Error; err != nil {
		return nil, apperr.Wrap(err, apperr.Internal, "failed to update game")
	}

	changed["game_id"] = game.ID
	s.Publisher.Publish(realtime.GameTopic(game.ID), realtime.Event{
		Type: realtime.EventGameUpdated, Payload: changed,
	})
	return &game, nil
}

// CancelGame marks the game cancelled and notifies the room plus every
// participant's personal channel. Cancelled rather than hard-deleted so
// history and the participant notifications survive.
func (s *GameService) CancelGame(requesterID, gameID string) error {
	var game models.Game
	if err := s.DB.First(&game, "id = ?", gameID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.New(apperr.NotFound, "game not found")
		}
		return apperr.Wrap(err, apperr.Internal, "failed to load game")
	}

	if !CanMutate(requesterID, game.CreatedBy) {
		return apperr.New(apperr.Forbidden, "only the game creator can cancel it")
	}
	if game.IsTerminal() {
		return apperr.Newf(apperr.InvalidState, "game is already %s", game.Status)
	}

	var participants []models.GameParticipant
	if err := s.DB.Where("game_id = ?", gameID).Find(&participants).Error; err != nil {
		return apperr.Wrap(err, apperr.Internal, "failed to load participants")
	}

	if err := s.DB.Model(&game).Update("status", models.GameCancelled).Error; err != nil {
		return apperr.Wrap(err, apperr.Internal, "failed to cancel game")
	}

	event := realtime.Event{
		Type: realtime.EventGameCancelled,
		Payload: fiber.Map{
			"game_id": gameID,
			"title":   game.Title,
		},
	}
	s.Publisher.Publish(realtime.GameTopic(gameID), event)
	for _, p := range participants {
		s.Publisher.Publish(realtime.UserTopic(p.UserID), event)
	}
	return nil
}

// ===== HTTP handlers =====

func (s *GameService) CreateGameHandler(c *fiber.Ctx) error {
	var req CreateGameRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.New(apperr.ValidationFailed, "invalid request body")
	}

	game, err := s.CreateGame(userIDFromCtx(c), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": game})
}

func (s *GameService) ListGamesHandler(c *fiber.Ctx) error {
	q := s.DB.Model(&models.Game{})
	if locationID := c.Query("locationId"); locationID != "" {
		q = q.Where("location_id = ?", locationID)
	}
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	} else {
		q = q.Where("status NOT IN ?", []string{models.GameCompleted, models.GameCancelled})
	}
	if skill := c.Query("skillLevel"); skill != "" {
		q = q.Where("skill_level_required = ? OR skill_level_required = ''", skill)
	}

	var games []models.Game
	if err := q.Order("scheduled_time ASC").Find(&games).Error; err != nil {
		return apperr.Wrap(err, apperr.Internal, "failed to fetch games")
	}
	return c.JSON(fiber.Map{"success": true, "data": games})
}

func (s *GameService) GetGameHandler(c *fiber.Ctx) error {
	var game models.Game
	if err := s.DB.Preload("Participants").First(&game, "id = ?", c.Params("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.New(apperr.NotFound, "game not found")
		}
		return apperr.Wrap(err, apperr.Internal, "failed to fetch game")
	}
	return c.JSON(fiber.Map{"success": true, "data": game})
}

func (s *GameService) JoinGameHandler(c *fiber.Ctx) error {
	var req struct {
		GameID string `json:"game_id" validate:"required"`
	}
	if err := c.BodyParser(&req); err != nil || req.GameID == "" {
		return apperr.New(apperr.ValidationFailed, "game_id is required")
	}

	game, err := s.JoinGame(userIDFromCtx(c), req.GameID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": game})
}

func (s *GameService) LeaveGameHandler(c *fiber.Ctx) error {
	var req struct {
		GameID string `json:"game_id" validate:"required"`
	}
	if err := c.BodyParser(&req); err != nil || req.GameID == "" {
		return apperr.New(apperr.ValidationFailed, "game_id is required")
	}

	game, err := s.LeaveGame(userIDFromCtx(c), req.GameID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": game})
}

func (s *GameService) UpdateGameHandler(c *fiber.Ctx) error {
	var req UpdateGameRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.New(apperr.ValidationFailed, "invalid request body")
	}

	game, err := s.UpdateGame(userIDFromCtx(c), c.Params("id"), req)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": game})
}

func (s *GameService) CancelGameHandler(c *fiber.Ctx) error {
	if err := s.CancelGame(userIDFromCtx(c), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": fiber.Map{"message": "game cancelled"}})
}

func userIDFromCtx(c *fiber.Ctx) string {
	id, _ := c.Locals("user_id").(string)
	return id
}

func userRoleFromCtx(c *fiber.Ctx) string {
	role, _ := c.Locals("user_role").(string)
	return role
}
