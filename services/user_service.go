package services

import (
	"errors"

	"ballup-api/apperr"
	"ballup-api/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// UserService serves the authenticated user's own profile and game views.
type UserService struct {
	DB *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{DB: db}
}

type UpdateProfileRequest struct {
	Username          *string `json:"username" validate:"omitempty,min=3,max=30,alphanum"`
	SkillLevel        *string `json:"skill_level" validate:"omitempty,oneof=beginner intermediate advanced"`
	PreferredPosition *string `json:"preferred_position" validate:"omitempty,oneof=guard forward center"`
}

func (s *UserService) GetMeHandler(c *fiber.Ctx) error {
	var user models.User
	if err := s.DB.First(&user, "id = ?", userIDFromCtx(c)).Error; err != nil {
		return apperr.New(apperr.NotFound, "account not found")
	}
	return c.JSON(fiber.Map{"success": true, "data": user})
}

func (s *UserService) UpdateMeHandler(c *fiber.Ctx) error {
	var req UpdateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.New(apperr.ValidationFailed, "invalid request body")
	}
	if err := checkStruct(req); err != nil {
		return err
	}

	var user models.User
	if err := s.DB.First(&user, "id = ?", userIDFromCtx(c)).Error; err != nil {
		return apperr.New(apperr.NotFound, "account not found")
	}

	if req.Username != nil && *req.Username != user.Username {
		var taken int64
		s.DB.Model(&models.User{}).Where("username = ? AND id <> ?", *req.Username, user.ID).Count(&taken)
		if taken > 0 {
			return apperr.New(apperr.Conflict, "username already in use")
		}
		user.Username = *req.Username
	}
	if req.SkillLevel != nil {
		user.SkillLevel = *req.SkillLevel
	}
	if req.PreferredPosition != nil {
		user.PreferredPosition = *req.PreferredPosition
	}

	if err := s.DB.Save(&user).Error; err != nil {
		return apperr.Wrap(err, apperr.Internal, "failed to update profile")
	}
	return c.JSON(fiber.Map{"success": true, "data": user})
}

// MyGamesHandler lists every game the caller participates in, newest first.
func (s *UserService) MyGamesHandler(c *fiber.Ctx) error {
	var games []models.Game
	err := s.DB.
		Joins("JOIN game_participants ON game_participants.game_id = games.id").
		Where("game_participants.user_id = ?", userIDFromCtx(c)).
		Order("games.scheduled_time DESC").
		Find(&games).Error
	if err != nil {
		return apperr.Wrap(err, apperr.Internal, "failed to fetch games")
	}
	return c.JSON(fiber.Map{"success": true, "data": games})
}

// MyActiveGameHandler returns the caller's current non-terminal game, if any.
func (s *UserService) MyActiveGameHandler(c *fiber.Ctx) error {
	var game models.Game
	err := s.DB.
		Joins("JOIN game_participants ON game_participants.game_id = games.id").
		Where("game_participants.user_id = ?", userIDFromCtx(c)).
		Where("games.status IN ?", []string{models.GameScheduled, models.GameStarting, models.GameActive}).
		Order("games.scheduled_time ASC").
		First(&game).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(fiber.Map{"success": true, "data": nil})
		}
		return apperr.Wrap(err, apperr.Internal, "failed to fetch active game")
	}
	return c.JSON(fiber.Map{"success": true, "data": game})
}
