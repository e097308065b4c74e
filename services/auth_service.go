package services

import (
	"errors"
	"strings"

	"ballup-api/apperr"
	"ballup-api/models"
	"ballup-api/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AuthService issues and verifies session credentials. Every attempt —
// success or failure — lands in the security log with the requester IP.
type AuthService struct {
	DB       *gorm.DB
	Secret   string
	Security *zap.Logger
}

func NewAuthService(db *gorm.DB, secret string, security *zap.Logger) *AuthService {
	return &AuthService{DB: db, Secret: secret, Security: security}
}

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,min=3,max=30,alphanum"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// invalidCredentials is deliberately identical for unknown email and wrong
// password so the response doesn't leak which one failed.
const invalidCredentials = "invalid email or password"

// Register creates an account and returns it with a signed session token.
func (s *AuthService) Register(req RegisterRequest, ip string) (*models.User, string, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Username = strings.TrimSpace(req.Username)

	if err := checkStruct(req); err != nil {
		return nil, "", err
	}

	var existing models.User
	err := s.DB.Where("email = ? OR username = ?", req.Email, req.Username).First(&existing).Error
	if err == nil {
		s.Security.Info("registration rejected: identity in use",
			zap.String("email", req.Email), zap.String("ip", ip))
		if existing.Email == req.Email {
			return nil, "", apperr.New(apperr.Conflict, "email already in use")
		}
		return nil, "", apperr.New(apperr.Conflict, "username already in use")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", apperr.Wrap(err, apperr.Internal, "failed to check existing accounts")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", apperr.Wrap(err, apperr.Internal, "failed to hash password")
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		Username:     req.Username,
		PasswordHash: string(hash),
		Role:         models.RoleUser,
		IsActive:     true,
	}
	if err := s.DB.Create(user).Error; err != nil {
		// Covers the race where two registrations hit the unique index at once.
		return nil, "", apperr.Wrap(err, apperr.Conflict, "email or username already in use")
	}

	token, err := utils.SignToken(s.Secret, user.ID, user.Email, user.Role)
	if err != nil {
		return nil, "", apperr.Wrap(err, apperr.Internal, "failed to sign token")
	}

	s.Security.Info("user registered",
		zap.String("user_id", user.ID), zap.String("ip", ip))
	return user, token, nil
}

// Login verifies credentials and issues a fresh token.
func (s *AuthService) Login(req LoginRequest, ip string) (*models.User, string, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if err := checkStruct(req); err != nil {
		return nil, "", err
	}

	var user models.User
	if err := s.DB.Where("email = ?", req.Email).First(&user).Error; err != nil {
		s.Security.Warn("login failed: unknown email",
			zap.String("email", req.Email), zap.String("ip", ip))
		return nil, "", apperr.New(apperr.Unauthenticated, invalidCredentials)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		s.Security.Warn("login failed: bad password",
			zap.String("user_id", user.ID), zap.String("ip", ip))
		return nil, "", apperr.New(apperr.Unauthenticated, invalidCredentials)
	}

	if !user.IsActive {
		s.Security.Warn("login rejected: deactivated account",
			zap.String("user_id", user.ID), zap.String("ip", ip))
		return nil, "", apperr.New(apperr.Forbidden, "account is deactivated")
	}

	token, err := utils.SignToken(s.Secret, user.ID, user.Email, user.Role)
	if err != nil {
		return nil, "", apperr.Wrap(err, apperr.Internal, "failed to sign token")
	}

	s.Security.Info("login succeeded",
		zap.String("user_id", user.ID), zap.String("ip", ip))
	return &user, token, nil
}

// ===== HTTP handlers =====

func (s *AuthService) RegisterHandler(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.New(apperr.ValidationFailed, "invalid request body")
	}

	user, token, err := s.Register(req, c.IP())
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    fiber.Map{"user": user, "token": token},
	})
}

func (s *AuthService) LoginHandler(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.New(apperr.ValidationFailed, "invalid request body")
	}

	user, token, err := s.Login(req, c.IP())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    fiber.Map{"user": user, "token": token},
	})
}
