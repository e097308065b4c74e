// middleware/auth.go
package middleware

import (
	"strings"

	"ballup-api/apperr"
	"ballup-api/models"
	"ballup-api/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// RequireAuth validates the Bearer session token and attaches the caller's
// identity to the request context for handlers downstream.
func RequireAuth(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			return apperr.New(apperr.Unauthenticated, "missing or malformed Authorization header")
		}

		claims, err := utils.ParseToken(secret, strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			return apperr.New(apperr.Unauthenticated, "invalid or expired token")
		}

		c.Locals("user_id", claims.Subject)
		c.Locals("user_email", claims.Email)
		c.Locals("user_role", claims.Role)
		return c.Next()
	}
}

// RequireAdmin gates the moderation surface. The role is re-checked against
// the users table rather than trusted from the token, so a demotion or
// deactivation takes effect immediately.
func RequireAdmin(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, _ := c.Locals("user_id").(string)
		if userID == "" {
			return apperr.New(apperr.Unauthenticated, "authentication required")
		}

		var user models.User
		if err := db.First(&user, "id = ?", userID).Error; err != nil {
			return apperr.New(apperr.Unauthenticated, "account not found")
		}
		if !user.IsActive {
			return apperr.New(apperr.Forbidden, "account is deactivated")
		}
		if !user.IsAdminRole() {
			return apperr.New(apperr.Forbidden, "admin access required")
		}

		c.Locals("user_role", user.Role)
		return c.Next()
	}
}

// UserID reads the authenticated caller's id set by RequireAuth.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals("user_id").(string)
	return id
}

// UserRole reads the caller's role set by RequireAuth/RequireAdmin.
func UserRole(c *fiber.Ctx) string {
	role, _ := c.Locals("user_role").(string)
	return role
}
