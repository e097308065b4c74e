// handlers/auth.go
package handlers

import (
	"ballup-api/middleware"
	"ballup-api/services"

	"github.com/gofiber/fiber/v2"
)

func SetupAuthRoutes(api fiber.Router, authService *services.AuthService, limiter *middleware.Limiter, tiers middleware.Tiers) {
	auth := api.Group("/auth", limiter.ByIP(tiers.Auth))

	auth.Post("/register", authService.RegisterHandler)
	auth.Post("/login", authService.LoginHandler)
}
