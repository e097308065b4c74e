// handlers/user.go
package handlers

import (
	"ballup-api/middleware"
	"ballup-api/services"

	"github.com/gofiber/fiber/v2"
)

func SetupUserRoutes(api fiber.Router, userService *services.UserService, secret string, limiter *middleware.Limiter, tiers middleware.Tiers) {
	me := api.Group("/users/me", middleware.RequireAuth(secret))

	me.Get("/", limiter.ByUser(tiers.Read), userService.GetMeHandler)
	me.Put("/", limiter.ByUser(tiers.ProfileUpdate), userService.UpdateMeHandler)
	me.Get("/games", limiter.ByUser(tiers.Read), userService.MyGamesHandler)
	me.Get("/active-game", limiter.ByUser(tiers.Read), userService.MyActiveGameHandler)
}
