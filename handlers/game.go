// handlers/game.go
package handlers

import (
	"ballup-api/middleware"
	"ballup-api/services"

	"github.com/gofiber/fiber/v2"
)

func SetupGameRoutes(api fiber.Router, gameService *services.GameService, secret string, limiter *middleware.Limiter, tiers middleware.Tiers) {
	// Public discovery
	api.Get("/games", limiter.ByIP(tiers.Read), gameService.ListGamesHandler)
	api.Get("/games/:id", limiter.ByIP(tiers.Read), gameService.GetGameHandler)

	// Authenticated game actions, limited per user
	secured := api.Group("/games", middleware.RequireAuth(secret), limiter.ByUser(tiers.GameActions))

	secured.Post("/", gameService.CreateGameHandler)
	secured.Post("/join", gameService.JoinGameHandler)
	secured.Post("/leave", gameService.LeaveGameHandler)
	secured.Put("/:id", gameService.UpdateGameHandler)
	secured.Delete("/:id", gameService.CancelGameHandler)
}
