// handlers/location.go
package handlers

import (
	"ballup-api/middleware"
	"ballup-api/services"

	"github.com/gofiber/fiber/v2"
)

func SetupLocationRoutes(api fiber.Router, locationService *services.LocationService, secret string, limiter *middleware.Limiter, tiers middleware.Tiers) {
	// Public directory of approved courts
	api.Get("/locations", limiter.ByIP(tiers.Read), locationService.ListLocationsHandler)
	api.Get("/locations/:id", limiter.ByIP(tiers.Read), locationService.GetLocationHandler)

	secured := api.Group("/locations", middleware.RequireAuth(secret))

	secured.Post("/", limiter.ByUser(tiers.Modify), locationService.CreateLocationHandler)
	secured.Put("/:id", limiter.ByUser(tiers.Modify), locationService.UpdateLocationHandler)
	secured.Delete("/:id", limiter.ByUser(tiers.Modify), locationService.DeleteLocationHandler)
	secured.Post("/:id/photo", limiter.ByUser(tiers.Upload), locationService.UploadPhotoHandler)
}
