// handlers/admin.go
package handlers

import (
	"ballup-api/middleware"
	"ballup-api/services"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func SetupAdminRoutes(api fiber.Router, adminService *services.AdminService, db *gorm.DB, secret string, limiter *middleware.Limiter, tiers middleware.Tiers) {
	// Role re-checked against the DB ahead of every route in this group.
	admin := api.Group("/admin",
		middleware.RequireAuth(secret),
		middleware.RequireAdmin(db),
		limiter.ByUser(tiers.Sensitive),
	)

	admin.Get("/dashboard", adminService.DashboardHandler)

	admin.Get("/users", adminService.ListUsersHandler)
	admin.Put("/users/:id/role", adminService.SetUserRoleHandler)
	admin.Put("/users/:id/active", adminService.SetUserActiveHandler)
	admin.Put("/users/:id/verified", adminService.SetUserVerifiedHandler)

	admin.Get("/locations", adminService.ListLocationsHandler)
	admin.Put("/locations/:id/approve", adminService.ApproveLocationHandler)
	admin.Put("/locations/:id/reject", adminService.RejectLocationHandler)
	admin.Delete("/locations/:id", adminService.DeleteLocationHandler)

	admin.Get("/games", adminService.ListGamesHandler)

	admin.Get("/audit-log", adminService.ListAuditLogHandler)
}
