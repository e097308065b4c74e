package services

import (
	"encoding/json"
	"errors"
	"strings"

	"ballup-api/apperr"
	"ballup-api/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AdminService is the moderation surface. Every mutating action appends one
// AdminLog row capturing the prior and new values; the log is never edited
// or pruned.
type AdminService struct {
	DB *gorm.DB
}

func NewAdminService(db *gorm.DB) *AdminService {
	return &AdminService{DB: db}
}

// appendLog records one admin action. Log failures are returned so no
// moderation write slips through unaudited.
func (s *AdminService) appendLog(tx *gorm.DB, adminID, action, targetType, targetID string, details any) error {
	payload, err := json.Marshal(details)
	if err != nil {
		return err
	}
	return tx.Create(&models.AdminLog{
		ID:         uuid.NewString(),
		AdminID:    adminID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Details:    string(payload),
	}).Error
}

type pagination struct {
	Page  int
	Limit int
}

func parsePagination(c *fiber.Ctx) pagination {
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit := c.QueryInt("limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return pagination{Page: page, Limit: limit}
}

func paginated(c *fiber.Ctx, p pagination, total int64, items any) error {
	return c.JSON(fiber.Map{
		"success": true,
		"data":    items,
		"pagination": fiber.Map{
			"page":  p.Page,
			"limit": p.Limit,
			"total": total,
		},
	})
}

// DashboardHandler reports headline counts.
func (s *AdminService) DashboardHandler(c *fiber.Ctx) error {
	var users, locations, pendingLocations, games, activeGames int64
	s.DB.Model(&models.User{}).Count(&users)
	s.DB.Model(&models.Location{}).Count(&locations)
	s.DB.Model(&models.Location{}).Where("is_approved = ?", false).Count(&pendingLocations)
	s.DB.Model(&models.Game{}).Count(&games)
	s.DB.Model(&models.Game{}).
		Where("status NOT IN ?", []string{models.GameCompleted, models.GameCancelled}).
		Count(&activeGames)

	return c.JSON(fiber.Map{"success": true, "data": fiber.Map{
		"users":             users,
		"locations":         locations,
		"pending_locations": pendingLocations,
		"games":             games,
		"active_games":      activeGames,
	}})
}

// ListUsersHandler supports paginated search over email/username plus
// role/active filters.
func (s *AdminService) ListUsersHandler(c *fiber.Ctx) error {
	p := parsePagination(c)
	q := s.DB.Model(&models.User{})

	if search := c.Query("search"); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		q = q.Where("LOWER(email) LIKE ? OR LOWER(username) LIKE ?", like, like)
	}
	if role := c.Query("role"); role != "" {
		q = q.Where("role = ?", role)
	}
	if active := c.Query("isActive"); active != "" {
		q = q.Where("is_active = ?", active == "true")
	}

	var total int64
	q.Count(&total)

	var users []models.User
	if err := q.Order("created_at DESC").
		Offset((p.Page - 1) * p.Limit).Limit(p.Limit).
		Find(&users).Error; err != nil {
		return apperr.Wrap(err, apperr.Internal, "failed to fetch users")
	}
	return paginated(c, p, total, users)
}

type setRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=user admin super_admin"`
}

// SetUserRoleHandler changes a user's role. Granting or revoking admin is
// reserved for super_admin.
func (s *AdminService) SetUserRoleHandler(c *fiber.Ctx) error {
	var req setRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.New(apperr.ValidationFailed, "invalid request body")
	}
	if err := checkStruct(req); err != nil {
		return err
	}

	var user models.User
	if err := s.DB.First(&user, "id = ?", c.Params("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.New(apperr.NotFound, "user not found")
		}
		return apperr.Wrap(err, apperr.Internal, "failed to load user")
	}

	roleChangesAdmin := req.Role != models.RoleUser || user.IsAdminRole()
	if roleChangesAdmin && userRoleFromCtx(c) != models.RoleSuperAdmin {
		return apperr.New(apperr.Forbidden, "only super_admin can grant or revoke admin roles")
	}

	prev := user.Role
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&user).Update("role", req.Role).Error; err != nil {
			return err
		}
		return s.appendLog(tx, userIDFromCtx(c), "set_user_role", "user", user.ID,
			fiber.Map{"previous": prev, "new": req.Role})
	})
	if err != nil {
		return apperr.Wrap(err, apperr.Internal, "failed to update role")
	}

	user.Role = req.Role
	return c.JSON(fiber.Map{"success": true, "data": user})
}

// toggleUserFlag flips one boolean column with an audit row.
func (s *AdminService) toggleUserFlag(c *fiber.Ctx, column, action string) error {
	var req struct {
		Value bool `json:"value"`
	}
	if err := c.BodyParser(&req); err != nil {
		return apperr.New(apperr.ValidationFailed, "invalid request body")
	}

	var user models.User
	if err := s.DB.First(&user, "id = ?", c.Params("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.New(apperr.NotFound, "user not found")
		}
		return apperr.Wrap(err, apperr.Internal, "failed to load user")
	}

	prev := user.IsActive
	if column == "is_verified" {
		prev = user.IsVerified
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&user).Update(column, req.Value).Error; err != nil {
			return err
		}
		return s.appendLog(tx, userIDFromCtx(c), action, "user", user.ID,
			fiber.Map{"previous": prev, "new": req.Value})
	})
	if err != nil {
		return apperr.Wrap(err, apperr.Internal, "failed to update user")
	}
	return c.JSON(fiber.Map{"success": true, "data": fiber.Map{"id": user.ID, column: req.Value}})
}

func (s *AdminService) SetUserActiveHandler(c *fiber.Ctx) error {
	return s.toggleUserFlag(c, "is_active", "set_user_active")
}

func (s *AdminService) SetUserVerifiedHandler(c *fiber.Ctx) error {
	return s.toggleUserFlag(c, "is_verified", "set_user_verified")
}

// ListLocationsHandler shows every court, including pending and deactivated.
func (s *AdminService) ListLocationsHandler(c *fiber.Ctx) error {
	p := parsePagination(c)
	q := s.DB.Model(&models.Location{})

	if approved := c.Query("isApproved"); approved != "" {
		q = q.Where("is_approved = ?", approved == "true")
	}
	if search := c.Query("search"); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(address) LIKE ?", like, like)
	}

	var total int64
	q.Count(&total)

	var locations []models.Location
	if err := q.Order("created_at DESC").
		Offset((p.Page - 1) * p.Limit).Limit(p.Limit).
		Find(&locations).Error; err != nil {
		return apperr.Wrap(err, apperr.Internal, "failed to fetch locations")
	}
	return paginated(c, p, total, locations)
}

// ReviewLocation approves or rejects a pending court. Rejection also
// deactivates so the court drops out of every listing.
func (s *AdminService) ReviewLocation(adminID, locationID string, approve bool) (*models.Location, error) {
	var location models.Location
	if err := s.DB.First(&location, "id = ?", locationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.NotFound, "location not found")
		}
		return nil, apperr.Wrap(err, apperr.Internal, "failed to load location")
	}

	prior := fiber.Map{"is_approved": location.IsApproved, "is_active": location.IsActive}
	location.IsApproved = approve
	if !approve {
		location.IsActive = false
	}

	action := "approve_location"
	if !approve {
		action = "reject_location"
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Location{}).Where("id = ?", location.ID).
			Updates(map[string]any{
				"is_approved": location.IsApproved,
				"is_active":   location.IsActive,
			}).Error; err != nil {
			return err
		}
		return s.appendLog(tx, adminID, action, "location", location.ID, fiber.Map{
			"previous": prior,
			"new":      fiber.Map{"is_approved": location.IsApproved, "is_active": location.IsActive},
		})
	})
	if err != nil {
		return nil, apperr.Wrap(err, apperr.Internal, "failed to review location")
	}
	return &location, nil
}

func (s *AdminService) ApproveLocationHandler(c *fiber.Ctx) error {
	location, err := s.ReviewLocation(userIDFromCtx(c), c.Params("id"), true)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": location})
}

func (s *AdminService) RejectLocationHandler(c *fiber.Ctx) error {
	location, err := s.ReviewLocation(userIDFromCtx(c), c.Params("id"), false)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": location})
}

// DeleteLocationHandler soft-deletes a court, blocked while games in a
// non-terminal status reference it.
func (s *AdminService) DeleteLocationHandler(c *fiber.Ctx) error {
	var location models.Location
	if err := s.DB.First(&location, "id = ?", c.Params("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.New(apperr.NotFound, "location not found")
		}
		return apperr.Wrap(err, apperr.Internal, "failed to load location")
	}

	var activeGames int64
	s.DB.Model(&models.Game{}).
		Where("location_id = ? AND status NOT IN ?", location.ID,
			[]string{models.GameCompleted, models.GameCancelled}).
		Count(&activeGames)
	if activeGames > 0 {
		return apperr.Newf(apperr.InvalidState,
			"cannot delete location: %d game(s) still scheduled here", activeGames)
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Location{}).Where("id = ?", location.ID).
			Update("is_active", false).Error; err != nil {
			return err
		}
		if err := tx.Delete(&location).Error; err != nil {
			return err
		}
		return s.appendLog(tx, userIDFromCtx(c), "delete_location", "location", location.ID,
			fiber.Map{"previous": fiber.Map{"is_active": true}, "new": fiber.Map{"deleted": true}})
	})
	if err != nil {
		return apperr.Wrap(err, apperr.Internal, "failed to delete location")
	}
	return c.JSON(fiber.Map{"success": true, "data": fiber.Map{"message": "location deleted"}})
}

// ListGamesHandler is the admin's unfiltered game view.
func (s *AdminService) ListGamesHandler(c *fiber.Ctx) error {
	p := parsePagination(c)
	q := s.DB.Model(&models.Game{})

	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}
	if locationID := c.Query("locationId"); locationID != "" {
		q = q.Where("location_id = ?", locationID)
	}

	var total int64
	q.Count(&total)

	var games []models.Game
	if err := q.Order("scheduled_time DESC").
		Offset((p.Page - 1) * p.Limit).Limit(p.Limit).
		Find(&games).Error; err != nil {
		return apperr.Wrap(err, apperr.Internal, "failed to fetch games")
	}
	return paginated(c, p, total, games)
}

// ListAuditLogHandler pages through the append-only action log.
func (s *AdminService) ListAuditLogHandler(c *fiber.Ctx) error {
	p := parsePagination(c)
	q := s.DB.Model(&models.AdminLog{})

	if action := c.Query("action"); action != "" {
		q = q.Where("action = ?", action)
	}
	if adminID := c.Query("adminId"); adminID != "" {
		q = q.Where("admin_id = ?", adminID)
	}

	var total int64
	q.Count(&total)

	var logs []models.AdminLog
	if err := q.Order("created_at DESC").
		Offset((p.Page - 1) * p.Limit).Limit(p.Limit).
		Find(&logs).Error; err != nil {
		return apperr.Wrap(err, apperr.Internal, "failed to fetch audit log")
	}
	return paginated(c, p, total, logs)
}
