package services

import (
	"context"
	"errors"
	"mime/multipart"
	"path/filepath"
	"strings"

	"ballup-api/apperr"
	"ballup-api/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// PhotoUploader is satisfied by storage.PhotoStore; an interface so tests
// run without a bucket.
type PhotoUploader interface {
	Upload(ctx context.Context, fileHeader *multipart.FileHeader, key string) (string, error)
}

// LocationService manages the court registry. New courts stay out of public
// listings until an admin approves them.
type LocationService struct {
	DB     *gorm.DB
	Photos PhotoUploader // nil when no object storage is configured
}

func NewLocationService(db *gorm.DB, photos PhotoUploader) *LocationService {
	return &LocationService{DB: db, Photos: photos}
}

type CreateLocationRequest struct {
	Name        string  `json:"name" validate:"required,min=3,max=100"`
	Address     string  `json:"address" validate:"required,max=200"`
	Latitude    float64 `json:"latitude" validate:"min=-90,max=90"`
	Longitude   float64 `json:"longitude" validate:"min=-180,max=180"`
	CourtType   string  `json:"court_type" validate:"omitempty,oneof=indoor outdoor"`
	SurfaceType string  `json:"surface_type" validate:"omitempty,oneof=hardwood concrete asphalt rubber"`
	Amenities   string  `json:"amenities" validate:"max=300"`
}

type UpdateLocationRequest struct {
	Name        *string  `json:"name" validate:"omitempty,min=3,max=100"`
	Address     *string  `json:"address" validate:"omitempty,max=200"`
	Latitude    *float64 `json:"latitude" validate:"omitempty,min=-90,max=90"`
	Longitude   *float64 `json:"longitude" validate:"omitempty,min=-180,max=180"`
	CourtType   *string  `json:"court_type" validate:"omitempty,oneof=indoor outdoor"`
	SurfaceType *string  `json:"surface_type" validate:"omitempty,oneof=hardwood concrete asphalt rubber"`
	Amenities   *string  `json:"amenities" validate:"omitempty,max=300"`
}

// CreateLocation registers a court, pending admin approval.
func (s *LocationService) CreateLocation(creatorID string, req CreateLocationRequest) (*models.Location, error) {
	if err := checkStruct(req); err != nil {
		return nil, err
	}

	location := &models.Location{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Slug:        slug.Make(req.Name),
		Address:     req.Address,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		CourtType:   req.CourtType,
		SurfaceType: req.SurfaceType,
		Amenities:   req.Amenities,
		CreatedBy:   creatorID,
		IsApproved:  false,
		IsActive:    true,
	}
	if err := s.DB.Create(location).Error; err != nil {
		return nil, apperr.Wrap(err, apperr.Internal, "failed to create location")
	}
	return location, nil
}

// UpdateLocation applies only the provided fields, owner-gated.
func (s *LocationService) UpdateLocation(requesterID, locationID string, req UpdateLocationRequest) (*models.Location, error) {
	if err := checkStruct(req); err != nil {
		return nil, err
	}

	var location models.Location
	if err := s.DB.First(&location, "id = ?", locationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.NotFound, "location not found")
		}
		return nil, apperr.Wrap(err, apperr.Internal, "failed to load location")
	}

	if !CanMutate(requesterID, location.CreatedBy) {
		return nil, apperr.New(apperr.Forbidden, "only the location creator can update it")
	}

	changed := map[string]any{}
	if req.Name != nil {
		location.Name = *req.Name
		location.Slug = slug.Make(*req.Name)
		changed["name"] = location.Name
		changed["slug"] = location.Slug
	}
	if req.Address != nil {
		location.Address = *req.Address
		changed["address"] = location.Address
	}
	if req.Latitude != nil {
		location.Latitude = *req.Latitude
		changed["latitude"] = location.Latitude
	}
	if req.Longitude != nil {
		location.Longitude = *req.Longitude
		changed["longitude"] = location.Longitude
	}
	if req.CourtType != nil {
		location.CourtType = *req.CourtType
		changed["court_type"] = location.CourtType
	}
	if req.SurfaceType != nil {
		location.SurfaceType = *req.SurfaceType
		changed["surface_type"] = location.SurfaceType
	}
	if req.Amenities != nil {
		location.Amenities = *req.Amenities
		changed["amenities"] = location.Amenities
	}

	if len(changed) == 0 {
		return &location, nil
	}

	// Only the changed columns; a whole-struct save could revert a
	// games_hosted increment committed after the load above.
	if err := s.DB.Model(&models.Location{}).Where("id = ?", location.ID).
		Updates(changed).Error; err != nil {
		return nil, apperr.Wrap(err, apperr.Internal, "failed to update location")
	}
	return &location, nil
}

// DeactivateLocation soft-removes a court. Blocked while any game in a
// non-terminal status still references it.
func (s *LocationService) DeactivateLocation(requesterID, locationID string) error {
	var location models.Location
	if err := s.DB.First(&location, "id = ?", locationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.New(apperr.NotFound, "location not found")
		}
		return apperr.Wrap(err, apperr.Internal, "failed to load location")
	}

	if !CanMutate(requesterID, location.CreatedBy) {
		return apperr.New(apperr.Forbidden, "only the location creator can remove it")
	}

	var activeGames int64
	s.DB.Model(&models.Game{}).
		Where("location_id = ? AND status NOT IN ?", locationID,
			[]string{models.GameCompleted, models.GameCancelled}).
		Count(&activeGames)
	if activeGames > 0 {
		return apperr.Newf(apperr.InvalidState,
			"cannot remove location: %d game(s) still scheduled here", activeGames)
	}

	return s.DB.Model(&location).Update("is_active", false).Error
}

// ===== HTTP handlers =====

func (s *LocationService) CreateLocationHandler(c *fiber.Ctx) error {
	var req CreateLocationRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.New(apperr.ValidationFailed, "invalid request body")
	}

	location, err := s.CreateLocation(userIDFromCtx(c), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": location})
}

// ListLocationsHandler returns approved, active courts only; pending courts
// are visible through the admin surface.
func (s *LocationService) ListLocationsHandler(c *fiber.Ctx) error {
	q := s.DB.Where("is_approved = ? AND is_active = ?", true, true)
	if courtType := c.Query("courtType"); courtType != "" {
		q = q.Where("court_type = ?", courtType)
	}
	if search := c.Query("search"); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(address) LIKE ?", like, like)
	}

	var locations []models.Location
	if err := q.Order("name ASC").Find(&locations).Error; err != nil {
		return apperr.Wrap(err, apperr.Internal, "failed to fetch locations")
	}
	return c.JSON(fiber.Map{"success": true, "data": locations})
}

func (s *LocationService) GetLocationHandler(c *fiber.Ctx) error {
	var location models.Location
	if err := s.DB.First(&location, "id = ?", c.Params("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.New(apperr.NotFound, "location not found")
		}
		return apperr.Wrap(err, apperr.Internal, "failed to fetch location")
	}
	return c.JSON(fiber.Map{"success": true, "data": location})
}

func (s *LocationService) UpdateLocationHandler(c *fiber.Ctx) error {
	var req UpdateLocationRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.New(apperr.ValidationFailed, "invalid request body")
	}

	location, err := s.UpdateLocation(userIDFromCtx(c), c.Params("id"), req)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": location})
}

func (s *LocationService) DeleteLocationHandler(c *fiber.Ctx) error {
	if err := s.DeactivateLocation(userIDFromCtx(c), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": fiber.Map{"message": "location deactivated"}})
}

// UploadPhotoHandler stores a court photo in the configured bucket and
// saves the returned public URL. Owner-gated like every other mutation.
func (s *LocationService) UploadPhotoHandler(c *fiber.Ctx) error {
	if s.Photos == nil {
		return apperr.New(apperr.Unavailable, "photo storage is not configured")
	}

	var location models.Location
	if err := s.DB.First(&location, "id = ?", c.Params("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.New(apperr.NotFound, "location not found")
		}
		return apperr.Wrap(err, apperr.Internal, "failed to load location")
	}
	if !CanMutate(userIDFromCtx(c), location.CreatedBy) {
		return apperr.New(apperr.Forbidden, "only the location creator can upload photos")
	}

	photo, err := c.FormFile("photo")
	if err != nil {
		return apperr.New(apperr.ValidationFailed, "photo file is required")
	}
	if photo.Size > 10*1024*1024 {
		return apperr.New(apperr.ValidationFailed, "photo too large (max 10MB)")
	}

	ext := filepath.Ext(photo.Filename)
	if ext == "" {
		ext = ".jpg"
	}
	key := "locations/" + uuid.NewString() + ext

	url, err := s.Photos.Upload(c.UserContext(), photo, key)
	if err != nil {
		return apperr.Wrap(err, apperr.Internal, "failed to upload photo")
	}

	if err := s.DB.Model(&location).Update("photo_url", url).Error; err != nil {
		return apperr.Wrap(err, apperr.Internal, "failed to save photo URL")
	}

	location.PhotoURL = url
	return c.JSON(fiber.Map{"success": true, "data": location})
}
