package services

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"ballup-api/apperr"
	"ballup-api/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newLocationService(t *testing.T) *LocationService {
	t.Helper()
	return NewLocationService(setupTestDB(t), nil)
}

func TestCreateLocationStartsUnapproved(t *testing.T) {
	svc := newLocationService(t)
	creator := createTestUser(t, svc.DB, "creator")

	location, err := svc.CreateLocation(creator.ID, CreateLocationRequest{
		Name:      "Rucker Park",
		Address:   "155th St & Frederick Douglass Blvd",
		Latitude:  40.829,
		Longitude: -73.936,
		CourtType: models.CourtOutdoor,
	})
	require.NoError(t, err)
	assert.False(t, location.IsApproved)
	assert.True(t, location.IsActive)
	assert.Equal(t, "rucker-park", location.Slug)
}

func TestUpdateLocationOwnerOnly(t *testing.T) {
	svc := newLocationService(t)
	creator := createTestUser(t, svc.DB, "creator")
	other := createTestUser(t, svc.DB, "other")
	location := createTestLocation(t, svc.DB, creator.ID, true)

	newName := "Renamed Court"
	_, err := svc.UpdateLocation(other.ID, location.ID, UpdateLocationRequest{Name: &newName})
	assert.Equal(t, apperr.Forbidden, apperr.KindOf(err))

	updated, err := svc.UpdateLocation(creator.ID, location.ID, UpdateLocationRequest{Name: &newName})
	require.NoError(t, err)
	assert.Equal(t, newName, updated.Name)
	assert.Equal(t, "renamed-court", updated.Slug)
}

// Admin accounts don't pass the creator gate either; moderation has its own
// audited surface.
func TestUpdateLocationForbiddenForAdmin(t *testing.T) {
	svc := newLocationService(t)
	creator := createTestUser(t, svc.DB, "creator")
	admin := createTestUser(t, svc.DB, "admin")
	require.NoError(t, svc.DB.Model(admin).Update("role", models.RoleAdmin).Error)
	location := createTestLocation(t, svc.DB, creator.ID, true)

	newName := "Renamed Court"
	_, err := svc.UpdateLocation(admin.ID, location.ID, UpdateLocationRequest{Name: &newName})
	assert.Equal(t, apperr.Forbidden, apperr.KindOf(err))
}

// UpdateLocation must persist only the changed columns; writing the whole
// struct back would revert a games_hosted increment committed after the
// load. The callback stages that interleaving.
func TestUpdateLocationDoesNotClobberGamesHosted(t *testing.T) {
	svc := newLocationService(t)
	creator := createTestUser(t, svc.DB, "creator")
	location := createTestLocation(t, svc.DB, creator.ID, true)

	bumped := false
	require.NoError(t, svc.DB.Callback().Update().Before("gorm:update").
		Register("test:interleaved_hosted_bump", func(tx *gorm.DB) {
			if bumped {
				return
			}
			if _, ok := tx.Statement.Model.(*models.Location); !ok {
				return
			}
			bumped = true
			db := tx.Session(&gorm.Session{NewDB: true})
			assert.NoError(t, db.Model(&models.Location{}).Where("id = ?", location.ID).
				Update("games_hosted", gorm.Expr("games_hosted + 1")).Error)
		}))

	newName := "Renamed Court"
	_, err := svc.UpdateLocation(creator.ID, location.ID, UpdateLocationRequest{Name: &newName})
	require.NoError(t, err)
	require.True(t, bumped)

	var refreshed models.Location
	require.NoError(t, svc.DB.First(&refreshed, "id = ?", location.ID).Error)
	assert.Equal(t, newName, refreshed.Name)
	assert.Equal(t, 1, refreshed.GamesHosted)
}

func TestDeactivateLocationBlockedByActiveGames(t *testing.T) {
	db := setupTestDB(t)
	locations := NewLocationService(db, nil)
	games := NewGameService(db, nil)

	creator := createTestUser(t, db, "creator")
	location := createTestLocation(t, db, creator.ID, true)

	game, err := games.CreateGame(creator.ID, validCreateGameRequest(location.ID))
	require.NoError(t, err)

	err = locations.DeactivateLocation(creator.ID, location.ID)
	assert.Equal(t, apperr.InvalidState, apperr.KindOf(err))

	// Once the game reaches a terminal status the court can go.
	require.NoError(t, db.Model(&models.Game{}).Where("id = ?", game.ID).
		Update("status", models.GameCancelled).Error)
	require.NoError(t, locations.DeactivateLocation(creator.ID, location.ID))

	var refreshed models.Location
	require.NoError(t, db.First(&refreshed, "id = ?", location.ID).Error)
	assert.False(t, refreshed.IsActive)
}

// Without a configured bucket, photo uploads answer 503, not 500.
func TestUploadPhotoUnavailableWithoutStorage(t *testing.T) {
	svc := newLocationService(t)

	app := fiber.New(fiber.Config{ErrorHandler: apperr.ErrorHandler("production")})
	app.Post("/locations/:id/photo", svc.UploadPhotoHandler)

	resp, err := app.Test(httptest.NewRequest("POST", "/locations/abc/photo", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	errBody := body["error"].(map[string]any)
	assert.Equal(t, "photo storage is not configured", errBody["message"])
}
