package services

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"ballup-api/models"
	"ballup-api/realtime"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupTestDB creates an isolated in-memory SQLite database. The pool is
// pinned to one connection so concurrent test goroutines serialize at the
// pool instead of tripping SQLite's write lock.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Location{},
		&models.Game{},
		&models.GameParticipant{},
		&models.AdminLog{},
	))
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	user := &models.User{
		ID:           uuid.NewString(),
		Email:        username + "@example.com",
		Username:     username,
		PasswordHash: "x",
		Role:         models.RoleUser,
		IsActive:     true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createTestLocation(t *testing.T, db *gorm.DB, creatorID string, approved bool) *models.Location {
	t.Helper()
	location := &models.Location{
		ID:         uuid.NewString(),
		Name:       "Test Court",
		Slug:       "test-court",
		Address:    "1 Hoop Way",
		CreatedBy:  creatorID,
		IsApproved: approved,
		IsActive:   true,
	}
	require.NoError(t, db.Create(location).Error)
	return location
}

func validCreateGameRequest(locationID string) CreateGameRequest {
	return CreateGameRequest{
		LocationID:      locationID,
		Title:           "Friday runs",
		ScheduledTime:   time.Now().Add(2 * time.Hour),
		DurationMinutes: 90,
		MaxPlayers:      10,
	}
}

// recordingPublisher captures published events for assertions.
type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

type publishedEvent struct {
	Topic string
	Event realtime.Event
}

func (r *recordingPublisher) Publish(topic string, event realtime.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, publishedEvent{Topic: topic, Event: event})
}

func (r *recordingPublisher) byType(eventType string) []publishedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []publishedEvent
	for _, e := range r.events {
		if e.Event.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func participantCount(t *testing.T, db *gorm.DB, gameID string) int {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.GameParticipant{}).
		Where("game_id = ?", gameID).Count(&n).Error)
	return int(n)
}
