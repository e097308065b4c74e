package services

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"ballup-api/apperr"
	"ballup-api/models"
	"ballup-api/realtime"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newGameService(t *testing.T) (*GameService, *recordingPublisher) {
	t.Helper()
	pub := &recordingPublisher{}
	return NewGameService(setupTestDB(t), pub), pub
}

func TestCreateGameAutoEnrollsCreator(t *testing.T) {
	svc, pub := newGameService(t)
	creator := createTestUser(t, svc.DB, "creator")
	location := createTestLocation(t, svc.DB, creator.ID, true)

	game, err := svc.CreateGame(creator.ID, validCreateGameRequest(location.ID))
	require.NoError(t, err)

	assert.Equal(t, models.GameScheduled, game.Status)
	assert.Equal(t, 1, game.CurrentPlayers)
	assert.Equal(t, 1, participantCount(t, svc.DB, game.ID))

	var refreshed models.User
	require.NoError(t, svc.DB.First(&refreshed, "id = ?", creator.ID).Error)
	assert.Equal(t, 1, refreshed.GamesCreated)

	created := pub.byType(realtime.EventNewGameCreated)
	require.Len(t, created, 1)
	assert.Equal(t, realtime.TopicLobby, created[0].Topic)
}

func TestCreateGameRejectsPastSchedule(t *testing.T) {
	svc, _ := newGameService(t)
	creator := createTestUser(t, svc.DB, "creator")
	location := createTestLocation(t, svc.DB, creator.ID, true)

	req := validCreateGameRequest(location.ID)
	req.ScheduledTime = time.Now().Add(-time.Second)
	_, err := svc.CreateGame(creator.ID, req)
	assert.Equal(t, apperr.ValidationFailed, apperr.KindOf(err))

	// The boundary one second out is accepted.
	req.ScheduledTime = time.Now().Add(time.Second)
	_, err = svc.CreateGame(creator.ID, req)
	assert.NoError(t, err)
}

func TestCreateGameValidatesBounds(t *testing.T) {
	svc, _ := newGameService(t)
	creator := createTestUser(t, svc.DB, "creator")
	location := createTestLocation(t, svc.DB, creator.ID, true)

	req := validCreateGameRequest(location.ID)
	req.MaxPlayers = 1
	_, err := svc.CreateGame(creator.ID, req)
	assert.Equal(t, apperr.ValidationFailed, apperr.KindOf(err))

	req = validCreateGameRequest(location.ID)
	req.DurationMinutes = 10
	_, err = svc.CreateGame(creator.ID, req)
	assert.Equal(t, apperr.ValidationFailed, apperr.KindOf(err))
}

func TestCreateGameUnknownLocation(t *testing.T) {
	svc, _ := newGameService(t)
	creator := createTestUser(t, svc.DB, "creator")

	_, err := svc.CreateGame(creator.ID, validCreateGameRequest("no-such-location"))
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestJoinGameEnforcesCapacity(t *testing.T) {
	svc, _ := newGameService(t)
	creator := createTestUser(t, svc.DB, "creator")
	location := createTestLocation(t, svc.DB, creator.ID, true)

	req := validCreateGameRequest(location.ID)
	req.MaxPlayers = 2
	game, err := svc.CreateGame(creator.ID, req)
	require.NoError(t, err)
	require.Equal(t, 1, game.CurrentPlayers)

	second := createTestUser(t, svc.DB, "second")
	joined, err := svc.JoinGame(second.ID, game.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, joined.CurrentPlayers)

	third := createTestUser(t, svc.DB, "third")
	_, err = svc.JoinGame(third.ID, game.ID)
	assert.Equal(t, apperr.CapacityExceeded, apperr.KindOf(err))

	var refreshed models.Game
	require.NoError(t, svc.DB.First(&refreshed, "id = ?", game.ID).Error)
	assert.Equal(t, 2, refreshed.CurrentPlayers)
	assert.Equal(t, 2, participantCount(t, svc.DB, game.ID))
}

func TestJoinGameIsIdempotentInFailure(t *testing.T) {
	svc, _ := newGameService(t)
	creator := createTestUser(t, svc.DB, "creator")
	location := createTestLocation(t, svc.DB, creator.ID, true)
	game, err := svc.CreateGame(creator.ID, validCreateGameRequest(location.ID))
	require.NoError(t, err)

	player := createTestUser(t, svc.DB, "player")
	_, err = svc.JoinGame(player.ID, game.ID)
	require.NoError(t, err)

	_, err = svc.JoinGame(player.ID, game.ID)
	assert.Error(t, err)
	assert.Equal(t, 2, participantCount(t, svc.DB, game.ID))
}

func TestJoinGameRejectsWrongStatus(t *testing.T) {
	svc, _ := newGameService(t)
	creator := createTestUser(t, svc.DB, "creator")
	location := createTestLocation(t, svc.DB, creator.ID, true)
	game, err := svc.CreateGame(creator.ID, validCreateGameRequest(location.ID))
	require.NoError(t, err)

	require.NoError(t, svc.DB.Model(&models.Game{}).Where("id = ?", game.ID).
		Update("status", models.GameActive).Error)

	player := createTestUser(t, svc.DB, "player")
	_, err = svc.JoinGame(player.ID, game.ID)
	assert.Equal(t, apperr.InvalidState, apperr.KindOf(err))
}

func TestJoinGameUnknownGame(t *testing.T) {
	svc, _ := newGameService(t)
	player := createTestUser(t, svc.DB, "player")

	_, err := svc.JoinGame(player.ID, "no-such-game")
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestLeaveThenRejoin(t *testing.T) {
	svc, pub := newGameService(t)
	creator := createTestUser(t, svc.DB, "creator")
	location := createTestLocation(t, svc.DB, creator.ID, true)
	game, err := svc.CreateGame(creator.ID, validCreateGameRequest(location.ID))
	require.NoError(t, err)

	player := createTestUser(t, svc.DB, "player")
	_, err = svc.JoinGame(player.ID, game.ID)
	require.NoError(t, err)

	left, err := svc.LeaveGame(player.ID, game.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, left.CurrentPlayers)
	assert.Len(t, pub.byType(realtime.EventPlayerLeft), 1)

	// No stale row blocks the re-join.
	rejoined, err := svc.JoinGame(player.ID, game.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, rejoined.CurrentPlayers)
}

func TestLeaveGameNotParticipant(t *testing.T) {
	svc, _ := newGameService(t)
	creator := createTestUser(t, svc.DB, "creator")
	location := createTestLocation(t, svc.DB, creator.ID, true)
	game, err := svc.CreateGame(creator.ID, validCreateGameRequest(location.ID))
	require.NoError(t, err)

	outsider := createTestUser(t, svc.DB, "outsider")
	_, err = svc.LeaveGame(outsider.ID, game.ID)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestUpdateGameOwnerOnly(t *testing.T) {
	svc, _ := newGameService(t)
	creator := createTestUser(t, svc.DB, "creator")
	location := createTestLocation(t, svc.DB, creator.ID, true)
	game, err := svc.CreateGame(creator.ID, validCreateGameRequest(location.ID))
	require.NoError(t, err)

	other := createTestUser(t, svc.DB, "other")
	newTitle := "Hostile takeover"
	_, err = svc.UpdateGame(other.ID, game.ID, UpdateGameRequest{Title: &newTitle})
	assert.Equal(t, apperr.Forbidden, apperr.KindOf(err))

	var refreshed models.Game
	require.NoError(t, svc.DB.First(&refreshed, "id = ?", game.ID).Error)
	assert.Equal(t, "Friday runs", refreshed.Title)
}

func TestUpdateGamePartialFields(t *testing.T) {
	svc, pub := newGameService(t)
	creator := createTestUser(t, svc.DB, "creator")
	location := createTestLocation(t, svc.DB, creator.ID, true)
	game, err := svc.CreateGame(creator.ID, validCreateGameRequest(location.ID))
	require.NoError(t, err)

	newTitle := "Saturday runs"
	updated, err := svc.UpdateGame(creator.ID, game.ID, UpdateGameRequest{Title: &newTitle})
	require.NoError(t, err)
	assert.Equal(t, newTitle, updated.Title)
	assert.Equal(t, game.MaxPlayers, updated.MaxPlayers)
	assert.Len(t, pub.byType(realtime.EventGameUpdated), 1)

	past := time.Now().Add(-time.Hour)
	_, err = svc.UpdateGame(creator.ID, game.ID, UpdateGameRequest{ScheduledTime: &past})
	assert.Equal(t, apperr.ValidationFailed, apperr.KindOf(err))
}

func TestUpdateGameCannotShrinkBelowAttendance(t *testing.T) {
	svc, _ := newGameService(t)
	creator := createTestUser(t, svc.DB, "creator")
	location := createTestLocation(t, svc.DB, creator.ID, true)

	req := validCreateGameRequest(location.ID)
	req.MaxPlayers = 4
	game, err := svc.CreateGame(creator.ID, req)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		player := createTestUser(t, svc.DB, fmt.Sprintf("player%d", i))
		_, err = svc.JoinGame(player.ID, game.ID)
		require.NoError(t, err)
	}

	two := 2
	_, err = svc.UpdateGame(creator.ID, game.ID, UpdateGameRequest{MaxPlayers: &two})
	assert.Equal(t, apperr.ValidationFailed, apperr.KindOf(err))
}

func TestCancelGameNotifiesEveryParticipant(t *testing.T) {
	svc, pub := newGameService(t)
	creator := createTestUser(t, svc.DB, "creator")
	location := createTestLocation(t, svc.DB, creator.ID, true)
	game, err := svc.CreateGame(creator.ID, validCreateGameRequest(location.ID))
	require.NoError(t, err)

	player := createTestUser(t, svc.DB, "player")
	_, err = svc.JoinGame(player.ID, game.ID)
	require.NoError(t, err)

	require.NoError(t, svc.CancelGame(creator.ID, game.ID))

	var refreshed models.Game
	require.NoError(t, svc.DB.First(&refreshed, "id = ?", game.ID).Error)
	assert.Equal(t, models.GameCancelled, refreshed.Status)

	cancelled := pub.byType(realtime.EventGameCancelled)
	topics := make([]string, 0, len(cancelled))
	for _, e := range cancelled {
		topics = append(topics, e.Topic)
	}
	assert.Contains(t, topics, realtime.GameTopic(game.ID))
	assert.Contains(t, topics, realtime.UserTopic(creator.ID))
	assert.Contains(t, topics, realtime.UserTopic(player.ID))
}

func TestCancelGameForbiddenForNonCreator(t *testing.T) {
	svc, _ := newGameService(t)
	creator := createTestUser(t, svc.DB, "creator")
	location := createTestLocation(t, svc.DB, creator.ID, true)
	game, err := svc.CreateGame(creator.ID, validCreateGameRequest(location.ID))
	require.NoError(t, err)

	other := createTestUser(t, svc.DB, "other")
	err = svc.CancelGame(other.ID, game.ID)
	assert.Equal(t, apperr.Forbidden, apperr.KindOf(err))

	// Admin accounts are no exception: moderation runs through the
	// audited /admin surface, not the creator gate.
	admin := createTestUser(t, svc.DB, "admin")
	require.NoError(t, svc.DB.Model(admin).Update("role", models.RoleAdmin).Error)
	err = svc.CancelGame(admin.ID, game.ID)
	assert.Equal(t, apperr.Forbidden, apperr.KindOf(err))
}

// A broken participant store is a server fault, not a client error.
func TestJoinGameSurfacesStorageFailure(t *testing.T) {
	svc, _ := newGameService(t)
	creator := createTestUser(t, svc.DB, "creator")
	location := createTestLocation(t, svc.DB, creator.ID, true)
	game, err := svc.CreateGame(creator.ID, validCreateGameRequest(location.ID))
	require.NoError(t, err)

	require.NoError(t, svc.DB.Migrator().DropTable(&models.GameParticipant{}))

	player := createTestUser(t, svc.DB, "player")
	_, err = svc.JoinGame(player.ID, game.ID)
	assert.Equal(t, apperr.Internal, apperr.KindOf(err))
}

func TestIsDuplicateKey(t *testing.T) {
	assert.True(t, isDuplicateKey(gorm.ErrDuplicatedKey))
	assert.True(t, isDuplicateKey(errors.New("UNIQUE constraint failed: game_participants.game_id, game_participants.user_id")))
	assert.True(t, isDuplicateKey(errors.New(`duplicate key value violates unique constraint "idx_game_user"`)))
	assert.False(t, isDuplicateKey(errors.New("database is locked")))
}

// UpdateGame must not write back the attendance it loaded: a join committing
// between the load and the update would be reverted. The callback stages
// exactly that interleaving.
func TestUpdateGameDoesNotClobberConcurrentJoin(t *testing.T) {
	svc, _ := newGameService(t)
	creator := createTestUser(t, svc.DB, "creator")
	location := createTestLocation(t, svc.DB, creator.ID, true)
	game, err := svc.CreateGame(creator.ID, validCreateGameRequest(location.ID))
	require.NoError(t, err)
	player := createTestUser(t, svc.DB, "player")

	joined := false
	require.NoError(t, svc.DB.Callback().Update().Before("gorm:update").
		Register("test:interleaved_join", func(tx *gorm.DB) {
			if joined {
				return
			}
			if _, ok := tx.Statement.Model.(*models.Game); !ok {
				return
			}
			joined = true
			db := tx.Session(&gorm.Session{NewDB: true})
			assert.NoError(t, db.Create(&models.GameParticipant{
				ID:     uuid.NewString(),
				GameID: game.ID,
				UserID: player.ID,
				Status: models.ParticipantJoined,
			}).Error)
			assert.NoError(t, db.Model(&models.Game{}).Where("id = ?", game.ID).
				Update("current_players", 2).Error)
		}))

	newTitle := "Saturday runs"
	_, err = svc.UpdateGame(creator.ID, game.ID, UpdateGameRequest{Title: &newTitle})
	require.NoError(t, err)
	require.True(t, joined)

	var refreshed models.Game
	require.NoError(t, svc.DB.First(&refreshed, "id = ?", game.ID).Error)
	assert.Equal(t, newTitle, refreshed.Title)
	assert.Equal(t, 2, refreshed.CurrentPlayers)
	assert.Equal(t, 2, participantCount(t, svc.DB, game.ID))
}

// The derived count must equal the participant-row count after every
// mutation, including a concurrent join storm against one game.
func TestConcurrentJoinsKeepCountConsistent(t *testing.T) {
	svc, _ := newGameService(t)
	creator := createTestUser(t, svc.DB, "creator")
	location := createTestLocation(t, svc.DB, creator.ID, true)

	req := validCreateGameRequest(location.ID)
	req.MaxPlayers = 20
	game, err := svc.CreateGame(creator.ID, req)
	require.NoError(t, err)

	const joiners = 9
	users := make([]*models.User, joiners)
	for i := range users {
		users[i] = createTestUser(t, svc.DB, fmt.Sprintf("joiner%d", i))
	}

	var wg sync.WaitGroup
	for _, u := range users {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			_, err := svc.JoinGame(userID, game.ID)
			assert.NoError(t, err)
		}(u.ID)
	}
	wg.Wait()

	var refreshed models.Game
	require.NoError(t, svc.DB.First(&refreshed, "id = ?", game.ID).Error)
	assert.Equal(t, joiners+1, refreshed.CurrentPlayers)
	assert.Equal(t, refreshed.CurrentPlayers, participantCount(t, svc.DB, game.ID))
}
