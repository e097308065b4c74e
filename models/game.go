// models/game.go
package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	GameScheduled = "scheduled"
	GameStarting  = "starting"
	GameActive    = "active"
	GameCompleted = "completed"
	GameCancelled = "cancelled"
)

// ParticipantJoined is the only attendance status: joining inserts the row,
// leaving deletes it.
const ParticipantJoined = "joined"

const (
	MinPlayers      = 2
	MaxPlayersLimit = 50
	MinDuration     = 15  // minutes
	MaxDuration     = 480 // minutes
)

// Game is a pickup session at a court. CurrentPlayers is a cached value:
// the participant rows are the source of truth and the count is recomputed
// from them after every join/leave, never incremented in place.
type Game struct {
	ID         string `json:"id" gorm:"primaryKey"`
	LocationID string `json:"location_id" gorm:"index;not null"`
	CreatedBy  string `json:"created_by" gorm:"index;not null"`

	Title       string `json:"title" gorm:"not null"`
	Description string `json:"description"`

	ScheduledTime   time.Time `json:"scheduled_time" gorm:"index;not null"`
	DurationMinutes int       `json:"duration_minutes"`

	MaxPlayers     int `json:"max_players"`
	CurrentPlayers int `json:"current_players" gorm:"default:0"`

	SkillLevelRequired string `json:"skill_level_required"`

	Status string `json:"status" gorm:"index;default:'scheduled'"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	Participants []GameParticipant `json:"participants,omitempty" gorm:"foreignKey:GameID"`
}

// IsTerminal reports whether the game can no longer change attendance.
func (g *Game) IsTerminal() bool {
	return g.Status == GameCompleted || g.Status == GameCancelled
}

// GameParticipant ties one user to one game. The composite unique index is
// the sole concurrency guard against double-joins: concurrent joins race at
// the constraint with exactly one winner per (game, user) pair. Leaving a
// game removes the row outright so a later re-join inserts cleanly.
type GameParticipant struct {
	ID     string `json:"id" gorm:"primaryKey"`
	GameID string `json:"game_id" gorm:"uniqueIndex:idx_game_user;not null"`
	UserID string `json:"user_id" gorm:"uniqueIndex:idx_game_user;not null"`

	Status   string    `json:"status" gorm:"default:'joined'"`
	JoinedAt time.Time `json:"joined_at" gorm:"autoCreateTime"`
}
