package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	RoleUser       = "user"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super_admin"
)

const (
	SkillBeginner     = "beginner"
	SkillIntermediate = "intermediate"
	SkillAdvanced     = "advanced"
)

// User is a registered player. Accounts are never physically deleted —
// deactivation flips IsActive and the soft-delete marker keeps history intact.
type User struct {
	ID           string `json:"id" gorm:"primaryKey"`
	Email        string `json:"email" gorm:"uniqueIndex;not null"`
	Username     string `json:"username" gorm:"uniqueIndex;not null"`
	PasswordHash string `json:"-" gorm:"not null"`

	Role              string `json:"role" gorm:"default:'user'"`
	SkillLevel        string `json:"skill_level"`
	PreferredPosition string `json:"preferred_position"`

	IsActive   bool `json:"is_active" gorm:"default:true"`
	IsVerified bool `json:"is_verified" gorm:"default:false"`

	// Cached counters, reconciled by the stats worker.
	GamesPlayed  int     `json:"games_played" gorm:"default:0"`
	GamesCreated int     `json:"games_created" gorm:"default:0"`
	Rating       float64 `json:"rating" gorm:"default:0"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (u *User) IsAdminRole() bool {
	return u.Role == RoleAdmin || u.Role == RoleSuperAdmin
}
