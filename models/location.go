// models/location.go
package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	CourtIndoor  = "indoor"
	CourtOutdoor = "outdoor"
)

const (
	SurfaceHardwood = "hardwood"
	SurfaceConcrete = "concrete"
	SurfaceAsphalt  = "asphalt"
	SurfaceRubber   = "rubber"
)

// Location is a basketball court. Anyone may submit one; it stays hidden
// from public listings until an admin approves it. Deletion is a soft
// deactivation, blocked while games in a non-terminal status reference it.
type Location struct {
	ID      string `json:"id" gorm:"primaryKey"`
	Name    string `json:"name" gorm:"not null"`
	Slug    string `json:"slug" gorm:"index"`
	Address string `json:"address"`

	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`

	CourtType   string `json:"court_type"`
	SurfaceType string `json:"surface_type"`
	// Comma-joined tag set, e.g. "lights,water,restrooms".
	Amenities string `json:"amenities"`

	PhotoURL string `json:"photo_url,omitempty"`

	IsApproved bool `json:"is_approved" gorm:"default:false"`
	IsActive   bool `json:"is_active" gorm:"default:true"`

	CreatedBy string `json:"created_by" gorm:"index;not null"`

	AverageRating float64 `json:"average_rating" gorm:"default:0"`
	GamesHosted   int     `json:"games_hosted" gorm:"default:0"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}
