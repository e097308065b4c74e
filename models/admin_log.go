package models

import "time"

// AdminLog is an append-only audit record. One row per mutating admin
// action, capturing the prior and new values in Details. The system never
// edits or prunes these rows.
type AdminLog struct {
	ID         string    `json:"id" gorm:"primaryKey"`
	AdminID    string    `json:"admin_id" gorm:"index;not null"`
	Action     string    `json:"action" gorm:"index;not null"`
	TargetType string    `json:"target_type"`
	TargetID   string    `json:"target_id" gorm:"index"`
	Details    string    `json:"details"`
	CreatedAt  time.Time `json:"created_at"`
}
