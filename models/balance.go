package models

import "time"

// Balance is the point total of one user. It is only ever changed through an
// atomic upsert-increment, never written back from a value read earlier.
type Balance struct {
	UserID    string    `gorm:"primaryKey;type:varchar(64)" json:"user_id"`
	Points    int64     `gorm:"not null;default:0" json:"points"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
