package models

import "time"

// User is a registered participant keyed by the external platform id.
// ID and Code never change after creation; ReferrerID is written only on insert.
type User struct {
	ID          string  `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Code        string  `gorm:"uniqueIndex;type:varchar(32);not null" json:"code"`
	ReferrerID  *string `gorm:"index;type:varchar(64)" json:"referrer_id,omitempty"` // weak reference, no FK
	SecondaryID *string `gorm:"type:varchar(128)" json:"secondary_id,omitempty"`       // e.g. linked Twitter account

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
