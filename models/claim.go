package models

import "time"

// Claim = user drew a payout from a pool. One row per (user, pool), never updated.
type Claim struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID    string    `gorm:"uniqueIndex:idx_claims_user_pool;type:varchar(64);not null" json:"user_id"`
	PoolID    uint      `gorm:"uniqueIndex:idx_claims_user_pool;index;not null" json:"pool_id"`
	Method    string    `gorm:"type:varchar(32);not null" json:"method"` // e.g., "TASK"
	Verified  bool      `gorm:"not null;default:false" json:"verified"`
	Points    int64     `gorm:"not null" json:"points"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}
