package models

// Pool is a finite reward budget for one task.
// Total = points per claim * max claims; Remaining only decreases and never drops below zero.
type Pool struct {
	ID        uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Task      string `gorm:"type:text;not null" json:"task"`
	Slug      string `gorm:"index;type:varchar(128)" json:"slug"`
	Total     int64  `gorm:"not null" json:"total"`
	Remaining int64  `gorm:"not null;check:remaining >= 0" json:"remaining"`
	MaxClaims int64  `gorm:"not null" json:"max_claims"`

	Timestamps
}

// Closed reports whether the pool accepts no further claims.
func (p *Pool) Closed() bool {
	return p.Remaining <= 0
}
