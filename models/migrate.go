package models

import "gorm.io/gorm"

// AutoMigrate creates or updates the four ledger relations.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&Balance{},
		&Pool{},
		&Claim{},
	)
}
