package services

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"referral-ledger/models"
)

// LedgerService owns the balances relation. Balances only ever move through a
// single upsert-increment statement, so concurrent awards never lose updates.
type LedgerService struct {
	*Backend
}

func NewLedgerService(b *Backend) *LedgerService {
	return &LedgerService{Backend: b}
}

// EnsureUser creates a zero balance for userID if none exists (idempotent).
func (s *LedgerService) EnsureUser(ctx context.Context, userID string) error {
	return s.transaction(ctx, "ensure balance", func(tx *gorm.DB) error {
		return ensureBalance(tx, userID)
	})
}

// Increment adds amount to the balance of userID, creating the row when
// absent, and returns the resulting balance.
func (s *LedgerService) Increment(ctx context.Context, userID string, amount int64) (int64, error) {
	if amount < 0 {
		return 0, ErrInvalidAmount
	}
	var balance int64
	err := s.transaction(ctx, "increment balance", func(tx *gorm.DB) error {
		var err error
		balance, err = increment(tx, userID, amount)
		return err
	})
	return balance, err
}

// Read returns the balance of userID, or 0 when it has none.
func (s *LedgerService) Read(ctx context.Context, userID string) (int64, error) {
	db, cancel := s.session(ctx)
	defer cancel()

	points, err := readBalance(db, userID)
	return points, storageError("read balance", err)
}

// Award credits a fixed amount to a registered user. check, when non-nil,
// runs against the user row before anything is written and can
// veto the award.
func (s *LedgerService) Award(ctx context.Context, userID string, amount int64, check func(*models.User) error) (int64, error) {
	if amount < 0 {
		return 0, ErrInvalidAmount
	}
	var balance int64
	err := s.transaction(ctx, "award", func(tx *gorm.DB) error {
		user, err := findUser(tx, userID)
		if err != nil {
			return err
		}
		if check != nil {
			if err := check(user); err != nil {
				return err
			}
		}
		balance, err = increment(tx, userID, amount)
		return err
	})
	if err != nil {
		return 0, err
	}
	s.Log.Info().Str("user_id", userID).Int64("points", amount).Int64("balance", balance).Msg("fixed award applied")
	return balance, nil
}

func ensureBalance(tx *gorm.DB, userID string) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&models.Balance{UserID: userID}).Error
}

// increment is the only write path for balances.points.
func increment(tx *gorm.DB, userID string, amount int64) (int64, error) {
	row := models.Balance{UserID: userID, Points: amount}
	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			// qualified so postgres does not confuse it with excluded.points
			"points":     gorm.Expr("balances.points + ?", amount),
			"updated_at": time.Now(),
		}),
	}).Create(&row).Error
	if err != nil {
		return 0, err
	}
	return readBalance(tx, userID)
}

func readBalance(tx *gorm.DB, userID string) (int64, error) {
	var bal models.Balance
	if err := tx.Where("user_id = ?", userID).Limit(1).Find(&bal).Error; err != nil {
		return 0, err
	}
	return bal.Points, nil
}

func findUser(tx *gorm.DB, userID string) (*models.User, error) {
	var user models.User
	res := tx.Where("id = ?", userID).Limit(1).Find(&user)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrUserNotFound
	}
	return &user, nil
}
