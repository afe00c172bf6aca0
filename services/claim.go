package services

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"referral-ledger/models"
)

// MethodTask marks a claim paid out for a verified task.
const MethodTask = "TASK"

// ClaimService couples the pool debit, the balance credit and the claim row.
// It is the only writer that touches a pool and a balance in one operation.
type ClaimService struct {
	*Backend
	Pools *PoolService
}

func NewClaimService(b *Backend, pools *PoolService) *ClaimService {
	return &ClaimService{Backend: b, Pools: pools}
}

// ClaimResult describes a committed claim.
type ClaimResult struct {
	Claim     models.Claim
	Payout    int64
	Remaining int64
}

// Claim draws one payout from poolID for userID. Everything happens in one
// transaction holding the pool row lock, so concurrent claims on the same
// pool are applied one after another and each sees the previous debit.
func (s *ClaimService) Claim(ctx context.Context, userID string, poolID uint, method string) (*ClaimResult, error) {
	if method == "" {
		method = MethodTask
	}

	var result *ClaimResult
	err := s.transaction(ctx, "claim pool", func(tx *gorm.DB) error {
		pool, err := lockPool(tx, poolID)
		if err != nil {
			return err
		}
		if pool.Closed() {
			return ErrPoolClosed
		}
		if _, err := findUser(tx, userID); err != nil {
			return err
		}

		var existing int64
		if err := tx.Model(&models.Claim{}).
			Where("user_id = ? AND pool_id = ?", userID, poolID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrAlreadyClaimed
		}

		payout, err := s.Pools.debit(tx, pool, PayoutFor(pool.Total, pool.Remaining))
		if err != nil {
			return err
		}
		if _, err := increment(tx, userID, payout); err != nil {
			return err
		}

		claim := models.Claim{
			ID:       uuid.NewString(),
			UserID:   userID,
			PoolID:   poolID,
			Method:   method,
			Verified: true,
			Points:   payout,
		}
		if err := tx.Create(&claim).Error; err != nil {
			if isDuplicateKey(err) {
				return ErrAlreadyClaimed
			}
			return err
		}

		result = &ClaimResult{Claim: claim, Payout: payout, Remaining: pool.Remaining}
		return nil
	})
	if err != nil {
		s.Log.Debug().Err(err).Str("user_id", userID).Uint("pool_id", poolID).Msg("claim rejected")
		return nil, err
	}

	s.Log.Info().
		Str("user_id", userID).
		Uint("pool_id", poolID).
		Int64("payout", result.Payout).
		Int64("remaining", result.Remaining).
		Msg("pool claim paid")
	return result, nil
}

// ClaimsForPool lists a pool's claims in the order they were made.
func (s *ClaimService) ClaimsForPool(ctx context.Context, poolID uint) ([]models.Claim, error) {
	db, cancel := s.session(ctx)
	defer cancel()

	var claims []models.Claim
	if err := db.Where("pool_id = ?", poolID).Order("created_at ASC, id ASC").Find(&claims).Error; err != nil {
		return nil, storageError("list claims", err)
	}
	return claims, nil
}
