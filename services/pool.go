package services

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/gosimple/slug"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"referral-ledger/models"
)

// DebitPolicy decides what happens when a debit exceeds a pool's remaining budget.
type DebitPolicy string

const (
	// DebitCap shrinks the debit to whatever is left.
	DebitCap DebitPolicy = "cap"
	// DebitStrict rejects the debit with ErrInsufficientPool.
	DebitStrict DebitPolicy = "strict"
)

func ParseDebitPolicy(v string) (DebitPolicy, error) {
	switch p := DebitPolicy(strings.ToLower(strings.TrimSpace(v))); p {
	case DebitCap, DebitStrict:
		return p, nil
	case "":
		return DebitCap, nil
	default:
		return "", fmt.Errorf("unknown pool debit policy %q", v)
	}
}

// PayoutFor is the per-claim payout rule: the pool total divided (floor) by
// the budget still remaining. Payouts grow as the pool drains.
func PayoutFor(total, remaining int64) int64 {
	if remaining <= 0 {
		return 0
	}
	return total / remaining
}

// PoolService owns the pools relation.
type PoolService struct {
	*Backend
	Policy DebitPolicy
}

func NewPoolService(b *Backend, policy DebitPolicy) *PoolService {
	if policy == "" {
		policy = DebitCap
	}
	return &PoolService{Backend: b, Policy: policy}
}

// CreatePool opens a pool worth pointsPerClaim*maxClaims points.
// Authorization is the caller's concern.
func (s *PoolService) CreatePool(ctx context.Context, task string, pointsPerClaim, maxClaims int64) (*models.Pool, error) {
	task = strings.TrimSpace(task)
	if task == "" || pointsPerClaim <= 0 || maxClaims <= 0 {
		return nil, ErrInvalidParameters
	}
	if pointsPerClaim > math.MaxInt64/maxClaims {
		return nil, ErrInvalidParameters
	}

	total := pointsPerClaim * maxClaims
	pool := &models.Pool{
		Task:      task,
		Slug:      slug.Make(task),
		Total:     total,
		Remaining: total,
		MaxClaims: maxClaims,
	}

	db, cancel := s.session(ctx)
	defer cancel()
	if err := db.Create(pool).Error; err != nil {
		return nil, storageError("create pool", err)
	}

	s.Log.Info().Uint("pool_id", pool.ID).Str("task", task).Int64("total", total).Int64("max_claims", maxClaims).Msg("pool created")
	return pool, nil
}

// Quote reports the live (remaining, total) of a pool. A drained pool still
// reports its figures alongside ErrPoolClosed.
func (s *PoolService) Quote(ctx context.Context, poolID uint) (int64, int64, error) {
	pool, err := s.GetPool(ctx, poolID)
	if err != nil {
		return 0, 0, err
	}
	if pool.Closed() {
		return pool.Remaining, pool.Total, ErrPoolClosed
	}
	return pool.Remaining, pool.Total, nil
}

// Debit subtracts amount from the pool under its row lock and returns the
// amount actually debited, which under DebitCap may be less than asked.
func (s *PoolService) Debit(ctx context.Context, poolID uint, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	var debited int64
	err := s.transaction(ctx, "debit pool", func(tx *gorm.DB) error {
		pool, err := lockPool(tx, poolID)
		if err != nil {
			return err
		}
		debited, err = s.debit(tx, pool, amount)
		return err
	})
	return debited, err
}

func (s *PoolService) GetPool(ctx context.Context, poolID uint) (*models.Pool, error) {
	db, cancel := s.session(ctx)
	defer cancel()

	var pool models.Pool
	res := db.Where("id = ?", poolID).Limit(1).Find(&pool)
	if res.Error != nil {
		return nil, storageError("get pool", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrPoolNotFound
	}
	return &pool, nil
}

// ListPools returns pools newest first, optionally only the open ones.
func (s *PoolService) ListPools(ctx context.Context, openOnly bool) ([]models.Pool, error) {
	db, cancel := s.session(ctx)
	defer cancel()

	q := db.Model(&models.Pool{}).Order("id DESC")
	if openOnly {
		q = q.Where("remaining > 0")
	}
	var pools []models.Pool
	if err := q.Find(&pools).Error; err != nil {
		return nil, storageError("list pools", err)
	}
	return pools, nil
}

// lockPool loads a pool with SELECT ... FOR UPDATE. SQLite has no row locks;
// there the single connection serializes writers instead.
func lockPool(tx *gorm.DB, poolID uint) (*models.Pool, error) {
	var pool models.Pool
	res := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", poolID).Limit(1).Find(&pool)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrPoolNotFound
	}
	return &pool, nil
}

// debit applies the policy and a guarded decrement. pool must have been
// loaded through lockPool in the same tx; its Remaining is updated in place.
func (s *PoolService) debit(tx *gorm.DB, pool *models.Pool, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	if pool.Closed() {
		return 0, ErrPoolClosed
	}
	if amount > pool.Remaining {
		if s.Policy == DebitStrict {
			return 0, ErrInsufficientPool
		}
		amount = pool.Remaining
	}

	res := tx.Model(&models.Pool{}).
		Where("id = ? AND remaining >= ?", pool.ID, amount).
		Update("remaining", gorm.Expr("remaining - ?", amount))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, ErrInsufficientPool
	}
	pool.Remaining -= amount
	return amount, nil
}
