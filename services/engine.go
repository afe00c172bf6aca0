package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"referral-ledger/metrics"
	"referral-ledger/models"
)

// Action is a verified one-off action that earns a fixed reward.
type Action string

const (
	ActionJoin   Action = "join"
	ActionFollow Action = "follow"
)

// Rewards are the fixed award amounts.
type Rewards struct {
	Referral int64
	Join     int64
	Follow   int64
}

var DefaultRewards = Rewards{Referral: 10, Join: 5, Follow: 5}

type EngineConfig struct {
	Timeout          time.Duration
	Policy           DebitPolicy
	Rewards          Rewards
	InviteCodeLength int
	CodeGenerator    CodeGenerator // overrides InviteCodeLength when set
	Logger           zerolog.Logger
	Metrics          *metrics.Metrics
}

// Engine is the entry point used by the transport layer. It composes the
// ledger, the referral graph, the pool manager and the claim coordinator
// over one shared store handle.
type Engine struct {
	backend   *Backend
	Ledger    *LedgerService
	Referrals *ReferralService
	Pools     *PoolService
	Claims    *ClaimService

	rewards Rewards
	metrics *metrics.Metrics
	log     zerolog.Logger
}

func NewEngine(db *gorm.DB, cfg EngineConfig) *Engine {
	backend := NewBackend(db, cfg.Timeout, cfg.Logger.With().Str("component", "ledger").Logger())

	gen := cfg.CodeGenerator
	if gen == nil {
		length := cfg.InviteCodeLength
		if length <= 0 {
			length = 8
		}
		gen = RandomInviteCode(length)
	}

	pools := NewPoolService(backend, cfg.Policy)
	return &Engine{
		backend:   backend,
		Ledger:    NewLedgerService(backend),
		Referrals: NewReferralService(backend, cfg.Rewards.Referral, gen),
		Pools:     pools,
		Claims:    NewClaimService(backend, pools),
		rewards:   cfg.Rewards,
		metrics:   cfg.Metrics,
		log:       backend.Log,
	}
}

// RegisterResult is returned to the caller after registration.
type RegisterResult struct {
	Code             string  `json:"code"`
	CreditedReferrer bool    `json:"credited_referrer"`
	ReferrerID       *string `json:"referrer_id,omitempty"`
}

func (e *Engine) RegisterUser(ctx context.Context, userID, inviteCode string) (*RegisterResult, error) {
	reg, err := e.Referrals.Register(ctx, userID, inviteCode)
	if err != nil {
		return nil, err
	}
	e.metrics.ObserveRegistration(reg.CreditedReferrer != nil)
	if reg.CreditedReferrer != nil {
		e.metrics.ObserveAward("referral", e.rewards.Referral)
	}
	return &RegisterResult{
		Code:             reg.User.Code,
		CreditedReferrer: reg.CreditedReferrer != nil,
		ReferrerID:       reg.CreditedReferrer,
	}, nil
}

func (e *Engine) LinkSecondaryIdentity(ctx context.Context, userID, secondaryID string) error {
	return e.Referrals.LinkSecondaryIdentity(ctx, userID, secondaryID)
}

// AwardFixed credits points to a registered user. Repeated calls award again;
// there is no duplicate guard.
func (e *Engine) AwardFixed(ctx context.Context, userID string, points int64) (int64, error) {
	balance, err := e.Ledger.Award(ctx, userID, points, nil)
	if err != nil {
		return 0, err
	}
	e.metrics.ObserveAward("fixed", points)
	return balance, nil
}

// AwardVerifiedAction credits the fixed reward of action once the external
// verifier has answered. An unverified action awards nothing and returns
// the current balance. Follow rewards need a linked secondary identity.
func (e *Engine) AwardVerifiedAction(ctx context.Context, userID string, action Action, verified bool) (int64, error) {
	var (
		points int64
		check  func(*models.User) error
	)
	switch action {
	case ActionJoin:
		points = e.rewards.Join
	case ActionFollow:
		points = e.rewards.Follow
		check = func(u *models.User) error {
			if u.SecondaryID == nil || *u.SecondaryID == "" {
				return ErrSecondaryNotLinked
			}
			return nil
		}
	default:
		return 0, ErrInvalidParameters
	}

	if !verified {
		points = 0
	}
	balance, err := e.Ledger.Award(ctx, userID, points, check)
	if err != nil {
		return 0, err
	}
	if verified {
		e.metrics.ObserveAward(string(action), points)
	}
	return balance, nil
}

func (e *Engine) GetBalance(ctx context.Context, userID string) (int64, error) {
	return e.Ledger.Read(ctx, userID)
}

func (e *Engine) CreatePool(ctx context.Context, task string, pointsPerClaim, maxClaims int64) (uint, error) {
	pool, err := e.Pools.CreatePool(ctx, task, pointsPerClaim, maxClaims)
	if err != nil {
		return 0, err
	}
	return pool.ID, nil
}

// ClaimPool claims poolID for userID and returns the credited payout.
// Pool remaining gauges are left to the pool report worker.
func (e *Engine) ClaimPool(ctx context.Context, userID string, poolID uint) (int64, error) {
	res, err := e.Claims.Claim(ctx, userID, poolID, MethodTask)
	if err != nil {
		e.metrics.ObserveClaim(claimOutcome(err))
		return 0, err
	}
	e.metrics.ObserveClaim("paid")
	e.metrics.ObserveAward("pool", res.Payout)
	return res.Payout, nil
}

func (e *Engine) GetUser(ctx context.Context, userID string) (*UserProfile, error) {
	return e.Referrals.Profile(ctx, userID)
}

func (e *Engine) ListPools(ctx context.Context, openOnly bool) ([]models.Pool, error) {
	return e.Pools.ListPools(ctx, openOnly)
}

func (e *Engine) GetPool(ctx context.Context, poolID uint) (*models.Pool, error) {
	return e.Pools.GetPool(ctx, poolID)
}

// PoolReport is a snapshot of a pool and every claim made against it.
type PoolReport struct {
	Pool        models.Pool    `json:"pool"`
	Claims      []models.Claim `json:"claims"`
	Distributed int64          `json:"distributed"`
	GeneratedAt time.Time      `json:"generated_at"`
}

func (e *Engine) PoolReport(ctx context.Context, poolID uint) (*PoolReport, error) {
	pool, err := e.Pools.GetPool(ctx, poolID)
	if err != nil {
		return nil, err
	}
	claims, err := e.Claims.ClaimsForPool(ctx, poolID)
	if err != nil {
		return nil, err
	}
	return &PoolReport{
		Pool:        *pool,
		Claims:      claims,
		Distributed: pool.Total - pool.Remaining,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

func (e *Engine) Ping(ctx context.Context) error {
	return e.backend.Ping(ctx)
}

// Metrics exposes the collectors the engine records into (may be nil).
func (e *Engine) Metrics() *metrics.Metrics {
	return e.metrics
}

func claimOutcome(err error) string {
	switch {
	case errors.Is(err, ErrPoolClosed):
		return "closed"
	case errors.Is(err, ErrAlreadyClaimed):
		return "duplicate"
	case errors.Is(err, ErrPoolNotFound):
		return "not_found"
	case errors.Is(err, ErrUserNotFound):
		return "unregistered"
	case errors.Is(err, ErrInsufficientPool):
		return "insufficient"
	case errors.Is(err, ErrStorageUnavailable):
		return "storage_error"
	default:
		return "error"
	}
}
