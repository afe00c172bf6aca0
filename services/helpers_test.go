package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"referral-ledger/config"
	"referral-ledger/database"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	url := fmt.Sprintf("sqlite:file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := database.Open(config.DatabaseConfig{URL: url}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func newTestEngine(t *testing.T, opts ...func(*EngineConfig)) *Engine {
	t.Helper()
	cfg := EngineConfig{
		Policy:  DebitCap,
		Rewards: DefaultRewards,
		Logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return NewEngine(newTestDB(t), cfg)
}

func withPolicy(p DebitPolicy) func(*EngineConfig) {
	return func(cfg *EngineConfig) { cfg.Policy = p }
}

func mustRegister(t *testing.T, e *Engine, userID string) string {
	t.Helper()
	res, err := e.RegisterUser(context.Background(), userID, "")
	require.NoError(t, err)
	return res.Code
}

func registerMany(t *testing.T, e *Engine, n int) []string {
	t.Helper()
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("user-%03d", i)
		mustRegister(t, e, ids[i])
	}
	return ids
}

// referencePayouts replays the payout rule on plain integers.
func referencePayouts(total int64, capped bool) []int64 {
	var out []int64
	for remaining := total; remaining > 0; {
		p := total / remaining
		if p > remaining {
			if !capped {
				break
			}
			p = remaining
		}
		out = append(out, p)
		remaining -= p
	}
	return out
}
