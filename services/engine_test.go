package services

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"referral-ledger/metrics"
)

func TestAwardFixedAccumulates(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	mustRegister(t, e, "A")

	bal, err := e.AwardFixed(ctx, "A", 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), bal)

	// no duplicate guard on fixed awards
	bal, err = e.AwardFixed(ctx, "A", 5)
	require.NoError(t, err)
	assert.Equal(t, int64(10), bal)
}

func TestAwardFixedValidation(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.AwardFixed(ctx, "ghost", 5)
	assert.ErrorIs(t, err, ErrUserNotFound)

	mustRegister(t, e, "A")
	_, err = e.AwardFixed(ctx, "A", -5)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	bal, err := e.GetBalance(ctx, "A")
	require.NoError(t, err)
	assert.Zero(t, bal)
}

func TestAwardVerifiedAction(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	mustRegister(t, e, "A")

	bal, err := e.AwardVerifiedAction(ctx, "A", ActionJoin, false)
	require.NoError(t, err)
	assert.Zero(t, bal)

	bal, err = e.AwardVerifiedAction(ctx, "A", ActionJoin, true)
	require.NoError(t, err)
	assert.Equal(t, int64(5), bal)

	_, err = e.AwardVerifiedAction(ctx, "A", ActionFollow, true)
	assert.ErrorIs(t, err, ErrSecondaryNotLinked)

	require.NoError(t, e.LinkSecondaryIdentity(ctx, "A", "@alice"))
	bal, err = e.AwardVerifiedAction(ctx, "A", ActionFollow, true)
	require.NoError(t, err)
	assert.Equal(t, int64(10), bal)

	_, err = e.AwardVerifiedAction(ctx, "A", Action("dance"), true)
	assert.ErrorIs(t, err, ErrInvalidParameters)

	_, err = e.AwardVerifiedAction(ctx, "ghost", ActionJoin, true)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestStorageTimeoutIsUnavailable(t *testing.T) {
	e := newTestEngine(t, func(cfg *EngineConfig) { cfg.Timeout = time.Nanosecond })
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err := e.RegisterUser(ctx, "A", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStorageUnavailable)

	var se *StorageError
	require.ErrorAs(t, err, &se)
	assert.ErrorIs(t, se, context.DeadlineExceeded)

	_, err = e.GetBalance(ctx, "A")
	assert.ErrorIs(t, err, ErrStorageUnavailable)

	_, err = e.ClaimPool(ctx, "A", 1)
	assert.ErrorIs(t, err, ErrStorageUnavailable)
}

func TestClosedDatabaseIsUnavailable(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	mustRegister(t, e, "A")

	sqlDB, err := e.Ledger.DB.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	_, err = e.AwardFixed(ctx, "A", 5)
	assert.ErrorIs(t, err, ErrStorageUnavailable)
	_, err = e.CreatePool(ctx, "task", 1, 1)
	assert.ErrorIs(t, err, ErrStorageUnavailable)
	assert.ErrorIs(t, e.Ping(ctx), ErrStorageUnavailable)
}

func TestStorageErrorPassesDomainErrorsThrough(t *testing.T) {
	assert.Nil(t, storageError("op", nil))
	assert.Same(t, ErrPoolClosed, storageError("op", ErrPoolClosed))

	err := storageError("op", context.DeadlineExceeded)
	assert.ErrorIs(t, err, ErrStorageUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "op")

	assert.Same(t, err, storageError("outer", err))

	wrapped := fmt.Errorf("claim: %w", ErrPoolClosed)
	assert.Same(t, wrapped, storageError("op", wrapped))
	assert.True(t, isExpected(wrapped))
	assert.False(t, isExpected(err))
}

func TestPoolReport(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	registerMany(t, e, 2)
	poolID, err := e.CreatePool(ctx, "task", 10, 5)
	require.NoError(t, err)
	for _, id := range []string{"user-000", "user-001"} {
		_, err := e.ClaimPool(ctx, id, poolID)
		require.NoError(t, err)
	}

	report, err := e.PoolReport(ctx, poolID)
	require.NoError(t, err)
	assert.Equal(t, poolID, report.Pool.ID)
	assert.Len(t, report.Claims, 2)
	assert.Equal(t, int64(2), report.Distributed)
	assert.False(t, report.GeneratedAt.IsZero())

	_, err = e.PoolReport(ctx, 999)
	assert.ErrorIs(t, err, ErrPoolNotFound)
}

func TestEngineRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	e := newTestEngine(t, func(cfg *EngineConfig) { cfg.Metrics = metrics.New(reg) })
	ctx := context.Background()

	code := mustRegister(t, e, "A")
	_, err := e.RegisterUser(ctx, "B", code)
	require.NoError(t, err)

	poolID, err := e.CreatePool(ctx, "task", 10, 5)
	require.NoError(t, err)
	_, err = e.ClaimPool(ctx, "A", poolID)
	require.NoError(t, err)
	_, err = e.ClaimPool(ctx, "A", poolID)
	require.ErrorIs(t, err, ErrAlreadyClaimed)

	expected := `
# HELP referral_ledger_pool_claims_total Pool claim attempts by outcome.
# TYPE referral_ledger_pool_claims_total counter
referral_ledger_pool_claims_total{result="duplicate"} 1
referral_ledger_pool_claims_total{result="paid"} 1
# HELP referral_ledger_registrations_total Users registered, split by whether a referrer was credited.
# TYPE referral_ledger_registrations_total counter
referral_ledger_registrations_total{referred="false"} 1
referral_ledger_registrations_total{referred="true"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"referral_ledger_pool_claims_total",
		"referral_ledger_registrations_total",
	))

	// remaining-budget gauges come from the report worker, not from claims
	gauges, err := testutil.GatherAndCount(reg, "referral_ledger_pool_remaining_points")
	require.NoError(t, err)
	assert.Zero(t, gauges)
}
