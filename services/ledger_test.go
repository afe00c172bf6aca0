package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestIncrementCreatesAndAccumulates(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	bal, err := e.Ledger.Increment(ctx, "42", 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), bal)

	bal, err = e.Ledger.Increment(ctx, "42", 3)
	require.NoError(t, err)
	assert.Equal(t, int64(10), bal)

	bal, err = e.Ledger.Increment(ctx, "42", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(10), bal)
}

func TestIncrementRejectsNegative(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.Ledger.Increment(context.Background(), "42", -1)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestReadUnknownUserIsZero(t *testing.T) {
	e := newTestEngine(t)

	bal, err := e.Ledger.Read(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Zero(t, bal)
}

func TestEnsureUserIsIdempotent(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.Ledger.EnsureUser(ctx, "42"))
	_, err := e.Ledger.Increment(ctx, "42", 4)
	require.NoError(t, err)
	require.NoError(t, e.Ledger.EnsureUser(ctx, "42"))

	bal, err := e.Ledger.Read(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, int64(4), bal)
}

func TestConcurrentIncrementsConservePoints(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	const workers, perWorker = 50, 3
	var g errgroup.Group
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			_, err := e.Ledger.Increment(ctx, "42", perWorker)
			return err
		})
	}
	require.NoError(t, g.Wait())

	bal, err := e.Ledger.Read(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, int64(workers*perWorker), bal)
}
