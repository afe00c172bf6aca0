package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

const defaultStorageTimeout = 5 * time.Second

// Backend is the long-lived store handle shared by the ledger components.
// Every call against it runs under Timeout so no operation blocks forever.
type Backend struct {
	DB      *gorm.DB
	Timeout time.Duration
	Log     zerolog.Logger
}

func NewBackend(db *gorm.DB, timeout time.Duration, logger zerolog.Logger) *Backend {
	if timeout <= 0 {
		timeout = defaultStorageTimeout
	}
	return &Backend{DB: db, Timeout: timeout, Log: logger}
}

func (b *Backend) session(ctx context.Context) (*gorm.DB, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, b.Timeout)
	return b.DB.WithContext(ctx), cancel
}

// transaction runs fn in a single database transaction. Domain errors returned
// by fn are passed through; anything else surfaces as a *StorageError.
func (b *Backend) transaction(ctx context.Context, op string, fn func(tx *gorm.DB) error) error {
	db, cancel := b.session(ctx)
	defer cancel()

	err := storageError(op, db.Transaction(fn))
	if err != nil && !isExpected(err) {
		b.Log.Error().Err(err).Str("op", op).Msg("storage failure")
	}
	return err
}

// Ping verifies the datastore is reachable within the storage timeout.
func (b *Backend) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, b.Timeout)
	defer cancel()

	sqlDB, err := b.DB.DB()
	if err != nil {
		return storageError("ping", err)
	}
	return storageError("ping", sqlDB.PingContext(ctx))
}

func isExpected(err error) bool {
	for _, known := range domainErrors {
		if errors.Is(err, known) {
			return true
		}
	}
	return false
}
