package services

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

var (
	// ErrAlreadyRegistered indicates the identity already has a user record.
	ErrAlreadyRegistered = errors.New("ledger: user already registered")
	// ErrUserNotFound indicates the identity has never registered.
	ErrUserNotFound = errors.New("ledger: user not found")
	// ErrNotFound indicates an invite code that resolves to nobody.
	ErrNotFound = errors.New("ledger: invite code not found")
	// ErrInvalidAmount rejects negative (or, for debits, non-positive) point amounts.
	ErrInvalidAmount = errors.New("ledger: invalid amount")
	// ErrInvalidParameters rejects malformed pool definitions.
	ErrInvalidParameters = errors.New("ledger: invalid parameters")
	// ErrPoolNotFound indicates the pool id is unknown.
	ErrPoolNotFound = errors.New("ledger: pool not found")
	// ErrPoolClosed indicates the pool has no remaining budget.
	ErrPoolClosed = errors.New("ledger: pool closed")
	// ErrAlreadyClaimed indicates the user already drew from this pool.
	ErrAlreadyClaimed = errors.New("ledger: pool already claimed by user")
	// ErrInsufficientPool is returned by the strict debit policy when a debit
	// exceeds the pool's remaining budget.
	ErrInsufficientPool = errors.New("ledger: insufficient pool budget")
	// ErrSecondaryNotLinked indicates an action needs a linked secondary identity.
	ErrSecondaryNotLinked = errors.New("ledger: secondary identity not linked")
	// ErrStorageUnavailable is matched by every storage failure or timeout.
	ErrStorageUnavailable = errors.New("ledger: storage unavailable")
)

// domainErrors are expected outcomes; they pass through the storage wrapper untouched.
var domainErrors = []error{
	ErrAlreadyRegistered,
	ErrUserNotFound,
	ErrNotFound,
	ErrInvalidAmount,
	ErrInvalidParameters,
	ErrPoolNotFound,
	ErrPoolClosed,
	ErrAlreadyClaimed,
	ErrInsufficientPool,
	ErrSecondaryNotLinked,
}

// StorageError wraps a driver failure or an expired storage deadline.
// errors.Is(err, ErrStorageUnavailable) holds for every StorageError.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("ledger: storage unavailable during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorageUnavailable }

func storageError(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, known := range domainErrors {
		if errors.Is(err, known) {
			return err
		}
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// isDuplicateKey reports a unique-constraint violation. TranslateError covers
// most drivers; the message check catches the rest.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
