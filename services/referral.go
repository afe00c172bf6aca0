package services

import (
	"context"
	"crypto/rand"
	"math/big"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"referral-ledger/models"
)

const inviteAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// registerAttempts bounds retries after a unique-key race with a concurrent
// registration. The invite code loop itself is unbounded.
const registerAttempts = 3

// CodeGenerator produces a candidate invite code.
type CodeGenerator func() (string, error)

// RandomInviteCode returns a generator of uniformly random codes over [A-Z0-9].
func RandomInviteCode(length int) CodeGenerator {
	base := big.NewInt(int64(len(inviteAlphabet)))
	return func() (string, error) {
		var b strings.Builder
		b.Grow(length)
		for i := 0; i < length; i++ {
			n, err := rand.Int(rand.Reader, base)
			if err != nil {
				return "", err
			}
			b.WriteByte(inviteAlphabet[n.Int64()])
		}
		return b.String(), nil
	}
}

// NormalizeInviteCode trims and upper-cases a code typed by a user.
func NormalizeInviteCode(code string) string {
	return cases.Upper(language.Und).String(strings.TrimSpace(code))
}

// ReferralService owns the users relation: identities, invite codes and who
// referred whom.
type ReferralService struct {
	*Backend
	Bonus   int64
	NewCode CodeGenerator
}

func NewReferralService(b *Backend, bonus int64, gen CodeGenerator) *ReferralService {
	if gen == nil {
		gen = RandomInviteCode(8)
	}
	return &ReferralService{Backend: b, Bonus: bonus, NewCode: gen}
}

// Registration is the outcome of a successful Register.
type Registration struct {
	User             models.User
	CreditedReferrer *string
}

// Register creates the user, its zero balance and a fresh invite code. When
// inviteCode belongs to an existing user, that user becomes the referrer and
// receives the referral bonus in the same transaction. An unknown or empty
// inviteCode registers the user without a referrer.
//
// A user can never refer themselves: the registrant has no code until this
// call commits, so inviteCode cannot resolve to them.
func (s *ReferralService) Register(ctx context.Context, userID, inviteCode string) (*Registration, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrInvalidParameters
	}
	inviteCode = NormalizeInviteCode(inviteCode)

	var (
		reg *Registration
		err error
	)
	for attempt := 1; attempt <= registerAttempts; attempt++ {
		reg, err = s.register(ctx, userID, inviteCode)
		if err == nil || !isDuplicateKey(err) {
			break
		}
		s.Log.Debug().Str("user_id", userID).Int("attempt", attempt).Msg("registration raced, retrying")
	}
	if err != nil {
		return nil, err
	}

	ev := s.Log.Info().Str("user_id", userID).Str("code", reg.User.Code)
	if reg.CreditedReferrer != nil {
		ev = ev.Str("referrer_id", *reg.CreditedReferrer).Int64("bonus", s.Bonus)
	}
	ev.Msg("user registered")
	return reg, nil
}

func (s *ReferralService) register(ctx context.Context, userID, inviteCode string) (*Registration, error) {
	reg := &Registration{}
	err := s.transaction(ctx, "register", func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrAlreadyRegistered
		}

		var referrer *models.User
		if inviteCode != "" {
			var candidate models.User
			res := tx.Where("code = ?", inviteCode).Limit(1).Find(&candidate)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected > 0 {
				referrer = &candidate
			}
		}

		code, err := s.uniqueCode(tx)
		if err != nil {
			return err
		}

		user := models.User{ID: userID, Code: code}
		if referrer != nil {
			user.ReferrerID = &referrer.ID
		}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		if err := ensureBalance(tx, userID); err != nil {
			return err
		}
		if referrer != nil {
			if _, err := increment(tx, referrer.ID, s.Bonus); err != nil {
				return err
			}
			reg.CreditedReferrer = &referrer.ID
		}
		reg.User = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reg, nil
}

// uniqueCode draws codes until one is not taken. With 36^8 possible codes
// the loop ends after the first draw in practice.
func (s *ReferralService) uniqueCode(tx *gorm.DB) (string, error) {
	for {
		code, err := s.NewCode()
		if err != nil {
			return "", err
		}
		var count int64
		if err := tx.Model(&models.User{}).Where("code = ?", code).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return code, nil
		}
		s.Log.Debug().Str("code", code).Msg("invite code collision")
	}
}

// Resolve returns the identity owning inviteCode.
func (s *ReferralService) Resolve(ctx context.Context, inviteCode string) (string, error) {
	code := NormalizeInviteCode(inviteCode)
	if code == "" {
		return "", ErrNotFound
	}

	db, cancel := s.session(ctx)
	defer cancel()

	var user models.User
	res := db.Select("id").Where("code = ?", code).Limit(1).Find(&user)
	if res.Error != nil {
		return "", storageError("resolve code", res.Error)
	}
	if res.RowsAffected == 0 {
		return "", ErrNotFound
	}
	return user.ID, nil
}

// LinkSecondaryIdentity records (or replaces) the user's secondary platform id.
func (s *ReferralService) LinkSecondaryIdentity(ctx context.Context, userID, secondaryID string) error {
	secondaryID = strings.TrimSpace(secondaryID)
	if secondaryID == "" {
		return ErrInvalidParameters
	}

	db, cancel := s.session(ctx)
	defer cancel()

	res := db.Model(&models.User{}).Where("id = ?", userID).Update("secondary_id", secondaryID)
	if res.Error != nil {
		return storageError("link secondary identity", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	s.Log.Info().Str("user_id", userID).Str("secondary_id", secondaryID).Msg("secondary identity linked")
	return nil
}

// UserProfile is a read-only view of one user.
type UserProfile struct {
	models.User
	Points    int64 `json:"points"`
	Referrals int64 `json:"referrals"`
}

// Profile loads the user together with its balance and referral count.
func (s *ReferralService) Profile(ctx context.Context, userID string) (*UserProfile, error) {
	db, cancel := s.session(ctx)
	defer cancel()

	user, err := findUser(db, userID)
	if err != nil {
		return nil, storageError("load profile", err)
	}
	points, err := readBalance(db, userID)
	if err != nil {
		return nil, storageError("load profile", err)
	}
	var referrals int64
	if err := db.Model(&models.User{}).Where("referrer_id = ?", userID).Count(&referrals).Error; err != nil {
		return nil, storageError("load profile", err)
	}
	return &UserProfile{User: *user, Points: points, Referrals: referrals}, nil
}
