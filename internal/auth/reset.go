package auth

import (
	"bitwise74/cardio-api/internal/model"
	"bitwise74/cardio-api/pkg/security"
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// How long used tokens are kept around so a second submit still gets a
// meaningful "already used" answer
const usedTokenRetention = 24 * time.Hour

type ResetTokens struct {
	db       *gorm.DB
	sessions *Sessions
	ttl      time.Duration
	now      func() time.Time
}

func NewResetTokens(db *gorm.DB, sessions *Sessions, ttl time.Duration) *ResetTokens {
	return &ResetTokens{
		db:       db,
		sessions: sessions,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Issue creates a new reset token for userID. Every other valid token of the
// user is invalidated in the same transaction so only one can ever be valid.
// The user row is locked first so concurrent requests for the same user queue
// up instead of each missing the other's uncommitted token.
func (r *ResetTokens) Issue(ctx context.Context, userID string) (*model.PasswordResetToken, error) {
	now := r.now()

	t := &model.PasswordResetToken{
		UserID:    userID,
		Token:     security.NewToken(),
		IsValid:   true,
		ExpiresAt: now.Add(r.ttl),
		CreatedAt: now,
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockUser(tx, userID); err != nil {
			return err
		}

		if err := tx.Model(&model.PasswordResetToken{}).
			Where("user_id = ? AND is_valid = ?", userID, true).
			Update("is_valid", false).Error; err != nil {
			return err
		}

		return tx.Create(t).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to issue reset token, %w", err)
	}

	return t, nil
}

// Validate checks that token can still be used without consuming it
func (r *ResetTokens) Validate(ctx context.Context, token string) (*model.PasswordResetToken, error) {
	if !security.IsToken(token) {
		return nil, ErrTokenNotFound
	}

	return classifyToken(r.db.WithContext(ctx), token, r.now())
}

// Consume marks token as used, stores newHash as the owner's password and
// ends every session of the owner. Returns the owner's ID.
func (r *ResetTokens) Consume(ctx context.Context, token, newHash string) (string, error) {
	if !security.IsToken(token) {
		return "", ErrTokenNotFound
	}

	now := r.now()

	var (
		userID  string
		revoked []string
	)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.PasswordResetToken{}).
			Where("token = ? AND is_valid = ? AND expires_at > ?", token, true, now).
			Updates(map[string]any{
				"is_valid": false,
				"used_at":  now,
			})
		if res.Error != nil {
			return res.Error
		}

		// Lost the race or was never usable, find out which
		if res.RowsAffected == 0 {
			_, err := classifyToken(tx, token, now)
			if err == nil {
				err = ErrTokenUsed
			}

			return err
		}

		var t model.PasswordResetToken
		if err := tx.Where("token = ?", token).First(&t).Error; err != nil {
			return err
		}

		if err := tx.Model(&model.User{}).
			Where("id = ?", t.UserID).
			Update("password_hash", newHash).Error; err != nil {
			return err
		}

		var err error
		revoked, err = revokeAllTx(tx, t.UserID)
		if err != nil {
			return err
		}

		userID = t.UserID
		return nil
	})
	if err != nil {
		if isTokenErr(err) {
			return "", err
		}

		return "", fmt.Errorf("failed to consume reset token, %w", err)
	}

	if r.sessions != nil {
		r.sessions.forget(revoked...)
	}

	return userID, nil
}

// PurgeExpired deletes expired tokens and tokens used more than a day ago
func (r *ResetTokens) PurgeExpired(ctx context.Context) (int64, error) {
	now := r.now()

	res := r.db.WithContext(ctx).
		Where("expires_at <= ? OR (used_at IS NOT NULL AND used_at <= ?)", now, now.Add(-usedTokenRetention)).
		Delete(&model.PasswordResetToken{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to purge reset tokens, %w", res.Error)
	}

	return res.RowsAffected, nil
}

func classifyToken(db *gorm.DB, token string, now time.Time) (*model.PasswordResetToken, error) {
	var t model.PasswordResetToken
	if err := db.Where("token = ?", token).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTokenNotFound
		}

		return nil, fmt.Errorf("failed to load reset token, %w", err)
	}

	if !t.IsValid {
		return nil, ErrTokenUsed
	}

	if !t.ExpiresAt.After(now) {
		return nil, ErrTokenExpired
	}

	return &t, nil
}

// lockUser takes a row lock on the user until the transaction ends. SQLite
// has no row locks, its single writer already serializes the transaction.
func lockUser(tx *gorm.DB, userID string) error {
	var u model.User
	return tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		Where("id = ?", userID).
		First(&u).Error
}

func isTokenErr(err error) bool {
	return errors.Is(err, ErrTokenNotFound) ||
		errors.Is(err, ErrTokenUsed) ||
		errors.Is(err, ErrTokenExpired)
}
