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

type CodeRequest struct {
	UserID  *string
	Target  string
	Channel string
	Purpose string
}

type Codes struct {
	db          *gorm.DB
	ttl         time.Duration
	length      int
	cooldown    time.Duration
	maxAttempts int
	now         func() time.Time
}

func NewCodes(db *gorm.DB, ttl time.Duration, length int, cooldown time.Duration, maxAttempts int) *Codes {
	return &Codes{
		db:          db,
		ttl:         ttl,
		length:      length,
		cooldown:    cooldown,
		maxAttempts: maxAttempts,
		now:         time.Now,
	}
}

// Issue generates a fresh code for req.Target and returns it in plain text.
// Older unused codes for the same target and purpose (and user, when set)
// stop working. Returns a
// *CooldownError if the previous code is younger than the resend cooldown.
func (c *Codes) Issue(ctx context.Context, req CodeRequest) (string, error) {
	code, err := security.NewCode(c.length)
	if err != nil {
		return "", fmt.Errorf("failed to generate code, %w", err)
	}

	now := c.now()

	err = c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if req.UserID != nil {
			if err := lockUser(tx, *req.UserID); err != nil {
				return err
			}
		}

		var last model.VerificationCode
		err := codeScope(tx.Clauses(clause.Locking{Strength: "UPDATE"}), req.UserID, req.Target, req.Purpose).
			Order("created_at DESC, id DESC").
			First(&last).Error
		switch {
		case err == nil:
			if wait := last.CreatedAt.Add(c.cooldown).Sub(now); wait > 0 {
				return &CooldownError{RetryAfter: wait}
			}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		if err := codeScope(tx.Model(&model.VerificationCode{}), req.UserID, req.Target, req.Purpose).
			Where("used = ?", false).
			Update("used", true).Error; err != nil {
			return err
		}

		return tx.Create(&model.VerificationCode{
			UserID:    req.UserID,
			Target:    req.Target,
			Purpose:   req.Purpose,
			Channel:   req.Channel,
			CodeHash:  security.HashCode(code),
			ExpiresAt: now.Add(c.ttl),
			CreatedAt: now,
		}).Error
	})
	if err != nil {
		if errors.Is(err, ErrResendCooldown) {
			return "", err
		}

		return "", fmt.Errorf("failed to issue code, %w", err)
	}

	return code, nil
}

// Verify checks code against the newest unused code for target and purpose.
// Every guess counts as an attempt and is recorded before the code is
// compared, so parallel guesses can't get past the attempt limit.
func (c *Codes) Verify(ctx context.Context, target, purpose, code string) (*model.VerificationCode, error) {
	return c.verify(ctx, nil, target, purpose, code)
}

// VerifyFor is Verify limited to the codes issued to userID, so a code sent
// to the same target for another account never matches
func (c *Codes) VerifyFor(ctx context.Context, userID, target, purpose, code string) (*model.VerificationCode, error) {
	return c.verify(ctx, &userID, target, purpose, code)
}

func (c *Codes) verify(ctx context.Context, userID *string, target, purpose, code string) (*model.VerificationCode, error) {
	db := c.db.WithContext(ctx)
	now := c.now()

	var rec model.VerificationCode
	if err := codeScope(db, userID, target, purpose).
		Where("used = ?", false).
		Order("created_at DESC, id DESC").
		First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCodeNotFound
		}

		return nil, fmt.Errorf("failed to load code, %w", err)
	}

	if !rec.ExpiresAt.After(now) {
		return nil, ErrCodeExpired
	}

	attempt := db.Model(&model.VerificationCode{}).
		Where("id = ? AND used = ? AND attempts < ?", rec.ID, false, c.maxAttempts).
		UpdateColumn("attempts", gorm.Expr("attempts + 1"))
	if attempt.Error != nil {
		return nil, fmt.Errorf("failed to record attempt, %w", attempt.Error)
	}

	if attempt.RowsAffected == 0 {
		var cur model.VerificationCode
		if err := db.Select("used").Where("id = ?", rec.ID).First(&cur).Error; err == nil && cur.Used {
			return nil, ErrCodeNotFound
		}

		return nil, ErrTooManyAttempts
	}

	if !security.CodeMatches(code, rec.CodeHash) {
		return nil, ErrCodeInvalid
	}

	res := db.Model(&model.VerificationCode{}).
		Where("id = ? AND used = ?", rec.ID, false).
		UpdateColumn("used", true)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to mark code used, %w", res.Error)
	}

	// Someone else verified it first
	if res.RowsAffected == 0 {
		return nil, ErrCodeNotFound
	}

	rec.Used = true
	return &rec, nil
}

// codeScope narrows a query to target and purpose, and to userID when the
// code belongs to an account
func codeScope(db *gorm.DB, userID *string, target, purpose string) *gorm.DB {
	db = db.Where("target = ? AND purpose = ?", target, purpose)
	if userID != nil {
		db = db.Where("user_id = ?", *userID)
	}

	return db
}

// PurgeExpired deletes expired codes and used codes older than a day
func (c *Codes) PurgeExpired(ctx context.Context) (int64, error) {
	now := c.now()

	res := c.db.WithContext(ctx).
		Where("expires_at <= ? OR (used = ? AND created_at <= ?)", now, true, now.Add(-usedTokenRetention)).
		Delete(&model.VerificationCode{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to purge codes, %w", res.Error)
	}

	return res.RowsAffected, nil
}
