// Package account removes users together with every row that belongs to them
package account

import (
	"bitwise74/cardio-api/internal/auth"
	"bitwise74/cardio-api/internal/model"
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Delete revokes the sessions of userID and removes the user and all owned
// rows in one transaction. Child rows are deleted explicitly because SQLite
// doesn't enforce the cascades.
func Delete(ctx context.Context, db *gorm.DB, sessions *auth.Sessions, userID string) error {
	if _, err := sessions.RevokeAll(ctx, userID); err != nil {
		return fmt.Errorf("failed to revoke sessions, %w", err)
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteTx(tx, userID)
	})
}

func deleteTx(tx *gorm.DB, userID string) error {
	children := []any{
		&model.Prediction{},
		&model.PasswordResetToken{},
		&model.VerificationCode{},
		&model.Session{},
	}

	for _, m := range children {
		if err := tx.Where("user_id = ?", userID).Delete(m).Error; err != nil {
			return err
		}
	}

	r := tx.Where("id = ?", userID).Delete(&model.User{})
	if r.Error != nil {
		return r.Error
	}

	if r.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

// DeleteUnverified removes accounts that never verified their email and were
// created before cutoff. Admins are never removed.
func DeleteUnverified(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	var ids []string
	err := db.WithContext(ctx).Model(&model.User{}).
		Where("email_verified = ? AND is_admin = ? AND created_at < ?", false, false, cutoff).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, err
	}

	var n int64
	for _, id := range ids {
		err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return deleteTx(tx, id)
		})
		if err != nil {
			return n, fmt.Errorf("failed to delete account %s, %w", id, err)
		}
		n++
	}

	return n, nil
}
