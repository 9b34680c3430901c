package model

import "time"

type PasswordResetToken struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	UserID    string    `gorm:"index;not null;size:16"`
	Token     string    `gorm:"uniqueIndex;not null;size:36"`
	IsValid   bool      `gorm:"not null;default:true;index"`
	ExpiresAt time.Time `gorm:"index;not null"`
	UsedAt    *time.Time
	CreatedAt time.Time
}
