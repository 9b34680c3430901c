// Package model defines database models
package model

import "time"

type User struct {
	ID            string     `gorm:"primaryKey;size:16" json:"id"`
	Email         string     `gorm:"uniqueIndex;not null;size:255" json:"email"`
	PasswordHash  string     `gorm:"not null" json:"-"`
	FullName      string     `gorm:"size:120" json:"fullName"`
	Phone         *string    `gorm:"size:20" json:"phone,omitempty"`
	PhoneVerified bool       `gorm:"default:false" json:"phoneVerified"`
	EmailVerified bool       `gorm:"default:false" json:"emailVerified"`
	IsAdmin       bool       `gorm:"default:false;index" json:"isAdmin"`
	Active        bool       `gorm:"default:true" json:"active"`
	DateOfBirth   *time.Time `json:"dateOfBirth,omitempty"`
	Gender        string     `gorm:"size:16" json:"gender,omitempty"`
	LastLoginAt   *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`

	Sessions            []Session            `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	PasswordResetTokens []PasswordResetToken `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Predictions         []Prediction         `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}
