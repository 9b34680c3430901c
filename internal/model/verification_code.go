package model

import "time"

const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

const (
	PurposeEmailVerify = "email_verify"
	PurposePhoneVerify = "phone_verify"
)

// VerificationCode is a short-lived OTP. Only the SHA-256 hash of the code
// is stored, Target is the email address or phone number it was sent to.
type VerificationCode struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	UserID    *string   `gorm:"index;size:16"`
	Target    string    `gorm:"index:idx_code_target_purpose;not null;size:255"`
	Purpose   string    `gorm:"index:idx_code_target_purpose;not null;size:32"`
	Channel   string    `gorm:"not null;size:8"`
	CodeHash  string    `gorm:"not null;size:64"`
	Attempts  int       `gorm:"not null;default:0"`
	Used      bool      `gorm:"not null;default:false"`
	ExpiresAt time.Time `gorm:"index;not null"`
	CreatedAt time.Time
}
