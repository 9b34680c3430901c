package model

import "time"

// Session is a server-side login. Token is the opaque value stored in the
// session cookie.
type Session struct {
	ID         uint      `gorm:"primaryKey;autoIncrement"`
	Token      string    `gorm:"uniqueIndex;not null;size:36"`
	UserID     string    `gorm:"index;not null;size:16"`
	IPAddress  string    `gorm:"size:64"`
	UserAgent  string    `gorm:"size:512"`
	ExpiresAt  time.Time `gorm:"index;not null"`
	LastSeenAt time.Time
	CreatedAt  time.Time
}
