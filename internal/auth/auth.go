// Package auth owns the lifecycle of everything that proves who a user is:
// login sessions, single-use password reset tokens and one time
// verification codes.
package auth

import (
	"time"

	"gorm.io/gorm"
)

type Config struct {
	SessionTTL      time.Duration
	ResetTokenTTL   time.Duration
	CodeTTL         time.Duration
	CodeLength      int
	ResendCooldown  time.Duration
	MaxCodeAttempts int

	// SessionCacheTTL bounds how stale a cached session lookup can be.
	// Zero disables the cache.
	SessionCacheTTL time.Duration
}

type Service struct {
	Sessions *Sessions
	Resets   *ResetTokens
	Codes    *Codes
}

func New(db *gorm.DB, cfg Config) *Service {
	sessions := NewSessions(db, cfg.SessionTTL, cfg.SessionCacheTTL)

	return &Service{
		Sessions: sessions,
		Resets:   NewResetTokens(db, sessions, cfg.ResetTokenTTL),
		Codes:    NewCodes(db, cfg.CodeTTL, cfg.CodeLength, cfg.ResendCooldown, cfg.MaxCodeAttempts),
	}
}

// Close releases the session cache
func (s *Service) Close() error {
	return s.Sessions.Close()
}
