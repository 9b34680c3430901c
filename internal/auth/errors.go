package auth

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
	ErrUserInactive    = errors.New("user account is deactivated")

	ErrTokenNotFound = errors.New("reset token not found")
	ErrTokenExpired  = errors.New("reset token expired")
	ErrTokenUsed     = errors.New("reset token was already used")

	ErrCodeNotFound    = errors.New("verification code not found")
	ErrCodeExpired     = errors.New("verification code expired")
	ErrCodeInvalid     = errors.New("verification code is incorrect")
	ErrTooManyAttempts = errors.New("too many incorrect attempts, request a new code")
	ErrResendCooldown  = errors.New("a code was sent recently, please wait before requesting another")
)

// CooldownError is returned by Codes.Issue while the previous code for the
// same target is still too fresh
type CooldownError struct {
	RetryAfter time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("%s (retry in %ds)", ErrResendCooldown, e.RetrySeconds())
}

func (e *CooldownError) Is(target error) bool {
	return target == ErrResendCooldown
}

// RetrySeconds rounds up so clients never retry too early
func (e *CooldownError) RetrySeconds() int {
	s := int(e.RetryAfter / time.Second)
	if e.RetryAfter%time.Second != 0 {
		s++
	}

	return s
}
