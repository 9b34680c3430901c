package validators

import (
	"errors"
	"regexp"
	"strings"
)

var (
	ErrPhoneEmpty   = errors.New("no phone number provided")
	ErrPhoneInvalid = errors.New("phone number must be in international format, e.g. +14155550123")
)

var e164 = regexp.MustCompile(`^\+[1-9]\d{7,14}$`)

// NormalizePhone strips the separators people usually type
func NormalizePhone(p string) string {
	return strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "").Replace(strings.TrimSpace(p))
}

// PhoneValidator accepts E.164 numbers only, call NormalizePhone first
func PhoneValidator(p string) error {
	if p == "" {
		return ErrPhoneEmpty
	}

	if !e164.MatchString(p) {
		return ErrPhoneInvalid
	}

	return nil
}
