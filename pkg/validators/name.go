package validators

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	ErrNameTooLong = errors.New("name is too long")
	ErrNameInvalid = errors.New("name contains invalid characters")
	ErrGender      = errors.New("gender must be one of male, female, other")
)

var genders = map[string]bool{"": true, "male": true, "female": true, "other": true}

// NameValidator allows an empty name, the profile field is optional
func NameValidator(n string) error {
	if utf8.RuneCountInString(n) > 120 {
		return ErrNameTooLong
	}

	if strings.IndexFunc(n, unicode.IsControl) >= 0 {
		return ErrNameInvalid
	}

	return nil
}

func GenderValidator(g string) error {
	if !genders[g] {
		return ErrGender
	}

	return nil
}
