package validators

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmailValidator(t *testing.T) {
	assert.ErrorIs(t, EmailValidator(""), ErrEmailEmpty)
	assert.ErrorIs(t, EmailValidator("not an email"), ErrEmailInvalid)
	assert.NoError(t, EmailValidator("jane@example.com"))
}

func TestPasswordValidator(t *testing.T) {
	tests := []struct {
		in   string
		want error
	}{
		{"", ErrPasswordEmpty},
		{"a1", ErrPasswordTooShort},
		{strings.Repeat("a1", 128), ErrPasswordTooLong},
		{"abcdefgh", ErrPasswordWeak},
		{"12345678", ErrPasswordWeak},
		{"abcd\x001234", ErrPasswordInvalid},
		{"correct1horse", nil},
	}

	for _, tc := range tests {
		assert.ErrorIs(t, PasswordValidator(tc.in), tc.want, "input %q", tc.in)
	}
}

func TestPhoneValidator(t *testing.T) {
	assert.Equal(t, "+14155550123", NormalizePhone(" +1 (415) 555-0123 "))

	assert.ErrorIs(t, PhoneValidator(""), ErrPhoneEmpty)
	assert.ErrorIs(t, PhoneValidator("4155550123"), ErrPhoneInvalid)
	assert.ErrorIs(t, PhoneValidator("+0123456789"), ErrPhoneInvalid)
	assert.NoError(t, PhoneValidator("+14155550123"))
}

func TestNameAndGender(t *testing.T) {
	assert.NoError(t, NameValidator(""))
	assert.NoError(t, NameValidator("Zoë Ångström"))
	assert.ErrorIs(t, NameValidator(strings.Repeat("x", 121)), ErrNameTooLong)
	assert.ErrorIs(t, NameValidator("bad\nname"), ErrNameInvalid)

	assert.NoError(t, GenderValidator("female"))
	assert.ErrorIs(t, GenderValidator("robot"), ErrGender)
}

func TestRanges(t *testing.T) {
	assert.NoError(t, IntRange("age", 50, 1, 120))
	assert.EqualError(t, IntRange("age", 0, 1, 120), "age must be between 1 and 120")
	assert.NoError(t, FloatRange("oldpeak", 2.5, 0, 10))
	assert.Error(t, FloatRange("oldpeak", -0.1, 0, 10))
	assert.Error(t, FloatRange("oldpeak", math.NaN(), 0, 10))
}
