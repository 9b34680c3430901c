package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const idCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// IDLength is the size of user and prediction IDs
const IDLength = 16

// NewToken returns a random UUIDv4 used for session and reset tokens
func NewToken() string {
	return uuid.NewString()
}

// IsToken reports whether s looks like a token made by NewToken
func IsToken(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil && len(s) == 36
}

func NewID() (string, error) {
	return gonanoid.Generate(idCharset, IDLength)
}

// NewRequestID returns a short ID for correlating logs. Safe for concurrent use.
func NewRequestID() string {
	return gonanoid.MustGenerate(idCharset, 10)
}

// NewCode returns an n digit numeric one time code. Digits are drawn with
// rejection sampling so every digit is equally likely.
func NewCode(n int) (string, error) {
	if n <= 0 {
		return "", errors.New("invalid code length")
	}

	out := make([]byte, 0, n)
	buf := make([]byte, n)

	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}

		for _, b := range buf {
			if b >= 250 {
				continue
			}

			out = append(out, '0'+b%10)
			if len(out) == n {
				break
			}
		}
	}

	return string(out), nil
}

// HashCode returns the hex SHA-256 of a one time code
func HashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// CodeMatches compares code against a stored HashCode value in constant time
func CodeMatches(code, hash string) bool {
	return subtle.ConstantTimeCompare([]byte(HashCode(code)), []byte(hash)) == 1
}
