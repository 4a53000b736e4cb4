package security

import (
	"errors"
	"os"
	"strings"
)

// ErrInvalidSecret is returned when the signing secret is empty or unreadable.
var ErrInvalidSecret = errors.New("invalid signing secret")

const secretFilePrefix = "file:"

// LoadSecret returns the HS256 signing secret. s is either the secret itself or
// "file:<path>" naming a file that holds it (e.g. a mounted container secret).
// Surrounding whitespace, including a trailing newline in the file, is dropped.
func LoadSecret(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrInvalidSecret
	}
	if !strings.HasPrefix(s, secretFilePrefix) {
		return []byte(s), nil
	}
	b, err := os.ReadFile(strings.TrimPrefix(s, secretFilePrefix))
	if err != nil {
		return nil, err
	}
	secret := strings.TrimSpace(string(b))
	if secret == "" {
		return nil, ErrInvalidSecret
	}
	return []byte(secret), nil
}
