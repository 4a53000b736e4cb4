// Package session verifies bearer tokens. Sessions are stateless: a token is
// valid while its signature checks out and it has not expired.
package session

import (
	"errors"
	"fmt"
	"strings"

	"geotrack/backend/internal/security"
)

// ErrUnauthenticated is returned for a missing, malformed, badly signed, or expired token.
var ErrUnauthenticated = errors.New("could not validate credentials")

// TokenValidator validates an access token and returns its identity claim.
type TokenValidator interface {
	ValidateAccess(token string) (identity string, err error)
}

// Verifier checks bearer tokens and extracts the identity they assert. It has no side effects.
type Verifier struct {
	tokens TokenValidator
}

// NewVerifier returns a Verifier backed by tokens (usually *security.TokenProvider).
func NewVerifier(tokens TokenValidator) *Verifier {
	return &Verifier{tokens: tokens}
}

// Verify returns the identity for token or ErrUnauthenticated.
func (v *Verifier) Verify(token string) (string, error) {
	token = strings.TrimSpace(token)
	if v == nil || v.tokens == nil || token == "" {
		return "", ErrUnauthenticated
	}
	identity, err := v.tokens.ValidateAccess(token)
	if err != nil {
		if errors.Is(err, security.ErrInvalidToken) {
			return "", ErrUnauthenticated
		}
		return "", fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	return identity, nil
}
