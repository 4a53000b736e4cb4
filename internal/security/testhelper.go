package security

import "time"

// testSecret is an HS256 secret for unit tests only. Do not use in production.
const testSecret = "geotrack-test-secret-0123456789abcdef"

// NewTestTokenProvider returns a TokenProvider using the embedded test secret.
// For unit tests only. Callers must not use in production.
func NewTestTokenProvider() *TokenProvider {
	p, _ := NewTokenProvider([]byte(testSecret), "test-issuer", 15*time.Minute)
	return p
}
