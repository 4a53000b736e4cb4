package security

import (
	"crypto/rand"
	"math/big"
)

// ResetPINDigits is the length of PINs generated by the forgot-pin flow.
const ResetPINDigits = 4

// GeneratePIN returns a random numeric PIN of n digits (e.g. "0427").
// Uses crypto/rand for randomness.
func GeneratePIN(n int) (string, error) {
	if n <= 0 {
		n = ResetPINDigits
	}
	ten := big.NewInt(10)
	s := make([]byte, n)
	for i := 0; i < n; i++ {
		d, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		s[i] = byte('0' + d.Int64())
	}
	return string(s), nil
}
