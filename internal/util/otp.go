package util

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// GenerateNumericOTP returns a uniformly random decimal code of the given length (4..8).
func GenerateNumericOTP(length int) (string, error) {
	if length < 4 || length > 8 {
		return "", fmt.Errorf("otp length must be 4..8, got %d", length)
	}
	b := make([]byte, length)
	for i := range b {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		b[i] = byte('0' + n.Int64())
	}
	return string(b), nil
}

// IsNumeric reports whether s is a non-empty run of ASCII digits.
func IsNumeric(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
