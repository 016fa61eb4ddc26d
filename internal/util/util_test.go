package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePassword(t *testing.T) {
	cases := map[string]bool{
		"short1":        false,
		"longenough":    false,
		"12345678":      false,
		"Bunker2024":    true,
		"Überfahrt2024": true,
	}
	for pw, ok := range cases {
		t.Run(pw, func(t *testing.T) {
			err := ValidatePassword(pw)
			if ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrWeakPassword)
			}
		})
	}
}

func TestHashAndCompare(t *testing.T) {
	h, err := HashPassword("Bunker2024")
	require.NoError(t, err)
	assert.True(t, ComparePassword(h, "Bunker2024"))
	assert.False(t, ComparePassword(h, "bunker2024"))
	assert.False(t, ComparePassword("", "Bunker2024"))
}

func TestGenerateNumericOTP(t *testing.T) {
	code, err := GenerateNumericOTP(6)
	require.NoError(t, err)
	assert.Len(t, code, 6)
	assert.True(t, IsNumeric(code))

	_, err = GenerateNumericOTP(3)
	assert.Error(t, err)
	_, err = GenerateNumericOTP(9)
	assert.Error(t, err)
}

func TestIsNumeric(t *testing.T) {
	assert.True(t, IsNumeric("004211"))
	assert.False(t, IsNumeric(""))
	assert.False(t, IsNumeric("12a4"))
	assert.False(t, IsNumeric("١٢٣"))
}

func TestSequence(t *testing.T) {
	prefix := SequencePrefix(" os ", "BK")
	assert.Equal(t, "OS-BK-", prefix)
	assert.Equal(t, "OS-BK-001", NextInSequence(prefix, 0))
	assert.Equal(t, "OS-BK-013", NextInSequence(prefix, 12))
	assert.Equal(t, "OS-BK-1000", NextInSequence(prefix, 999))
}
