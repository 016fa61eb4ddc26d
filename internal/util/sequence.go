package util

import (
	"fmt"
	"strings"
)

// SequencePrefix builds "{SHORT}-{kind}-" as used by voyage and BDN numbers.
func SequencePrefix(shortName, kind string) string {
	return strings.ToUpper(strings.TrimSpace(shortName)) + "-" + kind + "-"
}

// NextInSequence returns prefix followed by max+1, zero padded to three digits.
func NextInSequence(prefix string, max int) string {
	if max < 0 {
		max = 0
	}
	return fmt.Sprintf("%s%03d", prefix, max+1)
}
