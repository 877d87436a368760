// Package entropy scores externally supplied secret material for randomness quality
// and flags values that look like long-lived credentials.
package entropy

import (
	"math"
)

const (
	// MinBitsPerSymbol is the minimum Shannon entropy accepted for secret material.
	MinBitsPerSymbol = 4.0
	// MinLength is the minimum length in bytes accepted for secret material.
	MinLength = 16
)

// Score returns the Shannon entropy of b in bits per symbol. Empty input scores 0.
func Score(b []byte) float64 {
	if len(b) == 0 {
		return 0
	}

	var counts [256]int
	for _, c := range b {
		counts[c]++
	}

	total := float64(len(b))
	var score float64
	for _, n := range counts {
		if n == 0 {
			continue
		}
		p := float64(n) / total
		score -= p * math.Log2(p)
	}
	return score
}

// IsAcceptable reports whether b is long enough and random enough to be used as secret material.
func IsAcceptable(b []byte) bool {
	return len(b) >= MinLength && Score(b) >= MinBitsPerSymbol
}

// Validator applies configurable thresholds. The zero value uses the package defaults.
type Validator struct {
	MinBits   float64
	MinLength int
}

// NewValidator returns a Validator with the package default thresholds.
func NewValidator() *Validator {
	return &Validator{MinBits: MinBitsPerSymbol, MinLength: MinLength}
}

// Score returns the Shannon entropy of b in bits per symbol.
func (v *Validator) Score(b []byte) float64 {
	return Score(b)
}

// IsAcceptable reports whether b satisfies the validator thresholds.
func (v *Validator) IsAcceptable(b []byte) bool {
	minBits, minLength := v.MinBits, v.MinLength
	if minBits == 0 {
		minBits = MinBitsPerSymbol
	}
	if minLength == 0 {
		minLength = MinLength
	}
	return len(b) >= minLength && Score(b) >= minBits
}

// Reason describes why b was refused, or returns an empty string when it is acceptable.
func (v *Validator) Reason(b []byte) string {
	if v.IsAcceptable(b) {
		return ""
	}
	minLength := v.MinLength
	if minLength == 0 {
		minLength = MinLength
	}
	if len(b) < minLength {
		return "too_short"
	}
	return "low_entropy"
}
