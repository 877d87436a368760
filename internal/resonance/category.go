// Package resonance maps an external 0-100 health score to a risk category and
// sizes token lifetimes inversely with that risk.
package resonance

import (
	"fmt"
	"time"

	apperrors "github.com/allisson/dominion/internal/errors"
)

// Category is the risk category derived from a resonance score.
type Category string

const (
	Critical Category = "critical"
	Degraded Category = "degraded"
	Normal   Category = "normal"
	Optimal  Category = "optimal"
)

const (
	MinScore = 0
	MaxScore = 100
)

// ErrScoreOutOfRange indicates a resonance score outside 0..100.
var ErrScoreOutOfRange = apperrors.Wrap(apperrors.ErrInvalidInput, "resonance score must be between 0 and 100")

// band is an inclusive score range and its TTL range.
type band struct {
	category Category
	low      int
	high     int
	minTTL   time.Duration
	maxTTL   time.Duration
}

// bands are ordered, contiguous and non-overlapping over 0..100.
var bands = []band{
	{Critical, 0, 29, 60 * time.Second, 120 * time.Second},
	{Degraded, 30, 59, 120 * time.Second, 300 * time.Second},
	{Normal, 60, 79, 300 * time.Second, 1800 * time.Second},
	{Optimal, 80, 100, 1800 * time.Second, 3600 * time.Second},
}

// Classify returns the category for score.
func Classify(score int) (Category, error) {
	for _, b := range bands {
		if score >= b.low && score <= b.high {
			return b.category, nil
		}
	}
	return "", fmt.Errorf("%w: got %d", ErrScoreOutOfRange, score)
}

// TTLRange returns the inclusive TTL range for category.
func TTLRange(category Category) (time.Duration, time.Duration, error) {
	for _, b := range bands {
		if b.category == category {
			return b.minTTL, b.maxTTL, nil
		}
	}
	return 0, 0, apperrors.Wrapf(apperrors.ErrInvalidInput, "unknown risk category %q", category)
}

// Categories returns every category from highest to lowest risk.
func Categories() []Category {
	out := make([]Category, len(bands))
	for i, b := range bands {
		out[i] = b.category
	}
	return out
}
