package resonance

import (
	"strings"
	"time"
)

// DefaultBaseTTL is the base lifetime before environment scaling and clamping.
const DefaultBaseTTL = 300 * time.Second

// environment modifiers in percent; anything not listed scales by 100%.
var environmentModifiers = map[string]int64{
	"production":  80,
	"development": 120,
}

func modifierPercent(environment string) int64 {
	if m, ok := environmentModifiers[strings.ToLower(strings.TrimSpace(environment))]; ok {
		return m
	}
	return 100
}

// Modifier returns the TTL multiplier for environment.
func Modifier(environment string) float64 {
	return float64(modifierPercent(environment)) / 100
}

// Policy computes token lifetimes.
type Policy struct {
	BaseTTL time.Duration
}

// NewPolicy returns a Policy, falling back to DefaultBaseTTL for non-positive values.
func NewPolicy(baseTTL time.Duration) *Policy {
	if baseTTL <= 0 {
		baseTTL = DefaultBaseTTL
	}
	return &Policy{BaseTTL: baseTTL}
}

// Decision is the outcome of a TTL computation.
type Decision struct {
	Category Category
	TTL      time.Duration
}

// ComputeTTL scales the base TTL by the environment modifier, floors it to whole
// seconds, then clamps it into the category range. The result is never below 1s.
func (p *Policy) ComputeTTL(score int, environment string) (Decision, error) {
	category, err := Classify(score)
	if err != nil {
		return Decision{}, err
	}
	minTTL, maxTTL, err := TTLRange(category)
	if err != nil {
		return Decision{}, err
	}

	// integer percent keeps the floor exact
	seconds := int64(p.BaseTTL/time.Second) * modifierPercent(environment) / 100
	seconds = max(seconds, int64(minTTL/time.Second))
	seconds = min(seconds, int64(maxTTL/time.Second))
	seconds = max(seconds, 1)

	return Decision{Category: category, TTL: time.Duration(seconds) * time.Second}, nil
}
