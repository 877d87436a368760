package domain

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync/atomic"
)

var providerNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,62}$`)

// ProviderSet is an immutable provider allow-list.
type ProviderSet struct {
	names map[string]struct{}
}

// NewProviderSet validates names once and builds the set. Names are lower-cased and
// de-duplicated.
func NewProviderSet(names []string) (*ProviderSet, error) {
	set := &ProviderSet{names: make(map[string]struct{}, len(names))}
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		if !providerNamePattern.MatchString(name) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidProviderName, raw)
		}
		set.names[name] = struct{}{}
	}
	if len(set.names) == 0 {
		return nil, ErrEmptyProviderSet
	}
	return set, nil
}

// Contains reports whether provider is allowed.
func (s *ProviderSet) Contains(provider string) bool {
	_, ok := s.names[provider]
	return ok
}

// Names returns the sorted provider names.
func (s *ProviderSet) Names() []string {
	names := make([]string, 0, len(s.names))
	for name := range s.names {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ProviderRegistry holds the active ProviderSet. Reload swaps the whole set atomically.
type ProviderRegistry struct {
	current atomic.Pointer[ProviderSet]
}

// NewProviderRegistry creates a registry serving set.
func NewProviderRegistry(set *ProviderSet) *ProviderRegistry {
	r := &ProviderRegistry{}
	r.current.Store(set)
	return r
}

// Current returns the active set.
func (r *ProviderRegistry) Current() *ProviderSet {
	return r.current.Load()
}

// Contains reports whether provider is in the active set.
func (r *ProviderRegistry) Contains(provider string) bool {
	return r.current.Load().Contains(provider)
}

// Reload validates names and replaces the active set. On error the previous set stays active.
func (r *ProviderRegistry) Reload(names []string) (*ProviderSet, error) {
	set, err := NewProviderSet(names)
	if err != nil {
		return nil, err
	}
	r.current.Store(set)
	return set, nil
}
