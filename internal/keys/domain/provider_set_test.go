package domain

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProviderSet(t *testing.T) {
	tests := []struct {
		name        string
		input       []string
		expected    []string
		expectedErr error
	}{
		{
			name:     "valid providers are normalized and sorted",
			input:    []string{"Render", " github ", "netlify", "render"},
			expected: []string{"github", "netlify", "render"},
		},
		{name: "empty list", input: nil, expectedErr: ErrEmptyProviderSet},
		{name: "invalid characters", input: []string{"render", "bad name"}, expectedErr: ErrInvalidProviderName},
		{name: "blank entry", input: []string{" "}, expectedErr: ErrInvalidProviderName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := NewProviderSet(tt.input)
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
				assert.Nil(t, set)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, set.Names())
		})
	}
}

func TestProviderRegistry_Reload(t *testing.T) {
	set, err := NewProviderSet([]string{"render"})
	require.NoError(t, err)

	registry := NewProviderRegistry(set)
	assert.True(t, registry.Contains("render"))
	assert.False(t, registry.Contains("github"))

	t.Run("successful reload swaps the whole set", func(t *testing.T) {
		_, err := registry.Reload([]string{"github", "local"})
		require.NoError(t, err)
		assert.False(t, registry.Contains("render"))
		assert.True(t, registry.Contains("github"))
		assert.Equal(t, []string{"github", "local"}, registry.Current().Names())
	})

	t.Run("failed reload keeps previous set", func(t *testing.T) {
		_, err := registry.Reload([]string{"Not Valid!"})
		assert.ErrorIs(t, err, ErrInvalidProviderName)
		assert.True(t, registry.Contains("github"))
	})

	t.Run("concurrent readers during reload", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					_ = registry.Contains("github")
				}
			}()
		}
		for i := 0; i < 10; i++ {
			_, err := registry.Reload([]string{"github"})
			require.NoError(t, err)
		}
		wg.Wait()
	})
}

func TestRootKey(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	key := newTestKey(1, 0x01, now.Add(-48*time.Hour))

	t.Run("fingerprint is stable and short", func(t *testing.T) {
		fp := key.Fingerprint()
		assert.Len(t, fp, 16)
		assert.Equal(t, fp, key.Fingerprint())
		assert.NotEqual(t, fp, newTestKey(2, 0x02, now).Fingerprint())
	})

	t.Run("age of current key", func(t *testing.T) {
		assert.Equal(t, 48*time.Hour, key.Age(now))
	})

	t.Run("age freezes at deprecation", func(t *testing.T) {
		deprecated := newTestKey(1, 0x01, now.Add(-48*time.Hour))
		at := now.Add(-24 * time.Hour)
		deprecated.DeprecatedAt = &at
		assert.Equal(t, 24*time.Hour, deprecated.Age(now))
		assert.True(t, deprecated.IsDeprecated())
	})

	t.Run("epoch window contains issuance at second precision", func(t *testing.T) {
		w := EpochWindow{
			Epoch:       1,
			ActivatedAt: now.Add(500 * time.Millisecond),
			RetiredAt:   now.Add(time.Hour),
		}
		assert.True(t, w.Contains(now))
		assert.True(t, w.Contains(now.Add(time.Hour)))
		assert.False(t, w.Contains(now.Add(-time.Second)))
		assert.False(t, w.Contains(now.Add(time.Hour+time.Second)))
	})
}
