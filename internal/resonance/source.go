package resonance

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// Source supplies the current resonance score when a caller does not provide one.
type Source interface {
	Score(ctx context.Context) (int, error)
}

// StaticSource always returns the same score.
type StaticSource int

// Score returns the configured score.
func (s StaticSource) Score(ctx context.Context) (int, error) {
	return int(s), nil
}

// FileSource reads the score from a JSON state file written by an external health
// monitor, e.g. {"resonance_score": 87}. A missing file yields the fallback score.
type FileSource struct {
	Path     string
	Fallback int
}

type stateFile struct {
	ResonanceScore *int `json:"resonance_score"`
}

// Score reads the state file on every call.
func (f *FileSource) Score(ctx context.Context) (int, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return f.Fallback, nil
		}
		return 0, fmt.Errorf("failed to read resonance state file: %w", err)
	}

	var state stateFile
	if err := json.Unmarshal(data, &state); err != nil {
		return 0, fmt.Errorf("failed to parse resonance state file: %w", err)
	}
	if state.ResonanceScore == nil {
		return f.Fallback, nil
	}
	if _, err := Classify(*state.ResonanceScore); err != nil {
		return 0, err
	}
	return *state.ResonanceScore, nil
}
