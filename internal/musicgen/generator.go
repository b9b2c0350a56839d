// Package musicgen wraps the external music-generation collaborator.
package musicgen

import (
	"context"

	"github.com/sonicmuse/muse-engine/internal/audio"
)

// Params are the generation inputs handed to the collaborator alongside the
// prompt. The seed makes identical requests reproducible.
type Params struct {
	Prompt    string  `json:"prompt"`
	DurationS float64 `json:"duration"`
	Seed      int64   `json:"seed"`
	TempoBPM  int     `json:"tempo_bpm"`
	Key       string  `json:"key"`
}

// Generator is the interface for music-generation backends.
type Generator interface {
	Generate(ctx context.Context, p Params) (audio.Waveform, error)
	Name() string
}
