// Package asr wraps the external transcription collaborator. The engine
// never runs speech recognition itself; it only needs timestamped segments
// from whichever backend is configured.
package asr

import (
	"context"

	"github.com/sonicmuse/muse-engine/internal/feature"
)

// Provider is the interface for speech-to-text backends.
type Provider interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (*Response, error)
	Name() string  // "whisper"
	Model() string // model identifier for logs and job rows
}

// Response is the common transcription result from any provider.
type Response struct {
	Text     string
	Language string
	Duration float64 // audio duration in seconds
	Segments []feature.Segment
}
