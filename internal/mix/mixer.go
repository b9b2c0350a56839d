// Package mix aligns a generated background under the dialogue, ducks it
// with a sidechain envelope, matches loudness, and limits the summed peak.
package mix

import (
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/sonicmuse/muse-engine/internal/audio"
	"github.com/sonicmuse/muse-engine/internal/feature"
)

var (
	// ErrInvalidParameter indicates an out-of-range control value. Rejected
	// outright rather than clamped: a silently adjusted ducking amount would
	// change the perceptual result without any signal to the caller.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrAlignmentFailure indicates the background was unusable: zero length
	// after duration alignment.
	ErrAlignmentFailure = errors.New("alignment failure")
)

// Config holds the mixer's timing and level parameters.
type Config struct {
	CrossfadeMS int     // loop-boundary crossfade when the background repeats
	FadeOutMS   int     // fade applied when truncating a long background
	AttackMS    float64 // envelope attack time constant
	ReleaseMS   float64 // envelope release time constant
	CeilingDB   float64 // peak ceiling, dBFS
	WindowMS    int     // sidechain energy framing, shared with the extractor
	HopMS       int
}

// DefaultConfig returns the standard mix parameters.
func DefaultConfig() Config {
	return Config{
		CrossfadeMS: 50,
		FadeOutMS:   200,
		AttackMS:    10,
		ReleaseMS:   150,
		CeilingDB:   -1,
		WindowMS:    25,
		HopMS:       10,
	}
}

// Request carries one mix invocation's inputs.
type Request struct {
	Dialogue         audio.Waveform
	Background       audio.Waveform
	BackgroundGainDB float64 // background loudness relative to dialogue, typically negative
	Ducking          float64 // 0 = none, 1 = full duck at peak dialogue energy
}

// Result is the mixed waveform plus the pre-limiting peak level.
type Result struct {
	Waveform audio.Waveform
	PeakDB   float64
}

// Mixer performs the align/duck/normalize/limit sequence.
type Mixer struct {
	cfg Config
	log zerolog.Logger
}

// NewMixer creates a mixer.
func NewMixer(cfg Config, log zerolog.Logger) *Mixer {
	return &Mixer{cfg: cfg, log: log.With().Str("component", "mix").Logger()}
}

// Mix runs the full sequence. The output length always equals the dialogue
// length, and the output peak never exceeds the configured ceiling.
func (m *Mixer) Mix(req Request) (Result, error) {
	if err := req.Dialogue.Validate(); err != nil {
		return Result{}, fmt.Errorf("dialogue: %w", err)
	}
	if req.Ducking < 0 || req.Ducking > 1 {
		return Result{}, fmt.Errorf("%w: ducking %.3f outside [0,1]", ErrInvalidParameter, req.Ducking)
	}

	dialogue := req.Dialogue

	// Background on the dialogue's clock before any length work.
	bg := req.Background
	if bg.SampleRate != dialogue.SampleRate && len(bg.Samples) > 0 {
		bg = bg.Resample(dialogue.SampleRate)
	}

	aligned := m.align(bg.Samples, len(dialogue.Samples), dialogue.SampleRate)
	if len(aligned) == 0 {
		return Result{}, fmt.Errorf("%w: background empty after alignment", ErrAlignmentFailure)
	}

	// Ducking 0 passes the background through untouched: the envelope stage
	// is skipped entirely, not merely computed as all-ones.
	if req.Ducking > 0 {
		energy := feature.EnergyCurve(dialogue, m.cfg.WindowMS, m.cfg.HopMS)
		env := sidechainEnvelope(
			energy,
			req.Ducking,
			m.cfg.AttackMS/1000,
			m.cfg.ReleaseMS/1000,
			float64(m.cfg.HopMS)/1000,
		)
		gains := env.PerSample(len(aligned), dialogue.SampleRate)
		for i := range aligned {
			aligned[i] *= gains[i]
		}
	}

	m.normalizeLoudness(aligned, dialogue, req.BackgroundGainDB)

	// Sum and limit.
	mixed := make([]float64, len(dialogue.Samples))
	for i := range mixed {
		mixed[i] = dialogue.Samples[i] + aligned[i]
	}

	peak := 0.0
	for _, s := range mixed {
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	peakDB := audio.DB(peak)

	ceiling := audio.GainDB(m.cfg.CeilingDB)
	if peak > ceiling {
		// Uniform scale preserves relative dynamics; no per-sample clipping.
		gain := ceiling / peak
		for i := range mixed {
			mixed[i] *= gain
		}
		m.log.Debug().Float64("peak_db", peakDB).Float64("gain", gain).Msg("limiter engaged")
	}

	return Result{
		Waveform: audio.Waveform{Samples: mixed, SampleRate: dialogue.SampleRate},
		PeakDB:   peakDB,
	}, nil
}

// align fits the background to exactly n samples. Shorter backgrounds loop
// with an equal-power crossfade at each boundary; longer ones truncate with
// a fade-out. The dialogue is never altered.
func (m *Mixer) align(bg []float64, n, sampleRate int) []float64 {
	if len(bg) == 0 || n == 0 {
		return nil
	}

	if len(bg) >= n {
		out := make([]float64, n)
		copy(out, bg[:n])
		fade := sampleRate * m.cfg.FadeOutMS / 1000
		if fade > n {
			fade = n
		}
		for i := 0; i < fade; i++ {
			idx := n - fade + i
			out[idx] *= 1 - float64(i+1)/float64(fade)
		}
		return out
	}

	cf := sampleRate * m.cfg.CrossfadeMS / 1000
	if cf >= len(bg) {
		cf = len(bg) - 1
	}
	if cf < 0 {
		cf = 0
	}

	out := make([]float64, 0, n+len(bg))
	out = append(out, bg...)
	for len(out) < n {
		start := len(out) - cf
		for i := 0; i < cf; i++ {
			t := float64(i) / float64(cf)
			out[start+i] = out[start+i]*math.Cos(t*math.Pi/2) + bg[i]*math.Sin(t*math.Pi/2)
		}
		out = append(out, bg[cf:]...)
	}
	return out[:n]
}

// normalizeLoudness scales the ducked background in place so its mean-square
// loudness sits gainDB below (or above) the dialogue's. A silent dialogue
// has no reference loudness, so the background is left at its own level; a
// silent background has nothing to scale.
func (m *Mixer) normalizeLoudness(bg []float64, dialogue audio.Waveform, gainDB float64) {
	dialogueMS := dialogue.MeanSquare()
	bgMS := meanSquare(bg)
	if dialogueMS == 0 || bgMS == 0 {
		return
	}

	// Match RMS, then offset by the requested relative level.
	gain := math.Sqrt(dialogueMS/bgMS) * audio.GainDB(gainDB)
	for i := range bg {
		bg[i] *= gain
	}
}

func meanSquare(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range samples {
		sum += s * s
	}
	return sum / float64(len(samples))
}
