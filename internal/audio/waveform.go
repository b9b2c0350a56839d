// Package audio holds the Waveform type shared by every pipeline stage,
// plus WAV encoding/decoding and sample-rate conversion.
package audio

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidInput indicates an empty or malformed waveform or segment list.
var ErrInvalidInput = errors.New("invalid input")

// Waveform is an ordered sequence of mono samples at a fixed sample rate.
// Stages treat it as immutable: every transformation returns a new Waveform.
type Waveform struct {
	Samples    []float64
	SampleRate int
}

// Duration returns the waveform length in seconds.
func (w Waveform) Duration() float64 {
	if w.SampleRate <= 0 {
		return 0
	}
	return float64(len(w.Samples)) / float64(w.SampleRate)
}

// Validate checks that the waveform is usable as pipeline input.
func (w Waveform) Validate() error {
	if len(w.Samples) == 0 {
		return fmt.Errorf("%w: empty waveform", ErrInvalidInput)
	}
	if w.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrInvalidInput, w.SampleRate)
	}
	return nil
}

// Peak returns the maximum absolute sample value.
func (w Waveform) Peak() float64 {
	peak := 0.0
	for _, s := range w.Samples {
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	return peak
}

// MeanSquare returns the mean-square energy of the waveform, the
// integrated-loudness proxy used for normalization.
func (w Waveform) MeanSquare() float64 {
	if len(w.Samples) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range w.Samples {
		sum += s * s
	}
	return sum / float64(len(w.Samples))
}

// Scale returns a copy with every sample multiplied by gain.
func (w Waveform) Scale(gain float64) Waveform {
	out := make([]float64, len(w.Samples))
	for i, s := range w.Samples {
		out[i] = s * gain
	}
	return Waveform{Samples: out, SampleRate: w.SampleRate}
}

// Resample converts the waveform to the target rate by linear interpolation.
// Returns the receiver unchanged when the rate already matches.
func (w Waveform) Resample(targetRate int) Waveform {
	if targetRate == w.SampleRate || len(w.Samples) == 0 || targetRate <= 0 {
		return w
	}
	ratio := float64(w.SampleRate) / float64(targetRate)
	n := int(math.Round(float64(len(w.Samples)) / ratio))
	if n < 1 {
		n = 1
	}
	out := make([]float64, n)
	for i := range out {
		pos := float64(i) * ratio
		j := int(pos)
		if j >= len(w.Samples)-1 {
			out[i] = w.Samples[len(w.Samples)-1]
			continue
		}
		frac := pos - float64(j)
		out[i] = w.Samples[j]*(1-frac) + w.Samples[j+1]*frac
	}
	return Waveform{Samples: out, SampleRate: targetRate}
}

// GainDB converts a decibel value to a linear gain factor.
func GainDB(db float64) float64 {
	return math.Pow(10, db/20)
}

// DB converts a linear amplitude to decibels. Silence maps to -inf's
// practical stand-in of -120 dB so JSON encoding stays finite.
func DB(amplitude float64) float64 {
	if amplitude <= 0 {
		return -120
	}
	db := 20 * math.Log10(amplitude)
	if db < -120 {
		return -120
	}
	return db
}
