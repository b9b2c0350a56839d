package feature

import (
	"math"
	"strings"

	"github.com/rs/zerolog"

	"github.com/sonicmuse/muse-engine/internal/audio"
)

// Config holds the analysis framing and pause-detection parameters.
type Config struct {
	WindowMS        int     // analysis window, default 25 ms
	HopMS           int     // hop between frames, default 10 ms
	PauseThresholdS float64 // inter-segment gap that counts as a pause
	MinConfidence   float64 // pitch frames below this are excluded from the summary
}

// DefaultConfig returns the standard analysis parameters.
func DefaultConfig() Config {
	return Config{
		WindowMS:        25,
		HopMS:           10,
		PauseThresholdS: 0.5,
		MinConfidence:   0.5,
	}
}

// Extractor computes energy and pitch curves plus the feature summary.
// Pitch estimation itself is delegated to the injected tracker; the extractor
// only windows the waveform and assembles the results.
type Extractor struct {
	cfg     Config
	tracker PitchTracker
	log     zerolog.Logger
}

// NewExtractor creates an extractor with the given tracker. A nil tracker
// falls back to the built-in autocorrelation tracker.
func NewExtractor(cfg Config, tracker PitchTracker, log zerolog.Logger) *Extractor {
	if tracker == nil {
		tracker = DefaultTracker()
	}
	return &Extractor{cfg: cfg, tracker: tracker, log: log.With().Str("component", "feature").Logger()}
}

// Extract produces the full feature set for one dialogue waveform.
// Segments outside the waveform duration are clamped, not rejected.
func (e *Extractor) Extract(w audio.Waveform, segments []Segment) (Features, error) {
	if err := w.Validate(); err != nil {
		return Features{}, err
	}

	duration := w.Duration()
	clamped := clampSegments(segments, duration)

	energy := e.energyCurve(w)
	pitch := e.pitchCurve(w)
	pauses := detectPauses(clamped, e.cfg.PauseThresholdS)

	totalWords := 0
	for _, s := range clamped {
		totalWords += len(strings.Fields(s.Text))
	}
	// Rate over total duration, pauses included: matches perceived pacing.
	speechRate := float64(totalWords) / (duration / 60)

	energyMean, energyStd := meanStd(energy.Values)
	pitchMean, pitchStd := confidentMeanStd(pitch, e.cfg.MinConfidence)

	f := Features{
		Energy: energy,
		Pitch:  pitch,
		Pauses: pauses,
		Summary: Summary{
			EnergyMean:    energyMean,
			EnergyStd:     energyStd,
			PitchMean:     pitchMean,
			PitchStd:      pitchStd,
			SpeechRateWPM: speechRate,
			DurationS:     duration,
			TotalWords:    totalWords,
		},
	}

	e.log.Debug().
		Float64("duration_s", duration).
		Int("energy_frames", len(energy.Values)).
		Int("total_words", totalWords).
		Int("pauses", len(pauses)).
		Msg("features extracted")

	return f, nil
}

// EnergyCurve exposes the RMS framing on its own; the mixer reuses it to
// derive the sidechain envelope instead of recomputing its own analysis.
func EnergyCurve(w audio.Waveform, windowMS, hopMS int) TimeSeries {
	e := Extractor{cfg: Config{WindowMS: windowMS, HopMS: hopMS}}
	return e.energyCurve(w)
}

func (e *Extractor) energyCurve(w audio.Waveform) TimeSeries {
	win, hop := e.frameSizes(w.SampleRate)
	n := frameCount(len(w.Samples), win, hop)

	ts := TimeSeries{
		Time:   make([]float64, n),
		Values: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		start := i * hop
		end := start + win
		if end > len(w.Samples) {
			end = len(w.Samples)
		}
		ts.Time[i] = (float64(start) + float64(win)/2) / float64(w.SampleRate)
		ts.Values[i] = rms(w.Samples[start:end])
	}
	return ts
}

func (e *Extractor) pitchCurve(w audio.Waveform) PitchCurve {
	win, hop := e.frameSizes(w.SampleRate)
	n := frameCount(len(w.Samples), win, hop)

	pc := PitchCurve{
		Time:       make([]float64, n),
		Frequency:  make([]float64, n),
		Confidence: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		start := i * hop
		end := start + win
		if end > len(w.Samples) {
			end = len(w.Samples)
		}
		ps := e.tracker.Estimate(w.Samples[start:end], w.SampleRate)
		pc.Time[i] = (float64(start) + float64(win)/2) / float64(w.SampleRate)
		pc.Frequency[i] = ps.FrequencyHz
		pc.Confidence[i] = ps.Confidence
	}
	return pc
}

func (e *Extractor) frameSizes(sampleRate int) (win, hop int) {
	win = sampleRate * e.cfg.WindowMS / 1000
	hop = sampleRate * e.cfg.HopMS / 1000
	if win < 1 {
		win = 1
	}
	if hop < 1 {
		hop = 1
	}
	return win, hop
}

// frameCount partitions n samples into fixed frames. A waveform shorter than
// one window still yields a single frame over the available samples.
func frameCount(n, win, hop int) int {
	if n <= win {
		return 1
	}
	return 1 + (n-win)/hop
}

func rms(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(samples)))
}

func clampSegments(segments []Segment, duration float64) []Segment {
	out := make([]Segment, 0, len(segments))
	for _, s := range segments {
		if s.Start < 0 {
			s.Start = 0
		}
		if s.End > duration {
			s.End = duration
		}
		if s.Start > duration {
			s.Start = duration
		}
		out = append(out, s)
	}
	return out
}

// detectPauses emits a timestamp at the midpoint of every inter-segment gap
// exceeding the threshold. Fewer than two segments means no pauses.
func detectPauses(segments []Segment, threshold float64) []float64 {
	var pauses []float64
	for i := 0; i+1 < len(segments); i++ {
		gap := segments[i+1].Start - segments[i].End
		if gap > threshold {
			pauses = append(pauses, segments[i].End+gap/2)
		}
	}
	return pauses
}

func meanStd(values []float64) (mean, std float64) {
	if len(values) == 0 {
		return 0, 0
	}
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	for _, v := range values {
		d := v - mean
		std += d * d
	}
	return mean, math.Sqrt(std / float64(len(values)))
}

// confidentMeanStd aggregates pitch over frames at or above the confidence
// floor. No confident frame at all reports 0/0 rather than NaN.
func confidentMeanStd(pc PitchCurve, minConfidence float64) (mean, std float64) {
	var voiced []float64
	for i, c := range pc.Confidence {
		if c >= minConfidence {
			voiced = append(voiced, pc.Frequency[i])
		}
	}
	return meanStd(voiced)
}
