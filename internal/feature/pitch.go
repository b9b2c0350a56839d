package feature

import "math"

// PitchTracker estimates the fundamental frequency of a single analysis
// frame. Implementations must be pure functions of their input so the
// extractor stays deterministic; the production tracker may sit behind a
// model endpoint, in which case the caller adapts it to this interface.
type PitchTracker interface {
	Estimate(frame []float64, sampleRate int) PitchSample
}

// ACFTracker is the built-in tracker: normalized autocorrelation over the
// plausible speech F0 range. It is deliberately simple — enough to run the
// engine stand-alone — and swappable for a model-backed tracker.
type ACFTracker struct {
	MinHz float64
	MaxHz float64
}

// DefaultTracker returns an autocorrelation tracker covering speech F0.
func DefaultTracker() ACFTracker {
	return ACFTracker{MinHz: 50, MaxHz: 500}
}

// Estimate returns the frame's pitch estimate. Frames with no usable
// periodicity report frequency 0 with confidence 0.
func (t ACFTracker) Estimate(frame []float64, sampleRate int) PitchSample {
	if len(frame) < 2 || sampleRate <= 0 {
		return PitchSample{}
	}

	// Remove DC so low-frequency offset doesn't masquerade as periodicity.
	mean := 0.0
	for _, s := range frame {
		mean += s
	}
	mean /= float64(len(frame))

	x := make([]float64, len(frame))
	energy := 0.0
	for i, s := range frame {
		x[i] = s - mean
		energy += x[i] * x[i]
	}
	if energy < 1e-10 {
		return PitchSample{}
	}

	minLag := int(float64(sampleRate) / t.MaxHz)
	maxLag := int(float64(sampleRate) / t.MinHz)
	if minLag < 1 {
		minLag = 1
	}
	if maxLag >= len(x) {
		maxLag = len(x) - 1
	}
	if minLag > maxLag {
		return PitchSample{}
	}

	bestLag, bestCorr := 0, 0.0
	for lag := minLag; lag <= maxLag; lag++ {
		num, den := 0.0, 0.0
		for i := 0; i+lag < len(x); i++ {
			num += x[i] * x[i+lag]
			den += x[i+lag] * x[i+lag]
		}
		if den < 1e-10 {
			continue
		}
		corr := num / math.Sqrt(energy*den)
		if corr > bestCorr {
			bestCorr = corr
			bestLag = lag
		}
	}

	if bestLag == 0 || bestCorr <= 0 {
		return PitchSample{}
	}
	if bestCorr > 1 {
		bestCorr = 1
	}
	return PitchSample{
		FrequencyHz: float64(sampleRate) / float64(bestLag),
		Confidence:  bestCorr,
	}
}
