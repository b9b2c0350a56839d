package mix

import (
	"math"

	"github.com/sonicmuse/muse-engine/internal/feature"
)

// Envelope is the frame-rate sidechain gain curve derived from the
// dialogue's energy.
type Envelope struct {
	Time []float64
	Gain []float64
}

// sidechainEnvelope builds the ducking gain from the dialogue energy curve:
// energy normalized to [0,1], gain = 1 - ducking*energy, then exponential
// attack/release smoothing. Attack moves gain down fast when speech gets
// loud; release recovers slowly after speech ends, preventing pumping.
func sidechainEnvelope(energy feature.TimeSeries, ducking, attackS, releaseS, hopS float64) Envelope {
	n := len(energy.Values)
	env := Envelope{
		Time: energy.Time,
		Gain: make([]float64, n),
	}
	if n == 0 {
		return env
	}

	peak := 0.0
	for _, v := range energy.Values {
		if v > peak {
			peak = v
		}
	}

	attackCoef := smoothingCoef(hopS, attackS)
	releaseCoef := smoothingCoef(hopS, releaseS)

	prev := 1.0
	for i, v := range energy.Values {
		norm := 0.0
		if peak > 0 {
			norm = v / peak
		}
		target := 1 - ducking*norm

		coef := releaseCoef
		if target < prev {
			coef = attackCoef
		}
		prev += (target - prev) * coef
		env.Gain[i] = prev
	}
	return env
}

// smoothingCoef converts a time constant into a one-pole coefficient at the
// envelope's frame rate.
func smoothingCoef(hopS, tauS float64) float64 {
	if tauS <= 0 {
		return 1
	}
	return 1 - math.Exp(-hopS/tauS)
}

// PerSample upsamples the frame-rate envelope to one gain per output sample
// by linear interpolation between frame centers. Gain holds flat before the
// first center and after the last.
func (e Envelope) PerSample(n, sampleRate int) []float64 {
	gains := make([]float64, n)
	if len(e.Gain) == 0 {
		for i := range gains {
			gains[i] = 1
		}
		return gains
	}

	frame := 0
	for i := range gains {
		t := float64(i) / float64(sampleRate)
		for frame+1 < len(e.Time) && e.Time[frame+1] <= t {
			frame++
		}
		switch {
		case t <= e.Time[0]:
			gains[i] = e.Gain[0]
		case frame+1 >= len(e.Time):
			gains[i] = e.Gain[len(e.Gain)-1]
		default:
			span := e.Time[frame+1] - e.Time[frame]
			frac := 0.0
			if span > 0 {
				frac = (t - e.Time[frame]) / span
			}
			gains[i] = e.Gain[frame]*(1-frac) + e.Gain[frame+1]*frac
		}
	}
	return gains
}
