package mix

import (
	"errors"
	"math"
	"testing"

	"github.com/rs/zerolog"

	"github.com/sonicmuse/muse-engine/internal/audio"
	"github.com/sonicmuse/muse-engine/internal/feature"
)

func newTestMixer() *Mixer {
	return NewMixer(DefaultConfig(), zerolog.Nop())
}

// audioEnergy builds a frame-rate energy curve at a 10 ms hop.
func audioEnergy(values []float64) feature.TimeSeries {
	ts := feature.TimeSeries{
		Time:   make([]float64, len(values)),
		Values: values,
	}
	for i := range ts.Time {
		ts.Time[i] = float64(i) * 0.01
	}
	return ts
}

func sine(freq float64, sampleRate int, durationS, amplitude float64) audio.Waveform {
	n := int(durationS * float64(sampleRate))
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return audio.Waveform{Samples: samples, SampleRate: sampleRate}
}

func TestMixOutputLengthMatchesDialogue(t *testing.T) {
	m := newTestMixer()
	tests := []struct {
		name      string
		dialogueS float64
		bgS       float64
	}{
		{"short_background_loops", 3.0, 1.0},
		{"long_background_truncates", 1.0, 3.0},
		{"equal_lengths", 2.0, 2.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dialogue := sine(200, 16000, tt.dialogueS, 0.3)
			bg := sine(110, 16000, tt.bgS, 0.3)
			res, err := m.Mix(Request{
				Dialogue:         dialogue,
				Background:       bg,
				BackgroundGainDB: -18,
				Ducking:          0.3,
			})
			if err != nil {
				t.Fatalf("Mix: %v", err)
			}
			if got, want := len(res.Waveform.Samples), len(dialogue.Samples); got != want {
				t.Errorf("output len = %d, want %d", got, want)
			}
			if res.Waveform.SampleRate != 16000 {
				t.Errorf("SampleRate = %d, want 16000", res.Waveform.SampleRate)
			}
		})
	}
}

func TestMixRespectsCeiling(t *testing.T) {
	m := newTestMixer()
	ceiling := audio.GainDB(DefaultConfig().CeilingDB)
	for _, ducking := range []float64{0, 0.5, 1} {
		// Hot inputs force the limiter to engage.
		dialogue := sine(200, 16000, 1.0, 0.95)
		bg := sine(110, 16000, 1.0, 0.95)
		res, err := m.Mix(Request{
			Dialogue:         dialogue,
			Background:       bg,
			BackgroundGainDB: 0,
			Ducking:          ducking,
		})
		if err != nil {
			t.Fatalf("ducking %v: Mix: %v", ducking, err)
		}
		if peak := res.Waveform.Peak(); peak > ceiling+1e-9 {
			t.Errorf("ducking %v: peak = %v, want <= %v", ducking, peak, ceiling)
		}
		if res.PeakDB <= DefaultConfig().CeilingDB {
			t.Errorf("ducking %v: PeakDB = %v, expected pre-limit peak above ceiling", ducking, res.PeakDB)
		}
	}
}

func TestMixDuckingValidation(t *testing.T) {
	m := newTestMixer()
	dialogue := sine(200, 16000, 0.5, 0.3)
	bg := sine(110, 16000, 0.5, 0.3)
	for _, ducking := range []float64{-0.1, 1.1, 2} {
		_, err := m.Mix(Request{Dialogue: dialogue, Background: bg, Ducking: ducking})
		if !errors.Is(err, ErrInvalidParameter) {
			t.Errorf("ducking %v: error = %v, want ErrInvalidParameter", ducking, err)
		}
	}
}

func TestMixEmptyDialogue(t *testing.T) {
	m := newTestMixer()
	_, err := m.Mix(Request{
		Dialogue:   audio.Waveform{SampleRate: 16000},
		Background: sine(110, 16000, 1.0, 0.3),
	})
	if !errors.Is(err, audio.ErrInvalidInput) {
		t.Fatalf("error = %v, want ErrInvalidInput", err)
	}
}

func TestMixEmptyBackground(t *testing.T) {
	m := newTestMixer()
	_, err := m.Mix(Request{
		Dialogue:   sine(200, 16000, 1.0, 0.3),
		Background: audio.Waveform{SampleRate: 16000},
	})
	if !errors.Is(err, ErrAlignmentFailure) {
		t.Fatalf("error = %v, want ErrAlignmentFailure", err)
	}
}

func TestMixResamplesBackground(t *testing.T) {
	m := newTestMixer()
	dialogue := sine(200, 16000, 1.0, 0.3)
	bg := sine(110, 48000, 1.0, 0.3)
	res, err := m.Mix(Request{
		Dialogue:         dialogue,
		Background:       bg,
		BackgroundGainDB: -18,
		Ducking:          0.3,
	})
	if err != nil {
		t.Fatalf("Mix: %v", err)
	}
	if len(res.Waveform.Samples) != len(dialogue.Samples) {
		t.Errorf("output len = %d, want %d", len(res.Waveform.Samples), len(dialogue.Samples))
	}
}

func TestMixSilentDialogueLeavesBackgroundFlat(t *testing.T) {
	m := newTestMixer()
	dialogue := audio.Waveform{Samples: make([]float64, 16000), SampleRate: 16000}
	bg := sine(110, 16000, 1.0, 0.3)
	res, err := m.Mix(Request{
		Dialogue:         dialogue,
		Background:       bg,
		BackgroundGainDB: -18,
		Ducking:          0.5,
	})
	if err != nil {
		t.Fatalf("Mix: %v", err)
	}

	// No dialogue energy: no ducking dips and no loudness reference, so the
	// background passes through near its own level.
	firstHalf := audio.Waveform{Samples: res.Waveform.Samples[:8000], SampleRate: 16000}.MeanSquare()
	secondHalf := audio.Waveform{Samples: res.Waveform.Samples[8000:], SampleRate: 16000}.MeanSquare()
	if ratio := firstHalf / secondHalf; ratio < 0.9 || ratio > 1.1 {
		t.Errorf("background level ratio = %v, want flat", ratio)
	}
}

func TestMixDuckingDipsUnderSpeechBurst(t *testing.T) {
	m := newTestMixer()

	// Silence, then a loud burst, then silence again.
	sampleRate := 16000
	dialogue := make([]float64, 3*sampleRate)
	for i := sampleRate; i < 2*sampleRate; i++ {
		dialogue[i] = 0.8 * math.Sin(2*math.Pi*200*float64(i)/float64(sampleRate))
	}
	bg := sine(110, sampleRate, 3.0, 0.3)

	duckedRes, err := m.Mix(Request{
		Dialogue:         audio.Waveform{Samples: dialogue, SampleRate: sampleRate},
		Background:       bg,
		BackgroundGainDB: -12,
		Ducking:          1,
	})
	if err != nil {
		t.Fatalf("Mix ducked: %v", err)
	}
	flatRes, err := m.Mix(Request{
		Dialogue:         audio.Waveform{Samples: dialogue, SampleRate: sampleRate},
		Background:       bg,
		BackgroundGainDB: -12,
		Ducking:          0,
	})
	if err != nil {
		t.Fatalf("Mix flat: %v", err)
	}

	// In the leading silence (before attack has anything to chase) both mixes
	// carry the same background; during the burst the ducked mix must carry
	// less background energy than the flat one. Compare residual energy after
	// subtracting the dialogue.
	burstEnergy := func(samples []float64) float64 {
		sum := 0.0
		for i := sampleRate; i < 2*sampleRate; i++ {
			d := samples[i] - dialogue[i]
			sum += d * d
		}
		return sum
	}
	ducked := burstEnergy(duckedRes.Waveform.Samples)
	flat := burstEnergy(flatRes.Waveform.Samples)
	if ducked >= flat*0.8 {
		t.Errorf("ducked residual = %v, flat = %v, want a clear dip", ducked, flat)
	}
}

func TestMixDuckingZeroMatchesNoEnvelope(t *testing.T) {
	m := newTestMixer()
	dialogue := sine(200, 16000, 1.0, 0.3)
	bg := sine(110, 16000, 0.4, 0.3)

	res, err := m.Mix(Request{
		Dialogue:         dialogue,
		Background:       bg,
		BackgroundGainDB: -18,
		Ducking:          0,
	})
	if err != nil {
		t.Fatalf("Mix: %v", err)
	}
	if len(res.Waveform.Samples) != len(dialogue.Samples) {
		t.Fatalf("output len = %d, want %d", len(res.Waveform.Samples), len(dialogue.Samples))
	}

	// With ducking off, subtracting the dialogue must leave exactly the
	// aligned, loudness-normalized background with no envelope applied.
	// Levels are low enough here that the limiter stays out of the picture.
	want := m.align(bg.Samples, len(dialogue.Samples), dialogue.SampleRate)
	m.normalizeLoudness(want, dialogue, -18)
	for i, s := range res.Waveform.Samples {
		got := s - dialogue.Samples[i]
		if math.Abs(got-want[i]) > 1e-9 {
			t.Fatalf("sample %d: background residual = %v, want %v", i, got, want[i])
		}
	}
}

func TestAlignLoopsAndTruncates(t *testing.T) {
	m := newTestMixer()
	bg := make([]float64, 1000)
	for i := range bg {
		bg[i] = 0.5
	}

	looped := m.align(bg, 5000, 16000)
	if len(looped) != 5000 {
		t.Fatalf("looped len = %d, want 5000", len(looped))
	}

	truncated := m.align(bg, 300, 16000)
	if len(truncated) != 300 {
		t.Fatalf("truncated len = %d, want 300", len(truncated))
	}
	// Fade-out ends at (nearly) zero.
	if last := math.Abs(truncated[299]); last > 0.01 {
		t.Errorf("last sample = %v, want faded to ~0", last)
	}

	if got := m.align(nil, 100, 16000); got != nil {
		t.Errorf("empty background align = %v, want nil", got)
	}
}

func TestSidechainEnvelopeBounds(t *testing.T) {
	energy := audioEnergy([]float64{0, 0.2, 1.0, 0.2, 0})
	env := sidechainEnvelope(energy, 0.8, 0.01, 0.15, 0.01)
	for i, g := range env.Gain {
		if g < 0.2-1e-9 || g > 1+1e-9 {
			t.Errorf("gain[%d] = %v outside [1-ducking, 1]", i, g)
		}
	}
}

func TestSidechainEnvelopeAttackFasterThanRelease(t *testing.T) {
	// Step up then step down in dialogue energy.
	values := make([]float64, 40)
	for i := 10; i < 20; i++ {
		values[i] = 1.0
	}
	env := sidechainEnvelope(audioEnergy(values), 1.0, 0.01, 0.15, 0.01)

	dropIn5 := 1 - env.Gain[14] // 50 ms after onset
	recoverIn5 := env.Gain[24]  // 50 ms after offset
	if dropIn5 < 0.9 {
		t.Errorf("gain fell only %v in 50 ms, want fast attack", dropIn5)
	}
	if recoverIn5 > 0.6 {
		t.Errorf("gain recovered to %v in 50 ms, want slow release", recoverIn5)
	}
}

func TestPerSampleInterpolation(t *testing.T) {
	env := Envelope{
		Time: []float64{0.1, 0.2},
		Gain: []float64{1.0, 0.5},
	}
	gains := env.PerSample(4800, 16000) // 0.3 s

	if g := gains[0]; g != 1.0 {
		t.Errorf("gain before first frame = %v, want 1.0 (held)", g)
	}
	if g := gains[4799]; g != 0.5 {
		t.Errorf("gain after last frame = %v, want 0.5 (held)", g)
	}
	// Midpoint between centers interpolates.
	mid := gains[int(0.15*16000)]
	if math.Abs(mid-0.75) > 0.01 {
		t.Errorf("gain at midpoint = %v, want ~0.75", mid)
	}
}

func TestPerSampleEmptyEnvelope(t *testing.T) {
	gains := Envelope{}.PerSample(100, 16000)
	for i, g := range gains {
		if g != 1 {
			t.Fatalf("gain[%d] = %v, want 1", i, g)
		}
	}
}
