package audio

import (
	"errors"
	"math"
	"testing"
)

func sine(freq float64, sampleRate int, durationS float64) Waveform {
	n := int(durationS * float64(sampleRate))
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = math.Sin(2 * math.Pi * freq * float64(i) / float64(sampleRate))
	}
	return Waveform{Samples: samples, SampleRate: sampleRate}
}

func TestDuration(t *testing.T) {
	tests := []struct {
		name       string
		samples    int
		sampleRate int
		want       float64
	}{
		{"one_second", 16000, 16000, 1.0},
		{"half_second", 8000, 16000, 0.5},
		{"empty", 0, 16000, 0},
		{"zero_rate", 100, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := Waveform{Samples: make([]float64, tt.samples), SampleRate: tt.sampleRate}
			if got := w.Duration(); got != tt.want {
				t.Errorf("Duration() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		w       Waveform
		wantErr bool
	}{
		{"valid", Waveform{Samples: []float64{0.1, 0.2}, SampleRate: 16000}, false},
		{"empty", Waveform{SampleRate: 16000}, true},
		{"zero_rate", Waveform{Samples: []float64{0.1}}, true},
		{"negative_rate", Waveform{Samples: []float64{0.1}, SampleRate: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.w.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidInput) {
				t.Errorf("Validate() error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestPeakAndMeanSquare(t *testing.T) {
	w := Waveform{Samples: []float64{0.5, -0.8, 0.2}, SampleRate: 16000}
	if got := w.Peak(); got != 0.8 {
		t.Errorf("Peak() = %v, want 0.8", got)
	}
	want := (0.25 + 0.64 + 0.04) / 3
	if got := w.MeanSquare(); math.Abs(got-want) > 1e-12 {
		t.Errorf("MeanSquare() = %v, want %v", got, want)
	}
}

func TestScaleDoesNotMutate(t *testing.T) {
	w := Waveform{Samples: []float64{0.5, -0.5}, SampleRate: 16000}
	scaled := w.Scale(0.5)
	if w.Samples[0] != 0.5 {
		t.Errorf("original mutated: %v", w.Samples[0])
	}
	if scaled.Samples[0] != 0.25 || scaled.Samples[1] != -0.25 {
		t.Errorf("Scale(0.5) = %v", scaled.Samples)
	}
}

func TestResample(t *testing.T) {
	w := sine(440, 48000, 1.0)

	out := w.Resample(16000)
	if out.SampleRate != 16000 {
		t.Fatalf("SampleRate = %d, want 16000", out.SampleRate)
	}
	if got, want := len(out.Samples), 16000; got != want {
		t.Errorf("len = %d, want %d", got, want)
	}
	if math.Abs(out.Duration()-1.0) > 0.001 {
		t.Errorf("Duration() = %v, want ~1.0", out.Duration())
	}

	// A sine survives linear resampling with its amplitude roughly intact.
	if peak := out.Peak(); peak < 0.9 || peak > 1.01 {
		t.Errorf("peak after resample = %v", peak)
	}
}

func TestResampleSameRateIsIdentity(t *testing.T) {
	w := sine(440, 16000, 0.1)
	out := w.Resample(16000)
	if len(out.Samples) != len(w.Samples) {
		t.Fatalf("len = %d, want %d", len(out.Samples), len(w.Samples))
	}
	for i := range out.Samples {
		if out.Samples[i] != w.Samples[i] {
			t.Fatalf("sample %d changed", i)
		}
	}
}

func TestGainDB(t *testing.T) {
	tests := []struct {
		db   float64
		want float64
	}{
		{0, 1.0},
		{-6, 0.501187},
		{-20, 0.1},
		{6, 1.995262},
	}
	for _, tt := range tests {
		if got := GainDB(tt.db); math.Abs(got-tt.want) > 1e-5 {
			t.Errorf("GainDB(%v) = %v, want %v", tt.db, got, tt.want)
		}
	}
}

func TestDB(t *testing.T) {
	tests := []struct {
		amplitude float64
		want      float64
	}{
		{1.0, 0},
		{0.1, -20},
		{0, -120},
		{-0.5, -120},
		{1e-10, -120},
	}
	for _, tt := range tests {
		if got := DB(tt.amplitude); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("DB(%v) = %v, want %v", tt.amplitude, got, tt.want)
		}
	}
}
