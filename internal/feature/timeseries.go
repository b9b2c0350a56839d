// Package feature turns a dialogue waveform and its transcript segments into
// time-series curves and an aggregate summary for downstream control mapping.
package feature

// TimeSeries is a pair of parallel sequences: strictly increasing timestamps
// and the values measured at them. Time and Values always have equal length.
type TimeSeries struct {
	Time   []float64 `json:"time"`
	Values []float64 `json:"values"`
}

// PitchSample is one frame's fundamental-frequency estimate. Confidence 0
// means unvoiced or unreliable; the reported frequency for such frames is 0,
// never a carried-forward value.
type PitchSample struct {
	FrequencyHz float64 `json:"frequency_hz"`
	Confidence  float64 `json:"confidence"`
}

// PitchCurve is the full per-frame pitch track, confidence included, kept
// parallel to the energy curve for visualization.
type PitchCurve struct {
	Time       []float64 `json:"time"`
	Frequency  []float64 `json:"frequency"`
	Confidence []float64 `json:"confidence"`
}

// Segment is an externally transcribed span of speech.
type Segment struct {
	Start float64 `json:"start_s"`
	End   float64 `json:"end_s"`
	Text  string  `json:"text"`
}

// Summary aggregates the curves into the scalar features the Control Deriver
// consumes. Pitch statistics cover confident frames only.
type Summary struct {
	EnergyMean    float64 `json:"energy_mean"`
	EnergyStd     float64 `json:"energy_std"`
	PitchMean     float64 `json:"pitch_mean"`
	PitchStd      float64 `json:"pitch_std"`
	SpeechRateWPM float64 `json:"speech_rate_wpm"`
	DurationS     float64 `json:"duration_s"`
	TotalWords    int     `json:"total_words"`
}

// Features is the Feature Extractor's complete output.
type Features struct {
	Energy  TimeSeries `json:"energy_curve"`
	Pitch   PitchCurve `json:"pitch_curve"`
	Pauses  []float64  `json:"pause_timestamps"`
	Summary Summary    `json:"summary"`
}
