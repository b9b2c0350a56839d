// Package control maps a feature summary to discrete musical controls.
// The mapping is pure and deterministic: identical summaries always produce
// identical controls, which keeps seeded generation reproducible.
package control

import (
	"errors"
	"fmt"
	"math"

	"github.com/sonicmuse/muse-engine/internal/feature"
)

// ErrUnknownStyle indicates a mood with no entry in the style preset table.
var ErrUnknownStyle = errors.New("unknown style")

// Mood is the discrete emotional tone inferred from the acoustic features.
type Mood string

const (
	MoodBright Mood = "bright"
	MoodCalm   Mood = "calm"
	MoodTense  Mood = "tense"
	MoodDark   Mood = "dark"
	MoodBusy   Mood = "busy"
)

// MusicControls are the generation parameters derived from one summary.
type MusicControls struct {
	Mood     Mood   `json:"mood"`
	TempoBPM int    `json:"tempo_bpm"`
	Key      string `json:"key"`
	StyleID  string `json:"style_id"`
}

// StyleTable resolves a mood to a style preset id. The prompt package's
// preset table satisfies this; tests inject fixtures.
type StyleTable interface {
	StyleFor(mood string) (string, bool)
}

// Reference scales used to normalize raw feature values before threshold
// comparison, so the rule constants hold across inputs of different loudness
// and register.
const (
	refEnergyMean = 0.08 // typical speech RMS after capture gain
	refEnergyStd  = 0.04
	refPitchMean  = 150.0 // Hz, mid speech register
	refPitchStd   = 40.0
	refSpeechWPM  = 150.0

	baseTempoBPM = 90
	minTempoBPM  = 60
	maxTempoBPM  = 160
)

var keyByMood = map[Mood]string{
	MoodBright: "Cmaj",
	MoodBusy:   "Gmaj",
	MoodCalm:   "Amin",
	MoodDark:   "Dmin",
	MoodTense:  "Emin",
}

// normalized holds the summary rescaled to the reference ranges above.
type normalized struct {
	energyMean float64
	energyStd  float64
	pitchMean  float64
	pitchStd   float64
	wpm        float64
}

// moodRule pairs a predicate with the mood it selects. Rules are evaluated
// in declaration order; the first match wins, which keeps precedence
// explicit instead of buried in nested branches.
type moodRule struct {
	mood  Mood
	match func(n normalized) bool
}

var moodRules = []moodRule{
	{MoodTense, func(n normalized) bool { return n.energyStd > 1.2 && n.pitchStd > 1.2 }},
	{MoodCalm, func(n normalized) bool { return n.energyMean < 0.6 && n.wpm < 110 }},
	{MoodBusy, func(n normalized) bool { return n.wpm > 160 && n.energyMean > 1.0 }},
	{MoodDark, func(n normalized) bool { return n.pitchMean > 0 && n.pitchMean < 0.85 && n.energyMean < 0.8 }},
}

// Deriver computes MusicControls from a feature summary.
type Deriver struct {
	styles StyleTable
}

// NewDeriver creates a deriver backed by the given style table.
func NewDeriver(styles StyleTable) *Deriver {
	return &Deriver{styles: styles}
}

// Derive maps the summary to controls. The only failure mode is a mood the
// style table does not cover; everything else is total.
func (d *Deriver) Derive(s feature.Summary) (MusicControls, error) {
	n := normalize(s)

	mood := MoodBright
	for _, rule := range moodRules {
		if rule.match(n) {
			mood = rule.mood
			break
		}
	}

	styleID, ok := d.styles.StyleFor(string(mood))
	if !ok {
		return MusicControls{}, fmt.Errorf("%w: no preset for mood %q", ErrUnknownStyle, mood)
	}

	return MusicControls{
		Mood:     mood,
		TempoBPM: tempoFor(s.SpeechRateWPM),
		Key:      keyByMood[mood],
		StyleID:  styleID,
	}, nil
}

func normalize(s feature.Summary) normalized {
	return normalized{
		energyMean: s.EnergyMean / refEnergyMean,
		energyStd:  s.EnergyStd / refEnergyStd,
		pitchMean:  s.PitchMean / refPitchMean,
		pitchStd:   s.PitchStd / refPitchStd,
		wpm:        s.SpeechRateWPM,
	}
}

// tempoFor scales the base tempo linearly by speech rate relative to the
// reference rate, clamped to the playable range.
func tempoFor(wpm float64) int {
	if wpm <= 0 {
		return baseTempoBPM
	}
	tempo := int(math.Round(baseTempoBPM * wpm / refSpeechWPM))
	if tempo < minTempoBPM {
		return minTempoBPM
	}
	if tempo > maxTempoBPM {
		return maxTempoBPM
	}
	return tempo
}
