package prompt

import (
	"fmt"

	"github.com/sonicmuse/muse-engine/internal/control"
)

// Builder composes the natural-language generation directive from derived
// controls and the preset table. Pure string work; the only failure is a
// style id missing from the table.
type Builder struct {
	presets *Presets
}

// NewBuilder creates a builder over the loaded preset table.
func NewBuilder(presets *Presets) *Builder {
	return &Builder{presets: presets}
}

// Build renders the directive for the music collaborator.
func (b *Builder) Build(c control.MusicControls, durationS float64, intensity float64) (string, error) {
	preset, ok := b.presets.Get(c.StyleID)
	if !ok {
		return "", fmt.Errorf("%w: style %q not in preset table", control.ErrUnknownStyle, c.StyleID)
	}

	return fmt.Sprintf(
		"%s, %s mood, %s intensity, %d BPM, key %s, instrumentation: %s, texture: %s, mix: %s, %.0f second instrumental background",
		preset.Style,
		c.Mood,
		intensityQualifier(intensity),
		c.TempoBPM,
		c.Key,
		preset.Instruments,
		preset.Texture,
		preset.MixHint,
		durationS,
	), nil
}

// intensityQualifier discretizes the [0,1] intensity into the three
// directive words the generator responds to.
func intensityQualifier(intensity float64) string {
	switch {
	case intensity < 0.33:
		return "subtle"
	case intensity < 0.66:
		return "moderate"
	default:
		return "driving"
	}
}
