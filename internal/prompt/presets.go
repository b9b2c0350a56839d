// Package prompt owns the style preset table and the generation directive
// builder handed to the external music model.
package prompt

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

//go:embed presets.toml
var defaultPresetsTOML []byte

// Preset describes one musical style: the descriptor and hints interpolated
// into the generation directive, keyed to the mood that selects it.
type Preset struct {
	ID          string `toml:"id"`
	Mood        string `toml:"mood"`
	Style       string `toml:"style"`
	Instruments string `toml:"instruments"`
	Texture     string `toml:"texture"`
	MixHint     string `toml:"mix_hint"`
}

// Presets is the immutable style table, loaded once at startup and passed by
// reference into the deriver and builder. No global lookups.
type Presets struct {
	byID   map[string]Preset
	byMood map[string]string
}

type presetsFile struct {
	Preset []Preset `toml:"preset"`
}

// Load reads a preset table from a TOML file. An empty path loads the
// embedded default table.
func Load(path string) (*Presets, error) {
	data := defaultPresetsTOML
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read presets: %w", err)
		}
		data = b
	}
	return Parse(data)
}

// Parse builds the table from TOML bytes.
func Parse(data []byte) (*Presets, error) {
	var f presetsFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse presets: %w", err)
	}
	if len(f.Preset) == 0 {
		return nil, fmt.Errorf("parse presets: no presets defined")
	}

	p := &Presets{
		byID:   make(map[string]Preset, len(f.Preset)),
		byMood: make(map[string]string, len(f.Preset)),
	}
	for _, pr := range f.Preset {
		if pr.ID == "" {
			return nil, fmt.Errorf("parse presets: preset with empty id")
		}
		if _, dup := p.byID[pr.ID]; dup {
			return nil, fmt.Errorf("parse presets: duplicate id %q", pr.ID)
		}
		p.byID[pr.ID] = pr
		// First preset per mood wins, matching table order.
		if _, have := p.byMood[pr.Mood]; !have && pr.Mood != "" {
			p.byMood[pr.Mood] = pr.ID
		}
	}
	return p, nil
}

// Get returns the preset for a style id.
func (p *Presets) Get(styleID string) (Preset, bool) {
	pr, ok := p.byID[styleID]
	return pr, ok
}

// StyleFor returns the preset id selected by a mood. Satisfies
// control.StyleTable.
func (p *Presets) StyleFor(mood string) (string, bool) {
	id, ok := p.byMood[mood]
	return id, ok
}

// Len returns the number of presets in the table.
func (p *Presets) Len() int { return len(p.byID) }
