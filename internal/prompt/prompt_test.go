package prompt

import (
	"errors"
	"strings"
	"testing"

	"github.com/sonicmuse/muse-engine/internal/control"
)

const testTOML = `
[[preset]]
id = "test_calm"
mood = "calm"
style = "ambient pads"
instruments = "piano, strings"
texture = "soft"
mix_hint = "wide stereo"

[[preset]]
id = "test_bright"
mood = "bright"
style = "upbeat pop"
instruments = "guitar, drums"
texture = "crisp"
mix_hint = "punchy"
`

func TestParse(t *testing.T) {
	p, err := Parse([]byte(testTOML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", p.Len())
	}

	pr, ok := p.Get("test_calm")
	if !ok {
		t.Fatal("Get(test_calm) not found")
	}
	if pr.Style != "ambient pads" || pr.MixHint != "wide stereo" {
		t.Errorf("preset = %+v", pr)
	}

	id, ok := p.StyleFor("bright")
	if !ok || id != "test_bright" {
		t.Errorf("StyleFor(bright) = %q, %v", id, ok)
	}
	if _, ok := p.StyleFor("tense"); ok {
		t.Error("StyleFor(tense) should miss")
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		toml string
	}{
		{"empty", ""},
		{"no_presets", "[other]\nkey = 1\n"},
		{"missing_id", "[[preset]]\nmood = \"calm\"\n"},
		{"duplicate_id", "[[preset]]\nid = \"a\"\n[[preset]]\nid = \"a\"\n"},
		{"bad_toml", "[[preset]\nid = broken"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.toml)); err == nil {
				t.Fatal("Parse() expected error")
			}
		})
	}
}

func TestEmbeddedDefaultsCoverAllMoods(t *testing.T) {
	p, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for _, mood := range []string{"bright", "calm", "tense", "dark", "busy"} {
		if _, ok := p.StyleFor(mood); !ok {
			t.Errorf("embedded table has no preset for mood %q", mood)
		}
	}
}

func TestBuild(t *testing.T) {
	p, err := Parse([]byte(testTOML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	b := NewBuilder(p)

	got, err := b.Build(control.MusicControls{
		Mood:     control.MoodCalm,
		TempoBPM: 84,
		Key:      "Amin",
		StyleID:  "test_calm",
	}, 30, 0.5)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	for _, want := range []string{
		"ambient pads",
		"calm mood",
		"moderate intensity",
		"84 BPM",
		"key Amin",
		"instrumentation: piano, strings",
		"texture: soft",
		"mix: wide stereo",
		"30 second instrumental background",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("prompt %q missing %q", got, want)
		}
	}
}

func TestBuildUnknownStyle(t *testing.T) {
	p, _ := Parse([]byte(testTOML))
	b := NewBuilder(p)
	_, err := b.Build(control.MusicControls{StyleID: "nope"}, 30, 0.5)
	if !errors.Is(err, control.ErrUnknownStyle) {
		t.Fatalf("error = %v, want ErrUnknownStyle", err)
	}
}

func TestIntensityQualifier(t *testing.T) {
	tests := []struct {
		intensity float64
		want      string
	}{
		{0, "subtle"},
		{0.32, "subtle"},
		{0.33, "moderate"},
		{0.65, "moderate"},
		{0.66, "driving"},
		{1, "driving"},
	}
	for _, tt := range tests {
		if got := intensityQualifier(tt.intensity); got != tt.want {
			t.Errorf("intensityQualifier(%v) = %q, want %q", tt.intensity, got, tt.want)
		}
	}
}
