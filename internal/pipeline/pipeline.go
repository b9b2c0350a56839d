// Package pipeline chains the analysis-to-mix stages and runs compose jobs
// on a worker pool. Data passes stage to stage explicitly; no shared
// session state, so every run is independent and trivially parallel.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sonicmuse/muse-engine/internal/asr"
	"github.com/sonicmuse/muse-engine/internal/audio"
	"github.com/sonicmuse/muse-engine/internal/config"
	"github.com/sonicmuse/muse-engine/internal/control"
	"github.com/sonicmuse/muse-engine/internal/feature"
	"github.com/sonicmuse/muse-engine/internal/metrics"
	"github.com/sonicmuse/muse-engine/internal/mix"
	"github.com/sonicmuse/muse-engine/internal/musicgen"
	"github.com/sonicmuse/muse-engine/internal/prompt"
)

// AnalysisResult is everything the analyze stage produces for one input.
type AnalysisResult struct {
	Transcript string                `json:"transcript"`
	Language   string                `json:"language,omitempty"`
	Segments   []feature.Segment     `json:"segments"`
	Features   feature.Features      `json:"features"`
	Controls   control.MusicControls `json:"controls"`
	Prompt     string                `json:"prompt"`
}

// ComposeOutput is the one-shot analyze/generate/mix result.
type ComposeOutput struct {
	Analysis *AnalysisResult
	PeakDB   float64
	WAV      []byte
	Timings  map[string]float64 // stage -> seconds
}

// ComposeParams carries per-request knobs. Zero is meaningful for the
// pointer fields (intensity 0 is "subtle", gain 0 dB is background at
// dialogue loudness, ducking 0 disables the envelope), so only nil selects
// the config default.
type ComposeParams struct {
	DurationS        float64
	Seed             int64
	Intensity        *float64
	BackgroundGainDB *float64
	Ducking          *float64
}

// Pipeline wires the stages together.
type Pipeline struct {
	cfg       *config.Config
	extractor *feature.Extractor
	deriver   *control.Deriver
	builder   *prompt.Builder
	mixer     *mix.Mixer
	asr       asr.Provider
	gen       musicgen.Generator
	log       zerolog.Logger
}

// New assembles a pipeline from its collaborators.
func New(cfg *config.Config, presets *prompt.Presets, asrProvider asr.Provider, gen musicgen.Generator, log zerolog.Logger) *Pipeline {
	fcfg := feature.DefaultConfig()
	fcfg.WindowMS = cfg.FrameWindowMS
	fcfg.HopMS = cfg.FrameHopMS
	fcfg.PauseThresholdS = cfg.PauseThresholdS

	mcfg := mix.DefaultConfig()
	mcfg.CrossfadeMS = cfg.CrossfadeMS
	mcfg.FadeOutMS = cfg.FadeOutMS
	mcfg.AttackMS = cfg.AttackMS
	mcfg.ReleaseMS = cfg.ReleaseMS
	mcfg.CeilingDB = cfg.CeilingDB
	mcfg.WindowMS = cfg.FrameWindowMS
	mcfg.HopMS = cfg.FrameHopMS

	return &Pipeline{
		cfg:       cfg,
		extractor: feature.NewExtractor(fcfg, nil, log),
		deriver:   control.NewDeriver(presets),
		builder:   prompt.NewBuilder(presets),
		mixer:     mix.NewMixer(mcfg, log),
		asr:       asrProvider,
		gen:       gen,
		log:       log.With().Str("component", "pipeline").Logger(),
	}
}

// Collaborators names the configured external backends for health
// reporting.
func (p *Pipeline) Collaborators() map[string]string {
	return map[string]string{
		"asr":      p.asr.Name() + " (" + p.asr.Model() + ")",
		"musicgen": p.gen.Name(),
	}
}

// Analyze decodes the upload, transcribes it, and runs the deterministic
// feature -> controls -> prompt chain.
func (p *Pipeline) Analyze(ctx context.Context, wavData []byte, filename string, intensity float64) (*AnalysisResult, error) {
	w, err := audio.DecodeWAV(wavData)
	if err != nil {
		return nil, err
	}

	tr, err := p.asr.Transcribe(ctx, wavData, filename)
	if err != nil {
		return nil, fmt.Errorf("transcribe: %w", err)
	}

	return p.analyzeWaveform(w, tr, intensity)
}

func (p *Pipeline) analyzeWaveform(w audio.Waveform, tr *asr.Response, intensity float64) (*AnalysisResult, error) {
	feats, err := p.extractor.Extract(w, tr.Segments)
	if err != nil {
		return nil, fmt.Errorf("extract features: %w", err)
	}

	controls, err := p.deriver.Derive(feats.Summary)
	if err != nil {
		return nil, fmt.Errorf("derive controls: %w", err)
	}

	directive, err := p.builder.Build(controls, feats.Summary.DurationS, intensity)
	if err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}

	metrics.AnalysesTotal.Inc()
	return &AnalysisResult{
		Transcript: tr.Text,
		Language:   tr.Language,
		Segments:   tr.Segments,
		Features:   feats,
		Controls:   controls,
		Prompt:     directive,
	}, nil
}

// Generate invokes the music collaborator.
func (p *Pipeline) Generate(ctx context.Context, params musicgen.Params) (audio.Waveform, error) {
	start := time.Now()
	w, err := p.gen.Generate(ctx, params)
	if err != nil {
		return audio.Waveform{}, err
	}
	metrics.ObserveStage("generate", time.Since(start))
	p.log.Info().
		Float64("duration_s", w.Duration()).
		Int64("seed", params.Seed).
		Msg("background generated")
	return w, nil
}

// Mix runs the mixer and records metrics.
func (p *Pipeline) Mix(req mix.Request) (mix.Result, error) {
	start := time.Now()
	res, err := p.mixer.Mix(req)
	if err != nil {
		return mix.Result{}, err
	}
	metrics.MixesTotal.Inc()
	metrics.ObserveStage("mix", time.Since(start))
	if res.PeakDB > p.cfg.CeilingDB {
		metrics.LimiterEngagedTotal.Inc()
	}
	return res, nil
}

// RenderOutput resamples the mix to the output rate and encodes WAV.
func (p *Pipeline) RenderOutput(w audio.Waveform) ([]byte, error) {
	return audio.EncodeWAV(w.Resample(p.cfg.OutputSampleRate))
}

// Compose runs the full analyze -> generate -> mix chain for one input.
// Any stage failure aborts the remaining stages; partial results are never
// returned.
func (p *Pipeline) Compose(ctx context.Context, wavData []byte, filename string, params ComposeParams, onStage func(stage string)) (*ComposeOutput, error) {
	if params.DurationS <= 0 {
		params.DurationS = p.cfg.DefaultDuration
	}
	if params.Seed == 0 {
		params.Seed = p.cfg.DefaultSeed
	}
	intensity := p.cfg.DefaultIntensity
	if params.Intensity != nil {
		intensity = *params.Intensity
	}
	bgGainDB := p.cfg.BackgroundGainDB
	if params.BackgroundGainDB != nil {
		bgGainDB = *params.BackgroundGainDB
	}
	ducking := p.cfg.Ducking
	if params.Ducking != nil {
		ducking = *params.Ducking
	}

	timings := make(map[string]float64)
	notify := func(stage string) {
		if onStage != nil {
			onStage(stage)
		}
	}

	notify("analyze")
	start := time.Now()
	analysis, err := p.Analyze(ctx, wavData, filename, intensity)
	if err != nil {
		return nil, err
	}
	timings["analyze"] = time.Since(start).Seconds()
	metrics.ObserveStage("analyze", time.Since(start))

	notify("generate")
	start = time.Now()
	background, err := p.Generate(ctx, musicgen.Params{
		Prompt:    analysis.Prompt,
		DurationS: params.DurationS,
		Seed:      params.Seed,
		TempoBPM:  analysis.Controls.TempoBPM,
		Key:       analysis.Controls.Key,
	})
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}
	timings["generate"] = time.Since(start).Seconds()

	notify("mix")
	start = time.Now()
	dialogue, err := audio.DecodeWAV(wavData)
	if err != nil {
		return nil, err
	}
	res, err := p.Mix(mix.Request{
		Dialogue:         dialogue,
		Background:       background,
		BackgroundGainDB: bgGainDB,
		Ducking:          ducking,
	})
	if err != nil {
		return nil, fmt.Errorf("mix: %w", err)
	}
	timings["mix"] = time.Since(start).Seconds()

	out, err := p.RenderOutput(res.Waveform)
	if err != nil {
		return nil, fmt.Errorf("render output: %w", err)
	}

	p.log.Info().
		Str("mood", string(analysis.Controls.Mood)).
		Int("tempo_bpm", analysis.Controls.TempoBPM).
		Float64("peak_db", res.PeakDB).
		Float64("analyze_s", timings["analyze"]).
		Float64("generate_s", timings["generate"]).
		Float64("mix_s", timings["mix"]).
		Msg("composition complete")

	return &ComposeOutput{
		Analysis: analysis,
		PeakDB:   res.PeakDB,
		WAV:      out,
		Timings:  timings,
	}, nil
}

// marshalTimings renders stage timings for the job row.
func marshalTimings(timings map[string]float64) json.RawMessage {
	b, err := json.Marshal(timings)
	if err != nil {
		return nil
	}
	return b
}
