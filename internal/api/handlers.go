package api

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sonicmuse/muse-engine/internal/audio"
	"github.com/sonicmuse/muse-engine/internal/mix"
	"github.com/sonicmuse/muse-engine/internal/musicgen"
	"github.com/sonicmuse/muse-engine/internal/pipeline"
	"github.com/sonicmuse/muse-engine/internal/storage"
	"github.com/sonicmuse/muse-engine/internal/store"
)

const maxUploadBytes = 64 << 20

// Handlers carries the pipeline and its supporting services into the
// route handlers.
type Handlers struct {
	pipeline *pipeline.Pipeline
	pool     *pipeline.WorkerPool
	events   *pipeline.EventBus
	db       *store.DB // may be nil
	store    storage.ArtifactStore
	defaults RequestDefaults
	log      zerolog.Logger
}

// RequestDefaults are the config-derived fallbacks for absent form fields.
type RequestDefaults struct {
	DurationS        float64
	Seed             int64
	Intensity        float64
	BackgroundGainDB float64
	Ducking          float64
}

// NewHandlers creates the handler set.
func NewHandlers(p *pipeline.Pipeline, pool *pipeline.WorkerPool, events *pipeline.EventBus, db *store.DB, st storage.ArtifactStore, defaults RequestDefaults, log zerolog.Logger) *Handlers {
	return &Handlers{
		pipeline: p,
		pool:     pool,
		events:   events,
		db:       db,
		store:    st,
		defaults: defaults,
		log:      log.With().Str("component", "api").Logger(),
	}
}

// Analyze handles POST /api/v1/analyze: transcribe, extract features,
// derive controls, build the generation prompt.
func (h *Handlers) Analyze(w http.ResponseWriter, r *http.Request) {
	if !h.parseUpload(w, r) {
		return
	}
	defer r.MultipartForm.RemoveAll()

	data, filename, ok := h.readUpload(w, r, "file")
	if !ok {
		return
	}
	intensity := formFloat(r, "intensity", h.defaults.Intensity)

	result, err := h.pipeline.Analyze(r.Context(), data, filename, intensity)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

// Generate handles POST /api/v1/generate: hand the prompt to the music
// collaborator and stream the WAV back.
func (h *Handlers) Generate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid form: "+err.Error())
		return
	}
	promptText := r.FormValue("prompt")
	if promptText == "" {
		WriteError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	background, err := h.pipeline.Generate(r.Context(), musicgen.Params{
		Prompt:    promptText,
		DurationS: formFloat(r, "duration", h.defaults.DurationS),
		Seed:      formInt(r, "seed", h.defaults.Seed),
		TempoBPM:  int(formInt(r, "tempo_bpm", 120)),
		Key:       formValue(r, "key", "Cmaj"),
	})
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	out, err := audio.EncodeWAV(background)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteWAV(w, "background_music.wav", out)
}

// Mix handles POST /api/v1/mix: duck and blend an uploaded background
// under uploaded dialogue.
func (h *Handlers) Mix(w http.ResponseWriter, r *http.Request) {
	if !h.parseUpload(w, r) {
		return
	}
	defer r.MultipartForm.RemoveAll()

	dialogueData, _, ok := h.readUpload(w, r, "file_dialogue")
	if !ok {
		return
	}
	bgData, _, ok := h.readUpload(w, r, "file_bg")
	if !ok {
		return
	}

	dialogue, err := audio.DecodeWAV(dialogueData)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	background, err := audio.DecodeWAV(bgData)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	res, err := h.pipeline.Mix(mix.Request{
		Dialogue:         dialogue,
		Background:       background,
		BackgroundGainDB: formFloat(r, "bg_db", h.defaults.BackgroundGainDB),
		Ducking:          formFloat(r, "ducking", h.defaults.Ducking),
	})
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	out, err := h.pipeline.RenderOutput(res.Waveform)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	w.Header().Set("X-Peak-DB", strconv.FormatFloat(res.PeakDB, 'f', 2, 64))
	WriteWAV(w, "mixed_audio.wav", out)
}

// Compose handles POST /api/v1/compose: enqueue the one-shot
// analyze/generate/mix job and return its id immediately.
func (h *Handlers) Compose(w http.ResponseWriter, r *http.Request) {
	if !h.parseUpload(w, r) {
		return
	}
	defer r.MultipartForm.RemoveAll()

	data, filename, ok := h.readUpload(w, r, "file")
	if !ok {
		return
	}

	// 0 is meaningful for these knobs, so only an absent field selects the
	// config default. Range errors surface from the mixer.
	params := pipeline.ComposeParams{
		DurationS: formFloat(r, "duration", h.defaults.DurationS),
		Seed:      formInt(r, "seed", h.defaults.Seed),
	}
	var err error
	if params.Intensity, err = formFloatPtr(r, "intensity"); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if params.BackgroundGainDB, err = formFloatPtr(r, "bg_db"); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if params.Ducking, err = formFloatPtr(r, "ducking"); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	job := pipeline.Job{
		ID:        uuid.New(),
		Source:    "upload",
		InputName: filename,
		Audio:     data,
		Params:    params,
	}
	if !h.pool.Enqueue(job) {
		WriteError(w, http.StatusServiceUnavailable, "compose queue is full")
		return
	}

	WriteJSON(w, http.StatusAccepted, map[string]any{
		"job_id": job.ID.String(),
		"status": store.StatusQueued,
	})
}

// parseUpload parses the multipart form. The caller owns cleanup of the
// upload temp files via r.MultipartForm.RemoveAll.
func (h *Handlers) parseUpload(w http.ResponseWriter, r *http.Request) bool {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return false
	}
	return true
}

// readUpload pulls one multipart file field into memory.
func (h *Handlers) readUpload(w http.ResponseWriter, r *http.Request, field string) ([]byte, string, bool) {
	file, header, err := r.FormFile(field)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "missing file field "+strconv.Quote(field))
		return nil, "", false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "failed to read uploaded file")
		return nil, "", false
	}
	return data, header.Filename, true
}

func formValue(r *http.Request, field, fallback string) string {
	if v := r.FormValue(field); v != "" {
		return v
	}
	return fallback
}

// formFloatPtr distinguishes an absent field (nil) from an explicit value,
// including an explicit zero.
func formFloatPtr(r *http.Request, field string) (*float64, error) {
	v := r.FormValue(field)
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %s", field, v)
	}
	return &f, nil
}

func formFloat(r *http.Request, field string, fallback float64) float64 {
	if v := r.FormValue(field); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func formInt(r *http.Request, field string, fallback int64) int64 {
	if v := r.FormValue(field); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}
