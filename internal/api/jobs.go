package api

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// ListJobs handles GET /api/v1/jobs.
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		WriteError(w, http.StatusNotImplemented, "job history requires a database")
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	offset := 0
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	jobs, err := h.db.ListJobs(r.Context(), limit, offset)
	if err != nil {
		h.log.Error().Err(err).Msg("list jobs failed")
		WriteError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// GetJob handles GET /api/v1/jobs/{jobID}.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		WriteError(w, http.StatusNotImplemented, "job history requires a database")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	job, err := h.db.GetJob(r.Context(), id)
	if err != nil {
		h.log.Error().Err(err).Stringer("job_id", id).Msg("get job failed")
		WriteError(w, http.StatusInternalServerError, "failed to load job")
		return
	}
	if job == nil {
		WriteError(w, http.StatusNotFound, "job not found")
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

// GetJobAudio handles GET /api/v1/jobs/{jobID}/audio: stream the mixed
// artifact, or redirect to a presigned URL for remote backends.
func (h *Handlers) GetJobAudio(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	key := id.String() + "/mix.wav"
	if !h.store.Exists(r.Context(), key) {
		WriteError(w, http.StatusNotFound, "artifact not found")
		return
	}

	if url, err := h.store.URL(r.Context(), key); err == nil && url != "" {
		http.Redirect(w, r, url, http.StatusFound)
		return
	}

	rc, err := h.store.Open(r.Context(), key)
	if err != nil {
		h.log.Error().Err(err).Str("key", key).Msg("artifact open failed")
		WriteError(w, http.StatusInternalServerError, "failed to open artifact")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Disposition", `attachment; filename="mix.wav"`)
	if _, err := io.Copy(w, rc); err != nil {
		h.log.Warn().Err(err).Str("key", key).Msg("artifact stream interrupted")
	}
}
