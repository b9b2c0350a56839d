package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sonicmuse/muse-engine/internal/audio"
	"github.com/sonicmuse/muse-engine/internal/control"
	"github.com/sonicmuse/muse-engine/internal/mix"
)

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ErrorResponse is the standard error response body.
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, ErrorResponse{Error: msg})
}

// WriteDomainError maps pipeline errors to HTTP statuses. Validation
// failures are the caller's fault; anything else is a collaborator or
// internal failure.
func WriteDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, audio.ErrInvalidInput):
		WriteJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: "invalid_input", Detail: err.Error()})
	case errors.Is(err, mix.ErrInvalidParameter):
		WriteJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_parameter", Detail: err.Error()})
	case errors.Is(err, mix.ErrAlignmentFailure):
		WriteJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: "alignment_failure", Detail: err.Error()})
	case errors.Is(err, control.ErrUnknownStyle):
		WriteJSON(w, http.StatusBadRequest, ErrorResponse{Error: "unknown_style", Detail: err.Error()})
	default:
		WriteJSON(w, http.StatusBadGateway, ErrorResponse{Error: "pipeline_failure", Detail: err.Error()})
	}
}

// WriteWAV streams WAV bytes with a download filename.
func WriteWAV(w http.ResponseWriter, filename string, data []byte) {
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
