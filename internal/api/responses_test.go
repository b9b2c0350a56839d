package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sonicmuse/muse-engine/internal/audio"
	"github.com/sonicmuse/muse-engine/internal/control"
	"github.com/sonicmuse/muse-engine/internal/mix"
)

func TestWriteDomainError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{"invalid_input", fmt.Errorf("decode: %w", audio.ErrInvalidInput), http.StatusUnprocessableEntity, "invalid_input"},
		{"invalid_parameter", fmt.Errorf("mix: %w", mix.ErrInvalidParameter), http.StatusBadRequest, "invalid_parameter"},
		{"alignment_failure", fmt.Errorf("mix: %w", mix.ErrAlignmentFailure), http.StatusUnprocessableEntity, "alignment_failure"},
		{"unknown_style", fmt.Errorf("derive: %w", control.ErrUnknownStyle), http.StatusBadRequest, "unknown_style"},
		{"collaborator_failure", errors.New("whisper timed out"), http.StatusBadGateway, "pipeline_failure"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteDomainError(rec, tt.err)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var body ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("JSON decode: %v", err)
			}
			if body.Error != tt.wantError {
				t.Errorf("error = %q, want %q", body.Error, tt.wantError)
			}
			if body.Detail == "" {
				t.Error("detail empty, want the wrapped message")
			}
		})
	}
}

func TestWriteWAV(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteWAV(rec, "mix.wav", []byte("RIFF..."))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "audio/wav" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != `attachment; filename="mix.wav"` {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if rec.Body.String() != "RIFF..." {
		t.Errorf("body = %q", rec.Body.String())
	}
}
