package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHealthReportsCollaborators(t *testing.T) {
	env := newTestEnv(t)
	hh := NewHealthHandler(env.handlers, "test", time.Now())

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	hh.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var res healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("JSON decode: %v", err)
	}
	if res.Status != "healthy" {
		t.Errorf("status = %q, want healthy", res.Status)
	}
	if got := res.Checks["database"]; got != "not_configured" {
		t.Errorf("database check = %q, want not_configured", got)
	}
	if got := res.Checks["artifact_store"]; got != "local" {
		t.Errorf("artifact_store check = %q, want local", got)
	}
	if got := res.Checks["asr"]; got != "fake (fake-v1)" {
		t.Errorf("asr check = %q, want provider name and model", got)
	}
	if got := res.Checks["musicgen"]; got != "fake-gen" {
		t.Errorf("musicgen check = %q, want generator name", got)
	}
}
