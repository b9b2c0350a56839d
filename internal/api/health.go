package api

import (
	"net/http"
	"time"
)

type healthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Checks        map[string]string `json:"checks"`
	QueueDepth    int               `json:"queue_depth"`
}

// HealthHandler reports service health and dependency checks.
type HealthHandler struct {
	handlers  *Handlers
	version   string
	startTime time.Time
}

// NewHealthHandler creates the health endpoint handler.
func NewHealthHandler(h *Handlers, version string, startTime time.Time) *HealthHandler {
	return &HealthHandler{handlers: h, version: version, startTime: startTime}
}

func (hh *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h := hh.handlers
	checks := make(map[string]string)
	status := "healthy"
	httpStatus := http.StatusOK

	if h.db != nil {
		if err := h.db.HealthCheck(r.Context()); err != nil {
			checks["database"] = "error"
			status = "unhealthy"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["database"] = "ok"
		}
	} else {
		checks["database"] = "not_configured"
	}

	checks["artifact_store"] = h.store.Type()
	for name, backend := range h.pipeline.Collaborators() {
		checks[name] = backend
	}

	pending := h.pool.Pending()
	if pending > 0 && status == "healthy" {
		checks["queue"] = "busy"
	} else {
		checks["queue"] = "ok"
	}

	WriteJSON(w, httpStatus, healthResponse{
		Status:        status,
		Version:       hh.version,
		UptimeSeconds: int64(time.Since(hh.startTime).Seconds()),
		Checks:        checks,
		QueueDepth:    pending,
	})
}
