package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sonicmuse/muse-engine/internal/pipeline"
)

// Events handles GET /api/v1/events: Server-Sent Events stream of job
// progress. Reconnecting clients send Last-Event-ID and get the ring
// buffer replayed before live events resume.
func (h *Handlers) Events(w http.ResponseWriter, r *http.Request) {
	// ResponseController reaches the flusher through wrapping middleware.
	rc := http.NewResponseController(w)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	// Subscribe before replay so nothing published in between is lost;
	// duplicate ids are cheaper than gaps.
	ch, cancel := h.events.Subscribe()
	defer cancel()

	lastID := r.Header.Get("Last-Event-ID")
	if lastID != "" {
		for _, e := range h.events.ReplaySince(lastID) {
			writeSSE(w, e)
		}
	}

	fmt.Fprintf(w, ": connected\n\n")
	if err := rc.Flush(); err != nil {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case e, open := <-ch:
			if !open {
				return
			}
			writeSSE(w, e)
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

func writeSSE(w http.ResponseWriter, e pipeline.Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", e.ID, e.Type, payload)
}
