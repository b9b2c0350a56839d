package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/sonicmuse/muse-engine/internal/config"
	"github.com/sonicmuse/muse-engine/internal/metrics"
)

// Server is the HTTP front end.
type Server struct {
	http *http.Server
	log  zerolog.Logger
}

// NewServer wires the router: health and metrics unauthenticated, the
// pipeline routes behind bearer auth when a token is configured.
func NewServer(cfg *config.Config, h *Handlers, version string, startTime time.Time, log zerolog.Logger) *Server {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(Recoverer)
	r.Use(Logger(log))
	r.Use(CORS)
	r.Use(metrics.InstrumentHandler)

	health := NewHealthHandler(h, version, startTime)
	r.Get("/api/v1/health", health.ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(cfg.AuthToken))

		r.Post("/api/v1/analyze", h.Analyze)
		r.Post("/api/v1/generate", h.Generate)
		r.Post("/api/v1/mix", h.Mix)
		r.Post("/api/v1/compose", h.Compose)

		r.Get("/api/v1/jobs", h.ListJobs)
		r.Get("/api/v1/jobs/{jobID}", h.GetJob)
		r.Get("/api/v1/jobs/{jobID}/audio", h.GetJobAudio)

		r.Get("/api/v1/events", h.Events)
	})

	return &Server{
		http: &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      r,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		log: log,
	}
}

// Start blocks serving HTTP until Shutdown.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("http server starting")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	return s.http.Shutdown(ctx)
}
