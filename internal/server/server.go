package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/Ting2004/katachi/internal/engine"
	"github.com/Ting2004/katachi/internal/snapshot"
)

// Server is the katachi HTTP API server.
type Server struct {
	engine  *engine.Engine
	router  chi.Router
	logger  *slog.Logger
	version string
	started time.Time
	metrics *httpInstruments
}

// New creates a new Server around an open engine.
func New(eng *engine.Engine, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		engine:  eng,
		logger:  logger,
		version: version,
		started: time.Now(),
	}
	var err error
	if s.metrics, err = newHTTPInstruments(otel.Meter(meterName)); err != nil {
		logger.Warn("http metrics disabled", "err", err)
		s.metrics, _ = newHTTPInstruments(noop.Meter{})
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(requestIDMiddleware)
	r.Use(func(next http.Handler) http.Handler { return loggingMiddleware(s.logger, next) })
	r.Use(s.metrics.middleware)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/state", s.handleState)

		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", s.handleListTasks)
			r.Post("/", s.handleCreateTask)
			r.Get("/{name}", s.handleGetTask)
			r.Patch("/{name}", s.handleUpdateTask)
			r.Delete("/{name}", s.handleDeleteTask)
			r.Post("/{name}/complete", s.handleToggle(true))
			r.Post("/{name}/uncomplete", s.handleToggle(false))
		})

		r.Post("/decay", s.handleDecay)
		r.Post("/reset", s.handleReset)
		r.Post("/restore-defaults", s.handleRestoreDefaults)
		r.Post("/save", s.handleSave)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, snapshot.CodeNotFound, "no route for "+r.URL.Path)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, snapshot.Health{
		Status:  "ok",
		Version: s.version,
		Uptime:  time.Since(s.started).Seconds(),
		Dirty:   s.engine.Dirty(),
	})
}
