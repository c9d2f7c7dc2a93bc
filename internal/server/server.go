// Package server provides the HTTP server and routing for qulab.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/qulab/qulab/internal/clients/qx"
	"github.com/qulab/qulab/internal/config"
	"github.com/qulab/qulab/internal/database"
	"github.com/qulab/qulab/internal/events"
	"github.com/qulab/qulab/internal/modules/backends"
	backendshandlers "github.com/qulab/qulab/internal/modules/backends/handlers"
	"github.com/qulab/qulab/internal/modules/charts"
	chartshandlers "github.com/qulab/qulab/internal/modules/charts/handlers"
	"github.com/qulab/qulab/internal/modules/demos"
	demoshandlers "github.com/qulab/qulab/internal/modules/demos/handlers"
	"github.com/qulab/qulab/internal/modules/jobs"
	jobshandlers "github.com/qulab/qulab/internal/modules/jobs/handlers"
	"github.com/qulab/qulab/internal/reliability"
	"github.com/qulab/qulab/internal/scheduler"
)

// Config holds everything the server needs. Services are constructed by
// the caller; Scheduler, Stream and Backups may be nil when the feature
// is off.
type Config struct {
	Log       zerolog.Logger
	Config    *config.Config
	JobsDB    *database.DB
	CacheDB   *database.DB
	Bus       *events.Bus
	Backends  *backends.Service
	Demos     *demos.Service
	Charts    *charts.Service
	Jobs      *jobs.Service
	Scheduler *scheduler.Scheduler
	Stream    *qx.JobStream
	Backups   *reliability.BackupService
}

// Server is the HTTP API server
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	cfg    *config.Config

	backendsHandler *backendshandlers.Handler
	demosHandler    *demoshandlers.Handler
	chartsHandler   *chartshandlers.Handler
	jobsHandler     *jobshandlers.Handler
	systemHandlers  *SystemHandlers
	eventsStream    *EventsStreamHandler
}

// New creates a configured server. Nothing listens until Start.
func New(cfg Config) *Server {
	systemHandlers := NewSystemHandlers(SystemHandlersConfig{
		DataDir:       cfg.Config.DataDir,
		JobsDB:        cfg.JobsDB,
		CacheDB:       cfg.CacheDB,
		Scheduler:     cfg.Scheduler,
		Stream:        cfg.Stream,
		Backups:       cfg.Backups,
		StreamEnabled: cfg.Config.StreamEnabled,
	}, cfg.Log)

	s := &Server{
		router:          chi.NewRouter(),
		log:             cfg.Log.With().Str("component", "server").Logger(),
		cfg:             cfg.Config,
		backendsHandler: backendshandlers.NewHandler(cfg.Backends, cfg.Log),
		demosHandler:    demoshandlers.NewHandler(cfg.Demos, cfg.Log),
		chartsHandler:   chartshandlers.NewHandler(cfg.Charts, cfg.Log),
		jobsHandler:     jobshandlers.NewHandler(cfg.Jobs, cfg.Log),
		systemHandlers:  systemHandlers,
		eventsStream:    NewEventsStreamHandler(cfg.Bus, cfg.Log),
	}

	s.setupMiddleware(cfg.Config.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) setupMiddleware(devMode bool) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// Timeout
	s.router.Use(middleware.Timeout(60 * time.Second))

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		s.backendsHandler.RegisterRoutes(r)
		s.demosHandler.RegisterRoutes(r)
		s.chartsHandler.RegisterRoutes(r)
		s.jobsHandler.RegisterRoutes(r)
		s.systemHandlers.RegisterRoutes(r)

		r.Get("/events/stream", s.eventsStream.ServeHTTP)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

// Start begins listening for HTTP requests. It blocks until the server
// stops, so run it from a goroutine.
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}
