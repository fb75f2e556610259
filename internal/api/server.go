package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/snarg/mockprep/internal/config"
	"github.com/snarg/mockprep/internal/metrics"
)

type Server struct {
	http *http.Server
	log  zerolog.Logger
}

// ServerOptions wires the API to its dependencies. Optional fields may be nil.
type ServerOptions struct {
	Config    *config.Config
	Service   InterviewService
	Health    HealthOptions
	Live      LiveFeed
	OpenAPI   []byte
	Log       zerolog.Logger
	StartTime time.Time

	// Closing ends open event streams when it is closed. NewServer sets it.
	Closing <-chan struct{}
}

// NewServer builds the HTTP server. Shutdown does not cancel request
// contexts, so open event streams are ended through opts.Closing instead.
func NewServer(opts ServerOptions) *Server {
	cfg := opts.Config
	closing := make(chan struct{})
	opts.Closing = closing
	r := NewRouter(opts)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	var once sync.Once
	srv.RegisterOnShutdown(func() {
		once.Do(func() { close(closing) })
	})

	return &Server{http: srv, log: opts.Log}
}

// NewRouter builds the full route tree.
func NewRouter(opts ServerOptions) chi.Router {
	cfg := opts.Config
	r := chi.NewRouter()

	// Global middleware
	r.Use(RequestID)
	r.Use(Logger(opts.Log))
	r.Use(Recoverer)
	r.Use(metrics.InstrumentHandler)
	r.Use(CORSWithOrigins(cfg.CORSOrigins))

	health := NewHealthHandler(opts.Health)
	schemas := NewSchemasHandler(opts.Service.QuestionCount, opts.OpenAPI)
	interviews := NewInterviewsHandler(opts.Service)
	answers := NewAnswersHandler(opts.Service, cfg.MaxRecordingBytes())
	users := NewUsersHandler(opts.Service)
	events := NewEventsHandler(opts.Live, opts.Service, cfg.CORSOrigins)
	events.closing = opts.Closing

	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints
		r.Get("/health", health.ServeHTTP)
		r.Handle("/metrics", promhttp.Handler())
		schemas.Routes(r)

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(BearerAuth(cfg.AuthToken))
			r.Use(Identity(cfg.UserHeader))

			users.Routes(r)
			events.Routes(r)
			interviews.Routes(r)
			answers.Routes(r)
		})
	})

	return r
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("http server starting")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	return s.http.Shutdown(ctx)
}
