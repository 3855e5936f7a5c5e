package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/agentboard/internal/api/ws"
	"github.com/gosuda/agentboard/internal/config"
	"github.com/gosuda/agentboard/internal/domain"
	"github.com/gosuda/agentboard/internal/ingest"
	"github.com/gosuda/agentboard/internal/server/middleware"
	"github.com/gosuda/agentboard/internal/stream"
)

// Stream connects are limited per client address; reconnect backoff keeps
// well-behaved dashboards far below this.
const (
	streamConnectRate  = 2
	streamConnectBurst = 20
)

// Store is the event storage the server is built on.
type Store interface {
	HookEvents() domain.HookEventRepository
	Activity() domain.ActivityRepository
	Ping(ctx context.Context) error
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Server is the HTTP server that wires all application routes and middleware.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	store      Store
	broker     stream.Broker
	emitter    *stream.Emitter
	wsHub      *ws.Hub
	cfg        *config.Config
}

// New creates a Server with all routes wired. Cancelling ctx ends open
// streams and stops the rate limiter cleanup.
func New(ctx context.Context, cfg *config.Config, store Store, broker stream.Broker) *Server {
	router := chi.NewRouter()

	// Global middleware stack.
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(chimw.Logger)
	router.Use(chimw.Recoverer)
	router.Use(cors.New(cors.Options{
		AllowedOrigins: cfg.Server.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "Last-Event-ID", middleware.ProjectHeader, "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}).Handler)

	emitter := stream.NewEmitter(broker, stream.Config{
		PollInterval:      cfg.Stream.PollInterval,
		HeartbeatInterval: cfg.Stream.HeartbeatInterval,
		QueryTimeout:      cfg.Stream.QueryTimeout,
		BatchLimit:        cfg.Stream.BatchLimit,
	}, []stream.Source{
		stream.HookEventSource(store.HookEvents()),
		stream.ActivitySource(store.Activity()),
	})
	hub := ws.NewHub(emitter, originPatterns(cfg.Server.CORSOrigins))
	svc := ingest.NewService(store.HookEvents(), store.Activity())

	s := &Server{
		router:  router,
		store:   store,
		broker:  broker,
		emitter: emitter,
		wsHub:   hub,
		cfg:     cfg,
		httpServer: &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           router,
			ReadHeaderTimeout: cfg.Server.ReadTimeout,
			ReadTimeout:       cfg.Server.ReadTimeout,
			WriteTimeout:      cfg.Server.WriteTimeout,
			BaseContext:       func(net.Listener) context.Context { return ctx },
		},
	}

	// Mount API routes on /api/v1 with two sub-groups:
	// 1. The event stream, limited per client address.
	// 2. JSON routes, limited per project.
	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Project())

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimitByIP(ctx, streamConnectRate, streamConnectBurst))
			registerStreamRoutes(r, emitter)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(ctx, cfg.Ingest.Rate, cfg.Ingest.Burst))

			apiConfig := huma.DefaultConfig("Agentboard API", "1.0.0")
			apiConfig.Servers = []*huma.Server{
				{URL: "/api/v1"},
			}
			api := humachi.New(r, apiConfig)
			registerAPIRoutes(api, svc, store, broker)
		})
	})

	// WebSocket routes.
	router.Route("/ws", func(r chi.Router) {
		r.Use(middleware.RateLimitByIP(ctx, streamConnectRate, streamConnectBurst))
		registerWSRoutes(r, hub)
	})

	router.Get("/healthz", s.healthz)

	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Emitter returns the stream emitter serving both transports.
func (s *Server) Emitter() *stream.Emitter {
	return s.emitter
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "application/json")

	if err := s.store.Ping(ctx); err != nil {
		log.Error().Err(err).Msg("healthz: store")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"unavailable","component":"store"}`))
		return
	}
	if p, ok := s.broker.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			log.Error().Err(err).Msg("healthz: broker")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable","component":"broker"}`))
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// originPatterns converts CORS origins to the host patterns websocket.Accept
// matches against.
func originPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			patterns = append(patterns, o)
			continue
		}
		u, err := url.Parse(o)
		if err != nil || u.Host == "" {
			patterns = append(patterns, o)
			continue
		}
		patterns = append(patterns, u.Host)
	}
	return patterns
}

// Start begins listening for HTTP requests.
func (s *Server) Start(_ context.Context) error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.Start: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}
