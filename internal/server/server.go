package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/reeldeck/reeldeck/internal/errors"
	"github.com/reeldeck/reeldeck/pkg/catalog"
	"github.com/reeldeck/reeldeck/pkg/identity"
	"github.com/reeldeck/reeldeck/pkg/middleware"
	"github.com/reeldeck/reeldeck/pkg/session"
)

// Config wires the server's collaborators.
type Config struct {
	// Addr is the listen address.
	Addr string

	// Coordinator drives the session modes.
	Coordinator *session.Coordinator

	// Provider handles interactive sign-in and sign-out.
	Provider identity.Provider

	// Catalog serves title lookups. Optional; when nil the catalog
	// routes are not mounted.
	Catalog *catalog.Client
}

// Option configures Server behavior.
type Option func(*serverConfig)

type serverConfig struct {
	logger         *slog.Logger
	metricsEnabled bool
	tracingEnabled bool
}

// WithLogger sets the logger.
// Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *serverConfig) {
		c.logger = logger
	}
}

// WithMetrics toggles the Prometheus middleware and the /metrics endpoint.
// Default: enabled.
func WithMetrics(enabled bool) Option {
	return func(c *serverConfig) {
		c.metricsEnabled = enabled
	}
}

// WithTracing toggles the OpenTelemetry middleware.
// Default: enabled.
func WithTracing(enabled bool) Option {
	return func(c *serverConfig) {
		c.tracingEnabled = enabled
	}
}

// Server is the reeldeck HTTP server.
type Server struct {
	coord    *session.Coordinator
	sel      *session.Selectors
	provider identity.Provider
	catalog  *catalog.Client

	router   chi.Router
	http     *http.Server
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// New creates a server. Routes are mounted immediately; call Start to
// listen.
func New(cfg Config, opts ...Option) *Server {
	scfg := &serverConfig{
		logger:         slog.Default(),
		metricsEnabled: true,
		tracingEnabled: true,
	}
	for _, opt := range opts {
		opt(scfg)
	}

	s := &Server{
		coord:    cfg.Coordinator,
		sel:      session.NewSelectors(cfg.Coordinator),
		provider: cfg.Provider,
		catalog:  cfg.Catalog,
		logger:   scfg.logger.With("component", "http_server"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	if scfg.tracingEnabled {
		r.Use(middleware.OpenTelemetry(
			middleware.WithRequestFilter(func(req *http.Request) bool {
				return req.URL.Path != "/healthz" && req.URL.Path != "/metrics"
			})))
	}
	if scfg.metricsEnabled {
		r.Use(middleware.Prometheus())
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Get("/healthz", s.handleHealth)
	r.Get("/ws", s.handleWebSocket)

	r.Route("/api", func(r chi.Router) {
		r.Get("/session", s.handleSession)
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/logout", s.handleLogout)

		r.Get("/data", s.handleData)
		r.Delete("/data", s.handleClearData)

		r.Post("/watchlist", s.handleAddWatchlist)
		r.Delete("/watchlist/{contentID}", s.handleRemoveWatchlist)

		r.Post("/liked", s.handleAddLiked)
		r.Delete("/liked/{contentID}", s.handleRemoveLiked)

		r.Post("/hidden", s.handleAddHidden)
		r.Delete("/hidden/{contentID}", s.handleRemoveHidden)

		r.Post("/lists", s.handleCreateList)
		r.Patch("/lists/{listID}", s.handleUpdateList)
		r.Delete("/lists/{listID}", s.handleDeleteList)
		r.Post("/lists/{listID}/items", s.handleAddToList)
		r.Delete("/lists/{listID}/items/{contentID}", s.handleRemoveFromList)

		r.Patch("/preferences", s.handlePreferences)

		if s.catalog != nil {
			r.Route("/catalog", func(r chi.Router) {
				r.Get("/search", s.handleCatalogSearch)
				r.Get("/trending/{type}", s.handleCatalogTrending)
				r.Get("/{type}/{id}", s.handleCatalogDetails)
			})
		}
	})

	s.router = r
	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Router returns the mounted handler, for tests and embedding.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start listens and serves until Shutdown is called or the listener fails.
func (s *Server) Start() error {
	s.logger.Info("server listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.New("E500").
			WithDetail("Could not listen on " + s.http.Addr).
			Wrap(err)
	}
	return nil
}

// Shutdown drains connections and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server shutting down")
	return s.http.Shutdown(ctx)
}
