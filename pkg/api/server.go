package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"sms-transactions/pkg/auth"
	"sms-transactions/pkg/events"
	"sms-transactions/pkg/logging"
	"sms-transactions/pkg/metrics"
	"sms-transactions/pkg/store"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// EventSink accepts change events after successful mutations.
type EventSink interface {
	Enqueue(ctx context.Context, event events.Event) error
}

// Server exposes the transaction store over HTTP.
type Server struct {
	store   store.Store
	guard   *auth.Guard
	events  EventSink
	metrics metrics.MetricsCollector
	logger  *logging.Logger
	config  ServerConfig

	root    *mux.Router
	api     *mux.Router
	handler http.Handler
	server  *http.Server
}

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	// Address to listen on (e.g., ":8000")
	Address string

	// ReadTimeout for HTTP requests
	ReadTimeout time.Duration

	// WriteTimeout for HTTP responses
	WriteTimeout time.Duration

	// IdleTimeout for keep-alive connections
	IdleTimeout time.Duration

	// MaxBodyBytes caps request bodies (default: 1 MiB)
	MaxBodyBytes int64

	// MetricsHandler is served at /metrics when set
	MetricsHandler http.Handler

	// Events receives change events; nil disables them
	Events EventSink

	Metrics metrics.MetricsCollector
	Logger  *logging.Logger
}

// DefaultServerConfig returns a default configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Address:      ":8000",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
		MaxBodyBytes: 1 << 20,
	}
}

// NewServer creates an API server backed by s. Every transaction route is
// guarded by guard.
func NewServer(s store.Store, guard *auth.Guard, config ServerConfig) *Server {
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = 1 << 20
	}

	srv := &Server{
		store:   s,
		guard:   guard,
		events:  config.Events,
		metrics: metrics.OrNoOp(config.Metrics),
		logger:  logging.OrNop(config.Logger).Named("api"),
		config:  config,
	}

	srv.api = mux.NewRouter()
	for _, path := range []string{"/transactions", "/transactions/"} {
		srv.api.HandleFunc(path, srv.handleList).Methods(http.MethodGet)
		srv.api.HandleFunc(path, srv.handleCreate).Methods(http.MethodPost)
	}
	for _, path := range []string{"/transactions/{id}", "/transactions/{id}/"} {
		srv.api.HandleFunc(path, srv.handleGet).Methods(http.MethodGet)
		srv.api.HandleFunc(path, srv.handleUpdate).Methods(http.MethodPut)
		srv.api.HandleFunc(path, srv.handleDelete).Methods(http.MethodDelete)
	}
	srv.api.NotFoundHandler = http.HandlerFunc(srv.handleUnknown)
	srv.api.MethodNotAllowedHandler = http.HandlerFunc(srv.handleUnknown)

	// operator endpoints bypass the guard
	srv.root = mux.NewRouter()
	srv.root.HandleFunc("/health", srv.handleHealth).Methods(http.MethodGet)
	if config.MetricsHandler != nil {
		srv.root.Handle("/metrics", config.MetricsHandler).Methods(http.MethodGet)
	}
	srv.root.PathPrefix("/").Handler(guard.Middleware(srv.api))

	srv.handler = srv.requestID(srv.observe(cors(srv.recoverPanic(srv.root))))

	srv.server = &http.Server{
		Addr:         config.Address,
		Handler:      srv.handler,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return srv
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves until Stop is called. It returns nil after a
// graceful shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.Info("server listening", zap.String("address", s.config.Address))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
