// Package api serves the public HTTP surface: video upload, request status
// and cancellation, plus service info and health.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/amillerrr/video2music/internal/auth"
	"github.com/amillerrr/video2music/internal/config"
	"github.com/amillerrr/video2music/internal/health"
	"github.com/amillerrr/video2music/internal/metrics"
	"github.com/amillerrr/video2music/internal/orchestrator"
)

// Server configuration constants
const (
	ReadTimeout       = 5 * time.Minute
	ReadHeaderTimeout = 10 * time.Second
	// inline dispatch runs the whole pipeline before the upload responds
	WriteTimeout   = 15 * time.Minute
	IdleTimeout    = 120 * time.Second
	MaxHeaderBytes = 1 << 20 // 1 MB
)

// Server represents the HTTP server for the API.
type Server struct {
	httpServer  *http.Server
	cfg         *config.Config
	log         *slog.Logger
	rateLimiter *auth.RateLimiter
}

// ServerConfig holds dependencies for the server.
type ServerConfig struct {
	Config        *config.Config
	Logger        *slog.Logger
	Store         RequestStore
	Videos        VideoStore
	Dispatcher    orchestrator.Dispatcher
	Verifier      *auth.Verifier
	RateLimiter   *auth.RateLimiter
	HealthChecker *health.Checker
}

// NewServer creates a new API server.
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg.Verifier == nil {
		return nil, errors.New("api: token verifier is required")
	}

	handler := NewRouter(cfg)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Config.API.Port,
		Handler:           otelhttp.NewHandler(handler, "video2music-api"),
		ReadTimeout:       ReadTimeout,
		ReadHeaderTimeout: ReadHeaderTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
		MaxHeaderBytes:    MaxHeaderBytes,
	}

	return &Server{
		httpServer:  httpServer,
		cfg:         cfg.Config,
		log:         cfg.Logger,
		rateLimiter: cfg.RateLimiter,
	}, nil
}

// NewRouter builds the route table wrapped in CORS and request metrics.
func NewRouter(cfg *ServerConfig) http.Handler {
	handlers := NewHandlers(&HandlersConfig{
		Config:     cfg.Config,
		Logger:     cfg.Logger,
		Store:      cfg.Store,
		Videos:     cfg.Videos,
		Dispatcher: cfg.Dispatcher,
	})

	mux := http.NewServeMux()

	// Public endpoints
	mux.HandleFunc("GET /{$}", handlers.InfoHandler)
	if cfg.HealthChecker != nil {
		mux.HandleFunc("GET /health", cfg.HealthChecker.Handler())
		mux.HandleFunc("GET /health/deep", cfg.HealthChecker.DeepHandler())
	}

	// Protected endpoints
	authMiddleware := cfg.Verifier.Middleware(cfg.RateLimiter)
	mux.HandleFunc("POST /requests", authMiddleware(handlers.CreateRequestHandler))
	mux.HandleFunc("GET /requests", authMiddleware(handlers.ListRequestsHandler))
	mux.HandleFunc("GET /requests/{id}", authMiddleware(handlers.GetRequestHandler))
	mux.HandleFunc("DELETE /requests/{id}", authMiddleware(handlers.CancelRequestHandler))

	// Metrics endpoint (internal only)
	mux.Handle("GET /metrics", metrics.Handler())

	return MetricsMiddleware(CORSMiddleware(cfg.Config.CORS.AllowedOrigins)(mux))
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.log.Info("Starting API server", "port", s.cfg.API.Port)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down API server...")

	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}

	return s.httpServer.Shutdown(ctx)
}
