package analyzer

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/amillerrr/video2music/internal/metrics"
)

// Server configuration constants
const (
	ReadHeaderTimeout = 10 * time.Second
	WriteTimeout      = 15 * time.Minute
	IdleTimeout       = 120 * time.Second
)

// Server hosts the analysis function.
type Server struct {
	httpServer *http.Server
	log        *slog.Logger
}

// NewServer creates a server listening on port.
func NewServer(port string, handler *Handler, log *slog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/", handler)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy"}`))
	})
	mux.Handle("GET /metrics", metrics.Handler())

	return &Server{
		httpServer: &http.Server{
			Addr:              ":" + port,
			Handler:           mux,
			ReadHeaderTimeout: ReadHeaderTimeout,
			WriteTimeout:      WriteTimeout,
			IdleTimeout:       IdleTimeout,
		},
		log: log,
	}
}

// Start blocks serving requests until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info("Starting analysis function", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down analysis function...")
	return s.httpServer.Shutdown(ctx)
}
