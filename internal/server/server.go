// Package server exposes the prompt assistant and web UI status over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/samadriaz9/ZeroTraceGPT-Image-Creator/internal/config"
	"github.com/samadriaz9/ZeroTraceGPT-Image-Creator/internal/logging"
	"github.com/samadriaz9/ZeroTraceGPT-Image-Creator/internal/server/handlers"
)

// Server is the zerotrace HTTP API server.
type Server struct {
	cfg       *config.Config
	http      *http.Server
	engine    *gin.Engine
	assistant handlers.Assistant

	// assistantErr explains why assistant is nil.
	assistantErr error
}

// Option configures a Server.
type Option func(*Server)

// WithAssistantError records why the prompt assistant could not be built.
// The prompt endpoints quote it in their 503 response.
func WithAssistantError(err error) Option {
	return func(s *Server) {
		s.assistantErr = err
	}
}

// New creates a new Server. assistant may be nil when no API key is set;
// the prompt endpoints then answer 503.
func New(cfg *config.Config, assistant handlers.Assistant, opts ...Option) *Server {
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:       cfg,
		engine:    gin.New(),
		assistant: assistant,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.engine.Use(requestID(), accessLog(), gin.Recovery())
	s.registerRoutes()

	s.http = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start starts the server and blocks until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until the context is cancelled, then shuts down with a
// five second grace period.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	logger := logging.Component("server")
	logger.WithField("addr", ln.Addr().String()).Info("zerotrace server listening")
	if s.assistant == nil {
		logger.WithError(s.assistantErr).Warn("prompt assistant disabled")
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.http.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("server shutdown error")
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
