// Package proxy implements the gateway's reverse-proxy server: one
// concurrent handler per inbound request, provider-kind classification,
// ordered failover across configured providers, and verbatim streaming
// of the accepted upstream response.
package proxy

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"vibehub/gateway/pkg/config"
	"vibehub/gateway/pkg/proxy/middleware"
	"vibehub/gateway/pkg/telemetry/metrics"
	"vibehub/gateway/pkg/tokens"
)

// Server is the gateway proxy listener. It reads one config snapshot per
// request, so a concurrent config replacement never affects a request
// already in flight.
type Server struct {
	store          *config.Store
	recorder       Recorder
	notifier       Notifier
	metrics        *metrics.Collector
	estimator      *tokens.Estimator
	client         *http.Client
	attemptTimeout time.Duration

	httpServer   *http.Server
	shutdownOnce sync.Once
	mu           sync.Mutex
	isRunning    bool
}

// Options configures optional server collaborators. Zero values are
// valid: a nil Notifier discards events, a nil Recorder drops logs, a
// nil Metrics collector disables instrumentation, and a zero
// AttemptTimeout disables the per-attempt bound.
type Options struct {
	// Notifier receives provider status events during the fallback loop.
	Notifier Notifier

	// Recorder receives one RequestLog per attempted candidate.
	Recorder Recorder

	// Metrics instruments attempts and fallbacks.
	Metrics *metrics.Collector

	// AttemptTimeout bounds one provider attempt from dial through
	// response headers. Response body streaming is not bounded, so
	// long-lived SSE streams survive; only a hung connect or a silent
	// upstream trips it.
	AttemptTimeout time.Duration

	// Client overrides the outbound HTTP client, used by tests.
	Client *http.Client
}

// NewServer creates a proxy server bound to a config store.
func NewServer(store *config.Store, opts Options) *Server {
	notifier := opts.Notifier
	if notifier == nil {
		notifier = NopNotifier{}
	}
	recorder := opts.Recorder
	if recorder == nil {
		recorder = MultiRecorder()
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				ForceAttemptHTTP2:   true,
			},
		}
	}

	return &Server{
		store:          store,
		recorder:       recorder,
		notifier:       notifier,
		metrics:        opts.Metrics,
		estimator:      tokens.NewEstimator(),
		client:         client,
		attemptTimeout: opts.AttemptTimeout,
	}
}

// Handler returns the complete request pipeline: recovery, request-id
// and logging middleware around the proxy handler. Every method on
// every path is proxied.
func (s *Server) Handler() http.Handler {
	var handler http.Handler = http.HandlerFunc(s.handleProxy)
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.RequestIDMiddleware(handler)
	handler = middleware.RecoveryMiddleware(handler)
	return handler
}

// Start starts the HTTP listener on the port from the current gateway
// document and blocks until the context is cancelled or the listener
// fails. The port is read once at startup; changing it in the document
// requires a restart.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("proxy server is already running")
	}
	s.isRunning = true

	port := s.store.Get().Port
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("0.0.0.0:%d", port),
		Handler: s.Handler(),
	}
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		slog.Info("gateway proxy listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("proxy server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}

// Shutdown gracefully stops the listener, waiting for in-flight
// requests to drain.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		srv := s.httpServer
		s.isRunning = false
		s.mu.Unlock()

		if srv == nil {
			return
		}

		shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			shutdownErr = fmt.Errorf("proxy server shutdown error: %w", err)
		}
		slog.Info("gateway proxy stopped")
	})

	return shutdownErr
}
