// Package admin serves the management API: gateway document reads and
// writes, usage stats, request history, the live provider event stream,
// metrics, and operational endpoints. It listens on its own loopback
// address, separate from the proxy's client-facing port.
package admin

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"vibehub/gateway/pkg/config"
	"vibehub/gateway/pkg/history"
	"vibehub/gateway/pkg/proxy/middleware"
	"vibehub/gateway/pkg/stats"
	"vibehub/gateway/pkg/telemetry/metrics"
	"vibehub/gateway/pkg/updater"
)

// Server is the management HTTP server.
type Server struct {
	addr    string
	store   *config.Store
	stats   *stats.Manager
	archive *history.Archive
	updates *updater.Updater
	metrics *metrics.Collector
	broker  *EventBroker

	metricsPath string

	httpServer   *http.Server
	shutdownOnce sync.Once
}

// Options carries the optional admin server collaborators. Nil fields
// disable the corresponding endpoints.
type Options struct {
	// Archive serves GET /api/history/recent. Nil disables it.
	Archive *history.Archive

	// Updates serves GET /api/updates/check. Nil disables it.
	Updates *updater.Updater

	// Metrics serves the scrape endpoint at MetricsPath. Nil disables it.
	Metrics *metrics.Collector

	// MetricsPath is the scrape endpoint path. Defaults to "/metrics".
	MetricsPath string
}

// NewServer creates a management server. The returned server's Broker
// should be wired into the proxy as its notifier.
func NewServer(addr string, store *config.Store, statsManager *stats.Manager, opts Options) *Server {
	if opts.MetricsPath == "" {
		opts.MetricsPath = config.DefaultMetricsPath
	}
	return &Server{
		addr:        addr,
		store:       store,
		stats:       statsManager,
		archive:     opts.Archive,
		updates:     opts.Updates,
		metrics:     opts.Metrics,
		broker:      NewEventBroker(),
		metricsPath: opts.MetricsPath,
	}
}

// Broker returns the server's event broker for wiring into the proxy.
func (s *Server) Broker() *EventBroker {
	return s.broker
}

// Handler builds the management routes with the standard middleware
// chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/gateway/config", s.handleGetConfig)
	mux.HandleFunc("PUT /api/gateway/config", s.handlePutConfig)
	mux.HandleFunc("GET /api/gateway/stats", s.handleStats)
	mux.HandleFunc("GET /api/events", s.handleEvents)
	mux.HandleFunc("POST /api/workspaces/scan", s.handleScan)

	if s.archive != nil {
		mux.HandleFunc("GET /api/history/recent", s.handleHistoryRecent)
	}
	if s.updates != nil {
		mux.HandleFunc("GET /api/updates/check", s.handleUpdateCheck)
	}
	if s.metrics != nil {
		mux.Handle("GET "+s.metricsPath, s.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.RequestIDMiddleware(handler)
	handler = middleware.RecoveryMiddleware(handler)
	return handler
}

// Start runs the management server until the context is cancelled or
// the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("admin server starting", "addr", s.addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown()
	case err := <-errCh:
		return err
	}
}

// Shutdown stops the management server gracefully and disconnects all
// event stream subscribers.
func (s *Server) Shutdown() error {
	var err error
	s.shutdownOnce.Do(func() {
		slog.Info("admin server shutting down")
		s.broker.Close()
		if s.httpServer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			err = s.httpServer.Shutdown(ctx)
		}
	})
	return err
}
