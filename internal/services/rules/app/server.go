// Package server wires the rules runtime and HTTP lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/louisbranch/fulcrum/internal/platform/httpx"
	"github.com/louisbranch/fulcrum/internal/platform/random"
	"github.com/louisbranch/fulcrum/internal/platform/timeouts"
	rulesapi "github.com/louisbranch/fulcrum/internal/services/rules/api/http"
	"github.com/louisbranch/fulcrum/internal/services/rules/content"
	"github.com/louisbranch/fulcrum/internal/services/rules/domain"
)

// Config defines the inputs for the rules server.
type Config struct {
	Addr   string
	Seed   int64
	Logger *zap.Logger
}

// Server hosts the rules HTTP API.
type Server struct {
	listener   net.Listener
	httpServer *http.Server
	logger     *zap.Logger
	seed       int64
}

// NewServer loads the rule tables and binds the listener.
func NewServer(cfg Config) (*Server, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, errors.New("listen address is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	handler, seed, err := NewHandler(cfg.Seed, logger)
	if err != nil {
		return nil, err
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	return &Server{
		listener:   listener,
		httpServer: httpx.NewServer(handler),
		logger:     logger,
		seed:       seed,
	}, nil
}

// NewHandler builds the instrumented rules handler. A zero seed draws a
// fresh one; the seed in use is returned so runs can be replayed.
func NewHandler(seed int64, logger *zap.Logger) (http.Handler, int64, error) {
	tables, err := content.Load()
	if err != nil {
		return nil, 0, fmt.Errorf("load rule tables: %w", err)
	}
	src, seed, err := random.FromConfig(seed)
	if err != nil {
		return nil, 0, err
	}
	api := rulesapi.NewHandler(tables, domain.NewRoller(src), logger)
	handler := httpx.Chain(
		otelhttp.NewHandler(api, "rules"),
		httpx.RequestID("rules"),
		httpx.RecoverPanic(logger),
		httpx.AccessLog(logger),
	)
	return handler, seed, nil
}

// Addr returns the listener address for the server.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run creates and serves a rules server until context cancellation.
func Run(ctx context.Context, cfg Config) error {
	server, err := NewServer(cfg)
	if err != nil {
		return fmt.Errorf("init rules server: %w", err)
	}
	defer server.Close()
	return server.Serve(ctx)
}

// Serve runs the HTTP server until ctx ends.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	s.logger.Info("rules server listening", zap.String("addr", s.Addr()), zap.Int64("seed", s.seed))
	return httpx.Serve(ctx, s.httpServer, s.listener, timeouts.Shutdown)
}

// Close releases the listener.
func (s *Server) Close() {
	if s == nil || s.listener == nil {
		return
	}
	_ = s.listener.Close()
}
