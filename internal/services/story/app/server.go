// Package server wires the story runtime: encounter store, peer clients,
// combat façade and HTTP lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/net/netutil"

	"github.com/louisbranch/fulcrum/internal/platform/httpx"
	"github.com/louisbranch/fulcrum/internal/platform/logging"
	"github.com/louisbranch/fulcrum/internal/platform/random"
	"github.com/louisbranch/fulcrum/internal/platform/timeouts"
	storyapi "github.com/louisbranch/fulcrum/internal/services/story/api/http"
	"github.com/louisbranch/fulcrum/internal/services/story/combat"
	"github.com/louisbranch/fulcrum/internal/services/story/integration/entity"
	"github.com/louisbranch/fulcrum/internal/services/story/integration/httpjson"
	"github.com/louisbranch/fulcrum/internal/services/story/integration/rules"
	"github.com/louisbranch/fulcrum/internal/services/story/storage/sqlite"
	"github.com/louisbranch/fulcrum/internal/services/story/stream"
)

// Config defines the inputs for the story server.
type Config struct {
	Addr         string
	DBPath       string
	RulesURL     string
	CharacterURL string
	WorldURL     string
	CallTimeout  time.Duration
	MaxNPCChain  int
	Seed         int64
	// MaxConnections caps open client connections, stream watchers included.
	// Zero means DefaultMaxConnections.
	MaxConnections int
	Logger         *zap.Logger
}

// DefaultMaxConnections bounds concurrent connections when unset.
const DefaultMaxConnections = 512

// Server hosts the story HTTP API.
type Server struct {
	listener   net.Listener
	httpServer *http.Server
	store      *sqlite.Store
	logger     *zap.Logger
	seed       int64
}

// NewServer opens the encounter store, builds the combat façade and binds
// the listener.
func NewServer(ctx context.Context, cfg Config) (*Server, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, errors.New("listen address is required")
	}
	logger := logging.OrNop(cfg.Logger)

	store, err := openStore(ctx, cfg.DBPath)
	if err != nil {
		return nil, err
	}
	handler, seed, err := NewHandler(cfg, store, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	maxConns := cfg.MaxConnections
	if maxConns <= 0 {
		maxConns = DefaultMaxConnections
	}
	listener = netutil.LimitListener(listener, maxConns)

	return &Server{
		listener:   listener,
		httpServer: httpx.NewServer(handler),
		store:      store,
		logger:     logger,
		seed:       seed,
	}, nil
}

func openStore(ctx context.Context, path string) (*sqlite.Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("database path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}
	store, err := sqlite.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("open encounter store: %w", err)
	}
	return store, nil
}

// NewHandler builds the instrumented story handler over store. A zero seed
// draws a fresh one; the seed in use is returned so runs can be replayed.
func NewHandler(cfg Config, store *sqlite.Store, logger *zap.Logger) (http.Handler, int64, error) {
	logger = logging.OrNop(logger)
	callTimeout := cfg.CallTimeout
	if callTimeout <= 0 {
		callTimeout = timeouts.OutboundCall
	}
	peerHTTP := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	opts := []httpjson.Option{httpjson.WithHTTPClient(peerHTTP), httpjson.WithTimeout(callTimeout)}

	rulesClient, err := rules.New(cfg.RulesURL, opts...)
	if err != nil {
		return nil, 0, fmt.Errorf("rules client: %w", err)
	}
	entities, err := entity.New(cfg.CharacterURL, cfg.WorldURL, opts...)
	if err != nil {
		return nil, 0, fmt.Errorf("entity client: %w", err)
	}
	src, seed, err := random.FromConfig(cfg.Seed)
	if err != nil {
		return nil, 0, err
	}

	hub := stream.NewHub(logger.Named("stream"))
	svc, err := combat.New(combat.Deps{
		Store:       store,
		Rules:       rulesClient,
		Entities:    entities,
		Random:      src,
		Publisher:   hub,
		Logger:      logger.Named("combat"),
		MaxNPCChain: cfg.MaxNPCChain,
	})
	if err != nil {
		return nil, 0, err
	}

	api := storyapi.NewHandler(svc, stream.NewHandler(hub, svc, logger.Named("stream")), logger)
	handler := httpx.Chain(
		otelhttp.NewHandler(api, "story"),
		httpx.RequestID("story"),
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

// Run creates and serves a story server until context cancellation.
func Run(ctx context.Context, cfg Config) error {
	server, err := NewServer(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init story server: %w", err)
	}
	defer server.Close()
	return server.Serve(ctx)
}

// Serve runs the HTTP server until ctx ends.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	s.logger.Info("story server listening", zap.String("addr", s.Addr()), zap.Int64("seed", s.seed))
	return httpx.Serve(ctx, s.httpServer, s.listener, timeouts.Shutdown)
}

// Close releases the listener and the encounter store.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn("close encounter store", zap.Error(err))
		}
	}
}
