// Package rules parses rules command flags and composes the service entrypoint.
package rules

import (
	"context"
	"flag"
	"fmt"
	"strings"

	entrypoint "github.com/louisbranch/fulcrum/internal/platform/cmd"
	"github.com/louisbranch/fulcrum/internal/platform/logging"
	server "github.com/louisbranch/fulcrum/internal/services/rules/app"
)

// Config holds rules command configuration.
type Config struct {
	Port int    `env:"FULCRUM_RULES_PORT" envDefault:"8000"`
	Addr string `env:"FULCRUM_RULES_ADDR"`
	Seed int64  `env:"FULCRUM_RULES_SEED"`

	Log logging.Config
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.IntVar(&cfg.Port, "port", cfg.Port, "rules HTTP port")
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "rules HTTP listen address (overrides port)")
	fs.Int64Var(&cfg.Seed, "seed", cfg.Seed, "dice seed; 0 draws a fresh seed")
	fs.StringVar(&cfg.Log.Level, "log-level", cfg.Log.Level, "log level")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ListenAddr resolves the address the server binds to.
func (c Config) ListenAddr() string {
	if addr := strings.TrimSpace(c.Addr); addr != "" {
		return addr
	}
	return fmt.Sprintf(":%d", c.Port)
}

// Run starts the rules service.
func Run(ctx context.Context, cfg Config) error {
	logger, err := logging.New(entrypoint.ServiceRules, cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceRules, func(ctx context.Context) error {
		if err := server.Run(ctx, server.Config{
			Addr:   cfg.ListenAddr(),
			Seed:   cfg.Seed,
			Logger: logger,
		}); err != nil {
			return fmt.Errorf("serve rules: %w", err)
		}
		return nil
	})
}
