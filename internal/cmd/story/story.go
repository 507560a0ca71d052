// Package story parses story command flags and composes the service entrypoint.
package story

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"time"

	entrypoint "github.com/louisbranch/fulcrum/internal/platform/cmd"
	"github.com/louisbranch/fulcrum/internal/platform/discovery"
	"github.com/louisbranch/fulcrum/internal/platform/logging"
	server "github.com/louisbranch/fulcrum/internal/services/story/app"
)

// Config holds story command configuration.
type Config struct {
	Port         int           `env:"FULCRUM_STORY_PORT" envDefault:"8003"`
	Addr         string        `env:"FULCRUM_STORY_ADDR"`
	DBPath       string        `env:"FULCRUM_STORY_DB_PATH" envDefault:"data/story.db"`
	RulesURL     string        `env:"FULCRUM_RULES_URL"`
	CharacterURL string        `env:"FULCRUM_CHARACTER_URL"`
	WorldURL     string        `env:"FULCRUM_WORLD_URL"`
	CallTimeout  time.Duration `env:"FULCRUM_STORY_CALL_TIMEOUT" envDefault:"5s"`
	MaxNPCChain  int           `env:"FULCRUM_STORY_MAX_NPC_CHAIN" envDefault:"16"`
	Seed         int64         `env:"FULCRUM_STORY_SEED"`
	MaxConns     int           `env:"FULCRUM_STORY_MAX_CONNECTIONS" envDefault:"512"`

	Log logging.Config
}

// ParseConfig parses environment and flags into a Config. Unset peer URLs
// fall back to the local discovery defaults.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.IntVar(&cfg.Port, "port", cfg.Port, "story HTTP port")
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "story HTTP listen address (overrides port)")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "encounter SQLite database path")
	fs.StringVar(&cfg.RulesURL, "rules-url", cfg.RulesURL, "rules service base URL")
	fs.StringVar(&cfg.CharacterURL, "character-url", cfg.CharacterURL, "character service base URL")
	fs.StringVar(&cfg.WorldURL, "world-url", cfg.WorldURL, "world service base URL")
	fs.DurationVar(&cfg.CallTimeout, "call-timeout", cfg.CallTimeout, "deadline for each call to a peer service")
	fs.IntVar(&cfg.MaxNPCChain, "max-npc-chain", cfg.MaxNPCChain, "NPC turns played after one player action")
	fs.Int64Var(&cfg.Seed, "seed", cfg.Seed, "random seed for placement and NPC choices; 0 draws a fresh seed")
	fs.IntVar(&cfg.MaxConns, "max-connections", cfg.MaxConns, "open client connections allowed, stream watchers included")
	fs.StringVar(&cfg.Log.Level, "log-level", cfg.Log.Level, "log level")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}

	cfg.RulesURL = discovery.OrDefaultHTTPBaseURL(cfg.RulesURL, discovery.ServiceRules)
	cfg.CharacterURL = discovery.OrDefaultHTTPBaseURL(cfg.CharacterURL, discovery.ServiceCharacter)
	cfg.WorldURL = discovery.OrDefaultHTTPBaseURL(cfg.WorldURL, discovery.ServiceWorld)
	if cfg.CallTimeout <= 0 {
		return Config{}, fmt.Errorf("call timeout must be positive, got %s", cfg.CallTimeout)
	}
	if cfg.MaxNPCChain < 1 {
		return Config{}, fmt.Errorf("max npc chain must be at least 1, got %d", cfg.MaxNPCChain)
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

// Run starts the story service.
func Run(ctx context.Context, cfg Config) error {
	logger, err := logging.New(entrypoint.ServiceStory, cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceStory, func(ctx context.Context) error {
		if err := server.Run(ctx, server.Config{
			Addr:           cfg.ListenAddr(),
			DBPath:         cfg.DBPath,
			RulesURL:       cfg.RulesURL,
			CharacterURL:   cfg.CharacterURL,
			WorldURL:       cfg.WorldURL,
			CallTimeout:    cfg.CallTimeout,
			MaxNPCChain:    cfg.MaxNPCChain,
			Seed:           cfg.Seed,
			MaxConnections: cfg.MaxConns,
			Logger:         logger,
		}); err != nil {
			return fmt.Errorf("serve story: %w", err)
		}
		return nil
	})
}
