package voteradar

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/redis/go-redis/v9"

	"github.com/voteradar/voteradar/internal/config"
	"github.com/voteradar/voteradar/internal/database"
	"github.com/voteradar/voteradar/internal/llm"
	"github.com/voteradar/voteradar/internal/predict"
)

var verbose bool

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show debug logging")
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func openDB(ctx context.Context, cfg *config.Config) (*database.DB, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("no database configured: set DATABASE_URL or databaseUrl in the config file")
	}
	return database.New(ctx, cfg.DatabaseURL)
}

// newRegistry builds the failover registry from the configured provider list.
// Providers whose key env var is unset stay in the list but report
// unconfigured; the registry skips them.
func newRegistry(cfg *config.Config, logger *slog.Logger) (*llm.Registry, error) {
	clients := make([]llm.Client, 0, len(cfg.Providers))
	for _, p := range cfg.Providers {
		c, err := llm.NewClient(p.Name, p.Model, os.Getenv(p.APIKeyEnv))
		if err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return llm.NewRegistry(clients, llm.WithLogger(logger)), nil
}

// openCache returns the Redis-backed prediction cache, or nil when no Redis
// is configured. A nil cache simply means every prediction is computed.
func openCache(cfg *config.Config) (*predict.Cache, error) {
	if cfg.RedisURL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return predict.NewCache(redis.NewClient(opts), cfg.Cache.TTL), nil
}

// memberLister narrows *database.DB for target selection, mostly so tests
// can fake it.
type memberLister interface {
	ListMembers(ctx context.Context) ([]database.Member, error)
	ListPausedRuns(ctx context.Context) ([]string, error)
}

func stdoutIsTTY() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// colorDecision renders a decision with the conventional colors.
func colorDecision(decision string) string {
	switch decision {
	case database.DecisionFor:
		return color.GreenString(decision)
	case database.DecisionAgainst:
		return color.RedString(decision)
	case database.DecisionAbstain:
		return color.YellowString(decision)
	default:
		return decision
	}
}
