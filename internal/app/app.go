// Package app wires configuration into the long-lived collaborators shared
// by the binaries.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/joho/godotenv"

	"reddit-alpha-agent/internal/alpha"
	"reddit-alpha-agent/internal/backtest"
	"reddit-alpha-agent/internal/cache"
	"reddit-alpha-agent/internal/enrich"
	"reddit-alpha-agent/internal/finter"
	"reddit-alpha-agent/internal/finter/finterobs"
	"reddit-alpha-agent/internal/interfaces"
	"reddit-alpha-agent/internal/logger"
	"reddit-alpha-agent/internal/notify"
	"reddit-alpha-agent/internal/pipeline"
	"reddit-alpha-agent/internal/reddit"
	"reddit-alpha-agent/internal/runlog"
	"reddit-alpha-agent/internal/sentiment"
	"reddit-alpha-agent/internal/server"
	"reddit-alpha-agent/internal/server/handlers"
	"reddit-alpha-agent/internal/store"
)

// Init loads .env and installs the logger.
func Init() error {
	_ = godotenv.Load()
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// LoadConfig reads the YAML file at path and logs failures.
func LoadConfig(ctx context.Context, path string) (*store.Config, error) {
	cfg, err := store.LoadConfig(path)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err, "path", path)
		return nil, err
	}
	return cfg, nil
}

type App struct {
	Config   *store.Config
	Cache    cache.Cache
	Platform interfaces.Platform
	Scraper  *reddit.Scraper
	Calendar alpha.Calendar
	Engine   *sentiment.Engine
	RunLog   runlog.Store
}

func Build(ctx context.Context, cfg *store.Config) (*App, error) {
	c, err := cache.New(ctx, cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	platform := finterobs.Wrap(finter.New(cfg.Finter, c))

	var calendar alpha.Calendar = platform
	if cfg.Finter.Calendar == "WEEKDAY" {
		calendar = alpha.WeekdayCalendar{}
	}

	mapping, err := sentiment.LoadMapping(ctx, cfg.Sentiment, platform, time.Now().UTC())
	if err != nil {
		logger.Warn(ctx, "Falling back to built-in ticker mapping", "error", err)
		mapping = sentiment.DefaultMapping()
	}

	engine := sentiment.NewEngine(mapping)

	runs, err := runlog.New(ctx, cfg.RunLog)
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("run log: %w", err)
	}

	logger.Info(ctx, "Application initialized",
		"reddit_source", cfg.Reddit.Source,
		"calendar", cfg.Finter.Calendar,
		"mapping_size", engine.MappingSize(),
		"cache", cfg.Cache.Backend,
		"runlog", cfg.RunLog.Backend,
		"dry_run", cfg.Pipeline.DryRun)

	return &App{
		Config:   cfg,
		Cache:    c,
		Platform: platform,
		Scraper:  reddit.NewScraper(cfg.Reddit),
		Calendar: calendar,
		Engine:   engine,
		RunLog:   runs,
	}, nil
}

func (a *App) Pipeline() *pipeline.Pipeline {
	cfg := a.Config
	return pipeline.New(cfg, pipeline.Deps{
		Source:    a.Scraper,
		Platform:  a.Platform,
		Calendar:  a.Calendar,
		Engine:    a.Engine,
		Enricher:  enrich.FromConfig(cfg.Enrichers, cfg.Pipeline.EnrichConcurrency),
		Simulator: backtest.New(cfg.Backtest, a.Platform),
		Notifier:  notify.New(cfg.Notify),
		RunLog:    a.RunLog,
	})
}

func (a *App) Server() *server.Server {
	cfg := a.Config
	tools := handlers.NewTools(handlers.ToolDeps{
		Scraper: func(subreddit string) interfaces.PostSource {
			rc := cfg.Reddit
			rc.Subreddit = subreddit
			return reddit.NewScraper(rc)
		},
		Platform:  a.Platform,
		Calendar:  a.Calendar,
		Engine:    a.Engine,
		Alpha:     cfg.Alpha,
		Subreddit: cfg.Reddit.Subreddit,
		ModelName: cfg.Pipeline.ModelName,
		Universe:  cfg.Finter.Universe,
	})
	return server.New(cfg.Server, server.Deps{
		Tools:           tools,
		Runs:            a.RunLog,
		RedditConnected: a.Scraper.Connected(),
		FinterConnected: cfg.Finter.Token != "",
	})
}

func (a *App) Close() {
	if err := a.RunLog.Close(); err != nil {
		logger.Warn(context.Background(), "run log close failed", "error", err)
	}
	if err := a.Cache.Close(); err != nil {
		logger.Warn(context.Background(), "cache close failed", "error", err)
	}
}
