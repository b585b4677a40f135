package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"reddit-alpha-agent/internal/app"
	"reddit-alpha-agent/internal/logger"
	"reddit-alpha-agent/internal/scheduler"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	once := flag.Bool("once", false, "run the pipeline immediately and exit")
	flag.Parse()

	if err := app.Init(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, *configPath, *once)
	stop()
	_ = logger.Shutdown(context.Background())
	os.Exit(code)
}

// run returns the process exit code so deferred cleanup always happens.
func run(ctx context.Context, configPath string, once bool) int {
	cfg, err := app.LoadConfig(ctx, configPath)
	if err != nil {
		return 1
	}
	a, err := app.Build(ctx, cfg)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to build application", err)
		return 1
	}
	defer a.Close()
	p := a.Pipeline()

	if once {
		report, err := p.Run(ctx)
		logger.Info(ctx, "Run complete", "run_id", report.ID, "outcome", report.Outcome)
		if err != nil {
			return 1
		}
		return 0
	}

	sched, err := scheduler.New(cfg.Pipeline.Schedule, func(ctx context.Context) error {
		_, err := p.Run(ctx)
		return err
	})
	if err != nil {
		logger.ErrorWithErr(ctx, "Invalid schedule", err)
		return 1
	}
	sched.Start()
	<-ctx.Done()

	logger.Info(context.Background(), "Shutting down...")
	stopCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := sched.Stop(stopCtx); err != nil {
		logger.Warn(context.Background(), "In-flight run cancelled", "error", err)
	}
	return 0
}
