package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"reddit-alpha-agent/internal/app"
	"reddit-alpha-agent/internal/logger"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	if err := app.Init(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig(ctx, *configPath)
	if err != nil {
		os.Exit(1)
	}
	a, err := app.Build(ctx, cfg)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to build application", err)
		os.Exit(1)
	}
	defer a.Close()

	srv := a.Server()
	errc := make(chan error, 1)
	go func() { errc <- srv.Start() }()

	select {
	case err := <-errc:
		if err != nil {
			logger.ErrorWithErr(ctx, "Server stopped", err)
		}
	case <-ctx.Done():
		logger.Info(context.Background(), "Shutting down...")
		if err := srv.Shutdown(context.Background()); err != nil {
			logger.ErrorWithErr(context.Background(), "Graceful shutdown failed", err)
		}
	}
	_ = logger.Shutdown(context.Background())
}
