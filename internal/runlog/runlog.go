// Package runlog keeps the history of pipeline runs.
package runlog

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"reddit-alpha-agent/internal/store"
	"reddit-alpha-agent/internal/types"
)

type Store interface {
	Record(ctx context.Context, r types.RunReport) error
	// Recent returns up to limit runs, newest first.
	Recent(ctx context.Context, limit int) ([]types.RunReport, error)
	Close() error
}

// NewID returns a fresh run id.
func NewID() string { return uuid.NewString() }

func New(ctx context.Context, cfg store.RunLogConfig) (Store, error) {
	switch cfg.Backend {
	case "POSTGRES":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("runlog: %s is not set", cfg.DSNEnv)
		}
		return NewPostgres(ctx, cfg)
	case "FILE", "":
		return NewFileStore(cfg.Dir), nil
	default:
		return nil, fmt.Errorf("runlog: unknown backend %q", cfg.Backend)
	}
}
