// Package cache stores small JSON documents (ticker mappings, calendars)
// behind a backend chosen by configuration.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"reddit-alpha-agent/internal/store"
)

// Cache is a byte-oriented key/value store with per-entry TTL.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close() error
}

// New builds the backend named by cfg.Backend.
func New(ctx context.Context, cfg store.CacheConfig) (Cache, error) {
	switch cfg.Backend {
	case "REDIS":
		return NewRedis(ctx, cfg)
	case "MEMORY", "":
		return NewMemory(10 * time.Minute), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// GetJSON decodes a cached value into v. A decode failure counts as a miss.
func GetJSON(ctx context.Context, c Cache, key string, v any) (bool, error) {
	b, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return false, nil
	}
	return true, nil
}

func SetJSON(ctx context.Context, c Cache, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode cache value: %w", err)
	}
	return c.Set(ctx, key, b, ttl)
}
