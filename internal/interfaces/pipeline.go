package interfaces

import (
	"context"
	"encoding/json"
	"time"

	"reddit-alpha-agent/internal/types"
)

// PostSource lists subreddit posts created in [start day, end day].
type PostSource interface {
	ScrapeDateRange(ctx context.Context, start, end time.Time) ([]types.Post, error)
}

type Simulator interface {
	Simulate(ctx context.Context, req types.SimulationRequest) (types.SimulationResult, error)
}

type Notifier interface {
	Notify(ctx context.Context, n types.Notification) error
}

// ToolCaller invokes a named remote tool and returns its result payload.
type ToolCaller interface {
	CallTool(ctx context.Context, name string, args map[string]any) (json.RawMessage, error)
}
