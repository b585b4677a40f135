package interfaces

import (
	"context"
	"encoding/json"
	"time"

	"reddit-alpha-agent/internal/types"
)

// Platform is the quant platform that supplies the universe and calendar,
// runs simulations and hosts submitted models.
type Platform interface {
	UserInfo(ctx context.Context, item string) (map[string]any, error)
	Universe(ctx context.Context) ([]string, error)
	TradingDays(ctx context.Context, start, end time.Time) ([]time.Time, error)
	ConvertIDs(ctx context.Context, from, to string, ids []string, date time.Time) (map[string]string, error)
	BuildTickerMapping(ctx context.Context, maxSecurities int, date time.Time) (map[string]string, error)
	Simulate(ctx context.Context, req types.SimulationRequest) (json.RawMessage, error)
	Submit(ctx context.Context, req types.SubmissionRequest) (types.SubmissionResult, error)
}
