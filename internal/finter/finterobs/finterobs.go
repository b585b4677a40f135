package finterobs

import (
	"context"
	"encoding/json"
	"time"

	"reddit-alpha-agent/internal/interfaces"
	"reddit-alpha-agent/internal/logger"
	"reddit-alpha-agent/internal/trace"
	"reddit-alpha-agent/internal/types"
)

// observablePlatform wraps a Platform with spans and logs.
type observablePlatform struct {
	platform interfaces.Platform
}

var _ interfaces.Platform = (*observablePlatform)(nil)

func Wrap(p interfaces.Platform) interfaces.Platform {
	return &observablePlatform{platform: p}
}

func (o *observablePlatform) UserInfo(ctx context.Context, item string) (map[string]any, error) {
	ctx, span := trace.StartSpan(ctx, "finter.UserInfo")
	defer span.End()

	info, err := o.platform.UserInfo(ctx, item)
	if err != nil {
		trace.Fail(span, err)
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch user info", err, "item", item)
		return nil, err
	}
	return info, nil
}

func (o *observablePlatform) Universe(ctx context.Context) ([]string, error) {
	ctx, span := trace.StartSpan(ctx, "finter.Universe")
	defer span.End()

	ids, err := o.platform.Universe(ctx)
	if err != nil {
		trace.Fail(span, err)
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch universe", err)
		return nil, err
	}
	logger.DebugSkip(ctx, 1, "Universe fetched", "securities", len(ids))
	return ids, nil
}

func (o *observablePlatform) TradingDays(ctx context.Context, start, end time.Time) ([]time.Time, error) {
	ctx, span := trace.StartSpan(ctx, "finter.TradingDays")
	defer span.End()
	trace.Annotate(span, "start", start.Format(types.DateLayout), "end", end.Format(types.DateLayout))

	days, err := o.platform.TradingDays(ctx, start, end)
	if err != nil {
		trace.Fail(span, err)
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch trading calendar", err,
			"start", start.Format(types.DateLayout),
			"end", end.Format(types.DateLayout),
		)
		return nil, err
	}
	logger.DebugSkip(ctx, 1, "Trading calendar fetched", "days", len(days))
	return days, nil
}

func (o *observablePlatform) ConvertIDs(ctx context.Context, from, to string, ids []string, date time.Time) (map[string]string, error) {
	ctx, span := trace.StartSpan(ctx, "finter.ConvertIDs")
	defer span.End()
	trace.Annotate(span, "from", from, "to", to)

	out, err := o.platform.ConvertIDs(ctx, from, to, ids, date)
	if err != nil {
		trace.Fail(span, err)
		logger.ErrorWithErrSkip(ctx, 1, "Failed to convert ids", err, "from", from, "to", to, "ids", len(ids))
		return nil, err
	}
	logger.DebugSkip(ctx, 1, "Ids converted", "from", from, "to", to, "requested", len(ids), "mapped", len(out))
	return out, nil
}

func (o *observablePlatform) BuildTickerMapping(ctx context.Context, maxSecurities int, date time.Time) (map[string]string, error) {
	ctx, span := trace.StartSpan(ctx, "finter.BuildTickerMapping")
	defer span.End()

	out, err := o.platform.BuildTickerMapping(ctx, maxSecurities, date)
	if err != nil {
		trace.Fail(span, err)
		logger.ErrorWithErrSkip(ctx, 1, "Failed to build ticker mapping", err, "max_securities", maxSecurities)
		return nil, err
	}
	return out, nil
}

func (o *observablePlatform) Simulate(ctx context.Context, req types.SimulationRequest) (json.RawMessage, error) {
	ctx, span := trace.StartSpan(ctx, "finter.Simulate")
	defer span.End()

	logger.InfoSkip(ctx, 1, "Requesting simulation", "start_date", req.StartDate, "end_date", req.EndDate)
	out, err := o.platform.Simulate(ctx, req)
	if err != nil {
		trace.Fail(span, err)
		logger.ErrorWithErrSkip(ctx, 1, "Simulation failed", err, "start_date", req.StartDate, "end_date", req.EndDate)
		return nil, err
	}
	return out, nil
}

func (o *observablePlatform) Submit(ctx context.Context, req types.SubmissionRequest) (types.SubmissionResult, error) {
	ctx, span := trace.StartSpan(ctx, "finter.Submit")
	defer span.End()
	trace.Annotate(span, "model", req.ModelName, "universe", req.Universe)

	res, err := o.platform.Submit(ctx, req)
	if err != nil {
		trace.Fail(span, err)
		logger.ErrorWithErrSkip(ctx, 1, "Model submission failed", err, "model", req.ModelName)
		return types.SubmissionResult{}, err
	}
	logger.Submission(ctx, req.ModelName, res.ModelID, res.ValidationURL, "universe", req.Universe)
	return res, nil
}
