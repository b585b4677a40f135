package backtest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"reddit-alpha-agent/internal/interfaces"
	"reddit-alpha-agent/internal/mcp"
	"reddit-alpha-agent/internal/store"
	"reddit-alpha-agent/internal/types"
)

var ErrMissingMetric = errors.New("simulation output has no sharpe ratio or max drawdown")

var (
	sharpeKeys   = []string{"sharpe_ratio", "sharpe", "sharpe ratio"}
	drawdownKeys = []string{"max_drawdown", "mdd", "maximum_drawdown", "max drawdown"}
	nestedKeys   = []string{"statistics", "summary", "metrics", "result"}
)

// FinterSimulator runs the platform's own simulation endpoint.
type FinterSimulator struct {
	platform interfaces.Platform
}

var (
	_ interfaces.Simulator = (*FinterSimulator)(nil)
	_ interfaces.Simulator = (*ToolSimulator)(nil)
)

func NewFinter(p interfaces.Platform) *FinterSimulator {
	return &FinterSimulator{platform: p}
}

func (s *FinterSimulator) Simulate(ctx context.Context, req types.SimulationRequest) (types.SimulationResult, error) {
	raw, err := s.platform.Simulate(ctx, req)
	if err != nil {
		return types.SimulationResult{}, err
	}
	res, err := ParseMetrics(raw)
	res.Source = "finter"
	return res, err
}

// ToolSimulator sends the position to a backtest tool over JSON-RPC.
type ToolSimulator struct {
	caller interfaces.ToolCaller
	tool   string
}

func NewTool(caller interfaces.ToolCaller, tool string) *ToolSimulator {
	return &ToolSimulator{caller: caller, tool: tool}
}

func (s *ToolSimulator) Simulate(ctx context.Context, req types.SimulationRequest) (types.SimulationResult, error) {
	args := map[string]any{
		"position":     req.Position,
		"start_date":   req.StartDate,
		"end_date":     req.EndDate,
		"initial_cash": req.InitialCash,
		"buy_fee_tax":  req.BuyFeeTax,
		"sell_fee_tax": req.SellFeeTax,
		"slippage":     req.Slippage,
	}
	if len(req.Decorations) > 0 {
		args["decorations"] = req.Decorations
	}
	out, err := s.caller.CallTool(ctx, s.tool, args)
	if err != nil {
		return types.SimulationResult{}, err
	}
	res, err := ParseMetrics(out)
	res.Source = "mcp:" + s.tool
	return res, err
}

// New picks the simulator named by cfg.Provider.
func New(cfg store.BacktestConfig, platform interfaces.Platform) interfaces.Simulator {
	if cfg.Provider == "MCP" {
		return NewTool(mcp.NewClient(cfg.URL, cfg.Token), cfg.Tool)
	}
	return NewFinter(platform)
}

// ParseMetrics pulls Sharpe and max drawdown out of a simulator's JSON,
// looking at the top level first and then common nested sections.
func ParseMetrics(raw json.RawMessage) (types.SimulationResult, error) {
	res := types.SimulationResult{Raw: raw}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return res, fmt.Errorf("decode simulation output: %w", err)
	}

	sharpe, okS := lookup(doc, sharpeKeys)
	dd, okD := lookup(doc, drawdownKeys)
	if !okS || !okD {
		return res, ErrMissingMetric
	}
	res.Sharpe = sharpe
	res.MaxDrawdown = NormalizeDrawdown(dd)
	return res, nil
}

func lookup(doc map[string]any, keys []string) (float64, bool) {
	if v, ok := find(doc, keys); ok {
		return v, true
	}
	for _, nk := range nestedKeys {
		if sub, ok := doc[nk].(map[string]any); ok {
			if v, ok := find(sub, keys); ok {
				return v, true
			}
		}
	}
	return 0, false
}

// find tries keys in priority order; null or non-numeric values are skipped.
func find(doc map[string]any, keys []string) (float64, bool) {
	lowered := make(map[string]any, len(doc))
	for k, v := range doc {
		lowered[strings.ToLower(k)] = v
	}
	for _, want := range keys {
		v, ok := lowered[want]
		if !ok {
			continue
		}
		if n, ok := number(v); ok {
			return n, true
		}
	}
	return 0, false
}

// number accepts JSON numbers and strings such as "12.5%".
func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		s := strings.TrimSpace(n)
		pct := strings.HasSuffix(s, "%")
		f, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
		if err != nil {
			return 0, false
		}
		if pct {
			f /= 100
		}
		return f, true
	}
	return 0, false
}

// NormalizeDrawdown returns drawdown as a positive fraction; values above 1
// are read as percentages.
func NormalizeDrawdown(v float64) float64 {
	v = math.Abs(v)
	if v > 1 {
		v /= 100
	}
	return v
}
