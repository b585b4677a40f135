package gate

import (
	"fmt"
	"math"

	"reddit-alpha-agent/internal/store"
	"reddit-alpha-agent/internal/types"
)

// Thresholds is the submission predicate: Sharpe strictly above MinSharpe and
// drawdown strictly below MaxDrawdown.
type Thresholds struct {
	Profile     string
	MinSharpe   float64
	MaxDrawdown float64
}

func FromConfig(cfg store.GateConfig) Thresholds {
	return Thresholds{Profile: cfg.Profile, MinSharpe: cfg.MinSharpe, MaxDrawdown: cfg.MaxDrawdown}
}

func (t Thresholds) Evaluate(res types.SimulationResult) types.Decision {
	d := types.Decision{Profile: t.Profile, MinSharpe: t.MinSharpe, MaxDrawdown: t.MaxDrawdown}

	if !finite(res.Sharpe) {
		d.Reasons = append(d.Reasons, fmt.Sprintf("sharpe ratio is not a finite number (%v)", res.Sharpe))
	} else if res.Sharpe <= t.MinSharpe {
		d.Reasons = append(d.Reasons, fmt.Sprintf("sharpe ratio %.2f is not above %.2f", res.Sharpe, t.MinSharpe))
	}
	if !finite(res.MaxDrawdown) {
		d.Reasons = append(d.Reasons, fmt.Sprintf("max drawdown is not a finite number (%v)", res.MaxDrawdown))
	} else if res.MaxDrawdown >= t.MaxDrawdown {
		d.Reasons = append(d.Reasons, fmt.Sprintf("max drawdown %.1f%% is not below %.1f%%", res.MaxDrawdown*100, t.MaxDrawdown*100))
	}

	d.Submit = len(d.Reasons) == 0
	return d
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
