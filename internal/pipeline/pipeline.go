package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"reddit-alpha-agent/internal/alpha"
	"reddit-alpha-agent/internal/enrich"
	"reddit-alpha-agent/internal/gate"
	"reddit-alpha-agent/internal/interfaces"
	"reddit-alpha-agent/internal/logger"
	"reddit-alpha-agent/internal/metrics"
	"reddit-alpha-agent/internal/notify"
	"reddit-alpha-agent/internal/reddit"
	"reddit-alpha-agent/internal/runlog"
	"reddit-alpha-agent/internal/sentiment"
	"reddit-alpha-agent/internal/store"
	"reddit-alpha-agent/internal/types"
)

// Run outcomes.
const (
	OutcomeSubmitted        = "submitted"
	OutcomeDryRun           = "dry_run"
	OutcomeGated            = "gated"
	OutcomeNoMentions       = "no_mentions"
	OutcomeNoMapping        = "no_mapping"
	OutcomeNoPositions      = "no_positions"
	OutcomeValidationFailed = "validation_failed"
	OutcomeFailed           = "failed"
)

var ErrValidationFailed = errors.New("positions depend on the start date")

// Deps are the collaborators of one pipeline. Enricher, Notifier and RunLog
// are optional.
type Deps struct {
	Source    interfaces.PostSource
	Platform  interfaces.Platform
	Calendar  alpha.Calendar
	Engine    *sentiment.Engine
	Enricher  *enrich.Enricher
	Simulator interfaces.Simulator
	Notifier  interfaces.Notifier
	RunLog    runlog.Store
	Now       func() time.Time
}

// Pipeline runs scrape, score, position, validate, enrich, simulate, gate and
// then submits or notifies.
type Pipeline struct {
	cfg  *store.Config
	deps Deps
	gate gate.Thresholds
}

func New(cfg *store.Config, d Deps) *Pipeline {
	if d.Calendar == nil {
		d.Calendar = alpha.WeekdayCalendar{}
	}
	if d.Engine == nil {
		d.Engine = sentiment.NewEngine(nil)
	}
	if d.Enricher == nil {
		d.Enricher = enrich.New(nil, 1)
	}
	if d.Notifier == nil {
		d.Notifier = notify.LogNotifier{}
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Pipeline{cfg: cfg, deps: d, gate: gate.FromConfig(cfg.Gate)}
}

// Run executes one end-to-end pass over the configured lookback window.
// The report is returned even when err is non-nil.
func (p *Pipeline) Run(ctx context.Context) (*types.RunReport, error) {
	now := p.deps.Now().UTC()
	start := now.AddDate(0, 0, -p.cfg.Pipeline.LookbackDays)
	report := &types.RunReport{
		ID:        runlog.NewID(),
		StartedAt: now,
		ModelName: p.cfg.Pipeline.ModelName,
		StartDate: alpha.FormatYYYYMMDD(start),
		EndDate:   alpha.FormatYYYYMMDD(now),
	}

	if p.cfg.Pipeline.TimeoutMinutes > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(p.cfg.Pipeline.TimeoutMinutes)*time.Minute)
		defer cancel()
	}
	op := logger.StartOperation(ctx, "pipeline.Run",
		"run_id", report.ID,
		"model", report.ModelName,
		"start_date", report.StartDate,
		"end_date", report.EndDate)
	ctx = op.Context()

	err := p.run(ctx, report, start, now)
	report.FinishedAt = p.deps.Now().UTC()
	if err != nil {
		if report.Outcome == "" {
			report.Outcome = OutcomeFailed
		}
		report.Error = err.Error()
		op.EndWithError(err, "outcome", report.Outcome)
	} else {
		op.End("outcome", report.Outcome)
	}

	metrics.PipelineRuns.WithLabelValues(report.Outcome).Inc()
	logger.Run(ctx, report.ID, report.Outcome,
		"posts", report.Posts,
		"mentions", report.Mentions,
		"mapped", report.Mapped,
		"securities", report.Securities)

	// bookkeeping uses a fresh context so a timed-out run is still recorded
	bg := context.WithoutCancel(ctx)
	if p.deps.RunLog != nil {
		if rlErr := p.deps.RunLog.Record(bg, *report); rlErr != nil {
			logger.ErrorWithErr(bg, "failed to record run", rlErr, "run_id", report.ID)
		}
	}
	if report.Outcome != OutcomeSubmitted {
		if nErr := p.deps.Notifier.Notify(bg, notification(report)); nErr != nil {
			logger.Warn(bg, "notification failed", "run_id", report.ID, "error", nErr)
		}
	}
	return report, err
}

func (p *Pipeline) run(ctx context.Context, report *types.RunReport, start, end time.Time) error {
	posts, err := p.deps.Source.ScrapeDateRange(ctx, start, end)
	if err != nil {
		return fmt.Errorf("scrape: %w", err)
	}
	report.Posts = len(posts)

	mentions := reddit.ExtractMentions(posts)
	report.Mentions = len(mentions)
	if len(mentions) == 0 {
		report.Outcome = OutcomeNoMentions
		return nil
	}

	mapped, daily := p.deps.Engine.Process(mentions)
	report.Mapped = len(mapped)
	if len(mapped) == 0 {
		report.Outcome = OutcomeNoMapping
		return nil
	}

	a := alpha.New(p.cfg.Alpha, p.deps.Calendar, daily)
	frame, err := a.Get(ctx, report.StartDate, report.EndDate)
	if err != nil {
		return fmt.Errorf("generate positions: %w", err)
	}
	report.Securities = len(frame.Columns)
	if len(frame.Index) == 0 || len(frame.Columns) == 0 {
		report.Outcome = OutcomeNoPositions
		return nil
	}

	validation, err := a.Validate(ctx, report.StartDate, report.EndDate)
	if err != nil {
		return fmt.Errorf("validate positions: %w", err)
	}
	report.Validation = &validation
	if !validation.Passed {
		report.Outcome = OutcomeValidationFailed
		return fmt.Errorf("%w: total difference %.2f exceeds %.2f", ErrValidationFailed, validation.TotalDiff, validation.Threshold)
	}

	position, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("encode positions: %w", err)
	}
	path, err := SavePositions(p.cfg.Pipeline.OutputDir, report.ModelName, report.StartedAt, position)
	if err != nil {
		return fmt.Errorf("save positions: %w", err)
	}
	report.PositionsFile = path

	sig := types.Signal{
		ModelName:  report.ModelName,
		StartDate:  report.StartDate,
		EndDate:    report.EndDate,
		Tickers:    tickers(daily),
		Positions:  lastRow(frame),
		Validation: validation,
	}
	dec, err := p.deps.Enricher.Decorate(ctx, sig)
	if err != nil {
		return fmt.Errorf("enrich: %w", err)
	}
	if len(dec.Results) > 0 {
		sig.Decorations = dec.Results
		report.Decorations = dec.Results
	}
	if len(dec.Failures) > 0 {
		report.Enrichment = dec.Failures
	}

	fc := p.cfg.Finter
	sim, err := p.deps.Simulator.Simulate(ctx, types.SimulationRequest{
		Position:    position,
		StartDate:   report.StartDate,
		EndDate:     report.EndDate,
		InitialCash: fc.InitialCash,
		BuyFeeTax:   fc.BuyFeeTax,
		SellFeeTax:  fc.SellFeeTax,
		Slippage:    fc.Slippage,
		Decorations: sig.Decorations,
	})
	if err != nil {
		return fmt.Errorf("simulate: %w", err)
	}
	sim.Raw = nil
	report.Simulation = &sim

	decision := p.gate.Evaluate(sim)
	report.Decision = &decision
	label := "reject"
	if decision.Submit {
		label = "submit"
	}
	metrics.GateDecisions.WithLabelValues(label).Inc()
	logger.Gate(ctx, report.ModelName, decision.Submit, sim.Sharpe, sim.MaxDrawdown, "profile", decision.Profile, "reasons", decision.Reasons)

	if !decision.Submit {
		report.Outcome = OutcomeGated
		return nil
	}
	if p.cfg.Pipeline.DryRun {
		report.Outcome = OutcomeDryRun
		return nil
	}

	res, err := p.deps.Platform.Submit(ctx, types.SubmissionRequest{
		ModelName:   report.ModelName,
		Universe:    fc.Universe,
		DockerImage: fc.DockerImage,
		Schedule:    fc.Schedule,
	})
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	report.Submission = &res
	report.Outcome = OutcomeSubmitted
	return nil
}

// SavePositions writes positions_<model>_<YYYYMMDD_HHMMSS>.json under dir.
func SavePositions(dir, model string, at time.Time, position []byte) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("positions_%s_%s.json", model, at.Format("20060102_150405")))
	if err := os.WriteFile(path, position, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func tickers(daily []types.DailySentiment) []string {
	seen := make(map[string]bool, len(daily))
	out := make([]string, 0, len(daily))
	for _, d := range daily {
		if !seen[d.Ticker] {
			seen[d.Ticker] = true
			out = append(out, d.Ticker)
		}
	}
	sort.Strings(out)
	return out
}

func lastRow(f *alpha.Frame) map[string]float64 {
	out := make(map[string]float64, len(f.Columns))
	if len(f.Data) == 0 {
		return out
	}
	row := f.Data[len(f.Data)-1]
	for c, col := range f.Columns {
		if row[c] != 0 {
			out[col] = row[c]
		}
	}
	return out
}

func notification(r *types.RunReport) types.Notification {
	n := types.Notification{
		RunID:  r.ID,
		SentAt: r.FinishedAt,
		Level:  notify.LevelInfo,
		Fields: map[string]string{
			"model":   r.ModelName,
			"outcome": r.Outcome,
			"window":  strconv.Itoa(r.StartDate) + " to " + strconv.Itoa(r.EndDate),
		},
	}
	if r.Simulation != nil {
		n.Fields["sharpe"] = strconv.FormatFloat(r.Simulation.Sharpe, 'f', 2, 64)
		n.Fields["max_drawdown"] = strconv.FormatFloat(r.Simulation.MaxDrawdown*100, 'f', 1, 64) + "%"
	}

	switch r.Outcome {
	case OutcomeDryRun:
		n.Title = "Model passed the gate (dry run, not submitted)"
	case OutcomeGated:
		n.Level = notify.LevelWarning
		n.Title = "Model did not pass the gate"
		if r.Decision != nil {
			n.Text = strings.Join(r.Decision.Reasons, "; ")
		}
	case OutcomeNoMentions, OutcomeNoMapping, OutcomeNoPositions:
		n.Level = notify.LevelWarning
		n.Title = "No tradable signal today"
		n.Text = fmt.Sprintf("%d posts, %d mentions, %d mapped", r.Posts, r.Mentions, r.Mapped)
	default:
		n.Level = notify.LevelError
		n.Title = "Pipeline run failed"
		n.Text = r.Error
	}
	return n
}
