package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reddit-alpha-agent/internal/alpha"
	"reddit-alpha-agent/internal/enrich"
	"reddit-alpha-agent/internal/runlog"
	"reddit-alpha-agent/internal/sentiment"
	"reddit-alpha-agent/internal/store"
	"reddit-alpha-agent/internal/types"
)

var runTime = time.Date(2024, 3, 15, 16, 0, 0, 0, time.UTC)

type fakeSource struct {
	posts []types.Post
	err   error
	// cancel, when set, is called before returning the context error
	cancel context.CancelFunc
}

func (f *fakeSource) ScrapeDateRange(ctx context.Context, _, _ time.Time) ([]types.Post, error) {
	if f.cancel != nil {
		f.cancel()
		return nil, ctx.Err()
	}
	return f.posts, f.err
}

type emptyCalendar struct{}

func (emptyCalendar) TradingDays(context.Context, time.Time, time.Time) ([]time.Time, error) {
	return nil, nil
}

type fakeCaller struct {
	out  json.RawMessage
	err  error
	args map[string]any
}

func (f *fakeCaller) CallTool(_ context.Context, _ string, args map[string]any) (json.RawMessage, error) {
	f.args = args
	return f.out, f.err
}

type fakePlatform struct {
	submitted []types.SubmissionRequest
}

func (f *fakePlatform) UserInfo(context.Context, string) (map[string]any, error) { return nil, nil }
func (f *fakePlatform) Universe(context.Context) ([]string, error)               { return nil, nil }
func (f *fakePlatform) TradingDays(ctx context.Context, s, e time.Time) ([]time.Time, error) {
	return alpha.WeekdayCalendar{}.TradingDays(ctx, s, e)
}
func (f *fakePlatform) ConvertIDs(context.Context, string, string, []string, time.Time) (map[string]string, error) {
	return nil, nil
}
func (f *fakePlatform) BuildTickerMapping(context.Context, int, time.Time) (map[string]string, error) {
	return nil, nil
}
func (f *fakePlatform) Simulate(context.Context, types.SimulationRequest) (json.RawMessage, error) {
	return nil, nil
}
func (f *fakePlatform) Submit(_ context.Context, req types.SubmissionRequest) (types.SubmissionResult, error) {
	f.submitted = append(f.submitted, req)
	return types.SubmissionResult{ModelID: "mdl-1", ValidationURL: "https://finter/validate/mdl-1"}, nil
}

type fakeSimulator struct {
	res types.SimulationResult
	req *types.SimulationRequest
}

func (f *fakeSimulator) Simulate(_ context.Context, req types.SimulationRequest) (types.SimulationResult, error) {
	f.req = &req
	return f.res, nil
}

type fakeNotifier struct {
	sent []types.Notification
}

func (f *fakeNotifier) Notify(ctx context.Context, n types.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.sent = append(f.sent, n)
	return nil
}

// ctxRunLog refuses writes on a dead context like a real database would.
type ctxRunLog struct {
	*runlog.FileStore
}

func (s ctxRunLog) Record(ctx context.Context, r types.RunReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.FileStore.Record(ctx, r)
}

type fixture struct {
	cfg      *store.Config
	source   *fakeSource
	platform *fakePlatform
	sim      *fakeSimulator
	notifier *fakeNotifier
	runs     *runlog.FileStore
	calendar alpha.Calendar
	engine   *sentiment.Engine
	enricher *enrich.Enricher
}

func newFixture(t *testing.T) *fixture {
	cfg := store.Default()
	cfg.Pipeline.OutputDir = t.TempDir()
	return &fixture{
		cfg: cfg,
		source: &fakeSource{posts: []types.Post{
			{ID: "a", Title: "$TSLA great quarter", Score: 120, CreatedUTC: time.Date(2024, 3, 1, 14, 0, 0, 0, time.UTC)},
			{ID: "b", Title: "$AAPL terrible guidance", Text: "also $TSLA", Score: 40, CreatedUTC: time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)},
			{ID: "c", Title: "$ZZZZ is not in the table", CreatedUTC: time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)},
		}},
		platform: &fakePlatform{},
		sim:      &fakeSimulator{res: types.SimulationResult{Sharpe: 2.0, MaxDrawdown: 0.08}},
		notifier: &fakeNotifier{},
		runs:     runlog.NewFileStore(t.TempDir()),
	}
}

func (f *fixture) pipeline() *Pipeline {
	var calendar alpha.Calendar = f.platform
	if f.calendar != nil {
		calendar = f.calendar
	}
	return New(f.cfg, Deps{
		Source:    f.source,
		Platform:  f.platform,
		Calendar:  calendar,
		Engine:    f.engine,
		Enricher:  f.enricher,
		Simulator: f.sim,
		Notifier:  f.notifier,
		RunLog:    ctxRunLog{f.runs},
		Now:       func() time.Time { return runTime },
	})
}

func TestRun_Submits(t *testing.T) {
	f := newFixture(t)

	report, err := f.pipeline().Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, OutcomeSubmitted, report.Outcome)
	assert.Equal(t, 20240214, report.StartDate)
	assert.Equal(t, 20240315, report.EndDate)
	assert.Equal(t, 3, report.Posts)
	assert.Equal(t, 4, report.Mentions)
	assert.Equal(t, 3, report.Mapped)
	assert.Equal(t, 2, report.Securities)
	require.NotNil(t, report.Validation)
	assert.True(t, report.Validation.Passed)
	require.NotNil(t, report.Submission)
	assert.Equal(t, "mdl-1", report.Submission.ModelID)

	require.Len(t, f.platform.submitted, 1)
	assert.Equal(t, types.SubmissionRequest{
		ModelName:   "reddit_sentiment_v1",
		Universe:    "us_stock",
		DockerImage: f.cfg.Finter.DockerImage,
		Schedule:    "0 16 * * *",
	}, f.platform.submitted[0])
	assert.Empty(t, f.notifier.sent)

	require.NotNil(t, f.sim.req)
	assert.Equal(t, 1e8, f.sim.req.InitialCash)
	frame, err := alpha.ParseFrame(string(f.sim.req.Position))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"001690001", "184996001"}, frame.Columns)

	assert.FileExists(t, report.PositionsFile)
	assert.Contains(t, report.PositionsFile, "positions_reddit_sentiment_v1_20240315_160000.json")

	runs, err := f.runs.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, report.ID, runs[0].ID)
}

func TestRun_Gated(t *testing.T) {
	f := newFixture(t)
	f.sim.res = types.SimulationResult{Sharpe: 0.7, MaxDrawdown: 0.25}

	report, err := f.pipeline().Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, OutcomeGated, report.Outcome)
	require.NotNil(t, report.Decision)
	assert.False(t, report.Decision.Submit)
	assert.Len(t, report.Decision.Reasons, 2)
	assert.Empty(t, f.platform.submitted)

	require.Len(t, f.notifier.sent, 1)
	n := f.notifier.sent[0]
	assert.Equal(t, "warning", n.Level)
	assert.Equal(t, "0.70", n.Fields["sharpe"])
	assert.Equal(t, "25.0%", n.Fields["max_drawdown"])
	assert.Equal(t, report.ID, n.RunID)
}

func TestRun_RelaxedProfileSubmitsWhatStrictGates(t *testing.T) {
	f := newFixture(t)
	f.cfg.Gate = store.GateConfig{Profile: "relaxed", MinSharpe: 0.5, MaxDrawdown: 0.30}
	f.sim.res = types.SimulationResult{Sharpe: 0.7, MaxDrawdown: 0.25}

	report, err := f.pipeline().Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeSubmitted, report.Outcome)
}

func TestRun_DryRun(t *testing.T) {
	f := newFixture(t)
	f.cfg.Pipeline.DryRun = true

	report, err := f.pipeline().Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, OutcomeDryRun, report.Outcome)
	assert.Empty(t, f.platform.submitted)
	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, "info", f.notifier.sent[0].Level)
}

func TestRun_NoMentions(t *testing.T) {
	f := newFixture(t)
	f.source.posts = []types.Post{{ID: "x", Title: "no cashtags here", CreatedUTC: runTime}}

	report, err := f.pipeline().Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, OutcomeNoMentions, report.Outcome)
	assert.Nil(t, f.sim.req)
	require.Len(t, f.notifier.sent, 1)
}

func TestRun_NoMapping(t *testing.T) {
	f := newFixture(t)
	f.source.posts = []types.Post{{ID: "x", Title: "$ZZZZ only", CreatedUTC: runTime}}

	report, err := f.pipeline().Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoMapping, report.Outcome)
	assert.Equal(t, 1, report.Mentions)
}

func TestRun_ScrapeFailure(t *testing.T) {
	f := newFixture(t)
	f.source.err = errors.New("reddit down")

	report, err := f.pipeline().Run(context.Background())
	require.Error(t, err)

	assert.Equal(t, OutcomeFailed, report.Outcome)
	assert.Contains(t, report.Error, "reddit down")
	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, "error", f.notifier.sent[0].Level)

	runs, err := f.runs.Recent(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, runs[0].Outcome)
}

func TestRun_Outcomes(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(f *fixture)
		outcome string
		wantErr error
		errText string
	}{
		{
			name: "history before the short window leaks into positions",
			setup: func(f *fixture) {
				// between start-100d and start-50d, forward-filled into the overlap
				f.source.posts = append(f.source.posts, types.Post{
					ID: "old", Title: "$TSLA great quarter", Score: 10,
					CreatedUTC: time.Date(2023, 12, 20, 15, 0, 0, 0, time.UTC),
				})
			},
			outcome: OutcomeValidationFailed,
			wantErr: ErrValidationFailed,
		},
		{
			name:    "no trading days",
			setup:   func(f *fixture) { f.calendar = emptyCalendar{} },
			outcome: OutcomeNoPositions,
		},
		{
			name: "no 9-character ids",
			setup: func(f *fixture) {
				f.engine = sentiment.NewEngine(map[string]string{"TSLA": "1690"})
			},
			outcome: OutcomeNoPositions,
		},
		{
			name: "required enricher fails",
			setup: func(f *fixture) {
				f.enricher = enrich.New([]enrich.Source{
					{Name: "options_flow", Tool: "flow", Required: true, Caller: &fakeCaller{err: errors.New("503 upstream")}},
				}, 2)
			},
			outcome: OutcomeFailed,
			errText: "required enricher options_flow",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.setup(f)

			report, err := f.pipeline().Run(context.Background())
			switch {
			case tt.wantErr != nil:
				require.ErrorIs(t, err, tt.wantErr)
			case tt.errText != "":
				require.ErrorContains(t, err, tt.errText)
			default:
				require.NoError(t, err)
			}

			assert.Equal(t, tt.outcome, report.Outcome)
			assert.Nil(t, f.sim.req)
			assert.Empty(t, f.platform.submitted)
			require.Len(t, f.notifier.sent, 1)
			assert.Equal(t, tt.outcome, f.notifier.sent[0].Fields["outcome"])

			runs, err := f.runs.Recent(context.Background(), 1)
			require.NoError(t, err)
			require.Len(t, runs, 1)
			assert.Equal(t, tt.outcome, runs[0].Outcome)
		})
	}
}

func TestRun_ValidationFailureIsReported(t *testing.T) {
	f := newFixture(t)
	f.source.posts = append(f.source.posts, types.Post{
		ID: "old", Title: "$TSLA great quarter", Score: 10,
		CreatedUTC: time.Date(2023, 12, 20, 15, 0, 0, 0, time.UTC),
	})

	report, err := f.pipeline().Run(context.Background())
	require.Error(t, err)

	require.NotNil(t, report.Validation)
	assert.False(t, report.Validation.Passed)
	assert.Greater(t, report.Validation.TotalDiff, report.Validation.Threshold)
	assert.Empty(t, report.PositionsFile)
	assert.Equal(t, "error", f.notifier.sent[0].Level)
}

func TestRun_DecorationsReachSimulatorAndReport(t *testing.T) {
	f := newFixture(t)
	flow := &fakeCaller{out: json.RawMessage(`{"put_call_ratio":0.62}`)}
	f.enricher = enrich.New([]enrich.Source{
		{Name: "options_flow", Tool: "flow", Caller: flow},
		{Name: "short_interest", Tool: "si", Caller: &fakeCaller{err: errors.New("timeout")}},
	}, 2)

	report, err := f.pipeline().Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeSubmitted, report.Outcome)

	assert.Equal(t, "reddit_sentiment_v1", flow.args["model_name"])
	assert.ElementsMatch(t, []string{"AAPL", "TSLA"}, flow.args["tickers"])

	require.NotNil(t, f.sim.req)
	require.Contains(t, f.sim.req.Decorations, "options_flow")
	assert.JSONEq(t, `{"put_call_ratio":0.62}`, string(f.sim.req.Decorations["options_flow"]))
	assert.NotContains(t, f.sim.req.Decorations, "short_interest")

	assert.JSONEq(t, `{"put_call_ratio":0.62}`, string(report.Decorations["options_flow"]))
	assert.Equal(t, map[string]string{"short_interest": "timeout"}, report.Enrichment)

	runs, err := f.runs.Recent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.JSONEq(t, `{"put_call_ratio":0.62}`, string(runs[0].Decorations["options_flow"]))
	assert.Equal(t, "timeout", runs[0].Enrichment["short_interest"])
}

func TestRun_CancelledRunIsStillRecordedAndNotified(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.source.cancel = cancel

	report, err := f.pipeline().Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, OutcomeFailed, report.Outcome)

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, report.ID, f.notifier.sent[0].RunID)

	runs, err := f.runs.Recent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, report.ID, runs[0].ID)
	assert.Equal(t, OutcomeFailed, runs[0].Outcome)
}

func TestSavePositions(t *testing.T) {
	dir := t.TempDir()
	path, err := SavePositions(dir, "m", runTime, []byte(`{}`))
	require.NoError(t, err)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(b))
}
