package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reddit-alpha-agent/internal/types"
)

type fakeCaller struct {
	mu       sync.Mutex
	out      string
	err      error
	delay    time.Duration
	inflight *atomic.Int32
	peak     *atomic.Int32
	args     map[string]any
}

func (f *fakeCaller) CallTool(ctx context.Context, _ string, args map[string]any) (json.RawMessage, error) {
	f.mu.Lock()
	f.args = args
	f.mu.Unlock()
	if f.inflight != nil {
		n := f.inflight.Add(1)
		defer f.inflight.Add(-1)
		for {
			p := f.peak.Load()
			if n <= p || f.peak.CompareAndSwap(p, n) {
				break
			}
		}
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(f.out), nil
}

var signal = types.Signal{ModelName: "m", StartDate: 20240101, EndDate: 20240131, Tickers: []string{"TSLA"}}

func TestDecorate_CollectsResultsAndOptionalFailures(t *testing.T) {
	risk := &fakeCaller{out: `{"var":0.02}`}
	e := New([]Source{
		{Name: "risk", Tool: "risk_check", Caller: risk, Arguments: map[string]any{"confidence": 0.95}},
		{Name: "news", Tool: "news", Caller: &fakeCaller{err: errors.New("timeout")}},
	}, 2)

	dec, err := e.Decorate(context.Background(), signal)
	require.NoError(t, err)

	assert.JSONEq(t, `{"var":0.02}`, string(dec.Results["risk"]))
	assert.Equal(t, map[string]string{"news": "timeout"}, dec.Failures)
	assert.Equal(t, 0.95, risk.args["confidence"])
	assert.Equal(t, []string{"TSLA"}, risk.args["tickers"])
	assert.Equal(t, 20240101, risk.args["start_date"])
}

func TestDecorate_RequiredFailureFailsRun(t *testing.T) {
	e := New([]Source{
		{Name: "risk", Required: true, Caller: &fakeCaller{err: errors.New("down")}},
		{Name: "slow", Caller: &fakeCaller{out: `{}`, delay: time.Second}},
	}, 2)

	start := time.Now()
	_, err := e.Decorate(context.Background(), signal)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required enricher risk")
	assert.Less(t, time.Since(start), 900*time.Millisecond)
}

func TestDecorate_BoundedConcurrency(t *testing.T) {
	var inflight, peak atomic.Int32
	var sources []Source
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		sources = append(sources, Source{
			Name:   name,
			Caller: &fakeCaller{out: `1`, delay: 20 * time.Millisecond, inflight: &inflight, peak: &peak},
		})
	}

	dec, err := New(sources, 2).Decorate(context.Background(), signal)
	require.NoError(t, err)
	assert.Len(t, dec.Results, 6)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestDecorate_PerSourceTimeout(t *testing.T) {
	e := New([]Source{{Name: "slow", Timeout: 10 * time.Millisecond, Caller: &fakeCaller{delay: time.Second}}}, 1)

	dec, err := e.Decorate(context.Background(), signal)
	require.NoError(t, err)
	assert.Contains(t, dec.Failures["slow"], "deadline exceeded")
}

func TestDecorate_NoSources(t *testing.T) {
	dec, err := New(nil, 4).Decorate(context.Background(), signal)
	require.NoError(t, err)
	assert.Empty(t, dec.Results)
	assert.Equal(t, 0, New(nil, 0).Len())
}
