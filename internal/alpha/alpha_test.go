package alpha

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reddit-alpha-agent/internal/store"
	"reddit-alpha-agent/internal/types"
)

func testConfig() store.AlphaConfig {
	return store.Default().Alpha
}

func day(s string) time.Time {
	t, _ := time.Parse(types.DateLayout, s)
	return t
}

func TestGet_NormalisesAndShifts(t *testing.T) {
	records := []types.DailySentiment{
		{GVKeyIID: "001690001", Date: "2024-01-02", Sentiment: 0.5},
		{GVKeyIID: "002176001", Date: "2024-01-02", Sentiment: -0.5},
	}
	a := New(testConfig(), WeekdayCalendar{}, records)

	f, err := a.Get(context.Background(), 20240102, 20240105)
	require.NoError(t, err)

	assert.Equal(t, [2]int{4, 2}, f.Shape())
	assert.Equal(t, []string{"001690001", "002176001"}, f.Columns)
	assert.Equal(t, []float64{0, 0}, f.Data[0])
	for r := 1; r < 4; r++ {
		assert.InDelta(t, 5e7, f.Data[r][0], 1e-6)
		assert.InDelta(t, -5e7, f.Data[r][1], 1e-6)
	}
}

func TestGet_AveragesDuplicatesAndDropsShortIDs(t *testing.T) {
	records := []types.DailySentiment{
		{GVKeyIID: "001690001", Date: "2024-01-02", Sentiment: 0.2},
		{GVKeyIID: "001690001", Date: "2024-01-02", Sentiment: 0.4},
		{GVKeyIID: "ABC", Date: "2024-01-02", Sentiment: 0.3},
	}
	a := New(testConfig(), WeekdayCalendar{}, records)

	f, err := a.Get(context.Background(), 20240102, 20240103)
	require.NoError(t, err)

	require.Equal(t, []string{"001690001"}, f.Columns)
	// mean 0.3 against a gross of 0.6 including the dropped id
	assert.InDelta(t, 5e7, f.Data[1][0], 1e-6)
}

func TestGet_ForwardFillLimit(t *testing.T) {
	records := []types.DailySentiment{{GVKeyIID: "001690001", Date: "2024-01-01", Sentiment: 0.7}}
	a := New(testConfig(), WeekdayCalendar{}, records)

	f, err := a.Get(context.Background(), 20240101, 20240112)
	require.NoError(t, err)
	require.Len(t, f.Index, 10)

	assert.Zero(t, f.Data[0][0])
	for r := 1; r <= 6; r++ {
		assert.InDelta(t, 1e8, f.Data[r][0], 1e-6, "row %d", r)
	}
	for r := 7; r < 10; r++ {
		assert.Zero(t, f.Data[r][0], "row %d", r)
	}
}

func TestGet_LeverageIsClipped(t *testing.T) {
	cfg := testConfig()
	cfg.Leverage = 2
	records := []types.DailySentiment{{GVKeyIID: "001690001", Date: "2024-01-02", Sentiment: 0.9}}

	f, err := New(cfg, WeekdayCalendar{}, records).Get(context.Background(), 20240102, 20240103)
	require.NoError(t, err)
	assert.InDelta(t, cfg.MaxPosition, f.Data[1][0], 1e-6)
}

func TestGet_NoSentimentKeepsCalendar(t *testing.T) {
	f, err := New(testConfig(), WeekdayCalendar{}, nil).Get(context.Background(), 20240106, 20240109)
	require.NoError(t, err)

	assert.Equal(t, []time.Time{day("2024-01-08"), day("2024-01-09")}, f.Index)
	assert.Empty(t, f.Columns)
}

func TestGet_RejectsBadRange(t *testing.T) {
	_, err := New(testConfig(), nil, nil).Get(context.Background(), 20240110, 20240101)
	assert.Error(t, err)

	_, err = New(testConfig(), nil, nil).Get(context.Background(), 20241340, 20241341)
	assert.Error(t, err)
}

func TestValidate_PassesWhenHistoryIsInWindow(t *testing.T) {
	records := []types.DailySentiment{
		{GVKeyIID: "001690001", Date: "2024-03-04", Sentiment: 0.4},
		{GVKeyIID: "002176001", Date: "2024-03-05", Sentiment: -0.1},
		{GVKeyIID: "001690001", Date: "2024-03-08", Sentiment: -0.3},
	}
	report, err := New(testConfig(), WeekdayCalendar{}, records).Validate(context.Background(), 20240301, 20240315)
	require.NoError(t, err)

	assert.True(t, report.Passed)
	assert.Zero(t, report.TotalDiff)
	assert.Equal(t, 1.0, report.Threshold)
	assert.Greater(t, report.OverlapDays, 0)
}

func TestValidate_FailsOnLookbackLeak(t *testing.T) {
	// between the long and short start dates; forward-filled into the overlap
	records := []types.DailySentiment{{GVKeyIID: "001690001", Date: "2024-01-10", Sentiment: 0.8}}

	report, err := New(testConfig(), WeekdayCalendar{}, records).Validate(context.Background(), 20240301, 20240315)
	require.NoError(t, err)

	assert.False(t, report.Passed)
	assert.InDelta(t, 1e8, report.MaxPositionDiff, 1e-6)
	assert.Greater(t, report.TotalDiff, report.Threshold)
}

func TestFrameJSON(t *testing.T) {
	f := NewFrame([]time.Time{day("2024-01-02"), day("2024-01-03")}, []string{"001690001"})
	f.Data[1][0] = 1.5e7

	b, err := json.Marshal(f)
	require.NoError(t, err)
	assert.JSONEq(t, `{"columns":["001690001"],"index":["2024-01-02T00:00:00.000","2024-01-03T00:00:00.000"],"data":[[0],[15000000]]}`, string(b))

	parsed, err := ParseFrame(`{"columns":["001690001"],"index":[1704153600000],"data":[[2.5]]}`)
	require.NoError(t, err)
	assert.Equal(t, day("2024-01-02"), parsed.Index[0])
	assert.Equal(t, 2.5, parsed.Data[0][0])

	_, err = ParseFrame(`{"columns":["a","b"],"index":["2024-01-02"],"data":[[1]]}`)
	assert.Error(t, err)
}

func TestPreview(t *testing.T) {
	days := []time.Time{day("2024-01-02"), day("2024-01-03"), day("2024-01-04")}
	f := NewFrame(days, []string{"001690001"})
	f.Data[2][0] = 3

	p := f.Preview(2)
	assert.Equal(t, map[string]map[string]float64{
		"001690001": {"2024-01-02": 0, "2024-01-03": 0},
	}, p)
	assert.Equal(t, 3.0, f.GrossExposure())
}
