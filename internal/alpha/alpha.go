package alpha

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"reddit-alpha-agent/internal/logger"
	"reddit-alpha-agent/internal/store"
	"reddit-alpha-agent/internal/types"
)

// ErrNoSentiment is returned by callers that refuse to build positions from nothing.
var ErrNoSentiment = errors.New("no sentiment data provided")

const idLength = 9

// Alpha turns daily sentiment into dollar positions.
type Alpha struct {
	cfg      store.AlphaConfig
	calendar Calendar
	records  []types.DailySentiment
}

func New(cfg store.AlphaConfig, calendar Calendar, records []types.DailySentiment) *Alpha {
	if calendar == nil {
		calendar = WeekdayCalendar{}
	}
	return &Alpha{cfg: cfg, calendar: calendar, records: records}
}

// Get builds positions for every trading day in [start, end].
func (a *Alpha) Get(ctx context.Context, start, end int) (*Frame, error) {
	from, err := ParseYYYYMMDD(start)
	if err != nil {
		return nil, err
	}
	to, err := ParseYYYYMMDD(end)
	if err != nil {
		return nil, err
	}
	if to.Before(from) {
		return nil, fmt.Errorf("end date %d is before start date %d", end, start)
	}

	days, err := a.calendar.TradingDays(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("trading calendar: %w", err)
	}

	sums, counts, columns := a.pivot(from, to)
	if len(columns) == 0 {
		logger.Debug(ctx, "no sentiment in range", "start", start, "end", end)
		return NewFrame(days, []string{}), nil
	}

	raw := make([][]float64, len(days))
	for r, d := range days {
		row := make([]float64, len(columns))
		key := d.Format(types.DateLayout)
		for c, col := range columns {
			cell := key + "|" + col
			if n, ok := counts[cell]; ok {
				row[c] = sums[cell] / float64(n)
			} else {
				row[c] = math.NaN()
			}
		}
		raw[r] = row
	}

	forwardFill(raw, a.cfg.FFillLimit)
	normalise(raw, a.cfg.Notional*a.cfg.Leverage)

	out := NewFrame(days, nil)
	keep := make([]int, 0, len(columns))
	for c, col := range columns {
		if len(col) == idLength {
			keep = append(keep, c)
			out.Columns = append(out.Columns, col)
		}
	}
	if out.Columns == nil {
		out.Columns = []string{}
	}
	for r := range days {
		row := make([]float64, len(keep))
		if r > 0 {
			for i, c := range keep {
				row[i] = clip(raw[r-1][c], a.cfg.MaxPosition)
			}
		}
		out.Data[r] = row
	}

	logger.Debug(ctx, "positions generated", "start", start, "end", end, "days", len(days), "securities", len(out.Columns))
	return out, nil
}

// pivot averages sentiment per (date, id) inside [from, to].
func (a *Alpha) pivot(from, to time.Time) (map[string]float64, map[string]int, []string) {
	lo, hi := from.Format(types.DateLayout), to.Format(types.DateLayout)
	sums := make(map[string]float64)
	counts := make(map[string]int)
	seen := make(map[string]bool)
	for _, rec := range a.records {
		if rec.Date < lo || rec.Date > hi {
			continue
		}
		cell := rec.Date + "|" + rec.GVKeyIID
		sums[cell] += rec.Sentiment
		counts[cell]++
		seen[rec.GVKeyIID] = true
	}
	columns := make([]string, 0, len(seen))
	for id := range seen {
		columns = append(columns, id)
	}
	sort.Strings(columns)
	return sums, counts, columns
}

// forwardFill carries the last value down at most limit rows, then zero-fills.
func forwardFill(data [][]float64, limit int) {
	if len(data) == 0 {
		return
	}
	for c := range data[0] {
		last, gap, have := 0.0, 0, false
		for r := range data {
			v := data[r][c]
			switch {
			case !math.IsNaN(v):
				last, gap, have = v, 0, true
			case have && gap < limit:
				data[r][c] = last
				gap++
			default:
				data[r][c] = 0
				gap++
			}
		}
	}
}

// normalise scales each row to gross exposure scale.
func normalise(data [][]float64, scale float64) {
	for _, row := range data {
		var gross float64
		for _, v := range row {
			gross += math.Abs(v)
		}
		for c := range row {
			if gross == 0 {
				row[c] = 0
				continue
			}
			row[c] = row[c] / gross * scale
		}
	}
}

func clip(v, limit float64) float64 {
	if limit <= 0 {
		return v
	}
	return math.Max(-limit, math.Min(limit, v))
}

// Validate rebuilds the positions from two earlier start dates and checks
// that the overlapping rows agree.
func (a *Alpha) Validate(ctx context.Context, start, end int) (types.ValidationReport, error) {
	report := types.ValidationReport{Threshold: a.cfg.ValidationThreshold}

	from, err := ParseYYYYMMDD(start)
	if err != nil {
		return report, err
	}
	longStart := FormatYYYYMMDD(from.AddDate(0, 0, -a.cfg.LongLookbackDays))
	shortStart := FormatYYYYMMDD(from.AddDate(0, 0, -a.cfg.ShortLookbackDays))

	long, err := a.Get(ctx, longStart, end)
	if err != nil {
		return report, fmt.Errorf("long window: %w", err)
	}
	short, err := a.Get(ctx, shortStart, end)
	if err != nil {
		return report, fmt.Errorf("short window: %w", err)
	}

	longRows := make(map[string]int, len(long.Index))
	for i, d := range long.Index {
		longRows[d.Format(types.DateLayout)] = i
	}
	longCols := columnIndex(long.Columns)
	shortCols := columnIndex(short.Columns)
	union := make([]string, 0, len(longCols)+len(shortCols))
	union = append(union, long.Columns...)
	for _, col := range short.Columns {
		if _, ok := longCols[col]; !ok {
			union = append(union, col)
		}
	}

	for sr, d := range short.Index {
		lr, ok := longRows[d.Format(types.DateLayout)]
		if !ok {
			continue
		}
		report.OverlapDays++
		for _, col := range union {
			diff := math.Abs(cell(long, lr, longCols, col) - cell(short, sr, shortCols, col))
			report.TotalDiff += diff
			report.MaxPositionDiff = math.Max(report.MaxPositionDiff, diff)
		}
	}
	report.Passed = report.TotalDiff <= report.Threshold

	logger.Info(ctx, "start-date dependency check",
		"passed", report.Passed,
		"total_diff", report.TotalDiff,
		"threshold", report.Threshold,
		"overlap_days", report.OverlapDays)
	return report, nil
}

func columnIndex(cols []string) map[string]int {
	m := make(map[string]int, len(cols))
	for i, c := range cols {
		m[c] = i
	}
	return m
}

// cell reads a value, treating a missing column as a flat position.
func cell(f *Frame, row int, cols map[string]int, col string) float64 {
	c, ok := cols[col]
	if !ok {
		return 0
	}
	return f.Data[row][c]
}
