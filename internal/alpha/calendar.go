package alpha

import (
	"context"
	"fmt"
	"time"
)

// Calendar lists trading sessions between two days inclusive.
type Calendar interface {
	TradingDays(ctx context.Context, start, end time.Time) ([]time.Time, error)
}

// WeekdayCalendar treats every Monday to Friday as a session.
type WeekdayCalendar struct{}

func (WeekdayCalendar) TradingDays(_ context.Context, start, end time.Time) ([]time.Time, error) {
	start = truncateDay(start)
	end = truncateDay(end)
	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			days = append(days, d)
		}
	}
	return days, nil
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseYYYYMMDD converts 20240131 to 2024-01-31 UTC.
func ParseYYYYMMDD(v int) (time.Time, error) {
	t, err := time.Parse("20060102", fmt.Sprintf("%08d", v))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %d: %w", v, err)
	}
	return t, nil
}

func FormatYYYYMMDD(t time.Time) int {
	return t.Year()*10000 + int(t.Month())*100 + t.Day()
}
