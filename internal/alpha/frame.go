package alpha

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"reddit-alpha-agent/internal/types"
)

const isoLayout = "2006-01-02T15:04:05.000"

// Frame is a dense date x security matrix of position sizes.
type Frame struct {
	Index   []time.Time
	Columns []string
	Data    [][]float64
}

// NewFrame allocates a zero-filled frame.
func NewFrame(index []time.Time, columns []string) *Frame {
	data := make([][]float64, len(index))
	for i := range data {
		data[i] = make([]float64, len(columns))
	}
	return &Frame{Index: index, Columns: columns, Data: data}
}

// Shape returns [rows, columns].
func (f *Frame) Shape() [2]int {
	return [2]int{len(f.Index), len(f.Columns)}
}

// Preview returns the first n rows as column -> date -> value.
func (f *Frame) Preview(n int) map[string]map[string]float64 {
	n = min(n, len(f.Index))
	out := make(map[string]map[string]float64, len(f.Columns))
	for c, col := range f.Columns {
		vals := make(map[string]float64, n)
		for r := 0; r < n; r++ {
			vals[f.Index[r].Format(types.DateLayout)] = f.Data[r][c]
		}
		out[col] = vals
	}
	return out
}

// GrossExposure sums |position| over the last row.
func (f *Frame) GrossExposure() float64 {
	if len(f.Data) == 0 {
		return 0
	}
	var sum float64
	for _, v := range f.Data[len(f.Data)-1] {
		if v < 0 {
			v = -v
		}
		sum += v
	}
	return sum
}

type splitFrame struct {
	Columns []string          `json:"columns"`
	Index   []json.RawMessage `json:"index"`
	Data    [][]float64       `json:"data"`
}

// MarshalJSON writes the "split" layout with ISO timestamps.
func (f *Frame) MarshalJSON() ([]byte, error) {
	index := make([]json.RawMessage, len(f.Index))
	for i, d := range f.Index {
		index[i] = json.RawMessage(strconv.Quote(d.UTC().Format(isoLayout)))
	}
	cols := f.Columns
	if cols == nil {
		cols = []string{}
	}
	data := f.Data
	if data == nil {
		data = [][]float64{}
	}
	return json.Marshal(splitFrame{Columns: cols, Index: index, Data: data})
}

// UnmarshalJSON reads the "split" layout; index entries may be ISO strings
// or epoch milliseconds.
func (f *Frame) UnmarshalJSON(b []byte) error {
	var sf splitFrame
	if err := json.Unmarshal(b, &sf); err != nil {
		return err
	}
	if len(sf.Data) != len(sf.Index) {
		return fmt.Errorf("position frame: %d index entries but %d rows", len(sf.Index), len(sf.Data))
	}
	index := make([]time.Time, len(sf.Index))
	for i, raw := range sf.Index {
		d, err := parseIndex(raw)
		if err != nil {
			return fmt.Errorf("position frame index %d: %w", i, err)
		}
		index[i] = d
	}
	for r, row := range sf.Data {
		if len(row) != len(sf.Columns) {
			return fmt.Errorf("position frame row %d has %d values for %d columns", r, len(row), len(sf.Columns))
		}
	}
	f.Index, f.Columns, f.Data = index, sf.Columns, sf.Data
	return nil
}

func parseIndex(raw json.RawMessage) (time.Time, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		for _, layout := range []string{isoLayout, time.RFC3339, "2006-01-02T15:04:05", types.DateLayout} {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("unrecognised date %q", s)
	}
	var ms int64
	if err := json.Unmarshal(raw, &ms); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	return time.Time{}, errors.New("index entry is neither a string nor an integer")
}

// ParseFrame decodes a split-encoded frame.
func ParseFrame(s string) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal([]byte(s), &f); err != nil {
		return nil, err
	}
	return &f, nil
}
