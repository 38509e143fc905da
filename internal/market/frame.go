package market

import (
	"math"
	"time"
)

// Frame is a day-indexed table of numeric series as returned by the analytics portal.
// Missing observations are stored as NaN.
type Frame struct {
	Days    []time.Time
	Order   []string
	Columns map[string][]float64
}

// NewFrame creates an empty frame with the given column order.
func NewFrame(columns ...string) *Frame {
	f := &Frame{
		Order:   append([]string(nil), columns...),
		Columns: make(map[string][]float64, len(columns)),
	}
	for _, c := range columns {
		f.Columns[c] = nil
	}
	return f
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	return len(f.Days)
}

// Column returns the values of a named series and whether it exists.
func (f *Frame) Column(name string) ([]float64, bool) {
	col, ok := f.Columns[name]
	return col, ok
}

// Sum adds rows [from, to) of a column.
func (f *Frame) Sum(name string, from, to int) float64 {
	col := f.Columns[name]
	var sum float64
	for i := from; i < to && i < len(col); i++ {
		sum += col[i]
	}
	return sum
}

// Mean averages rows [from, to) of a column. An empty range yields NaN.
func (f *Frame) Mean(name string, from, to int) float64 {
	if to > len(f.Columns[name]) {
		to = len(f.Columns[name])
	}
	if to <= from {
		return math.NaN()
	}
	return f.Sum(name, from, to) / float64(to-from)
}

// Gap is a missing observation in a frame.
type Gap struct {
	Day    time.Time
	Column string
}
