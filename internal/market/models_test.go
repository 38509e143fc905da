package market

import (
	"math"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValuesMergeAndRequire(t *testing.T) {
	a := Values{"x": 1, "y": 2}
	b := Values{"y": 3, "z": 4}

	merged := a.Merge(b)
	assert.Equal(t, Values{"x": 1, "y": 3, "z": 4}, merged)
	assert.Equal(t, 2.0, a["y"], "merge does not mutate the receiver")
	assert.Equal(t, []string{"x", "y", "z"}, merged.Keys())

	require.NoError(t, merged.Require("x", "z"))

	err := merged.Require("w", "x", "a")
	var missing *MissingValuesError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"a", "w"}, missing.Keys)
	assert.EqualError(t, err, "missing report values: a, w")
}

func TestTickSeriesLastOn(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Oslo")
	require.NoError(t, err)
	at := func(day, hour int) time.Time { return time.Date(2024, 3, day, hour, 0, 0, 0, loc) }

	s := TickSeries{
		{Time: at(8, 23), Price: 3},
		{Time: at(8, 9), Price: 1},
		{Time: at(8, 16), Price: 2},
		{Time: at(9, 0), Price: 4},
	}
	day := time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC)

	last, ok := s.LastOn(day, loc, 0)
	require.True(t, ok)
	assert.Equal(t, 3.0, last.Price)

	last, ok = s.LastOn(day, loc, 16*time.Hour)
	require.True(t, ok)
	assert.Equal(t, 2.0, last.Price)

	_, ok = s.LastOn(day.AddDate(0, 0, -1), loc, 0)
	assert.False(t, ok)

	s.Sort()
	assert.Equal(t, 1.0, s[0].Price)
	latest, _ := s.Last()
	assert.Equal(t, 4.0, latest.Price)
}

func TestTickSeriesLastOnShortDay(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Oslo")
	require.NoError(t, err)

	// Clocks go forward on 31 March 2024, so the day is 23 hours long.
	s := TickSeries{
		{Time: time.Date(2024, 3, 31, 23, 0, 0, 0, loc), Price: 1},
		{Time: time.Date(2024, 4, 1, 0, 30, 0, 0, loc), Price: 2},
	}
	last, ok := s.LastOn(time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), loc, 0)
	require.True(t, ok)
	assert.Equal(t, 1.0, last.Price)
}

func TestPreviousBusinessDay(t *testing.T) {
	tests := []struct {
		day, want string
	}{
		{"2024-03-11", "2024-03-08"}, // Monday
		{"2024-03-12", "2024-03-11"},
		{"2024-03-10", "2024-03-08"}, // Sunday
	}
	for _, tt := range tests {
		day, err := ParseDay(tt.day)
		require.NoError(t, err)
		assert.Equal(t, tt.want, PreviousBusinessDay(day).Format(DayLayout), tt.day)
	}
}

func TestParseDay(t *testing.T) {
	_, err := ParseDay("11.03.2024")
	require.ErrorContains(t, err, "YYYY-MM-DD")

	d := Truncate(time.Date(2024, 3, 11, 23, 59, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), d)
}

func TestRound1(t *testing.T) {
	assert.Equal(t, 0.1, Round1(0.05))
	assert.Equal(t, -0.1, Round1(-0.05))
	assert.Equal(t, 12.3, Round1(12.34))
}

func TestFrameAggregates(t *testing.T) {
	f := NewFrame("a")
	f.Days = make([]time.Time, 4)
	f.Columns["a"] = []float64{1, 2, 3, 4}

	assert.Equal(t, 9.0, f.Sum("a", 1, 4))
	assert.Equal(t, 3.0, f.Mean("a", 1, 4))
	assert.Equal(t, 3.5, f.Mean("a", 2, 10))
	assert.True(t, math.IsNaN(f.Mean("a", 3, 3)))
	assert.Zero(t, f.Sum("missing", 0, 4))
}
