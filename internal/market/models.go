package market

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// DayLayout is the canonical day format used for keys, file names and the API.
const DayLayout = "2006-01-02"

// Values is the flat mapping of named report figures (e.g. "ec12_adj_precip", "coal_close").
type Values map[string]float64

// Merge returns a new Values containing v followed by others; later keys win.
func (v Values) Merge(others ...Values) Values {
	out := make(Values, len(v))
	for k, x := range v {
		out[k] = x
	}
	for _, o := range others {
		for k, x := range o {
			out[k] = x
		}
	}
	return out
}

// Get returns the value for key or zero when absent.
func (v Values) Get(key string) float64 {
	return v[key]
}

// Require reports every key that is absent from v.
func (v Values) Require(keys ...string) error {
	var missing []string
	for _, k := range keys {
		if _, ok := v[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return &MissingValuesError{Keys: missing}
}

// Keys returns the sorted keys of v.
func (v Values) Keys() []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MissingValuesError lists report values that were not produced by any provider.
type MissingValuesError struct {
	Keys []string
}

func (e *MissingValuesError) Error() string {
	return "missing report values: " + strings.Join(e.Keys, ", ")
}

// InstrumentKind selects how closing prices are derived for an instrument.
type InstrumentKind string

const (
	// KindSession instruments report the previous session close and the close at Nord Pool close.
	KindSession InstrumentKind = "session"
	// KindMorning instruments report the latest price and the move since the previous session close.
	KindMorning InstrumentKind = "morning"
)

// Instrument is a commodity contract tracked on the thermals portal.
type Instrument struct {
	Key      string         `yaml:"key" json:"key"`
	Name     string         `yaml:"name" json:"name"`
	Unit     string         `yaml:"unit" json:"unit"`
	Kind     InstrumentKind `yaml:"kind" json:"kind"`
	PagePath string         `yaml:"page_path" json:"pagePath"`
}

// Tick is a single observed price.
type Tick struct {
	Time  time.Time
	Price float64
	// Daily marks a quote that carries a date but no time of day.
	Daily bool
}

// TickSeries is ordered by Time ascending.
type TickSeries []Tick

// Sort orders the series by time.
func (s TickSeries) Sort() {
	sort.SliceStable(s, func(i, j int) bool { return s[i].Time.Before(s[j].Time) })
}

// LastOn returns the last tick falling on the calendar date of day, taken as a day in loc,
// at or before cutoff after midnight.
// A zero cutoff means end of day.
func (s TickSeries) LastOn(day time.Time, loc *time.Location, cutoff time.Duration) (Tick, bool) {
	y, m, d := day.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1)
	if cutoff > 0 {
		end = start.Add(cutoff).Add(time.Nanosecond)
	}

	var (
		last  Tick
		found bool
	)
	for _, t := range s {
		if t.Time.Before(start) || !t.Time.Before(end) {
			continue
		}
		if !found || !t.Time.Before(last.Time) {
			last = t
			found = true
		}
	}
	return last, found
}

// Last returns the most recent tick.
func (s TickSeries) Last() (Tick, bool) {
	if len(s) == 0 {
		return Tick{}, false
	}
	last := s[0]
	for _, t := range s[1:] {
		if !t.Time.Before(last.Time) {
			last = t
		}
	}
	return last, true
}

// ForwardQuote is the latest settlement of a forward contract series.
type ForwardQuote struct {
	Key   string    `json:"key"`
	Name  string    `json:"name"`
	Unit  string    `json:"unit"`
	Day   time.Time `json:"day"`
	Close float64   `json:"close"`
	Delta float64   `json:"delta"`
}

// Round1 rounds half away from zero to one decimal.
func Round1(x float64) float64 {
	return math.Round(x*10) / 10
}

// PreviousBusinessDay returns the weekday before day (Friday for a Monday).
func PreviousBusinessDay(day time.Time) time.Time {
	prev := day.AddDate(0, 0, -1)
	for prev.Weekday() == time.Saturday || prev.Weekday() == time.Sunday {
		prev = prev.AddDate(0, 0, -1)
	}
	return prev
}

// ParseDay parses a YYYY-MM-DD day in UTC.
func ParseDay(s string) (time.Time, error) {
	d, err := time.Parse(DayLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day %q; use YYYY-MM-DD", s)
	}
	return d, nil
}

// Truncate drops the clock part of t, keeping its calendar day in UTC.
func Truncate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
