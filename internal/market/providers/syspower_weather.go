package providers

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/i474232898/morning-report/internal/config"
	"github.com/i474232898/morning-report/internal/market"
)

// weatherHorizonDays is the number of forecast days after the report day.
const weatherHorizonDays = 9

// IncompleteDataError lists observations missing from a weather export.
type IncompleteDataError struct {
	Gaps []market.Gap
}

func (e *IncompleteDataError) Error() string {
	lines := make([]string, 0, len(e.Gaps))
	for _, g := range e.Gaps {
		lines = append(lines, fmt.Sprintf("%s: %s", g.Day.Format(syspowerDateLayout), g.Column))
	}
	return "some data is not loaded:\n" + strings.Join(lines, "\n")
}

// LoadWeather fetches the catalog's weather series from day-1 to day+9 and derives
// the precipitation and temperature figures of every metric.
func (p *SyspowerProvider) LoadWeather(ctx context.Context, day time.Time) (market.Values, error) {
	series := p.catalog.Series()
	start := day.AddDate(0, 0, -1)
	end := day.AddDate(0, 0, weatherHorizonDays)

	frame, err := p.FetchFrame(ctx, series, "day", start, end)
	if err != nil {
		return nil, err
	}

	values, err := DeriveWeather(frame, p.catalog.Weather)
	if err != nil {
		return nil, err
	}

	p.logger.Info("weather loaded",
		zap.String("day", day.Format(market.DayLayout)),
		zap.Int("values", len(values)),
	)
	return values, nil
}

// CheckComplete verifies that every series is fully populated. Previous-forecast series
// may lack their final row since yesterday's run does not reach that far.
func CheckComplete(frame *market.Frame, metrics []config.WeatherMetric) error {
	previous := make(map[string]bool)
	var columns []string
	seen := make(map[string]bool)
	for _, m := range metrics {
		previous[m.Previous] = true
		for _, c := range []string{m.Forecast, m.Previous, m.Normal} {
			if c != "" && !seen[c] {
				seen[c] = true
				columns = append(columns, c)
			}
		}
	}

	var gaps []market.Gap
	for i, day := range frame.Days {
		for _, c := range columns {
			col, ok := frame.Column(c)
			if !ok {
				continue
			}
			if previous[c] && i == frame.Len()-1 {
				continue
			}
			if i >= len(col) || math.IsNaN(col[i]) {
				gaps = append(gaps, market.Gap{Day: day, Column: c})
			}
		}
	}

	var absent []string
	for _, c := range columns {
		if _, ok := frame.Column(c); !ok {
			absent = append(absent, c)
		}
	}
	if len(absent) > 0 {
		return fmt.Errorf("series missing from export: %s", strings.Join(absent, ", "))
	}
	if len(gaps) > 0 {
		return &IncompleteDataError{Gaps: gaps}
	}
	return nil
}

// DeriveWeather computes report values from a frame whose first row is the day before
// the report day. Forecasts cover rows [1, n), previous forecasts rows [0, n-1) and
// normals rows [1, n). Precipitation is summed and converted from GWh to TWh;
// temperature is averaged.
func DeriveWeather(frame *market.Frame, metrics []config.WeatherMetric) (market.Values, error) {
	if err := CheckComplete(frame, metrics); err != nil {
		return nil, err
	}

	n := frame.Len()
	if n < 2 {
		return nil, fmt.Errorf("weather export has %d rows; need at least 2", n)
	}

	values := make(market.Values)
	for _, m := range metrics {
		var current, prev, norm float64
		switch m.Kind {
		case config.MetricPrecip:
			current = market.Round1(frame.Sum(m.Forecast, 1, n) / 1000)
			prev = frame.Sum(m.Previous, 0, n-1) / 1000
			if m.Normal != "" {
				norm = frame.Sum(m.Normal, 1, n) / 1000
			}
		case config.MetricTemp:
			current = market.Round1(frame.Mean(m.Forecast, 1, n))
			prev = frame.Mean(m.Previous, 0, n-1)
			if m.Normal != "" {
				norm = frame.Mean(m.Normal, 1, n)
			}
		default:
			return nil, fmt.Errorf("metric %s: unknown kind %q", m.Name, m.Kind)
		}

		key := m.Name + "_" + string(m.Kind)
		values[key] = current
		values[key+"_delta_prev"] = market.Round1(current - prev)
		if m.Normal != "" {
			values[key+"_delta_norm"] = market.Round1(current - norm)
		}
	}
	return values, nil
}
