package providers

import (
	"time"

	"github.com/i474232898/morning-report/internal/market"
)

// DeriveThermals turns collected price series into report values.
//
// Session instruments yield <key>_close (last price of the previous business day) and
// <key>_np_close (last price at or before the Nord Pool close that day). Both are zero
// when the instrument did not trade. Morning instruments yield <key>_last_price and
// <key>_last_delta against the previous business day's close.
func DeriveThermals(day time.Time, instruments []market.Instrument, series map[string]market.TickSeries, npClose time.Duration, loc *time.Location) market.Values {
	sessionDay := market.PreviousBusinessDay(day)
	values := make(market.Values)

	for _, inst := range instruments {
		ticks := series[inst.Key]
		closeTick, traded := ticks.LastOn(sessionDay, loc, 0)

		switch inst.Kind {
		case market.KindSession:
			if !traded {
				values[inst.Key+"_close"] = 0
				values[inst.Key+"_np_close"] = 0
				continue
			}
			values[inst.Key+"_close"] = closeTick.Price
			values[inst.Key+"_np_close"] = npReference(ticks, sessionDay, loc, npClose, closeTick)

		case market.KindMorning:
			last, ok := ticks.Last()
			if !ok {
				values[inst.Key+"_last_price"] = 0
				values[inst.Key+"_last_delta"] = 0
				continue
			}
			values[inst.Key+"_last_price"] = last.Price
			if traded {
				values[inst.Key+"_last_delta"] = market.Round1(last.Price - closeTick.Price)
			} else {
				values[inst.Key+"_last_delta"] = 0
			}
		}
	}
	return values
}

// npReference is the price at Nord Pool close. When nothing traded before the close,
// or the session close is a daily quote with no time of day, the previous close is
// used, and failing that the session close itself.
func npReference(ticks market.TickSeries, day time.Time, loc *time.Location, npClose time.Duration, closeTick market.Tick) float64 {
	if !closeTick.Daily {
		if t, ok := ticks.LastOn(day, loc, npClose); ok {
			return t.Price
		}
	}

	y, m, d := day.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	var (
		prev  market.Tick
		found bool
	)
	for _, t := range ticks {
		if t.Time.Before(start) && (!found || !t.Time.Before(prev.Time)) {
			prev, found = t, true
		}
	}
	if found {
		return prev.Price
	}
	return closeTick.Price
}
