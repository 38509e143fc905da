package providers

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/i474232898/morning-report/internal/config"
	"github.com/i474232898/morning-report/internal/market"
)

// forwardLookbackDays covers a long weekend plus holidays.
const forwardLookbackDays = 7

// LoadForwards fetches the catalog's forward series and returns the latest settlement
// with its change against the previous settlement.
func (p *SyspowerProvider) LoadForwards(ctx context.Context, day time.Time) ([]market.ForwardQuote, error) {
	if len(p.catalog.Forwards) == 0 {
		return nil, nil
	}

	series := make([]string, 0, len(p.catalog.Forwards))
	for _, f := range p.catalog.Forwards {
		series = append(series, f.Series)
	}

	frame, err := p.FetchFrame(ctx, series, "day", day.AddDate(0, 0, -forwardLookbackDays), day)
	if err != nil {
		return nil, err
	}

	quotes := DeriveForwards(frame, p.catalog.Forwards)
	if len(quotes) < len(p.catalog.Forwards) {
		p.logger.Warn("some forward series have no settlements",
			zap.Int("requested", len(p.catalog.Forwards)),
			zap.Int("found", len(quotes)),
		)
	}
	return quotes, nil
}

// DeriveForwards picks the last two settlements of each series. Series with no data
// are skipped; a single settlement yields a zero delta.
func DeriveForwards(frame *market.Frame, forwards []config.ForwardSeries) []market.ForwardQuote {
	var quotes []market.ForwardQuote
	for _, f := range forwards {
		col, ok := frame.Column(f.Series)
		if !ok {
			continue
		}

		last, prev := -1, -1
		for i := len(col) - 1; i >= 0; i-- {
			if math.IsNaN(col[i]) {
				continue
			}
			if last < 0 {
				last = i
				continue
			}
			prev = i
			break
		}
		if last < 0 {
			continue
		}

		q := market.ForwardQuote{
			Key:   f.Key,
			Name:  f.Name,
			Unit:  f.Unit,
			Day:   frame.Days[last],
			Close: col[last],
		}
		if prev >= 0 {
			q.Delta = market.Round1(col[last] - col[prev])
		}
		quotes = append(quotes, q)
	}
	return quotes
}
