package providers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/i474232898/morning-report/internal/config"
	"github.com/i474232898/morning-report/internal/market"
)

// thermalsSession is a logged-in portal session able to export instrument prices.
type thermalsSession interface {
	Login(ctx context.Context) error
	// Export downloads the instrument's price export for day and returns the file path.
	Export(ctx context.Context, inst market.Instrument, day time.Time) (string, error)
	// QuotePage returns the rendered HTML of the instrument page.
	QuotePage(ctx context.Context, inst market.Instrument) (string, error)
	Close()
}

// MontelOptions configures the thermals portal session.
type MontelOptions struct {
	BaseURL     string
	Username    string
	Password    string
	Headless    bool
	DownloadDir string
}

// MontelProvider collects commodity closing prices by driving the thermals portal in a
// headless browser. It implements market.ThermalsProvider.
type MontelProvider struct {
	name       string
	opts       MontelOptions
	thermals   config.Thermals
	backoff    BackoffConfig
	newSession func(ctx context.Context, opts MontelOptions, sel config.Selectors, logger *zap.Logger) (thermalsSession, error)
	logger     *zap.Logger
}

// NewMontelProvider creates a provider backed by a chromedp browser session.
func NewMontelProvider(opts MontelOptions, thermals config.Thermals, logger *zap.Logger) *MontelProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MontelProvider{
		name:     "montel",
		opts:     opts,
		thermals: thermals,
		backoff:  DefaultBackoff,
		newSession: func(ctx context.Context, opts MontelOptions, sel config.Selectors, logger *zap.Logger) (thermalsSession, error) {
			return newChromeSession(ctx, opts, sel, logger)
		},
		logger: logger.With(zap.String("provider", "montel")),
	}
}

func (p *MontelProvider) Name() string {
	return p.name
}

// LoadThermals logs in, collects the price series of every configured instrument and
// derives closing prices relative to the previous business day.
func (p *MontelProvider) LoadThermals(ctx context.Context, day time.Time) (market.Values, error) {
	npClose, loc, err := p.closeSettings()
	if err != nil {
		return nil, err
	}

	opts := p.opts
	opts.DownloadDir = filepath.Join(p.opts.DownloadDir, day.Format(market.DayLayout))
	if err := os.MkdirAll(opts.DownloadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create download dir: %w", err)
	}

	session, err := p.newSession(ctx, opts, p.thermals.Selectors, p.logger)
	if err != nil {
		return nil, fmt.Errorf("start browser: %w", err)
	}
	defer session.Close()

	if err := p.withRetry(ctx, "login", func() error { return session.Login(ctx) }); err != nil {
		return nil, fmt.Errorf("montel login: %w", err)
	}

	sessionDay := market.PreviousBusinessDay(day)
	series := make(map[string]market.TickSeries, len(p.thermals.Instruments))
	for _, inst := range p.thermals.Instruments {
		ticks, err := p.collect(ctx, session, inst, sessionDay, loc)
		if err != nil {
			return nil, fmt.Errorf("instrument %s: %w", inst.Key, err)
		}
		if inst.Kind == market.KindMorning {
			// Morning instruments also need this morning's ticks. Without them the
			// latest price is the session close.
			today, err := p.collect(ctx, session, inst, day, loc)
			switch {
			case ctx.Err() != nil:
				return nil, ctx.Err()
			case err != nil:
				p.logger.Warn("no morning ticks", zap.String("instrument", inst.Key), zap.Error(err))
			default:
				ticks = mergeTicks(ticks, today)
			}
		}
		series[inst.Key] = ticks
		p.logger.Info("instrument collected", zap.String("instrument", inst.Key), zap.Int("ticks", len(ticks)))
	}

	return DeriveThermals(day, p.thermals.Instruments, series, npClose, loc), nil
}

// collect prefers the spreadsheet export and falls back to the page's quote table.
func (p *MontelProvider) collect(ctx context.Context, session thermalsSession, inst market.Instrument, day time.Time, loc *time.Location) (market.TickSeries, error) {
	var path string
	exportErr := p.withRetry(ctx, "export "+inst.Key, func() error {
		var err error
		path, err = session.Export(ctx, inst, day)
		return err
	})
	if exportErr == nil {
		ticks, err := ParseExport(path, loc)
		if err == nil {
			return ticks, nil
		}
		exportErr = err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	p.logger.Warn("export unavailable; reading quote table",
		zap.String("instrument", inst.Key),
		zap.Error(exportErr),
	)

	html, err := session.QuotePage(ctx, inst)
	if err != nil {
		return nil, errors.Join(exportErr, err)
	}
	ticks, err := ParseQuoteTable(html, loc)
	if err != nil {
		return nil, errors.Join(exportErr, err)
	}
	return ticks, nil
}

// mergeTicks combines two exports, dropping ticks present in both.
func mergeTicks(a, b market.TickSeries) market.TickSeries {
	out := make(market.TickSeries, 0, len(a)+len(b))
	seen := make(map[int64]float64, len(a))
	for _, t := range a {
		seen[t.Time.UnixNano()] = t.Price
		out = append(out, t)
	}
	for _, t := range b {
		if price, ok := seen[t.Time.UnixNano()]; ok && price == t.Price {
			continue
		}
		out = append(out, t)
	}
	out.Sort()
	return out
}

// withRetry runs fn with the provider's bounded exponential backoff.
func (p *MontelProvider) withRetry(ctx context.Context, step string, fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if ctx.Err() != nil || attempt >= p.backoff.MaxRetries {
			return err
		}
		p.logger.Debug("retrying browser step", zap.String("step", step), zap.Int("attempt", attempt+1), zap.Error(err))
		if werr := sleepBackoff(ctx, p.backoff, attempt); werr != nil {
			return err
		}
	}
}

func (p *MontelProvider) closeSettings() (time.Duration, *time.Location, error) {
	loc, err := time.LoadLocation(p.thermals.NPCloseTZ)
	if err != nil {
		return 0, nil, fmt.Errorf("invalid np_close_tz: %w", err)
	}
	t, err := time.Parse("15:04", p.thermals.NPClose)
	if err != nil {
		return 0, nil, fmt.Errorf("invalid np_close: %w", err)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, loc, nil
}
