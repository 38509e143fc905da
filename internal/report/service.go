package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/i474232898/morning-report/internal/common"
	"github.com/i474232898/morning-report/internal/market"
)

// Report is a generated morning report.
type Report struct {
	ID        uuid.UUID             `json:"id"`
	Day       time.Time             `json:"day"`
	Values    market.Values         `json:"values"`
	Forwards  []market.ForwardQuote `json:"forwards,omitempty"`
	Comment   string                `json:"comment"`
	Files     []string              `json:"files"`
	CreatedAt time.Time             `json:"createdAt"`
}

// Store persists reports, one per day.
type Store interface {
	Save(ctx context.Context, r Report) error
	Latest(ctx context.Context) (Report, error)
	Get(ctx context.Context, day time.Time) (Report, error)
	List(ctx context.Context, from, to time.Time) ([]Report, error)
}

// Service orchestrates data collection, rendering and persistence.
type Service struct {
	weather     market.WeatherProvider
	thermals    market.ThermalsProvider
	forwards    market.ForwardProvider
	store       Store
	renderer    *Renderer
	instruments []market.Instrument
	outDir      string
	logger      *zap.Logger
	now         func() time.Time

	// running admits one generation at a time; runs share download and output paths.
	running chan struct{}
}

// Options carries the optional parts of a Service.
type Options struct {
	// Thermals may be nil to produce a weather-only report.
	Thermals market.ThermalsProvider
	// Forwards may be nil; forward quotes are then left out of the table.
	Forwards    market.ForwardProvider
	Instruments []market.Instrument
	Renderer    *Renderer
	Logger      *zap.Logger
}

// NewService creates a new Service writing report files into outDir.
func NewService(weather market.WeatherProvider, store Store, outDir string, opts Options) (*Service, error) {
	renderer := opts.Renderer
	if renderer == nil {
		var err error
		if renderer, err = NewRenderer(""); err != nil {
			return nil, err
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		weather:     weather,
		thermals:    opts.Thermals,
		forwards:    opts.Forwards,
		store:       store,
		renderer:    renderer,
		instruments: opts.Instruments,
		outDir:      outDir,
		logger:      logger,
		now:         time.Now,
		running:     make(chan struct{}, 1),
	}, nil
}

// Generate collects data for day, writes the report files and stores the report.
// Weather and thermals are required; forward quotes are best effort.
// Concurrent calls wait for the running generation to finish, or for ctx.
func (s *Service) Generate(ctx context.Context, day time.Time) (Report, error) {
	day = market.Truncate(day)
	log := s.logger.With(zap.String("day", day.Format(market.DayLayout)))

	select {
	case s.running <- struct{}{}:
	default:
		log.Info("waiting for running report generation")
		select {
		case s.running <- struct{}{}:
		case <-ctx.Done():
			return Report{}, fmt.Errorf("waiting for running report: %w", ctx.Err())
		}
	}
	defer func() { <-s.running }()

	log.Info("generating morning report")

	var (
		weather, thermals market.Values
		forwards          []market.ForwardQuote
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := s.weather.LoadWeather(gctx, day)
		if err != nil {
			return fmt.Errorf("load weather: %w", err)
		}
		weather = v
		log.Info("weather data loaded", zap.Int("values", len(v)))
		return nil
	})
	if s.thermals != nil {
		g.Go(func() error {
			v, err := s.thermals.LoadThermals(gctx, day)
			if err != nil {
				return fmt.Errorf("load thermals: %w", err)
			}
			thermals = v
			log.Info("thermals data loaded", zap.Int("values", len(v)))
			return nil
		})
	}
	if s.forwards != nil {
		g.Go(func() error {
			q, err := s.forwards.LoadForwards(gctx, day)
			if err != nil {
				log.Warn("forward quotes unavailable", zap.Error(err))
				return nil
			}
			forwards = q
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Error("report data collection failed", zap.Error(err))
		return Report{}, err
	}

	values := weather.Merge(thermals)
	comment, err := BuildComment(values, day)
	if err != nil {
		return Report{}, err
	}
	text, err := s.renderer.Render(comment)
	if err != nil {
		return Report{}, err
	}

	files, err := s.writeFiles(day, text, BuildTable(values, forwards, s.instruments...))
	if err != nil {
		return Report{}, err
	}

	r := Report{
		ID:        uuid.New(),
		Day:       day,
		Values:    values,
		Forwards:  forwards,
		Comment:   text,
		Files:     files,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.Save(ctx, r); err != nil {
		return Report{}, fmt.Errorf("save report: %w", err)
	}

	log.Info("morning report written", zap.Strings("files", files))
	return r, nil
}

func (s *Service) writeFiles(day time.Time, text string, rows []Row) ([]string, error) {
	if err := os.MkdirAll(s.outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	base := filepath.Join(s.outDir, "morning_report_"+common.FileDay(day.Format(market.DayLayout)))

	txt := base + ".txt"
	if err := os.WriteFile(txt, []byte(text), 0o644); err != nil {
		return nil, fmt.Errorf("write comment: %w", err)
	}

	csvPath := base + ".csv"
	f, err := os.Create(csvPath)
	if err != nil {
		return nil, fmt.Errorf("create table: %w", err)
	}
	if err := WriteCSV(f, rows); err != nil {
		f.Close()
		return nil, fmt.Errorf("write table: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, err
	}

	xlsx := base + ".xlsx"
	if err := WriteXLSX(xlsx, rows); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return []string{txt, csvPath, xlsx}, nil
}

// GetLatest returns the most recently generated report.
func (s *Service) GetLatest(ctx context.Context) (Report, error) {
	return s.store.Latest(ctx)
}

// GetByDay returns the report for day.
func (s *Service) GetByDay(ctx context.Context, day time.Time) (Report, error) {
	return s.store.Get(ctx, market.Truncate(day))
}

// List returns reports for days in [from, to], oldest first.
func (s *Service) List(ctx context.Context, from, to time.Time) ([]Report, error) {
	return s.store.List(ctx, market.Truncate(from), market.Truncate(to))
}

// Table rebuilds the tabular summary of a stored report.
func (s *Service) Table(r Report) []Row {
	return BuildTable(r.Values, r.Forwards, s.instruments...)
}
