package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/i474232898/morning-report/internal/market"
	"github.com/i474232898/morning-report/internal/report"
)

// Generator produces the report for a day.
type Generator interface {
	Generate(ctx context.Context, day time.Time) (report.Report, error)
}

// Scheduler runs the morning report once every weekday.
type Scheduler struct {
	scheduler *gocron.Scheduler
	generator Generator
	at        string
	loc       *time.Location
	timeout   time.Duration
	logger    *zap.Logger
}

// New creates a new Scheduler that fires at the HH:MM time at in loc.
func New(generator Generator, at string, loc *time.Location, timeout time.Duration, logger *zap.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(loc),
		generator: generator,
		at:        at,
		loc:       loc,
		timeout:   timeout,
		logger:    logger.With(zap.String("component", "scheduler")),
	}
}

// Start schedules the daily job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	_, err := s.scheduler.Every(1).Day().At(s.at).Do(func() {
		s.run(time.Now().In(s.loc))
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.logger.Info("daily report scheduled", zap.String("at", s.at), zap.String("tz", s.loc.String()))
	return nil
}

func (s *Scheduler) run(now time.Time) {
	if now.Weekday() == time.Saturday || now.Weekday() == time.Sunday {
		s.logger.Info("weekend; skipping report")
		return
	}

	y, m, d := now.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	log := s.logger.With(zap.String("day", day.Format(market.DayLayout)))

	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	log.Info("running morning report job")
	if _, err := s.generator.Generate(ctx, day); err != nil {
		log.Error("morning report failed", zap.Error(err))
		return
	}
	log.Info("completed morning report job")
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
