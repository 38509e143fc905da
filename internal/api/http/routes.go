package httpapi

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/i474232898/morning-report/internal/common"
	"github.com/i474232898/morning-report/internal/market"
	"github.com/i474232898/morning-report/internal/report"
	"github.com/i474232898/morning-report/internal/store"
)

var validate = validator.New()

// Reports is the report service as seen by the API.
type Reports interface {
	Generate(ctx context.Context, day time.Time) (report.Report, error)
	GetLatest(ctx context.Context) (report.Report, error)
	GetByDay(ctx context.Context, day time.Time) (report.Report, error)
	List(ctx context.Context, from, to time.Time) ([]report.Report, error)
	Table(r report.Report) []report.Row
}

// ErrorHandler renders every error as {"error": true, "message": ...}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}

// generator runs at most one report generation at a time, detached from the request.
type generator struct {
	reports Reports
	timeout time.Duration
	logger  *zap.Logger
	running sync.Mutex
}

func (g *generator) start(day time.Time) bool {
	if !g.running.TryLock() {
		return false
	}
	go func() {
		defer g.running.Unlock()

		ctx := context.Background()
		if g.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, g.timeout)
			defer cancel()
		}
		if _, err := g.reports.Generate(ctx, day); err != nil {
			g.logger.Error("on-demand report failed", zap.String("day", day.Format(market.DayLayout)), zap.Error(err))
		}
	}()
	return true
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
// generateTimeout bounds reports triggered through the API.
func RegisterRoutes(app *fiber.App, reports Reports, generateTimeout time.Duration, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	gen := &generator{reports: reports, timeout: generateTimeout, logger: logger}

	v1 := app.Group("/api/v1")

	v1.Get("/reports/latest", func(c *fiber.Ctx) error {
		r, err := reports.GetLatest(c.UserContext())
		if err != nil {
			return lookupError(err, "no morning report generated yet")
		}
		return c.JSON(r)
	})

	v1.Get("/reports", func(c *fiber.Ctx) error {
		var req rangeQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		list, err := reports.List(c.UserContext(), req.From, req.To)
		if err != nil {
			return lookupError(err, "no morning reports for requested range")
		}

		return c.JSON(fiber.Map{
			"from":    req.From.Format(market.DayLayout),
			"to":      req.To.Format(market.DayLayout),
			"reports": list,
		})
	})

	v1.Get("/reports/:day", func(c *fiber.Ctx) error {
		day, err := market.ParseDay(c.Params("day"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		r, err := reports.GetByDay(c.UserContext(), day)
		if err != nil {
			return lookupError(err, "no morning report for requested day")
		}
		return c.JSON(r)
	})

	v1.Get("/reports/:day/table.csv", func(c *fiber.Ctx) error {
		day, err := market.ParseDay(c.Params("day"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		r, err := reports.GetByDay(c.UserContext(), day)
		if err != nil {
			return lookupError(err, "no morning report for requested day")
		}

		c.Attachment("morning_report_" + common.FileDay(day.Format(market.DayLayout)) + ".csv")
		return report.WriteCSV(c, reports.Table(r))
	})

	v1.Post("/reports", func(c *fiber.Ctx) error {
		var req generateRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		day, err := market.ParseDay(req.Day)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if !gen.start(day) {
			return fiber.NewError(fiber.StatusConflict, "a report is already being generated")
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"day":    req.Day,
			"status": "accepted",
		})
	})
}

func lookupError(err error, notFound string) error {
	if errors.Is(err, store.ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, notFound)
	}
	return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch morning report")
}

// generateRequest is the body of the generate endpoint.
type generateRequest struct {
	Day string `json:"day" validate:"required,datetime=2006-01-02"`
}

// rangeQuery holds query parameters for the list endpoint.
type rangeQuery struct {
	From time.Time `validate:"required"`
	To   time.Time `validate:"required,gtefield=From"`
}

func (q *rangeQuery) bind(c *fiber.Ctx) error {
	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := market.ParseDay(fromStr)
	if err != nil {
		return err
	}
	to, err := market.ParseDay(toStr)
	if err != nil {
		return err
	}

	q.From = from
	q.To = to
	return nil
}
