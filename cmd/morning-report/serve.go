package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httpapi "github.com/i474232898/morning-report/internal/api/http"
	"github.com/i474232898/morning-report/internal/scheduler"
)

// serveCmd runs the API and the daily scheduler until interrupted.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the report API and generate reports every weekday",
	RunE:  serve,
}

func serve(cmd *cobra.Command, _ []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()
	log := a.logger

	// Scheduler that generates the report every weekday morning.
	sched := scheduler.New(a.service, a.cfg.ReportAt, a.cfg.ReportTZ, a.cfg.ReportTimeout, log)
	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "morning-report",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "morning-report",
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, a.service, a.cfg.ReportTimeout, log)

	go func() {
		log.Info("listening", zap.String("port", a.cfg.Port))
		if err := app.Listen(":" + a.cfg.Port); err != nil {
			log.Warn("fiber server stopped", zap.Error(err))
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error("error during shutdown", zap.Error(err))
	}
	return nil
}
