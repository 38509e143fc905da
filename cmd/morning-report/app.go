package main

import (
	"fmt"
	"net/http"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/i474232898/morning-report/internal/config"
	"github.com/i474232898/morning-report/internal/logging"
	"github.com/i474232898/morning-report/internal/market/providers"
	"github.com/i474232898/morning-report/internal/report"
	"github.com/i474232898/morning-report/internal/store"
)

// app holds the components shared by the subcommands.
type app struct {
	cfg     *config.AppConfig
	logger  *zap.Logger
	service *report.Service
	close   func()
}

// setup loads configuration and wires providers, store and report service.
func setup() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.OutDir)
	if err != nil {
		return nil, err
	}
	if cfg.EnvFileErr != nil {
		logger.Info("no .env file loaded; using process environment", zap.Error(cfg.EnvFileErr))
	}

	catalog, err := config.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}

	// Shared HTTP client for outbound portal calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}
	syspower := providers.NewSyspowerProvider(httpClient, cfg.SyspowerBaseURL, cfg.SyspowerLogin, cfg.SyspowerPassword, cfg.SyspowerRPS, catalog, logger)

	opts := report.Options{
		Forwards:    syspower,
		Instruments: catalog.Thermals.Instruments,
		Logger:      logger,
	}
	if cfg.ThermalsEnabled {
		opts.Thermals = providers.NewMontelProvider(providers.MontelOptions{
			BaseURL:     cfg.MontelBaseURL,
			Username:    cfg.MontelUsername,
			Password:    cfg.MontelPassword,
			Headless:    cfg.BrowserHeadless,
			DownloadDir: filepath.Join(cfg.OutDir, "downloads"),
		}, catalog.Thermals, logger)
	} else {
		logger.Warn("thermals disabled; reports will cover weather and forwards only")
	}
	if len(catalog.Forwards) == 0 {
		opts.Forwards = nil
	}

	renderer, err := report.NewRenderer(cfg.TemplatePath)
	if err != nil {
		return nil, err
	}
	opts.Renderer = renderer

	var (
		reports report.Store
		closeFn = func() { _ = logger.Sync() }
	)
	if cfg.StoreDSN != "" {
		db, err := store.NewSQLite(cfg.StoreDSN, logger)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		reports = db
		closeFn = func() {
			if err := db.Close(); err != nil {
				logger.Warn("closing store", zap.Error(err))
			}
			_ = logger.Sync()
		}
	} else {
		reports = store.NewMemoryStore(cfg.StoreMaxHistory, cfg.StoreMaxAge)
	}

	service, err := report.NewService(syspower, reports, cfg.OutDir, opts)
	if err != nil {
		return nil, err
	}

	return &app{cfg: cfg, logger: logger, service: service, close: closeFn}, nil
}
