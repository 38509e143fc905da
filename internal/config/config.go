package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // REPORT_TZ and np_close_tz must resolve without system zoneinfo

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// AppConfig holds runtime settings read from the environment.
type AppConfig struct {
	SyspowerBaseURL  string `validate:"required,url"`
	SyspowerLogin    string
	SyspowerPassword string
	// SyspowerRPS caps outbound requests per second to the analytics portal.
	SyspowerRPS float64 `validate:"gt=0"`

	MontelBaseURL   string `validate:"required,url"`
	MontelUsername  string `validate:"required_if=ThermalsEnabled true"`
	MontelPassword  string `validate:"required_if=ThermalsEnabled true"`
	ThermalsEnabled bool
	BrowserHeadless bool

	// OutDir receives report files and the log file.
	OutDir       string `validate:"required"`
	CatalogPath  string
	TemplatePath string

	// ReportAt is the daily wall-clock time (HH:MM) in ReportTZ for scheduled runs.
	ReportAt      string         `validate:"required,datetime=15:04"`
	ReportTZ      *time.Location `validate:"required"`
	ReportTimeout time.Duration  `validate:"gt=0"`

	HTTPTimeout time.Duration `validate:"gt=0"`

	// StoreDSN is a SQLite path; empty keeps reports in memory only.
	StoreDSN        string
	StoreMaxHistory int           // max number of reports kept in memory (0 = unlimited)
	StoreMaxAge     time.Duration // max age of reports kept in memory (0 = unlimited)

	Port     string `validate:"required,numeric"`
	LogLevel string `validate:"oneof=debug info warn error"`

	// EnvFileErr records why no .env file was loaded; the environment alone is used then.
	EnvFileErr error `validate:"-"`
}

var validate = validator.New()

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{}
	cfg.EnvFileErr = godotenv.Load()

	cfg.SyspowerBaseURL = strings.TrimRight(getenvDefault("SYSPOWER_BASE_URL", "https://syspower5.skm.no"), "/")
	cfg.SyspowerLogin = os.Getenv("SYSPOWER_LOGIN")
	cfg.SyspowerPassword = os.Getenv("SYSPOWER_PASSWORD")
	cfg.SyspowerRPS = getenvFloat("SYSPOWER_RPS", 2)

	cfg.MontelBaseURL = strings.TrimRight(getenvDefault("MONTEL_BASE_URL", "https://app.montelnews.com"), "/")
	cfg.MontelUsername = os.Getenv("MONTEL_USERNAME")
	cfg.MontelPassword = os.Getenv("MONTEL_PASSWORD")
	cfg.ThermalsEnabled = getenvBool("THERMALS_ENABLED", true)
	cfg.BrowserHeadless = getenvBool("BROWSER_HEADLESS", true)

	cfg.OutDir = getenvDefault("OUT_DIR", "out")
	cfg.CatalogPath = os.Getenv("CATALOG_PATH")
	cfg.TemplatePath = os.Getenv("TEMPLATE_PATH")

	cfg.ReportAt = getenvDefault("REPORT_AT", "07:30")
	tz, err := time.LoadLocation(getenvDefault("REPORT_TZ", "Europe/Oslo"))
	if err != nil {
		return nil, fmt.Errorf("invalid REPORT_TZ: %w", err)
	}
	cfg.ReportTZ = tz

	if cfg.ReportTimeout, err = getenvDuration("REPORT_TIMEOUT", "10m"); err != nil {
		return nil, err
	}
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "30s"); err != nil {
		return nil, err
	}

	cfg.StoreDSN = os.Getenv("STORE_DSN")
	cfg.StoreMaxHistory = getenvInt("STORE_MAX_HISTORY", 90) // roughly a quarter of business days
	if cfg.StoreMaxAge, err = getenvDuration("STORE_MAX_AGE", "2160h"); err != nil {
		return nil, err
	}

	cfg.Port = getenvDefault("PORT", "8080")
	cfg.LogLevel = strings.ToLower(getenvDefault("LOG_LEVEL", "info"))

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
