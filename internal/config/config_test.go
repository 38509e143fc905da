package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/morning-report/internal/market"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("THERMALS_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://syspower5.skm.no", cfg.SyspowerBaseURL)
	assert.Equal(t, "07:30", cfg.ReportAt)
	assert.Equal(t, "Europe/Oslo", cfg.ReportTZ.String())
	assert.Equal(t, 10*time.Minute, cfg.ReportTimeout)
	assert.Equal(t, 90, cfg.StoreMaxHistory)
	assert.Equal(t, "8080", cfg.Port)
	assert.False(t, cfg.ThermalsEnabled)
}

func TestLoadRecordsEnvFile(t *testing.T) {
	t.Setenv("THERMALS_ENABLED", "false")

	t.Chdir(t.TempDir())
	cfg, err := Load()
	require.NoError(t, err)
	require.Error(t, cfg.EnvFileErr)
	assert.True(t, os.IsNotExist(cfg.EnvFileErr))

	require.NoError(t, os.WriteFile(".env", []byte("MORNING_REPORT_ENV_FILE=1\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("MORNING_REPORT_ENV_FILE") })
	cfg, err = Load()
	require.NoError(t, err)
	assert.NoError(t, cfg.EnvFileErr)
	assert.Equal(t, "1", os.Getenv("MORNING_REPORT_ENV_FILE"))
}

func TestLoadRequiresMontelCredentialsWhenThermalsEnabled(t *testing.T) {
	t.Setenv("THERMALS_ENABLED", "true")
	t.Setenv("MONTEL_USERNAME", "")
	t.Setenv("MONTEL_PASSWORD", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("THERMALS_ENABLED", "false")

	t.Run("report time", func(t *testing.T) {
		t.Setenv("REPORT_AT", "7.30am")
		_, err := Load()
		require.Error(t, err)
	})

	t.Run("timeout", func(t *testing.T) {
		t.Setenv("REPORT_TIMEOUT", "soon")
		_, err := Load()
		require.ErrorContains(t, err, "REPORT_TIMEOUT")
	})

	t.Run("time zone", func(t *testing.T) {
		t.Setenv("REPORT_TZ", "Mars/Olympus")
		_, err := Load()
		require.ErrorContains(t, err, "REPORT_TZ")
	})
}

func TestLoadCatalogOverridesSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	yml := `
forwards:
  - { key: sys_q1, series: SYSQ1_C, unit: EUR/MWh }
thermals:
  selectors:
    export: '#export'
  instruments:
    - { key: coal, unit: USD/t, kind: session, page_path: /coal }
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	cat, err := LoadCatalog(path)
	require.NoError(t, err)

	assert.Len(t, cat.Weather, len(DefaultCatalog().Weather), "weather keeps defaults")
	require.Len(t, cat.Forwards, 1)
	assert.Equal(t, "SYSQ1_C", cat.Forwards[0].Series)
	require.Len(t, cat.Thermals.Instruments, 1)
	assert.Equal(t, market.KindSession, cat.Thermals.Instruments[0].Kind)
	assert.Equal(t, "#export", cat.Thermals.Selectors.Export)
	assert.Equal(t, `input[type="password"]`, cat.Thermals.Selectors.Password)
	assert.Equal(t, "16:00", cat.Thermals.NPClose)
}

func TestLoadCatalogRejectsUnknownKind(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	yml := `
thermals:
  instruments:
    - { key: coal, kind: weekly }
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	_, err := LoadCatalog(path)
	require.ErrorContains(t, err, "unknown kind")
}

func TestCatalogSeriesDeduplicates(t *testing.T) {
	series := DefaultCatalog().Series()

	seen := make(map[string]int)
	for _, s := range series {
		seen[s]++
	}
	for s, n := range seen {
		assert.Equal(t, 1, n, s)
	}
	assert.Contains(t, series, "SMHIPENNP_F")
	assert.Contains(t, series, "SKMPENNP_N")
}
