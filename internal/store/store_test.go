package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/morning-report/internal/market"
	"github.com/i474232898/morning-report/internal/report"
)

func day(d int) time.Time {
	return time.Date(2024, time.March, d, 0, 0, 0, 0, time.UTC)
}

func sampleReport(d int) report.Report {
	return report.Report{
		ID:        uuid.New(),
		Day:       day(d),
		Values:    market.Values{"ec12_precip": 44.1, "coal_close": 120.5},
		Forwards:  []market.ForwardQuote{{Key: "sys_q1", Day: day(d - 1), Close: 42.5, Delta: -0.5}},
		Comment:   "EC12 adjusted is forecasting 45.3 TWh.",
		Files:     []string{"out/morning_report.txt"},
		CreatedAt: day(d).Add(7 * time.Hour),
	}
}

func stores(t *testing.T) map[string]report.Store {
	sqlite, err := NewSQLite(filepath.Join(t.TempDir(), "reports.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	return map[string]report.Store{
		"memory": NewMemoryStore(0, 0),
		"sqlite": sqlite,
	}
}

func TestStoreRoundTrip(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := t.Context()

			_, err := s.Latest(ctx)
			require.ErrorIs(t, err, ErrNotFound)

			for _, d := range []int{12, 8, 11} {
				require.NoError(t, s.Save(ctx, sampleReport(d)))
			}

			latest, err := s.Latest(ctx)
			require.NoError(t, err)
			assert.Equal(t, day(12), latest.Day)

			want := sampleReport(11)
			require.NoError(t, s.Save(ctx, want))
			got, err := s.Get(ctx, day(11))
			require.NoError(t, err)
			assert.Equal(t, want.ID, got.ID, "saving a day again replaces it")
			assert.Equal(t, want.Values, got.Values)
			assert.Equal(t, want.Forwards, got.Forwards)
			assert.Equal(t, want.Files, got.Files)
			assert.Equal(t, want.Comment, got.Comment)
			assert.True(t, want.CreatedAt.Equal(got.CreatedAt))

			_, err = s.Get(ctx, day(9))
			require.ErrorIs(t, err, ErrNotFound)

			list, err := s.List(ctx, day(9), day(12))
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, day(11), list[0].Day)
			assert.Equal(t, day(12), list[1].Day)

			_, err = s.List(ctx, day(1), day(5))
			require.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestMemoryStoreRetention(t *testing.T) {
	ctx := t.Context()

	byCount := NewMemoryStore(2, 0)
	for _, d := range []int{4, 5, 6} {
		require.NoError(t, byCount.Save(ctx, sampleReport(d)))
	}
	_, err := byCount.Get(ctx, day(4))
	require.ErrorIs(t, err, ErrNotFound)
	list, err := byCount.List(ctx, day(1), day(31))
	require.NoError(t, err)
	assert.Len(t, list, 2)

	byAge := NewMemoryStore(0, 48*time.Hour)
	byAge.now = func() time.Time { return day(10) }
	for _, d := range []int{5, 8, 9} {
		require.NoError(t, byAge.Save(ctx, sampleReport(d)))
	}
	_, err = byAge.Get(ctx, day(5))
	require.ErrorIs(t, err, ErrNotFound)
	_, err = byAge.Get(ctx, day(8))
	require.NoError(t, err)
}
