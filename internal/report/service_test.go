package report

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/morning-report/internal/market"
)

type fakeWeather struct {
	values market.Values
	err    error
}

func (f fakeWeather) LoadWeather(context.Context, time.Time) (market.Values, error) {
	return f.values, f.err
}

// gatedWeather blocks each load until release is closed and records the peak
// number of loads in flight.
type gatedWeather struct {
	values  market.Values
	entered chan struct{}
	release chan struct{}
	active  atomic.Int32
	peak    atomic.Int32
}

func (g *gatedWeather) LoadWeather(ctx context.Context, _ time.Time) (market.Values, error) {
	n := g.active.Add(1)
	defer g.active.Add(-1)
	for {
		p := g.peak.Load()
		if n <= p || g.peak.CompareAndSwap(p, n) {
			break
		}
	}
	g.entered <- struct{}{}
	select {
	case <-g.release:
		return g.values, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type fakeThermals struct {
	values market.Values
	err    error
}

func (f fakeThermals) LoadThermals(ctx context.Context, _ time.Time) (market.Values, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.values, ctx.Err()
}

type fakeForwards struct {
	quotes []market.ForwardQuote
	err    error
}

func (f fakeForwards) LoadForwards(context.Context, time.Time) ([]market.ForwardQuote, error) {
	return f.quotes, f.err
}

type mapStore struct {
	mu      sync.Mutex
	reports map[string]Report
}

func (m *mapStore) Save(_ context.Context, r Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reports == nil {
		m.reports = make(map[string]Report)
	}
	m.reports[r.Day.Format(market.DayLayout)] = r
	return nil
}

func (m *mapStore) Latest(context.Context) (Report, error) { return Report{}, errors.New("unused") }

func (m *mapStore) Get(_ context.Context, day time.Time) (Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[day.Format(market.DayLayout)]
	if !ok {
		return Report{}, errors.New("not found")
	}
	return r, nil
}

func (m *mapStore) List(context.Context, time.Time, time.Time) ([]Report, error) { return nil, nil }

func TestServiceGenerate(t *testing.T) {
	out := t.TempDir()
	store := &mapStore{}
	svc, err := NewService(fakeWeather{values: weatherValues()}, store, out, Options{
		Thermals:    fakeThermals{values: thermalValues()},
		Forwards:    fakeForwards{quotes: []market.ForwardQuote{{Key: "sys_q1", Close: 42.5, Delta: 0.5}}},
		Instruments: testInstruments,
	})
	require.NoError(t, err)
	svc.now = func() time.Time { return time.Date(2024, 3, 11, 6, 30, 0, 0, time.UTC) }

	r, err := svc.Generate(t.Context(), monday.Add(9*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, monday, r.Day)
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, 120.5, r.Values["coal_close"])
	assert.Len(t, r.Forwards, 1)
	assert.Contains(t, r.Comment, "We expect market to open sideways")

	require.Equal(t, []string{
		filepath.Join(out, "morning_report_2024_03_11.txt"),
		filepath.Join(out, "morning_report_2024_03_11.csv"),
		filepath.Join(out, "morning_report_2024_03_11.xlsx"),
	}, r.Files)
	text, err := os.ReadFile(r.Files[0])
	require.NoError(t, err)
	assert.Equal(t, r.Comment, string(text))
	for _, f := range r.Files[1:] {
		assert.FileExists(t, f)
	}

	stored, err := svc.GetByDay(t.Context(), monday.Add(23*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, r.ID, stored.ID)

	rows := svc.Table(stored)
	assert.Equal(t, "sys_q1", rows[len(rows)-1].Indicator)
}

func TestServiceGenerateIgnoresForwardFailure(t *testing.T) {
	svc, err := NewService(fakeWeather{values: weatherValues()}, &mapStore{}, t.TempDir(), Options{
		Forwards: fakeForwards{err: errors.New("portal down")},
	})
	require.NoError(t, err)

	r, err := svc.Generate(t.Context(), monday)
	require.NoError(t, err)
	assert.Empty(t, r.Forwards)
	assert.Contains(t, r.Comment, "Weather forecasts are wetter overall.")
}

func TestServiceGenerateFailsOnThermals(t *testing.T) {
	store := &mapStore{}
	boom := errors.New("browser crashed")
	svc, err := NewService(fakeWeather{values: weatherValues()}, store, t.TempDir(), Options{
		Thermals: fakeThermals{err: boom},
	})
	require.NoError(t, err)

	_, err = svc.Generate(t.Context(), monday)
	require.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "load thermals")
	assert.Empty(t, store.reports)
}

func TestServiceGenerateFailsOnIncompleteWeather(t *testing.T) {
	values := weatherValues()
	delete(values, "ec12ens_temp")
	svc, err := NewService(fakeWeather{values: values}, &mapStore{}, t.TempDir(), Options{})
	require.NoError(t, err)

	_, err = svc.Generate(t.Context(), monday)
	var missing *market.MissingValuesError
	require.ErrorAs(t, err, &missing)
}

func TestServiceGenerateRunsOneAtATime(t *testing.T) {
	weather := &gatedWeather{
		values:  weatherValues(),
		entered: make(chan struct{}, 2),
		release: make(chan struct{}),
	}
	svc, err := NewService(weather, &mapStore{}, t.TempDir(), Options{})
	require.NoError(t, err)

	// A scheduled run and an on-demand run for the same day.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.Generate(t.Context(), monday)
		}()
	}

	<-weather.entered
	select {
	case <-weather.entered:
		t.Fatal("second generation started while the first was running")
	case <-time.After(50 * time.Millisecond):
	}

	close(weather.release)
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, int32(1), weather.peak.Load())
}

func TestServiceGenerateWaitHonoursContext(t *testing.T) {
	weather := &gatedWeather{
		values:  weatherValues(),
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	svc, err := NewService(weather, &mapStore{}, t.TempDir(), Options{})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Generate(t.Context(), monday)
		done <- err
	}()
	<-weather.entered

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	_, err = svc.Generate(ctx, monday)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorContains(t, err, "waiting for running report")

	close(weather.release)
	require.NoError(t, <-done)
}
