package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/i474232898/morning-report/internal/market"
	"github.com/i474232898/morning-report/internal/report"
)

var (
	// ErrNotFound is returned when no report exists for the requested day or range.
	ErrNotFound = errors.New("no morning report found")
)

// MemoryStore is a concurrency-safe in-memory report store.
type MemoryStore struct {
	mu sync.RWMutex

	// key: report day (YYYY-MM-DD)
	data map[string]report.Report

	// retention configuration
	maxHistory int           // max number of days kept
	maxAge     time.Duration // optional max age of a report day
	now        func() time.Time
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		data:       make(map[string]report.Report),
		maxHistory: maxHistory,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

// Save stores r, replacing any report for the same day, and enforces retention.
func (s *MemoryStore) Save(_ context.Context, r report.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[r.Day.Format(market.DayLayout)] = r

	days := s.sortedDaysLocked()

	// Enforce retention by count.
	if s.maxHistory > 0 && len(days) > s.maxHistory {
		for _, d := range days[:len(days)-s.maxHistory] {
			delete(s.data, d)
		}
		days = days[len(days)-s.maxHistory:]
	}

	// Enforce retention by age. The newest day is always kept.
	if s.maxAge > 0 {
		cutoff := s.now().Add(-s.maxAge)
		for _, d := range days[:len(days)-1] {
			if s.data[d].Day.Before(cutoff) {
				delete(s.data, d)
			}
		}
	}
	return nil
}

// Latest returns the report for the most recent day.
func (s *MemoryStore) Latest(_ context.Context) (report.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	days := s.sortedDaysLocked()
	if len(days) == 0 {
		return report.Report{}, ErrNotFound
	}
	return s.data[days[len(days)-1]], nil
}

// Get returns the report for day.
func (s *MemoryStore) Get(_ context.Context, day time.Time) (report.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.data[day.Format(market.DayLayout)]
	if !ok {
		return report.Report{}, ErrNotFound
	}
	return r, nil
}

// List returns all reports with days between from and to (inclusive), oldest first.
func (s *MemoryStore) List(_ context.Context, from, to time.Time) ([]report.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []report.Report
	for _, d := range s.sortedDaysLocked() {
		r := s.data[d]
		if !r.Day.Before(from) && !r.Day.After(to) {
			result = append(result, r)
		}
	}

	if len(result) == 0 {
		return nil, ErrNotFound
	}
	return result, nil
}

func (s *MemoryStore) sortedDaysLocked() []string {
	days := make([]string, 0, len(s.data))
	for d := range s.data {
		days = append(days, d)
	}
	sort.Strings(days)
	return days
}
