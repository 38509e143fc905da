package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/i474232898/morning-report/internal/market"
	"github.com/i474232898/morning-report/internal/report"
)

const schema = `CREATE TABLE IF NOT EXISTS reports (
	day TEXT PRIMARY KEY,
	id TEXT NOT NULL,
	comment TEXT NOT NULL,
	values_json TEXT NOT NULL,
	forwards_json TEXT NOT NULL,
	files_json TEXT NOT NULL,
	created_at TEXT NOT NULL
);`

const selectReport = `SELECT day, id, comment, values_json, forwards_json, files_json, created_at FROM reports`

// SQLiteStore persists reports in a SQLite database, one row per day.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database at path and applies the schema.
func NewSQLite(path string, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil && logger != nil {
		logger.Warn("could not set WAL mode", zap.Error(err))
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Save inserts r, replacing any report for the same day.
func (s *SQLiteStore) Save(ctx context.Context, r report.Report) error {
	values, err := json.Marshal(r.Values)
	if err != nil {
		return fmt.Errorf("encode values: %w", err)
	}
	forwards, err := json.Marshal(r.Forwards)
	if err != nil {
		return fmt.Errorf("encode forwards: %w", err)
	}
	files, err := json.Marshal(r.Files)
	if err != nil {
		return fmt.Errorf("encode files: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO reports(day, id, comment, values_json, forwards_json, files_json, created_at) VALUES(?,?,?,?,?,?,?)`,
		r.Day.Format(market.DayLayout), r.ID.String(), r.Comment,
		string(values), string(forwards), string(files),
		r.CreatedAt.UTC().Format(time.RFC3339Nano))
	return err
}

// Latest returns the report for the most recent day.
func (s *SQLiteStore) Latest(ctx context.Context) (report.Report, error) {
	return s.queryOne(ctx, selectReport+` ORDER BY day DESC LIMIT 1`)
}

// Get returns the report for day.
func (s *SQLiteStore) Get(ctx context.Context, day time.Time) (report.Report, error) {
	return s.queryOne(ctx, selectReport+` WHERE day = ?`, day.Format(market.DayLayout))
}

// List returns reports with days between from and to (inclusive), oldest first.
func (s *SQLiteStore) List(ctx context.Context, from, to time.Time) ([]report.Report, error) {
	rows, err := s.db.QueryContext(ctx, selectReport+` WHERE day >= ? AND day <= ? ORDER BY day`,
		from.Format(market.DayLayout), to.Format(market.DayLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []report.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) queryOne(ctx context.Context, query string, args ...any) (report.Report, error) {
	r, err := scanReport(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return report.Report{}, ErrNotFound
	}
	return r, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReport(row scanner) (report.Report, error) {
	var (
		r                                         report.Report
		day, id, values, forwards, files, created string
	)
	if err := row.Scan(&day, &id, &r.Comment, &values, &forwards, &files, &created); err != nil {
		return report.Report{}, err
	}

	var err error
	if r.Day, err = market.ParseDay(day); err != nil {
		return report.Report{}, err
	}
	if r.ID, err = uuid.Parse(id); err != nil {
		return report.Report{}, fmt.Errorf("report %s: %w", day, err)
	}
	if r.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return report.Report{}, fmt.Errorf("report %s: %w", day, err)
	}
	if err := json.Unmarshal([]byte(values), &r.Values); err != nil {
		return report.Report{}, fmt.Errorf("report %s values: %w", day, err)
	}
	if err := json.Unmarshal([]byte(forwards), &r.Forwards); err != nil {
		return report.Report{}, fmt.Errorf("report %s forwards: %w", day, err)
	}
	if err := json.Unmarshal([]byte(files), &r.Files); err != nil {
		return report.Report{}, fmt.Errorf("report %s files: %w", day, err)
	}
	return r, nil
}
