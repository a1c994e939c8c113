// Package history persists readings to SQLite for history queries.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"radiation_exporter/internal/types"
)

//go:embed sql/create-tables.sql
var createTablesSQL string

//go:embed sql/insert-reading.sql
var insertReadingSQL string

//go:embed sql/get-latest-reading.sql
var getLatestReadingSQL string

//go:embed sql/get-readings.sql
var getReadingsSQL string

//go:embed sql/get-readings-count.sql
var getReadingsCountSQL string

// StoredReading is a persisted reading plus the wall-clock time it was recorded.
type StoredReading struct {
	types.Reading
	RecordedAt time.Time `json:"recorded_at"`
}

// Repository stores and queries reading history.
type Repository interface {
	InsertReading(reading *types.Reading, recordedAt time.Time) error
	LatestReading(stationCode string) (*StoredReading, error)
	Readings(stationCode string, from, to time.Time, limit int) ([]StoredReading, error)
	ReadingCount(stationCode string) (int, error)
}

// Open opens (creating if needed) the SQLite database at path with sensible
// defaults for a single low-traffic writer.
func Open(path string) (*sql.DB, error) {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	params := []string{
		"_foreign_keys=on",
		"_busy_timeout=5000",
		"_journal_mode=WAL",
	}
	dsn := fmt.Sprintf("file:%s?%s", path, strings.Join(params, "&"))

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}

	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	return db, nil
}

// Migrate creates the schema if it does not exist.
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(createTablesSQL); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

type repositoryImpl struct {
	db *sql.DB
}

// NewRepository creates a Repository over an open database.
func NewRepository(db *sql.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) InsertReading(reading *types.Reading, recordedAt time.Time) error {
	_, err := r.db.Exec(insertReadingSQL,
		reading.StationCode,
		reading.Timestamp,
		reading.Value,
		reading.RawValue,
		reading.ReturnedCode,
		reading.Stamp,
		reading.Divisor,
		reading.Status,
		recordedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert reading: %w", err)
	}
	return nil
}

func (r *repositoryImpl) LatestReading(stationCode string) (*StoredReading, error) {
	row := r.db.QueryRow(getLatestReadingSQL, stationCode)
	rec, err := scanReading(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *repositoryImpl) Readings(stationCode string, from, to time.Time, limit int) ([]StoredReading, error) {
	fromStr := from.UTC().Format(time.RFC3339Nano)
	toStr := to.UTC().Format(time.RFC3339Nano)

	rows, err := r.db.Query(getReadingsSQL, stationCode, fromStr, toStr, limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close readings rows", "error", err)
		}
	}()

	var out []StoredReading
	for rows.Next() {
		rec, err := scanReading(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (r *repositoryImpl) ReadingCount(stationCode string) (int, error) {
	var n int
	err := r.db.QueryRow(getReadingsCountSQL, stationCode).Scan(&n)
	return n, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReading(row rowScanner) (*StoredReading, error) {
	var rec StoredReading
	var recordedAt string
	if err := row.Scan(
		&rec.StationCode,
		&rec.Timestamp,
		&rec.Value,
		&rec.RawValue,
		&rec.ReturnedCode,
		&rec.Stamp,
		&rec.Divisor,
		&rec.Status,
		&recordedAt,
	); err != nil {
		return nil, err
	}

	t, err := time.Parse(time.RFC3339Nano, recordedAt)
	if err != nil {
		return nil, fmt.Errorf("parse recorded_at %q: %w", recordedAt, err)
	}
	rec.RecordedAt = t

	return &rec, nil
}

// Sink adapts a Repository to the scheduler's sink contract.
type Sink struct {
	repo Repository
}

// NewSink wraps a repository for use as a scheduler sink.
func NewSink(repo Repository) *Sink {
	return &Sink{repo: repo}
}

// Publish records the reading with the current time.
func (s *Sink) Publish(_ context.Context, reading *types.Reading) error {
	return s.repo.InsertReading(reading, time.Now())
}

// Name implements the sink contract.
func (s *Sink) Name() string {
	return "history"
}
