// Package sqlite archives tabulated events in a local SQLite database so
// repeated runs build up a deduplicated history.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/couchcryptid/quake-catalog-etl/internal/adapter/sqlite/migrations"
	"github.com/couchcryptid/quake-catalog-etl/internal/domain"
)

// timeLayout is fixed width so text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store is the event archive. It implements pipeline.Sink.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (or creates) the archive at path and applies pending migrations.
func NewStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating archive directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Name() string { return "sqlite" }

// Load archives the table. It implements pipeline.Sink.
func (s *Store) Load(ctx context.Context, table domain.EventTable) error {
	_, err := s.Upsert(ctx, table)
	return err
}

// Upsert inserts rows that are not archived yet and returns how many were
// new. Rows already present are left untouched.
func (s *Store) Upsert(ctx context.Context, table domain.EventTable) (int, error) {
	if len(table) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO events (record_key, event_id, origin_time, latitude, longitude, depth_m,
			event_type, magnitude, magnitude_type, creation_info, info, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(record_key) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for i := range table {
		rec := &table[i]
		var depth sql.NullFloat64
		if rec.Depth != nil {
			depth = sql.NullFloat64{Float64: *rec.Depth, Valid: true}
		}
		res, err := stmt.ExecContext(ctx,
			recordKey(rec), rec.EventID, rec.OriginTime.UTC().Format(timeLayout),
			rec.Latitude, rec.Longitude, depth,
			rec.EventType, rec.Magnitude, rec.MagnitudeType, rec.CreationInfo, rec.Info,
			rec.FetchedAt.UTC().Format(timeLayout))
		if err != nil {
			return 0, fmt.Errorf("insert event %d: %w", i, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

// Count returns the number of archived events.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM events").Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// Events returns archived events ordered by origin time.
func (s *Store) Events(ctx context.Context) (domain.EventTable, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, origin_time, latitude, longitude, depth_m, event_type,
			magnitude, magnitude_type, creation_info, info, fetched_at
		FROM events ORDER BY origin_time
	`)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var table domain.EventTable
	for rows.Next() {
		var (
			rec             domain.EventRecord
			origin, fetched string
			depth           sql.NullFloat64
		)
		if err := rows.Scan(&rec.EventID, &origin, &rec.Latitude, &rec.Longitude, &depth,
			&rec.EventType, &rec.Magnitude, &rec.MagnitudeType, &rec.CreationInfo, &rec.Info, &fetched); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if rec.OriginTime, err = time.Parse(timeLayout, origin); err != nil {
			return nil, fmt.Errorf("parse origin time: %w", err)
		}
		if rec.FetchedAt, err = time.Parse(timeLayout, fetched); err != nil {
			return nil, fmt.Errorf("parse fetched time: %w", err)
		}
		if depth.Valid {
			d := depth.Float64
			rec.Depth = &d
		}
		table = append(table, rec)
	}
	return table, rows.Err()
}

// recordKey is the catalog event ID, or origin time and position when the
// catalog did not supply one.
func recordKey(rec *domain.EventRecord) string {
	if rec.EventID != "" {
		return rec.EventID
	}
	return fmt.Sprintf("%s@%.4f,%.4f", rec.OriginTime.UTC().Format(timeLayout), rec.Latitude, rec.Longitude)
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys fs.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil || version <= current {
			continue
		}
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}
	return nil
}
