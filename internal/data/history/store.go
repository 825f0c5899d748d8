// Package history persists analysis runs in SQLite so results can be
// compared over time.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	domainerrors "pyimports/internal/core/errors"
	"pyimports/internal/engine/parser"
	"pyimports/internal/engine/resolver"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const (
	driverName         = "sqlite"
	maxAttempts        = 5
	defaultProjectKey  = "default"
	defaultBusyTimeout = 2 * time.Second

	// Fixed-width timestamps keep lexical and chronological order equal.
	timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

type Store struct {
	path string
	db   *sql.DB
	mu   sync.Mutex
}

// Open opens or creates the database at path and migrates it. A zero
// busyTimeout uses two seconds.
func Open(path string, busyTimeout time.Duration) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("history path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("history path %q is a directory, expected file", cleanPath)
	}
	if busyTimeout <= 0 {
		busyTimeout = defaultBusyTimeout
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history directory %q: %w", dir, err)
		}
	}

	// busy_timeout + WAL reduce lock conflicts during watch-mode churn.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)",
		cleanPath, busyTimeout.Milliseconds())
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite history %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite history %q: %w", cleanPath, err)
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema %q: %w", cleanPath, err)
	}

	return &Store{path: cleanPath, db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveRun stores run and its records in one transaction and returns the run
// id, generating one when run.ID is empty.
func (s *Store) SaveRun(ctx context.Context, run Run) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if strings.TrimSpace(run.ProjectKey) == "" {
		run.ProjectKey = defaultProjectKey
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = run.StartedAt
	}

	err := s.withRetry("save run", func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, `
INSERT INTO runs (id, project_key, command, root, started_at_utc, finished_at_utc)
VALUES (?, ?, ?, ?, ?, ?)`,
			run.ID, run.ProjectKey, run.Command, run.Root,
			run.StartedAt.UTC().Format(timestampLayout),
			run.FinishedAt.UTC().Format(timestampLayout),
		); err != nil {
			return err
		}

		evStmt, err := tx.PrepareContext(ctx, `
INSERT INTO import_events (run_id, seq, line, import_type, name, local, filename, filetype, cell)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer evStmt.Close()
		for i, ev := range run.Events {
			var cell sql.NullInt64
			if ev.Cell != nil {
				cell = sql.NullInt64{Int64: int64(*ev.Cell), Valid: true}
			}
			if _, err := evStmt.ExecContext(ctx, run.ID, i, ev.Line, string(ev.Kind), ev.Name, ev.Local,
				ev.Filename, string(ev.FileType), cell); err != nil {
				return err
			}
		}

		atStmt, err := tx.PrepareContext(ctx, `
INSERT INTO attributions (run_id, seq, name, filename, filetype, fromtype, mode, importname)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer atStmt.Close()
		for i, a := range run.Attributions {
			if _, err := atStmt.ExecContext(ctx, run.ID, i, a.Name, a.Filename, string(a.FileType),
				a.FromType, string(a.Mode), a.ImportName); err != nil {
				return err
			}
		}

		return tx.Commit()
	})
	if err != nil {
		return "", err
	}
	return run.ID, nil
}

// ListRuns returns the newest runs of projectKey first. A non-positive limit
// returns every run.
func (s *Store) ListRuns(ctx context.Context, projectKey string, limit int) ([]RunSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	projectKey = strings.TrimSpace(projectKey)
	if projectKey == "" {
		projectKey = defaultProjectKey
	}

	query := `
SELECT
  r.id, r.project_key, r.command, r.root, r.started_at_utc, r.finished_at_utc,
  (SELECT COUNT(*) FROM import_events e WHERE e.run_id = r.id),
  (SELECT COUNT(*) FROM attributions a WHERE a.run_id = r.id),
  (SELECT COUNT(DISTINCT a.name) FROM attributions a WHERE a.run_id = r.id AND a.name NOT IN (?, ?)),
  (SELECT COUNT(*) FROM attributions a WHERE a.run_id = r.id AND a.name = ?)
FROM runs r
WHERE r.project_key = ?
ORDER BY r.started_at_utc DESC, r.id ASC
`
	args := []any{resolver.PackageBuiltin, resolver.PackageUnknown, resolver.PackageUnknown, projectKey}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var rows *sql.Rows
	err := s.withRetry("list runs", func() error {
		var qErr error
		rows, qErr = s.db.QueryContext(ctx, query, args...)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]RunSummary, 0)
	for rows.Next() {
		var (
			summary             RunSummary
			startedRaw, doneRaw string
		)
		if err := rows.Scan(
			&summary.ID, &summary.ProjectKey, &summary.Command, &summary.Root, &startedRaw, &doneRaw,
			&summary.EventCount, &summary.AttributionCount, &summary.PackageCount, &summary.UnknownCount,
		); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		if summary.StartedAt, err = parseTimestamp(startedRaw); err != nil {
			return nil, err
		}
		if summary.FinishedAt, err = parseTimestamp(doneRaw); err != nil {
			return nil, err
		}
		runs = append(runs, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}
	return runs, nil
}

// LoadRecords returns a stored run with its events and attributions in their
// original order.
func (s *Store) LoadRecords(ctx context.Context, runID string) (Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		run                 Run
		startedRaw, doneRaw string
	)
	err := s.db.QueryRowContext(ctx, `
SELECT id, project_key, command, root, started_at_utc, finished_at_utc FROM runs WHERE id = ?`, runID).
		Scan(&run.ID, &run.ProjectKey, &run.Command, &run.Root, &startedRaw, &doneRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, domainerrors.New(domainerrors.CodeNotFound, fmt.Sprintf("run %q not found", runID))
	}
	if err != nil {
		return Run{}, fmt.Errorf("load run %q: %w", runID, err)
	}
	if run.StartedAt, err = parseTimestamp(startedRaw); err != nil {
		return Run{}, err
	}
	if run.FinishedAt, err = parseTimestamp(doneRaw); err != nil {
		return Run{}, err
	}

	if run.Events, err = s.loadEvents(ctx, runID); err != nil {
		return Run{}, err
	}
	if run.Attributions, err = s.loadAttributions(ctx, runID); err != nil {
		return Run{}, err
	}
	return run, nil
}

func (s *Store) loadEvents(ctx context.Context, runID string) ([]parser.ImportEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT line, import_type, name, local, filename, filetype, cell
FROM import_events WHERE run_id = ? ORDER BY seq ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	defer rows.Close()

	events := make([]parser.ImportEvent, 0)
	for rows.Next() {
		var (
			ev       parser.ImportEvent
			kind, ft string
			cell     sql.NullInt64
		)
		if err := rows.Scan(&ev.Line, &kind, &ev.Name, &ev.Local, &ev.Filename, &ft, &cell); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		ev.Kind = parser.ImportKind(kind)
		ev.FileType = parser.FileType(ft)
		if cell.Valid {
			index := int(cell.Int64)
			ev.Cell = &index
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (s *Store) loadAttributions(ctx context.Context, runID string) ([]resolver.Attribution, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT name, filename, filetype, fromtype, mode, importname
FROM attributions WHERE run_id = ? ORDER BY seq ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("load attributions: %w", err)
	}
	defer rows.Close()

	out := make([]resolver.Attribution, 0)
	for rows.Next() {
		var (
			a        resolver.Attribution
			ft, mode string
		)
		if err := rows.Scan(&a.Name, &a.Filename, &ft, &a.FromType, &mode, &a.ImportName); err != nil {
			return nil, fmt.Errorf("scan attribution row: %w", err)
		}
		a.FileType = parser.FileType(ft)
		a.Mode = resolver.Mode(mode)
		out = append(out, a)
	}
	return out, rows.Err()
}

func parseTimestamp(raw string) (time.Time, error) {
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse run timestamp %q: %w", raw, err)
	}
	return ts.UTC(), nil
}

func (s *Store) withRetry(op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isLockError(err) || attempt == maxAttempts {
			break
		}
		time.Sleep(time.Duration(attempt*25) * time.Millisecond)
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}

func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}

func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

func IsCorruptError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "malformed") || strings.Contains(msg, "not a database") || errors.Is(err, os.ErrInvalid)
}
