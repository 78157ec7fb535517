package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/tracewell-health/ecg-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	scan       TEXT NOT NULL,
	source     TEXT NOT NULL DEFAULT 'local',
	status     TEXT NOT NULL DEFAULT 'queued',
	result     TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS attempts (
	id          TEXT PRIMARY KEY,
	run_id      TEXT NOT NULL REFERENCES runs(id),
	number      INTEGER NOT NULL,
	succeeded   INTEGER NOT NULL,
	score       REAL NOT NULL,
	breakdown   TEXT NOT NULL,
	confidence  REAL NOT NULL,
	recorded_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_source ON runs(source);
CREATE INDEX IF NOT EXISTS idx_attempts_run_id ON attempts(run_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, scan model.Scan) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	scanJSON, err := json.Marshal(scan)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal scan")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, scan, source, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, string(scanJSON), scan.Source, string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: create run")
	}

	return &model.Run{
		ID:        id,
		Scan:      scan,
		Status:    model.RunStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), runID,
	)
	return eris.Wrap(err, "sqlite: update run status")
}

func (s *SQLiteStore) UpdateRunResult(ctx context.Context, runID string, result *model.RobustResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE runs SET result = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(resultJSON), string(statusForResult(result)), time.Now().UTC(), runID,
	)
	return eris.Wrap(err, "sqlite: update run result")
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, scan, status, result, created_at, updated_at FROM runs WHERE id = ?`, runID)
	run, err := scanRunRow(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
		}
		return nil, eris.Wrap(err, "sqlite: get run")
	}
	return run, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, scan, status, result, created_at, updated_at FROM runs WHERE 1=1`
	var args []any
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Source != "" {
		query += ` AND source = ?`
		args = append(args, filter.Source)
	}
	if !filter.CreatedAfter.IsZero() {
		query += ` AND created_at > ?`
		args = append(args, filter.CreatedAfter)
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		run, err := scanRunRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs")
}

func (s *SQLiteStore) RecordAttempt(ctx context.Context, runID string, rec *model.AttemptRecord) error {
	bdJSON, err := json.Marshal(rec.Breakdown)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal breakdown")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO attempts (id, run_id, number, succeeded, score, breakdown, confidence, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), runID, rec.Number, rec.Succeeded(), rec.Score,
		string(bdJSON), attemptConfidence(rec), time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: record attempt")
}

func (s *SQLiteStore) ListAttempts(ctx context.Context, runID string) ([]AttemptSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, number, succeeded, score, breakdown, confidence, recorded_at
		 FROM attempts WHERE run_id = ? ORDER BY number`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list attempts")
	}
	defer rows.Close() //nolint:errcheck

	var out []AttemptSummary
	for rows.Next() {
		var a AttemptSummary
		var bdJSON string
		if err := rows.Scan(&a.RunID, &a.Number, &a.Succeeded, &a.Score, &bdJSON, &a.Confidence, &a.RecordedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan attempt")
		}
		if err := json.Unmarshal([]byte(bdJSON), &a.Breakdown); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal breakdown")
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list attempts")
}

// scanRunRow decodes one runs row via the given Scan function.
func scanRunRow(scan func(dest ...any) error) (*model.Run, error) {
	var run model.Run
	var scanJSON string
	var resultJSON sql.NullString
	if err := scan(&run.ID, &scanJSON, &run.Status, &resultJSON, &run.CreatedAt, &run.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(scanJSON), &run.Scan); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal scan")
	}
	if resultJSON.Valid && resultJSON.String != "" {
		run.Result = &model.RobustResult{}
		if err := json.Unmarshal([]byte(resultJSON.String), run.Result); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal result")
		}
	}
	return &run, nil
}
