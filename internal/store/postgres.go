package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/tracewell-health/ecg-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses; pgxmock satisfies it in
// tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool. Tests inject pgxmock here.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	scan       JSONB NOT NULL,
	source     TEXT NOT NULL DEFAULT 'local',
	status     TEXT NOT NULL DEFAULT 'queued',
	result     JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS attempts (
	id          TEXT PRIMARY KEY,
	run_id      TEXT NOT NULL REFERENCES runs(id),
	number      INTEGER NOT NULL,
	succeeded   BOOLEAN NOT NULL,
	score       DOUBLE PRECISION NOT NULL,
	breakdown   JSONB NOT NULL,
	confidence  DOUBLE PRECISION NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_source ON runs(source);
CREATE INDEX IF NOT EXISTS idx_attempts_run_id ON attempts(run_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, scan model.Scan) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	scanJSON, err := json.Marshal(scan)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal scan")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, scan, source, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, scanJSON, scan.Source, string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create run")
	}

	return &model.Run{
		ID:        id,
		Scan:      scan,
		Status:    model.RunStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), runID,
	)
	return eris.Wrap(err, "postgres: update run status")
}

func (s *PostgresStore) UpdateRunResult(ctx context.Context, runID string, result *model.RobustResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal result")
	}
	_, err = s.pool.Exec(ctx,
		`UPDATE runs SET result = $1, status = $2, updated_at = $3 WHERE id = $4`,
		resultJSON, string(statusForResult(result)), time.Now().UTC(), runID,
	)
	return eris.Wrap(err, "postgres: update run result")
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, scan, status, result, created_at, updated_at FROM runs WHERE id = $1`, runID)
	run, err := pgScanRun(row.Scan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(err, "postgres: get run %s", runID)
		}
		return nil, eris.Wrap(err, "postgres: get run")
	}
	return run, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, scan, status, result, created_at, updated_at FROM runs WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if filter.Status != "" {
		query += ` AND status = ` + arg(string(filter.Status))
	}
	if filter.Source != "" {
		query += ` AND source = ` + arg(filter.Source)
	}
	if !filter.CreatedAfter.IsZero() {
		query += ` AND created_at > ` + arg(filter.CreatedAfter)
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ` + arg(filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ` + arg(filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		run, err := pgScanRun(rows.Scan)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *run)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs")
}

func (s *PostgresStore) RecordAttempt(ctx context.Context, runID string, rec *model.AttemptRecord) error {
	bdJSON, err := json.Marshal(rec.Breakdown)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal breakdown")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO attempts (id, run_id, number, succeeded, score, breakdown, confidence, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.New().String(), runID, rec.Number, rec.Succeeded(), rec.Score,
		bdJSON, attemptConfidence(rec), time.Now().UTC(),
	)
	return eris.Wrap(err, "postgres: record attempt")
}

func (s *PostgresStore) ListAttempts(ctx context.Context, runID string) ([]AttemptSummary, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT run_id, number, succeeded, score, breakdown, confidence, recorded_at
		 FROM attempts WHERE run_id = $1 ORDER BY number`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list attempts")
	}
	defer rows.Close()

	var out []AttemptSummary
	for rows.Next() {
		var a AttemptSummary
		var bdJSON []byte
		if err := rows.Scan(&a.RunID, &a.Number, &a.Succeeded, &a.Score, &bdJSON, &a.Confidence, &a.RecordedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan attempt")
		}
		if err := json.Unmarshal(bdJSON, &a.Breakdown); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal breakdown")
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list attempts")
}

// pgScanRun decodes one runs row via the given Scan function.
func pgScanRun(scan func(dest ...any) error) (*model.Run, error) {
	var run model.Run
	var status string
	var scanJSON []byte
	var resultJSON []byte
	if err := scan(&run.ID, &scanJSON, &status, &resultJSON, &run.CreatedAt, &run.UpdatedAt); err != nil {
		return nil, err
	}
	run.Status = model.RunStatus(status)
	if err := json.Unmarshal(scanJSON, &run.Scan); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal scan")
	}
	if len(resultJSON) > 0 {
		run.Result = &model.RobustResult{}
		if err := json.Unmarshal(resultJSON, run.Result); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal result")
		}
	}
	return &run, nil
}
