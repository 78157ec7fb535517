// Package store persists digitization runs and their per-attempt audit trail.
// Two drivers are provided: SQLite for single-workstation use and Postgres
// for shared deployments.
package store

import (
	"context"
	"time"

	"github.com/tracewell-health/ecg-cli/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status       model.RunStatus `json:"status,omitempty"`
	Source       string          `json:"source,omitempty"`
	CreatedAfter time.Time       `json:"created_after,omitempty"`
	Limit        int             `json:"limit,omitempty"`
	Offset       int             `json:"offset,omitempty"`
}

// AttemptSummary is the per-attempt audit row. Full signals live only in the
// run result; per-attempt rows keep the scores so a reviewer can see how the
// ensemble behaved.
type AttemptSummary struct {
	RunID      string               `json:"run_id"`
	Number     int                  `json:"number"`
	Succeeded  bool                 `json:"succeeded"`
	Score      float64              `json:"score"`
	Breakdown  model.ScoreBreakdown `json:"breakdown"`
	Confidence float64              `json:"confidence"`
	RecordedAt time.Time            `json:"recorded_at"`
}

// Store defines the persistence interface for digitization runs.
type Store interface {
	CreateRun(ctx context.Context, scan model.Scan) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	UpdateRunResult(ctx context.Context, runID string, result *model.RobustResult) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	RecordAttempt(ctx context.Context, runID string, rec *model.AttemptRecord) error
	ListAttempts(ctx context.Context, runID string) ([]AttemptSummary, error)

	Migrate(ctx context.Context) error
	Close() error
}

// statusForResult maps a finished result to its terminal run status.
func statusForResult(result *model.RobustResult) model.RunStatus {
	if result != nil && result.Success {
		return model.RunStatusComplete
	}
	return model.RunStatusFailed
}

// attemptConfidence extracts the validation confidence, 0 when absent.
func attemptConfidence(rec *model.AttemptRecord) float64 {
	if rec.Validation == nil {
		return 0
	}
	return rec.Validation.Confidence
}
