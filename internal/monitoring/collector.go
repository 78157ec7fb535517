// Package monitoring collects digitization health metrics from the run store
// and raises webhook alerts when failure rates climb — the first sign that
// scan quality or the inference endpoint has degraded.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/tracewell-health/ecg-cli/internal/model"
	"github.com/tracewell-health/ecg-cli/internal/store"
)

// MetricsSnapshot holds a point-in-time view of digitization health.
type MetricsSnapshot struct {
	RunsTotal    int     `json:"runs_total"`
	RunsComplete int     `json:"runs_complete"`
	RunsFailed   int     `json:"runs_failed"`
	RunsQueued   int     `json:"runs_queued"`
	FailRate     float64 `json:"fail_rate"`

	AvgConfidence float64 `json:"avg_confidence"`
	AvgScore      float64 `json:"avg_score"`
	AvgAttempts   float64 `json:"avg_attempts"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Collector gathers metrics from the run store.
type Collector struct {
	store store.Store
}

// NewCollector creates a metrics collector.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st}
}

// Collect gathers a snapshot over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   time.Now().UTC(),
	}

	cutoff := time.Now().UTC().Add(-time.Duration(lookbackHours) * time.Hour)
	runs, err := c.store.ListRuns(ctx, store.RunFilter{
		CreatedAfter: cutoff,
		Limit:        10000,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	snap.RunsTotal = len(runs)
	var confidenceSum, scoreSum, attemptsSum float64
	var finished int
	for _, r := range runs {
		switch r.Status {
		case model.RunStatusComplete:
			snap.RunsComplete++
		case model.RunStatusFailed:
			snap.RunsFailed++
		case model.RunStatusQueued:
			snap.RunsQueued++
		}
		if r.Result != nil {
			finished++
			confidenceSum += r.Confidence()
			scoreSum += r.Result.Breakdown.Total
			attemptsSum += float64(r.Result.AttemptsMade)
		}
	}

	if done := snap.RunsComplete + snap.RunsFailed; done > 0 {
		snap.FailRate = float64(snap.RunsFailed) / float64(done)
	}
	if finished > 0 {
		snap.AvgConfidence = confidenceSum / float64(finished)
		snap.AvgScore = scoreSum / float64(finished)
		snap.AvgAttempts = attemptsSum / float64(finished)
	}
	return snap, nil
}
