// Package orchestrator drives repeated digitization attempts against an
// injected single-shot digitizer, scores each attempt with the cross-lead
// validator, and keeps the best result. The digitizer is expected to be
// non-deterministic — each retry is a fresh statistical draw, not a
// refinement, which is why attempts run strictly sequentially and share no
// state.
package orchestrator

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/tracewell-health/ecg-cli/internal/model"
	"github.com/tracewell-health/ecg-cli/internal/repair"
	"github.com/tracewell-health/ecg-cli/internal/scorer"
	"github.com/tracewell-health/ecg-cli/internal/validate"
)

// SingleShotDigitizer is the consumed collaborator contract: one attempt at
// turning an image into a calibrated signal. It must be safely callable
// multiple times with the same input and may return a different signal each
// call. A non-nil error means the attempt itself failed; that is recorded,
// not propagated.
type SingleShotDigitizer interface {
	Digitize(ctx context.Context, imagePath string) (*model.DigitizerOutput, error)
}

// Defaults for the retry policy.
const (
	DefaultMaxAttempts          = 3
	DefaultEarlyAcceptThreshold = 0.8
)

// Config controls the retry loop.
type Config struct {
	// MaxAttempts is the total number of digitization attempts. Must be >= 1.
	MaxAttempts int

	// EarlyAcceptThreshold is a correlation-scale threshold; an attempt whose
	// score reaches scorer.EarlyAcceptCutoff(threshold) stops the loop.
	EarlyAcceptThreshold float64

	// RecoverLeads backfills derivable missing leads before validation and
	// scoring.
	RecoverLeads bool

	// Observer, if set, is notified after each attempt is scored.
	Observer AttemptObserver
}

// Orchestrator runs the robust digitization loop.
type Orchestrator struct {
	digitizer SingleShotDigitizer
	validator *validate.Validator
	cfg       Config
	cutoff    float64
}

// New creates an Orchestrator. Misconfiguration is rejected here, not
// mid-loop.
func New(d SingleShotDigitizer, v *validate.Validator, cfg Config) (*Orchestrator, error) {
	if d == nil {
		return nil, eris.New("orchestrator: digitizer is required")
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.MaxAttempts < 1 {
		return nil, eris.Errorf("orchestrator: maxAttempts must be >= 1, got %d", cfg.MaxAttempts)
	}
	if cfg.EarlyAcceptThreshold == 0 {
		cfg.EarlyAcceptThreshold = DefaultEarlyAcceptThreshold
	}
	if v == nil {
		v = validate.New()
	}
	return &Orchestrator{
		digitizer: d,
		validator: v,
		cfg:       cfg,
		cutoff:    scorer.EarlyAcceptCutoff(cfg.EarlyAcceptThreshold),
	}, nil
}

// Digitize runs up to MaxAttempts digitization attempts and returns the best
// result. A fully failed digitization is a normal, reportable outcome: the
// returned error is non-nil only for context cancellation.
func (o *Orchestrator) Digitize(ctx context.Context, imagePath string) (*model.RobustResult, error) {
	attempts := make([]*model.AttemptRecord, 0, o.cfg.MaxAttempts)

	for n := 1; n <= o.cfg.MaxAttempts; n++ {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "orchestrator: cancelled")
		}

		record := o.attempt(ctx, n, imagePath)
		attempts = append(attempts, record)

		if o.cfg.Observer != nil {
			o.cfg.Observer.OnAttempt(n, record)
		}

		if record.Succeeded() && record.Score >= o.cutoff {
			break
		}
	}

	return o.assemble(attempts), nil
}

// attempt performs one digitizer call plus validation and scoring. Digitizer
// errors become zero-score failed attempts.
func (o *Orchestrator) attempt(ctx context.Context, n int, imagePath string) *model.AttemptRecord {
	record := &model.AttemptRecord{Number: n}

	out, err := o.digitizer.Digitize(ctx, imagePath)
	if err != nil {
		record.Output = &model.DigitizerOutput{
			Success: false,
			Issues: []model.Issue{{
				Type:     model.IssueCoverage,
				Severity: model.SeverityError,
				Message:  fmt.Sprintf("digitization attempt failed: %v", err),
			}},
		}
		return record
	}
	record.Output = out
	if !record.Succeeded() {
		return record
	}

	sig := out.Signal
	if o.cfg.RecoverLeads {
		sig = repair.RecoverMissingLeads(sig)
	}

	record.Validation = o.validator.Validate(sig)
	record.Breakdown = scorer.Score(sig, record.Validation)
	record.Score = record.Breakdown.Total

	// Scoring and validation run on the (possibly repaired) signal, and that
	// is also the signal the caller receives.
	record.Output = &model.DigitizerOutput{
		Success:     true,
		Signal:      sig,
		Issues:      out.Issues,
		Suggestions: out.Suggestions,
	}
	return record
}

// keepBetter is the attempt comparator: higher score wins, first seen wins
// ties. Exposed as a pure function so the tie-break rule is testable on its
// own.
func keepBetter(best, candidate *model.AttemptRecord) *model.AttemptRecord {
	if best == nil {
		return candidate
	}
	if candidate.Score > best.Score {
		return candidate
	}
	return best
}

// bestAttempt folds keepBetter over the attempt sequence.
func bestAttempt(attempts []*model.AttemptRecord) *model.AttemptRecord {
	var best *model.AttemptRecord
	for _, a := range attempts {
		best = keepBetter(best, a)
	}
	return best
}

// assemble builds the externally visible result from the attempt history.
func (o *Orchestrator) assemble(attempts []*model.AttemptRecord) *model.RobustResult {
	res := &model.RobustResult{AttemptsMade: len(attempts)}
	if len(attempts) == 0 {
		return res
	}

	best := bestAttempt(attempts)
	if !best.Succeeded() {
		// Every attempt failed: surface the last attempt's output with a
		// zero score and no validation payload.
		last := attempts[len(attempts)-1]
		if last.Output != nil {
			res.Issues = last.Output.Issues
			res.Suggestions = last.Output.Suggestions
		}
		return res
	}

	res.Success = true
	res.Signal = best.Output.Signal
	res.Validation = best.Validation
	res.Breakdown = best.Breakdown

	// Merge digitizer-native findings with validator-derived ones.
	res.Issues = append(res.Issues, best.Output.Issues...)
	res.Suggestions = append(res.Suggestions, best.Output.Suggestions...)
	if best.Validation != nil && !best.Validation.Valid {
		res.Issues = append(res.Issues, best.Validation.Issues...)
		res.Suggestions = append(res.Suggestions,
			"cross-lead validation failed; review the affected leads against the source image")
	}
	return res
}
