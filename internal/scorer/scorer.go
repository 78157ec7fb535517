// Package scorer maps a cross-lead validation result plus lead coverage into
// a single scalar quality score, used by the orchestrator to rank attempts.
package scorer

import (
	"math"

	"go.uber.org/zap"

	"github.com/tracewell-health/ecg-cli/internal/leadmath"
	"github.com/tracewell-health/ecg-cli/internal/model"
)

// Scoring weights on a ~100 point scale. The split is a design choice, not a
// derived optimum: Einthoven correlation takes up to 50 points because it is
// the single strongest indicator that limb-lead digitization is internally
// consistent; lead coverage takes 30 because a signal missing leads is
// clinically incomplete regardless of fidelity; the Wilson-style residual
// takes the remaining 20.
const (
	einthovenPoints = 50.0
	augmentedPoints = 20.0
	coveragePoints  = 30.0

	// augmentedResidualScale is the mean-absolute-residual (in mV) at which
	// the augmented-leads contribution reaches zero.
	augmentedResidualScale = 0.5
)

// Score computes the quality score for one attempt's signal and validation.
//
//	total = clamp(einthovenCorr, 0, inf) * 50
//	      + max(0, 1 - augResidual/0.5) * 20
//	      + (leadCount/12) * 30
func Score(sig *model.ECGSignal, validation *model.ValidationResult) model.ScoreBreakdown {
	var bd model.ScoreBreakdown
	if sig == nil {
		return bd
	}

	if validation != nil && validation.Einthoven.Checked {
		bd.EinthovenCorrelation = validation.Einthoven.Correlation
	}
	bd.AugmentedLeadsScore = augmentedResidual(sig)
	bd.LeadCount = sig.LeadCount()

	corrPart := math.Max(0, bd.EinthovenCorrelation) * einthovenPoints
	augPart := math.Max(0, 1-bd.AugmentedLeadsScore/augmentedResidualScale) * augmentedPoints
	coveragePart := float64(bd.LeadCount) / model.StandardLeadCount * coveragePoints

	bd.Total = corrPart + augPart + coveragePart

	zap.L().Debug("scorer: attempt scored",
		zap.Float64("einthoven_correlation", bd.EinthovenCorrelation),
		zap.Float64("augmented_residual", bd.AugmentedLeadsScore),
		zap.Int("lead_count", bd.LeadCount),
		zap.Float64("total", bd.Total),
	)
	return bd
}

// augmentedResidual is the mean absolute Wilson-style residual across the
// overlapping limb-lead window. Lower is better; absent limb leads degrade
// to the worst case.
func augmentedResidual(sig *model.ECGSignal) float64 {
	residual := leadmath.WilsonResidual(
		sig.Lead(model.LeadI),
		sig.Lead(model.LeadII),
		sig.Lead(model.LeadIII),
	)
	if residual == nil {
		return augmentedResidualScale
	}
	return leadmath.MeanAbs(residual)
}

// EarlyAcceptCutoff converts a correlation-scale acceptance threshold into a
// score-scale cutoff. The constant is empirical and coupled to the
// 50/20/30 point split above — if the weights change, this formula must be
// re-derived alongside them, which is why it lives in this package.
func EarlyAcceptCutoff(threshold float64) float64 {
	return threshold*einthovenPoints + 38
}
