// Package repair reconstructs missing limb and augmented leads from the ones
// present, by running the lead algebra in reverse. Recovery is purely
// algebraic: it does not judge whether its output is trustworthy — callers
// re-validate the repaired signal if they need a confidence figure.
package repair

import (
	"go.uber.org/zap"

	"github.com/tracewell-health/ecg-cli/internal/leadmath"
	"github.com/tracewell-health/ecg-cli/internal/model"
)

// recoveries lists every derivable lead with its inputs, in fixed precedence
// order. Order matters: recovering II first can enable a later aVF
// derivation within the same pass. Precordial leads carry no algebraic
// redundancy and are never recoverable.
var recoveries = []struct {
	target model.Lead
	a, b   model.Lead
	derive func(a, b []float64) []float64
}{
	{model.LeadII, model.LeadI, model.LeadIII, leadmath.Sum},                // II = I + III
	{model.LeadI, model.LeadII, model.LeadIII, leadmath.Difference},         // I = II - III
	{model.LeadIII, model.LeadII, model.LeadI, leadmath.Difference},         // III = II - I
	{model.LeadAVR, model.LeadI, model.LeadII, leadmath.GoldbergerAVR},
	{model.LeadAVL, model.LeadI, model.LeadIII, leadmath.GoldbergerAVL},
	{model.LeadAVF, model.LeadII, model.LeadIII, leadmath.GoldbergerAVF},
}

// RecoverMissingLeads returns a new signal with every derivable absent lead
// filled in. The input is never mutated. When nothing is recoverable the
// returned signal is an identical copy (recovery is idempotent on complete
// limb sets).
func RecoverMissingLeads(sig *model.ECGSignal) *model.ECGSignal {
	if sig == nil {
		return nil
	}
	out := sig.Clone()

	for _, r := range recoveries {
		if out.HasLead(r.target) {
			continue
		}
		a, b := out.Lead(r.a), out.Lead(r.b)
		if len(a) == 0 || len(b) == 0 {
			continue
		}
		recovered := r.derive(a, b)
		if recovered == nil {
			continue
		}
		out.Leads[r.target] = recovered
		zap.L().Debug("repair: recovered lead",
			zap.String("lead", string(r.target)),
			zap.String("from", string(r.a)+"+"+string(r.b)),
			zap.Int("samples", len(recovered)),
		)
	}
	return out
}

// RecoverableLeads reports which absent leads could be recovered from sig
// without performing the recovery.
func RecoverableLeads(sig *model.ECGSignal) []model.Lead {
	if sig == nil {
		return nil
	}
	present := make(map[model.Lead]bool)
	for _, l := range sig.PresentLeads() {
		present[l] = true
	}

	var out []model.Lead
	for _, r := range recoveries {
		if present[r.target] {
			continue
		}
		if present[r.a] && present[r.b] {
			out = append(out, r.target)
			present[r.target] = true
		}
	}
	return out
}
