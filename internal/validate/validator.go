// Package validate implements the cross-lead physiological validator. It
// checks a digitized signal against the fixed relationships real cardiac
// leads must obey — Einthoven's law, the Goldberger derivations, the Wilson
// central-terminal redundancy — plus expected polarity and inter-lead timing,
// and aggregates the findings into a confidence figure and a typed issue
// list. Without ground truth, these redundancies are the only way to judge
// whether a digitization is trustworthy.
package validate

import (
	"fmt"
	"math"

	"github.com/tracewell-health/ecg-cli/internal/leadmath"
	"github.com/tracewell-health/ecg-cli/internal/model"
)

// Check thresholds. These are acceptance bounds on scan-quality tracings,
// not physiological constants.
const (
	einthovenMinCorrelation = 0.9
	einthovenMaxError       = 0.15
	// isolationAccuseBelow gates the mis-digitized-lead accusation: a lead is
	// only named when its isolation agreement score falls below this, to
	// avoid false accusations on borderline tracings.
	isolationAccuseBelow   = 0.5
	goldbergerMaxError     = 0.2
	wilsonMaxResidualRatio = 0.15
	// polarityMinSeconds is the minimum data span needed to judge dominant
	// polarity; shorter leads are reported uncertain, not incorrect.
	polarityMinSeconds = 0.5
	// alignmentLagWindowSeconds bounds the cross-correlation lag scan.
	alignmentLagWindowSeconds = 0.05
	// alignmentToleranceFraction: aligned iff max |lag| in samples is at most
	// this fraction of the sample rate.
	alignmentToleranceFraction = 0.02
)

// Confidence aggregation weights. Einthoven and polarity dominate because
// they are the strongest indicators of per-lead digitization fidelity; the
// alignment contribution is binary.
const (
	einthovenCorrWeight  = 0.15
	einthovenErrWeight   = 0.15
	goldbergerWeight     = 0.2
	polarityWeight       = 0.3
	alignmentPenalty     = 0.1
)

// Validator runs the full cross-lead check suite. The zero value is not
// usable; construct with New.
type Validator struct {
	polarities map[model.Lead]Polarity
}

// Option configures a Validator.
type Option func(*Validator)

// WithPolarityTable overrides the compiled-in polarity expectation table,
// typically from a YAML lead profile.
func WithPolarityTable(table map[model.Lead]Polarity) Option {
	return func(v *Validator) {
		if table != nil {
			v.polarities = table
		}
	}
}

// New creates a Validator with the default polarity table.
func New(opts ...Option) *Validator {
	v := &Validator{polarities: defaultPolarities}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate runs every cross-lead check against sig and aggregates the
// result. A nil or empty signal is not an error: every check reports
// unchecked and confidence degrades accordingly.
func (v *Validator) Validate(sig *model.ECGSignal) *model.ValidationResult {
	res := &model.ValidationResult{}
	if sig == nil {
		sig = &model.ECGSignal{}
	}

	v.checkEinthoven(sig, res)
	v.checkGoldberger(sig, res)
	v.checkWilson(sig, res)
	v.checkPolarity(sig, res)
	v.checkAlignment(sig, res)

	res.Confidence = v.aggregateConfidence(res)
	res.Valid = !res.HasErrors()
	return res
}

func (v *Validator) checkEinthoven(sig *model.ECGSignal, res *model.ValidationResult) {
	leadI := sig.Lead(model.LeadI)
	leadII := sig.Lead(model.LeadII)
	leadIII := sig.Lead(model.LeadIII)
	if len(leadI) == 0 || len(leadII) == 0 || len(leadIII) == 0 {
		return
	}

	expected := leadmath.EinthovenExpectedII(leadI, leadIII)
	corr := leadmath.PearsonCorrelation(leadII, expected)
	errRatio := leadmath.NormalizedRMSError(leadII, expected)

	check := model.EinthovenCheck{
		Checked:         true,
		Correlation:     corr,
		NormalizedError: errRatio,
		Valid:           corr > einthovenMinCorrelation && errRatio < einthovenMaxError,
	}

	if !check.Valid {
		// Isolation hypotheses: assume one lead alone is wrong, predict it
		// from the other two via the identity, and score the agreement. The
		// agreement metric sees constant baseline shifts, which Pearson
		// correlation cancels out, so a mis-calibrated lead sinks its own
		// hypothesis: its prediction comes from the two clean leads, while
		// the clean-lead hypotheses absorb the offset into their predictions.
		hypotheses := []struct {
			lead  model.Lead
			score float64
		}{
			{model.LeadII, leadmath.Agreement(leadII, leadmath.Sum(leadI, leadIII))},
			{model.LeadI, leadmath.Agreement(leadI, leadmath.Difference(leadII, leadIII))},
			{model.LeadIII, leadmath.Agreement(leadIII, leadmath.Difference(leadII, leadI))},
		}
		check.Isolation = make(map[model.Lead]float64, len(hypotheses))
		worst := hypotheses[0]
		for _, h := range hypotheses {
			check.Isolation[h.lead] = h.score
			if h.score < worst.score {
				worst = h
			}
		}
		if worst.score < isolationAccuseBelow {
			check.SuspectLead = worst.lead
		}

		msg := fmt.Sprintf("lead II does not match I + III (correlation %.3f, error %.3f)", corr, errRatio)
		affected := []model.Lead{model.LeadI, model.LeadII, model.LeadIII}
		if check.SuspectLead != "" {
			msg = fmt.Sprintf("%s; lead %s is the most likely mis-digitized (isolation agreement %.3f)",
				msg, check.SuspectLead, worst.score)
			affected = []model.Lead{check.SuspectLead}
		}
		res.Issues = append(res.Issues, model.Issue{
			Type:     model.IssueEinthoven,
			Severity: model.SeverityError,
			Leads:    affected,
			Message:  msg,
		})
	}

	res.Einthoven = check
}

// goldbergerInputs maps each augmented lead to its derivation inputs and
// formula.
var goldbergerInputs = []struct {
	target model.Lead
	a, b   model.Lead
	derive func(a, b []float64) []float64
}{
	{model.LeadAVR, model.LeadI, model.LeadII, leadmath.GoldbergerAVR},
	{model.LeadAVL, model.LeadI, model.LeadIII, leadmath.GoldbergerAVL},
	{model.LeadAVF, model.LeadII, model.LeadIII, leadmath.GoldbergerAVF},
}

func (v *Validator) checkGoldberger(sig *model.ECGSignal, res *model.ValidationResult) {
	// The derivations are only trustworthy when the whole limb set is there;
	// each formula reads two of I, II, III, but judging an augmented lead
	// from a partial limb set invites accusations the data cannot support.
	if !sig.HasLead(model.LeadI) || !sig.HasLead(model.LeadII) || !sig.HasLead(model.LeadIII) {
		return
	}
	for _, g := range goldbergerInputs {
		actual := sig.Lead(g.target)
		a, b := sig.Lead(g.a), sig.Lead(g.b)
		if len(actual) == 0 || len(a) == 0 || len(b) == 0 {
			continue
		}

		expected := g.derive(a, b)
		errRatio := leadmath.NormalizedRMSError(actual, expected)
		check := model.GoldbergerCheck{
			Lead:            g.target,
			NormalizedError: errRatio,
			Valid:           errRatio < goldbergerMaxError,
		}
		if !check.Valid {
			res.Issues = append(res.Issues, model.Issue{
				Type:     model.IssueGoldberger,
				Severity: model.SeverityWarning,
				Leads:    []model.Lead{g.target},
				Message: fmt.Sprintf("%s deviates from its Goldberger derivation (error %.3f)",
					g.target, errRatio),
			})
		}
		res.Goldberger = append(res.Goldberger, check)
	}
}

func (v *Validator) checkWilson(sig *model.ECGSignal, res *model.ValidationResult) {
	leadI := sig.Lead(model.LeadI)
	leadII := sig.Lead(model.LeadII)
	leadIII := sig.Lead(model.LeadIII)
	residual := leadmath.WilsonResidual(leadI, leadII, leadIII)
	if residual == nil {
		return
	}

	denom := leadmath.SumAbs(leadII[:len(residual)])
	ratio := leadmath.DegenerateError
	if denom > 0 {
		ratio = leadmath.SumAbs(residual) / denom
	}

	check := model.WilsonCheck{
		Checked:       true,
		ResidualRatio: ratio,
		Valid:         ratio < wilsonMaxResidualRatio,
	}
	if !check.Valid {
		res.Issues = append(res.Issues, model.Issue{
			Type:     model.IssueWilson,
			Severity: model.SeverityWarning,
			Leads:    []model.Lead{model.LeadI, model.LeadII, model.LeadIII},
			Message:  fmt.Sprintf("Wilson terminal residual ratio %.3f exceeds %.2f", ratio, wilsonMaxResidualRatio),
		})
	}
	res.Wilson = check
}

func (v *Validator) checkPolarity(sig *model.ECGSignal, res *model.ValidationResult) {
	minSamples := int(polarityMinSeconds * sig.SampleRate)

	statuses := make(map[model.Lead]model.PolarityStatus)
	for _, l := range sig.PresentLeads() {
		expected, ok := v.polarities[l]
		if !ok || expected == PolarityIndeterminate {
			continue
		}
		samples := sig.Lead(l)
		if len(samples) < minSamples {
			statuses[l] = model.PolarityUncertain
			continue
		}

		net := leadmath.NetDeflection(samples)
		switch {
		case net == 0:
			statuses[l] = model.PolarityUncertain
		case (net > 0) == (expected == PolarityPositive):
			statuses[l] = model.PolarityCorrect
		default:
			statuses[l] = model.PolarityInverted
			res.Issues = append(res.Issues, model.Issue{
				Type:     model.IssuePolarity,
				Severity: model.SeverityError,
				Leads:    []model.Lead{l},
				Message:  fmt.Sprintf("lead %s net deflection has unexpected sign", l),
			})
		}
	}
	if len(statuses) > 0 {
		res.Polarity = statuses
	}
}

func (v *Validator) checkAlignment(sig *model.ECGSignal, res *model.ValidationResult) {
	ref := sig.Lead(model.LeadII)
	if len(ref) == 0 || sig.SampleRate <= 0 {
		return
	}

	lagWindow := int(math.Round(alignmentLagWindowSeconds * sig.SampleRate))
	tolerance := int(alignmentToleranceFraction * sig.SampleRate)

	lags := make(map[model.Lead]int)
	maxAbsLag := 0
	var misaligned []model.Lead
	for _, l := range model.LimbLeads {
		if l == model.LeadII || !sig.HasLead(l) {
			continue
		}
		lag, _ := leadmath.BestLag(ref, sig.Lead(l), lagWindow)
		lags[l] = lag
		if abs := absInt(lag); abs > maxAbsLag {
			maxAbsLag = abs
		}
		if absInt(lag) > tolerance {
			misaligned = append(misaligned, l)
		}
	}
	if len(lags) == 0 {
		return
	}

	check := model.AlignmentCheck{
		Checked: true,
		Lags:    lags,
		MaxLag:  maxAbsLag,
		Aligned: maxAbsLag <= tolerance,
	}
	if !check.Aligned {
		res.Issues = append(res.Issues, model.Issue{
			Type:     model.IssueAlignment,
			Severity: model.SeverityWarning,
			Leads:    misaligned,
			Message: fmt.Sprintf("limb leads misaligned relative to lead II (max lag %d samples, tolerance %d)",
				maxAbsLag, tolerance),
		})
	}
	res.Alignment = check
}

// aggregateConfidence combines the sub-check results into [0, 1]. Nominal
// weights: Einthoven 30% (split between correlation and error), Goldberger
// 20%, polarity 30%, alignment 20% applied as a flat penalty on failure.
// Unchecked dimensions deduct nothing.
func (v *Validator) aggregateConfidence(res *model.ValidationResult) float64 {
	confidence := 1.0

	if res.Einthoven.Checked {
		confidence -= (1-res.Einthoven.Correlation)*einthovenCorrWeight +
			res.Einthoven.NormalizedError*einthovenErrWeight
	}

	if len(res.Goldberger) > 0 {
		passed := 0
		for _, g := range res.Goldberger {
			if g.Valid {
				passed++
			}
		}
		passRate := float64(passed) / float64(len(res.Goldberger))
		confidence -= (1 - passRate) * goldbergerWeight
	}

	judged, correct := 0, 0
	for _, status := range res.Polarity {
		switch status {
		case model.PolarityCorrect:
			judged++
			correct++
		case model.PolarityInverted:
			judged++
		}
	}
	if judged > 0 {
		passRate := float64(correct) / float64(judged)
		confidence -= (1 - passRate) * polarityWeight
	}

	if res.Alignment.Checked && !res.Alignment.Aligned {
		confidence -= alignmentPenalty
	}

	return leadmath.Clamp(confidence, 0, 1)
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
