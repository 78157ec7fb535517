package validate

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracewell-health/ecg-cli/internal/leadmath"
	"github.com/tracewell-health/ecg-cli/internal/model"
)

// spikes generates a synthetic beat train: one gaussian deflection every 100
// samples. Broadband enough that cross-correlation peaks sharply at zero lag.
func spikes(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		d := float64(i%100) - 50
		out[i] = math.Exp(-d * d / 18)
	}
	return out
}

// shifted returns the beat train advanced by k samples. The train has period
// 100, so the shift is exact.
func shifted(g []float64, k int) []float64 {
	out := make([]float64, len(g))
	for i := range out {
		out[i] = g[(i+k)%len(g)]
	}
	return out
}

// consistentSignal builds a fully self-consistent 12-lead signal: the limb
// and augmented leads satisfy the Einthoven and Goldberger identities
// exactly, and every polarity-judged lead deflects as expected.
func consistentSignal(n int, rate float64) *model.ECGSignal {
	g := spikes(n)
	leadI := leadmath.Scale(g, 0.9)
	leadIII := leadmath.Scale(g, 0.4)
	leadII := leadmath.Sum(leadI, leadIII)

	return model.NewECGSignal(map[model.Lead][]float64{
		model.LeadI:   leadI,
		model.LeadII:  leadII,
		model.LeadIII: leadIII,
		model.LeadAVR: leadmath.GoldbergerAVR(leadI, leadII),
		model.LeadAVL: leadmath.GoldbergerAVL(leadI, leadIII),
		model.LeadAVF: leadmath.GoldbergerAVF(leadII, leadIII),
		model.LeadV1:  leadmath.Scale(g, -0.3),
		model.LeadV2:  leadmath.Scale(g, -0.1),
		model.LeadV3:  leadmath.Scale(g, 0.2),
		model.LeadV4:  leadmath.Scale(g, 0.4),
		model.LeadV5:  leadmath.Scale(g, 0.6),
		model.LeadV6:  leadmath.Scale(g, 0.5),
	}, rate)
}

func TestValidate_ConsistentSignal(t *testing.T) {
	v := New()
	res := v.Validate(consistentSignal(500, 500))

	assert.True(t, res.Valid)
	assert.Empty(t, res.Issues)
	assert.InDelta(t, 1.0, res.Confidence, 1e-9)

	require.True(t, res.Einthoven.Checked)
	assert.True(t, res.Einthoven.Valid)
	assert.InDelta(t, 1.0, res.Einthoven.Correlation, 1e-9)
	assert.InDelta(t, 0.0, res.Einthoven.NormalizedError, 1e-9)
	assert.Empty(t, res.Einthoven.SuspectLead)

	require.Len(t, res.Goldberger, 3)
	for _, g := range res.Goldberger {
		assert.True(t, g.Valid, "lead %s", g.Lead)
	}

	require.True(t, res.Wilson.Checked)
	assert.True(t, res.Wilson.Valid)

	assert.Equal(t, model.PolarityCorrect, res.Polarity[model.LeadI])
	assert.Equal(t, model.PolarityCorrect, res.Polarity[model.LeadAVR])
	assert.Equal(t, model.PolarityCorrect, res.Polarity[model.LeadV5])

	require.True(t, res.Alignment.Checked)
	assert.True(t, res.Alignment.Aligned)
	assert.Equal(t, 0, res.Alignment.MaxLag)
}

func TestValidate_CorruptedLeadIII_Accused(t *testing.T) {
	sig := consistentSignal(500, 500)
	// Replace III with a decorrelated train of comparable energy.
	sig.Leads[model.LeadIII] = leadmath.Scale(shifted(spikes(500), 50), 0.8)

	res := New().Validate(sig)

	assert.False(t, res.Valid)
	require.True(t, res.Einthoven.Checked)
	assert.False(t, res.Einthoven.Valid)
	assert.Equal(t, model.LeadIII, res.Einthoven.SuspectLead)

	var einthoven []model.Issue
	for _, issue := range res.Issues {
		if issue.Type == model.IssueEinthoven {
			einthoven = append(einthoven, issue)
		}
	}
	require.Len(t, einthoven, 1)
	assert.Equal(t, model.SeverityError, einthoven[0].Severity)
	assert.Equal(t, []model.Lead{model.LeadIII}, einthoven[0].Leads)
}

// offset returns x shifted by a constant baseline, the signature of a
// mis-read calibration pulse.
func offset(x []float64, k float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = v + k
	}
	return out
}

func TestValidate_ConstantOffsetAccusesCorruptedLead(t *testing.T) {
	for _, corrupted := range []model.Lead{model.LeadI, model.LeadII, model.LeadIII} {
		t.Run(string(corrupted), func(t *testing.T) {
			sig := consistentSignal(500, 500)
			sig.Leads[corrupted] = offset(sig.Leads[corrupted], 10)

			res := New().Validate(sig)

			assert.False(t, res.Valid)
			require.True(t, res.Einthoven.Checked)
			assert.False(t, res.Einthoven.Valid)

			// Pearson cancels the baseline shift, so the headline correlation
			// survives; the error term is what fails the check.
			assert.InDelta(t, 1.0, res.Einthoven.Correlation, 1e-6)
			assert.Greater(t, res.Einthoven.NormalizedError, einthovenMaxError)

			require.Len(t, res.Einthoven.Isolation, 3)
			suspectScore := res.Einthoven.Isolation[corrupted]
			assert.Less(t, suspectScore, isolationAccuseBelow)
			for lead, score := range res.Einthoven.Isolation {
				if lead != corrupted {
					assert.Greater(t, score, suspectScore,
						"clean lead %s must outscore the shifted lead", lead)
				}
			}
			assert.Equal(t, corrupted, res.Einthoven.SuspectLead)
		})
	}
}

func TestValidate_ZeroVarianceLeads(t *testing.T) {
	sig := model.NewECGSignal(map[model.Lead][]float64{
		model.LeadI:   {1, 1, 1},
		model.LeadII:  {2, 2, 2},
		model.LeadIII: {1, 1, 1},
	}, 500)

	res := New().Validate(sig)

	// Degenerate correlation is a sentinel, never NaN.
	require.True(t, res.Einthoven.Checked)
	assert.Equal(t, leadmath.DegenerateCorrelation, res.Einthoven.Correlation)
	assert.False(t, math.IsNaN(res.Einthoven.Correlation))
	assert.False(t, res.Einthoven.Valid)
	assert.False(t, res.Valid)
	assert.False(t, math.IsNaN(res.Confidence))

	// The arithmetic is exact here, so the error term is zero and only the
	// correlation half of the Einthoven weight is deducted.
	assert.InDelta(t, 0.85, res.Confidence, 1e-9)
}

func TestValidate_NilAndEmptySignal(t *testing.T) {
	v := New()

	for _, sig := range []*model.ECGSignal{nil, {}, model.NewECGSignal(nil, 500)} {
		res := v.Validate(sig)
		assert.True(t, res.Valid)
		assert.False(t, res.Einthoven.Checked)
		assert.False(t, res.Wilson.Checked)
		assert.False(t, res.Alignment.Checked)
		assert.Equal(t, 1.0, res.Confidence)
	}
}

func TestValidate_InvertedPolarity(t *testing.T) {
	g := spikes(500)
	sig := model.NewECGSignal(map[model.Lead][]float64{
		model.LeadI: leadmath.Scale(g, -0.9),
	}, 500)

	res := New().Validate(sig)

	assert.False(t, res.Valid)
	assert.Equal(t, model.PolarityInverted, res.Polarity[model.LeadI])
	require.Len(t, res.Issues, 1)
	assert.Equal(t, model.IssuePolarity, res.Issues[0].Type)
	assert.Equal(t, model.SeverityError, res.Issues[0].Severity)
	assert.InDelta(t, 0.7, res.Confidence, 1e-9)
}

func TestValidate_ShortLeadPolarityUncertain(t *testing.T) {
	// 100 samples at 500 Hz is 0.2s — below the minimum span for a polarity
	// judgement.
	g := spikes(100)
	sig := model.NewECGSignal(map[model.Lead][]float64{
		model.LeadI: leadmath.Scale(g, -0.9),
	}, 500)

	res := New().Validate(sig)

	assert.True(t, res.Valid)
	assert.Equal(t, model.PolarityUncertain, res.Polarity[model.LeadI])
	assert.Empty(t, res.Issues)
	assert.Equal(t, 1.0, res.Confidence)
}

func TestValidate_Misalignment(t *testing.T) {
	g := spikes(500)
	sig := model.NewECGSignal(map[model.Lead][]float64{
		model.LeadII: leadmath.Scale(g, 1.3),
		// Lead I runs 20 samples ahead: inside the 25-sample scan window at
		// 500 Hz, beyond the 10-sample tolerance.
		model.LeadI: leadmath.Scale(shifted(g, 20), 0.9),
	}, 500)

	res := New().Validate(sig)

	require.True(t, res.Alignment.Checked)
	assert.False(t, res.Alignment.Aligned)
	assert.Equal(t, 20, res.Alignment.MaxLag)

	require.Len(t, res.Issues, 1)
	assert.Equal(t, model.IssueAlignment, res.Issues[0].Type)
	assert.Equal(t, model.SeverityWarning, res.Issues[0].Severity)

	// A warning alone does not invalidate the attempt.
	assert.True(t, res.Valid)
	assert.InDelta(t, 0.9, res.Confidence, 1e-9)
}

func TestValidate_GoldbergerDeviation(t *testing.T) {
	g := spikes(500)
	leadI := leadmath.Scale(g, 0.9)
	leadIII := leadmath.Scale(g, 0.4)
	aVL := leadmath.Sum(
		leadmath.GoldbergerAVL(leadI, leadIII),
		leadmath.Scale(shifted(g, 50), 0.1),
	)

	sig := model.NewECGSignal(map[model.Lead][]float64{
		model.LeadI:   leadI,
		model.LeadII:  leadmath.Sum(leadI, leadIII),
		model.LeadIII: leadIII,
		model.LeadAVL: aVL,
	}, 500)

	res := New().Validate(sig)

	require.Len(t, res.Goldberger, 1)
	assert.Equal(t, model.LeadAVL, res.Goldberger[0].Lead)
	assert.False(t, res.Goldberger[0].Valid)

	var warnings []model.Issue
	for _, issue := range res.Issues {
		if issue.Type == model.IssueGoldberger {
			warnings = append(warnings, issue)
		}
	}
	require.Len(t, warnings, 1)
	assert.Equal(t, model.SeverityWarning, warnings[0].Severity)
	assert.True(t, res.Valid)
	assert.InDelta(t, 0.8, res.Confidence, 1e-9)
}

func TestCheckWilson_ResidualRatio(t *testing.T) {
	g := spikes(300)
	v := New()

	t.Run("inconsistent", func(t *testing.T) {
		sig := model.NewECGSignal(map[model.Lead][]float64{
			model.LeadI:   g,
			model.LeadII:  leadmath.Scale(g, 1.5),
			model.LeadIII: g,
		}, 500)
		res := &model.ValidationResult{}
		v.checkWilson(sig, res)

		require.True(t, res.Wilson.Checked)
		assert.False(t, res.Wilson.Valid)
		assert.InDelta(t, 1.0/3.0, res.Wilson.ResidualRatio, 1e-9)
		require.Len(t, res.Issues, 1)
		assert.Equal(t, model.IssueWilson, res.Issues[0].Type)
	})

	t.Run("consistent", func(t *testing.T) {
		sig := model.NewECGSignal(map[model.Lead][]float64{
			model.LeadI:   g,
			model.LeadII:  leadmath.Scale(g, 2),
			model.LeadIII: g,
		}, 500)
		res := &model.ValidationResult{}
		v.checkWilson(sig, res)

		assert.True(t, res.Wilson.Valid)
		assert.InDelta(t, 0, res.Wilson.ResidualRatio, 1e-12)
	})
}

func TestValidate_GoldbergerNeedsFullLimbSet(t *testing.T) {
	g := spikes(500)
	leadI := leadmath.Scale(g, 0.9)
	leadIII := leadmath.Scale(g, 0.4)

	// aVL's formula only reads I and III, but without lead II the limb set
	// is incomplete and no augmented lead is judged.
	sig := model.NewECGSignal(map[model.Lead][]float64{
		model.LeadI:   leadI,
		model.LeadIII: leadIII,
		model.LeadAVL: leadmath.GoldbergerAVL(leadI, leadIII),
	}, 500)

	res := New().Validate(sig)

	assert.Empty(t, res.Goldberger)
	assert.Empty(t, res.Issues)
	assert.True(t, res.Valid)
	assert.Equal(t, 1.0, res.Confidence)
}

func TestValidate_MissingLimbLeadSkipsChecks(t *testing.T) {
	g := spikes(500)
	sig := model.NewECGSignal(map[model.Lead][]float64{
		model.LeadI:  leadmath.Scale(g, 0.9),
		model.LeadII: leadmath.Scale(g, 1.3),
	}, 500)

	res := New().Validate(sig)

	assert.False(t, res.Einthoven.Checked)
	assert.False(t, res.Wilson.Checked)
	assert.Empty(t, res.Goldberger)
	assert.True(t, res.Valid)
}

func TestWithPolarityTable(t *testing.T) {
	g := spikes(500)
	table := map[model.Lead]Polarity{
		model.LeadV1: PolarityNegative,
	}
	sig := model.NewECGSignal(map[model.Lead][]float64{
		model.LeadV1: leadmath.Scale(g, 0.5),
	}, 500)

	res := New(WithPolarityTable(table)).Validate(sig)

	assert.Equal(t, model.PolarityInverted, res.Polarity[model.LeadV1])
	assert.False(t, res.Valid)
}
