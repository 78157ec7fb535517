package model

// IssueSeverity ranks a validation finding. Error-severity issues make the
// whole result invalid; warnings only lower confidence.
type IssueSeverity string

const (
	SeverityWarning IssueSeverity = "warning"
	SeverityError   IssueSeverity = "error"
)

// IssueType tags which check produced an issue.
type IssueType string

const (
	IssueEinthoven  IssueType = "einthoven_violation"
	IssueGoldberger IssueType = "goldberger_mismatch"
	IssueWilson     IssueType = "wilson_residual"
	IssuePolarity   IssueType = "polarity_inverted"
	IssueAlignment  IssueType = "temporal_misalignment"
	IssueCoverage   IssueType = "missing_leads"
)

// Issue is a single human-readable validation finding.
type Issue struct {
	Type     IssueType     `json:"type"`
	Severity IssueSeverity `json:"severity"`
	Leads    []Lead        `json:"affected_leads,omitempty"`
	Message  string        `json:"message"`
}

// EinthovenCheck holds the II = I + III consistency result.
type EinthovenCheck struct {
	Checked         bool    `json:"checked"`
	Valid           bool    `json:"valid"`
	Correlation     float64 `json:"correlation"`
	NormalizedError float64 `json:"normalized_error"`
	// Isolation holds, per limb lead, the agreement score of the hypothesis
	// that this lead alone was mis-digitized. Populated only when the check
	// failed. Lower means more suspect.
	Isolation map[Lead]float64 `json:"isolation,omitempty"`
	// SuspectLead names the limb lead whose isolation score was the worst,
	// set only when the check failed and the evidence is strong (score below
	// 0.5). Empty otherwise.
	SuspectLead Lead `json:"suspect_lead,omitempty"`
}

// GoldbergerCheck holds one augmented-lead derivation result.
type GoldbergerCheck struct {
	Lead            Lead    `json:"lead"`
	Valid           bool    `json:"valid"`
	NormalizedError float64 `json:"normalized_error"`
}

// WilsonCheck holds the central-terminal redundancy result.
type WilsonCheck struct {
	Checked       bool    `json:"checked"`
	Valid         bool    `json:"valid"`
	ResidualRatio float64 `json:"residual_ratio"`
}

// PolarityStatus classifies one lead's net deflection against expectation.
type PolarityStatus string

const (
	PolarityCorrect   PolarityStatus = "correct"
	PolarityInverted  PolarityStatus = "inverted"
	PolarityUncertain PolarityStatus = "uncertain"
)

// AlignmentCheck holds the inter-lead timing result. Lags are in samples,
// relative to lead II.
type AlignmentCheck struct {
	Checked bool         `json:"checked"`
	Aligned bool         `json:"aligned"`
	Lags    map[Lead]int `json:"lags,omitempty"`
	MaxLag  int          `json:"max_lag"`
}

// ValidationResult aggregates every cross-lead check over one signal.
// Valid is derived: true iff no issue carries error severity. Confidence is
// a deterministic weighted combination of the sub-scores and is never set
// independently of them.
type ValidationResult struct {
	Valid      bool                    `json:"valid"`
	Confidence float64                 `json:"confidence"`
	Einthoven  EinthovenCheck          `json:"einthoven"`
	Goldberger []GoldbergerCheck       `json:"goldberger,omitempty"`
	Wilson     WilsonCheck             `json:"wilson"`
	Polarity   map[Lead]PolarityStatus `json:"polarity,omitempty"`
	Alignment  AlignmentCheck          `json:"alignment"`
	Issues     []Issue                 `json:"issues,omitempty"`
}

// HasErrors reports whether any issue carries error severity.
func (r *ValidationResult) HasErrors() bool {
	for _, is := range r.Issues {
		if is.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Warnings returns the warning-severity issues.
func (r *ValidationResult) Warnings() []Issue {
	var out []Issue
	for _, is := range r.Issues {
		if is.Severity == SeverityWarning {
			out = append(out, is)
		}
	}
	return out
}
