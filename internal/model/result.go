package model

// ScoreBreakdown holds the individual scoring dimensions and the final total.
// The weighting is documented in the scorer package, next to the code that
// owns it.
type ScoreBreakdown struct {
	EinthovenCorrelation float64 `json:"einthoven_correlation"`
	AugmentedLeadsScore  float64 `json:"augmented_leads_score"`
	LeadCount            int     `json:"lead_count"`
	Total                float64 `json:"total"`
}

// DigitizerOutput is what a single extraction attempt reports back. Success
// false with a populated Issues list is a normal outcome, not an error.
type DigitizerOutput struct {
	Success     bool       `json:"success"`
	Signal      *ECGSignal `json:"signal,omitempty"`
	Issues      []Issue    `json:"issues,omitempty"`
	Suggestions []string   `json:"suggestions,omitempty"`
}

// AttemptRecord captures one digitization attempt: the raw signal, its
// cross-lead validation, and the scalar score. Records are immutable once
// produced; the orchestrator keeps them in attempt order.
type AttemptRecord struct {
	Number     int               `json:"number"`
	Output     *DigitizerOutput  `json:"output"`
	Validation *ValidationResult `json:"validation,omitempty"`
	Score      float64           `json:"score"`
	Breakdown  ScoreBreakdown    `json:"breakdown"`
}

// Succeeded reports whether the underlying digitizer call produced a signal.
func (a *AttemptRecord) Succeeded() bool {
	return a.Output != nil && a.Output.Success && a.Output.Signal != nil
}

// RobustResult is the externally visible outcome of a robust digitization:
// the winning attempt's signal and validation, its score breakdown, and how
// many attempts were made. Constructed once at the end of the orchestration
// loop and never mutated.
type RobustResult struct {
	Success      bool              `json:"success"`
	Signal       *ECGSignal        `json:"signal,omitempty"`
	Validation   *ValidationResult `json:"validation,omitempty"`
	Breakdown    ScoreBreakdown    `json:"breakdown"`
	AttemptsMade int               `json:"attempts_made"`
	Issues       []Issue           `json:"issues,omitempty"`
	Suggestions  []string          `json:"suggestions,omitempty"`
}
