package model

import "time"

// RunStatus represents the current state of a digitization run.
type RunStatus string

const (
	RunStatusQueued     RunStatus = "queued"
	RunStatusDigitizing RunStatus = "digitizing"
	RunStatusComplete   RunStatus = "complete"
	RunStatusFailed     RunStatus = "failed"
)

// Scan identifies one source image handed to the digitizer.
type Scan struct {
	Path      string `json:"path"`
	Source    string `json:"source,omitempty"` // "local", "ftp", "watch", "api"
	MediaType string `json:"media_type,omitempty"`
	SizeBytes int64  `json:"size_bytes,omitempty"`
}

// Run represents a single stored digitization run for a scan.
type Run struct {
	ID        string        `json:"id"`
	Scan      Scan          `json:"scan"`
	Status    RunStatus     `json:"status"`
	Result    *RobustResult `json:"result,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Confidence returns the winning validation confidence, or 0 when the run
// has no validated result.
func (r *Run) Confidence() float64 {
	if r.Result == nil || r.Result.Validation == nil {
		return 0
	}
	return r.Result.Validation.Confidence
}
