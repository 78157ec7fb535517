package model

import (
	"encoding/json"
	"math"
	"sort"

	"github.com/rotisserie/eris"
)

// ECGSignal holds calibrated per-lead voltage series in millivolts. A signal
// is produced once per digitization attempt and never mutated afterward;
// repairs and transforms return a fresh value. Lead sequences may differ in
// length — consumers work on the overlapping prefix.
type ECGSignal struct {
	Leads      map[Lead][]float64 `json:"leads"`
	SampleRate float64            `json:"sampleRate"`
}

// NewECGSignal builds a signal from raw per-lead data, dropping nil slices.
func NewECGSignal(leads map[Lead][]float64, sampleRate float64) *ECGSignal {
	cp := make(map[Lead][]float64, len(leads))
	for l, samples := range leads {
		if samples == nil {
			continue
		}
		cp[l] = samples
	}
	return &ECGSignal{Leads: cp, SampleRate: sampleRate}
}

// Lead returns the samples for l, or nil when absent. Absent and empty are
// both "no usable data" to every consumer in this package tree.
func (s *ECGSignal) Lead(l Lead) []float64 {
	if s == nil || s.Leads == nil {
		return nil
	}
	return s.Leads[l]
}

// HasLead reports whether l is present with at least one sample.
func (s *ECGSignal) HasLead(l Lead) bool {
	return len(s.Lead(l)) > 0
}

// LeadCount counts leads carrying non-empty data.
func (s *ECGSignal) LeadCount() int {
	n := 0
	for _, samples := range s.Leads {
		if len(samples) > 0 {
			n++
		}
	}
	return n
}

// PresentLeads returns the non-empty leads in conventional display order.
func (s *ECGSignal) PresentLeads() []Lead {
	var out []Lead
	for _, l := range AllLeads {
		if s.HasLead(l) {
			out = append(out, l)
		}
	}
	return out
}

// MinLen returns the length of the shortest sequence among the given leads,
// or 0 if any of them is absent. Validators operate on this overlap.
func (s *ECGSignal) MinLen(leads ...Lead) int {
	minLen := math.MaxInt
	for _, l := range leads {
		n := len(s.Lead(l))
		if n == 0 {
			return 0
		}
		if n < minLen {
			minLen = n
		}
	}
	if minLen == math.MaxInt {
		return 0
	}
	return minLen
}

// Clone deep-copies the signal. Repair code clones before writing so the
// input stays immutable.
func (s *ECGSignal) Clone() *ECGSignal {
	if s == nil {
		return nil
	}
	leads := make(map[Lead][]float64, len(s.Leads))
	for l, samples := range s.Leads {
		cp := make([]float64, len(samples))
		copy(cp, samples)
		leads[l] = cp
	}
	return &ECGSignal{Leads: leads, SampleRate: s.SampleRate}
}

// signalJSON is the on-wire shape shared with the validation tooling:
// {"leads": {"II": [...]}, "sampleRate": 500}.
type signalJSON struct {
	Leads      map[string][]float64 `json:"leads"`
	SampleRate float64              `json:"sampleRate"`
}

// MarshalJSON emits leads under their canonical labels in stable order.
func (s *ECGSignal) MarshalJSON() ([]byte, error) {
	out := signalJSON{
		Leads:      make(map[string][]float64, len(s.Leads)),
		SampleRate: s.SampleRate,
	}
	for l, samples := range s.Leads {
		out.Leads[string(l)] = samples
	}
	return json.Marshal(out)
}

// UnmarshalJSON parses a signal file, validating every lead label against the
// closed set. Unknown labels fail the whole decode rather than being silently
// carried as arbitrary strings.
func (s *ECGSignal) UnmarshalJSON(data []byte) error {
	var raw signalJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return eris.Wrap(err, "model: decode signal")
	}
	if raw.SampleRate <= 0 {
		return eris.Errorf("model: invalid sample rate %v", raw.SampleRate)
	}

	labels := make([]string, 0, len(raw.Leads))
	for label := range raw.Leads {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	leads := make(map[Lead][]float64, len(raw.Leads))
	for _, label := range labels {
		l, err := ParseLead(label)
		if err != nil {
			return err
		}
		leads[l] = raw.Leads[label]
	}

	s.Leads = leads
	s.SampleRate = raw.SampleRate
	return nil
}
