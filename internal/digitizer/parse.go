package digitizer

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/tracewell-health/ecg-cli/internal/model"
)

// responsePayload is the JSON contract the system prompt asks the model for.
type responsePayload struct {
	Success     bool                 `json:"success"`
	SampleRate  float64              `json:"sampleRate"`
	Leads       map[string][]float64 `json:"leads"`
	Issues      []responseIssue      `json:"issues"`
	Suggestions []string             `json:"suggestions"`
}

type responseIssue struct {
	Type     string `json:"type"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// parseResponse turns the model's text reply into a DigitizerOutput. Lead
// labels are resolved through the closed lead set; unknown labels are
// dropped with a warning rather than smuggled through as arbitrary strings.
func parseResponse(text string) (*model.DigitizerOutput, error) {
	raw := stripFences(text)

	var payload responsePayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, eris.Wrap(err, "digitizer: decode response")
	}

	out := &model.DigitizerOutput{
		Success:     payload.Success,
		Suggestions: payload.Suggestions,
	}
	for _, is := range payload.Issues {
		severity := model.SeverityWarning
		if is.Severity == string(model.SeverityError) {
			severity = model.SeverityError
		}
		out.Issues = append(out.Issues, model.Issue{
			Type:     model.IssueType(is.Type),
			Severity: severity,
			Message:  is.Message,
		})
	}

	if !payload.Success {
		return out, nil
	}
	if payload.SampleRate <= 0 {
		out.Success = false
		out.Issues = append(out.Issues, model.Issue{
			Type:     model.IssueCoverage,
			Severity: model.SeverityError,
			Message:  fmt.Sprintf("model reported invalid sample rate %v", payload.SampleRate),
		})
		return out, nil
	}

	labels := make([]string, 0, len(payload.Leads))
	for label := range payload.Leads {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	leads := make(map[model.Lead][]float64, len(payload.Leads))
	for _, label := range labels {
		samples := payload.Leads[label]
		if len(samples) == 0 {
			continue
		}
		l, err := model.ParseLead(label)
		if err != nil {
			out.Issues = append(out.Issues, model.Issue{
				Type:     model.IssueCoverage,
				Severity: model.SeverityWarning,
				Message:  fmt.Sprintf("dropped unrecognized lead label %q", label),
			})
			continue
		}
		leads[l] = samples
	}
	if len(leads) == 0 {
		out.Success = false
		out.Issues = append(out.Issues, model.Issue{
			Type:     model.IssueCoverage,
			Severity: model.SeverityError,
			Message:  "model response contained no recognizable leads",
		})
		return out, nil
	}

	out.Signal = model.NewECGSignal(leads, payload.SampleRate)
	return out, nil
}

// stripFences removes a surrounding markdown code fence if present, and
// trims any prose before the first brace. Vision models occasionally wrap
// the JSON despite instructions.
func stripFences(text string) string {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx >= 0 {
			s = s[idx+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	if idx := strings.Index(s, "{"); idx > 0 {
		s = s[idx:]
	}
	if idx := strings.LastIndex(s, "}"); idx >= 0 && idx < len(s)-1 {
		s = s[:idx+1]
	}
	return strings.TrimSpace(s)
}
