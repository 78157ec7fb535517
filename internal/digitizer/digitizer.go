// Package digitizer provides the single-shot digitization step: one vision
// model call that turns a scanned ECG printout into calibrated per-lead
// samples. The call is inherently non-deterministic; the orchestrator runs
// it repeatedly and keeps the best-validated draw.
package digitizer

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/tracewell-health/ecg-cli/internal/imaging"
	"github.com/tracewell-health/ecg-cli/internal/model"
	"github.com/tracewell-health/ecg-cli/internal/resilience"
	"github.com/tracewell-health/ecg-cli/pkg/claude"
)

// systemPrompt instructs the vision model to act as the tracing step. The
// grid calibration statement (25 mm/s, 10 mm/mV) is the standard printout
// convention; the model is told to report deviations instead of guessing.
const systemPrompt = `You are an ECG digitization engine. You receive a scanned or photographed
12-lead ECG printout. Extract each visible lead's waveform as a numeric
series in millivolts, sampled uniformly.

Assume standard calibration (25 mm/s paper speed, 10 mm/mV gain) unless the
calibration pulse indicates otherwise; if you cannot establish calibration,
set "success" to false and explain why in "issues".

Respond with a single JSON object and nothing else:
{
  "success": true,
  "sampleRate": <samples per second, number>,
  "leads": {"I": [..], "II": [..], "III": [..], "aVR": [..], ...},
  "issues": [{"type": "...", "severity": "warning"|"error", "message": "..."}],
  "suggestions": ["..."]
}

Only include leads you can actually trace. Use the standard lead names
(I, II, III, aVR, aVL, aVF, V1-V6, and V3R/V4R/V7 where printed).`

const userPrompt = `Digitize every lead visible in this ECG printout.`

// defaultMaxTokens bounds the response; a 10 s 12-lead trace at modest
// sample rates fits comfortably.
const defaultMaxTokens = 32_000

// Claude is a SingleShotDigitizer backed by a vision model call. Repeat
// calls deliberately leave sampling temperature at the model default so each
// attempt is an independent draw.
type Claude struct {
	client    claude.Client
	model     string
	maxTokens int64
	limiter   *rate.Limiter
	breaker   *resilience.CircuitBreaker
	retry     resilience.RetryConfig
}

// Option configures the Claude digitizer.
type Option func(*Claude)

// WithRateLimit throttles inference calls to rps requests per second.
func WithRateLimit(rps float64) Option {
	return func(c *Claude) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithMaxTokens overrides the response token budget.
func WithMaxTokens(n int64) Option {
	return func(c *Claude) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// WithRetryConfig overrides the transient-failure retry policy for the
// underlying API call. Retries here heal transport failures only; bad
// extractions are the orchestrator's problem, not ours.
func WithRetryConfig(cfg resilience.RetryConfig) Option {
	return func(c *Claude) {
		c.retry = cfg
	}
}

// NewClaude creates a Claude-backed digitizer.
func NewClaude(client claude.Client, modelID string, opts ...Option) *Claude {
	c := &Claude{
		client:    client,
		model:     modelID,
		maxTokens: defaultMaxTokens,
		breaker:   resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig()),
		retry:     resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Digitize performs one extraction attempt on the image at imagePath.
func (c *Claude) Digitize(ctx context.Context, imagePath string) (*model.DigitizerOutput, error) {
	scan, err := imaging.Load(imagePath)
	if err != nil {
		return nil, err
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "digitizer: rate limit")
		}
	}

	var resp *claude.MessageResponse
	err = c.breaker.Execute(ctx, func(ctx context.Context) error {
		return resilience.Do(ctx, c.retry, func(ctx context.Context) error {
			var callErr error
			resp, callErr = c.client.CreateMessage(ctx, claude.MessageRequest{
				Model:     c.model,
				MaxTokens: c.maxTokens,
				System:    systemPrompt,
				Messages: []claude.Message{{
					Role:    "user",
					Content: userPrompt,
					Image: &claude.ImageAttachment{
						MediaType: scan.MediaType,
						Data:      scan.Base64,
					},
				}},
			})
			return callErr
		})
	})
	if err != nil {
		return nil, eris.Wrap(err, "digitizer: inference call")
	}

	resp.Usage.LogCost(c.model, "digitize")

	out, err := parseResponse(resp.Text)
	if err != nil {
		// A malformed response is a failed attempt, not a pipeline error:
		// the orchestrator records it and tries again.
		zap.L().Warn("digitizer: unparseable model response",
			zap.String("model", c.model),
			zap.Error(err),
		)
		return &model.DigitizerOutput{
			Success: false,
			Issues: []model.Issue{{
				Type:     model.IssueCoverage,
				Severity: model.SeverityError,
				Message:  "model response could not be parsed as a digitized signal",
			}},
		}, nil
	}
	return out, nil
}
