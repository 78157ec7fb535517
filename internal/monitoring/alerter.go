package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tracewell-health/ecg-cli/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertFailureRate   AlertType = "digitization_failure_rate"
	AlertLowConfidence AlertType = "low_mean_confidence"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// minFinishedRuns gates alerting until enough runs exist for the rates to
// mean anything.
const minFinishedRuns = 5

// lowConfidenceFloor triggers the mean-confidence alert.
const lowConfidenceFloor = 0.5

// Alerter evaluates a MetricsSnapshot against configured thresholds and
// sends alerts via webhook when breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates an Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	finished := snap.RunsComplete + snap.RunsFailed
	if finished >= minFinishedRuns && snap.FailRate > a.cfg.FailureRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertFailureRate,
			Severity: "high",
			Message: fmt.Sprintf("digitization failure rate %.0f%% over last %dh exceeds %.0f%%",
				snap.FailRate*100, snap.LookbackHours, a.cfg.FailureRateThreshold*100),
			Details: map[string]any{
				"runs_total":  snap.RunsTotal,
				"runs_failed": snap.RunsFailed,
				"fail_rate":   snap.FailRate,
			},
			Timestamp: now,
		})
	}

	if finished >= minFinishedRuns && snap.AvgConfidence > 0 && snap.AvgConfidence < lowConfidenceFloor {
		alerts = append(alerts, Alert{
			Type:     AlertLowConfidence,
			Severity: "medium",
			Message: fmt.Sprintf("mean validation confidence %.2f over last %dh is below %.2f",
				snap.AvgConfidence, snap.LookbackHours, lowConfidenceFloor),
			Details: map[string]any{
				"avg_confidence": snap.AvgConfidence,
				"avg_score":      snap.AvgScore,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers each alert in turn and returns how many were sent
// successfully. Failures are logged, not returned.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" {
		if len(alerts) > 0 {
			zap.L().Debug("monitoring: no webhook configured, dropping alerts",
				zap.Int("count", len(alerts)),
			)
		}
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.Send(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		sent++
	}
	return sent
}

// Send posts an alert to the configured webhook. No-op without a webhook URL.
func (a *Alerter) Send(ctx context.Context, alert Alert) error {
	if a.cfg.WebhookURL == "" {
		zap.L().Debug("monitoring: no webhook configured, dropping alert",
			zap.String("type", string(alert.Type)),
		)
		return nil
	}

	body, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "monitoring: create alert request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: send alert")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 300 {
		return eris.Errorf("monitoring: alert webhook returned %d", resp.StatusCode)
	}
	return nil
}
