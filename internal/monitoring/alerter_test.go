package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracewell-health/ecg-cli/internal/config"
)

func healthySnapshot() *MetricsSnapshot {
	return &MetricsSnapshot{
		RunsTotal:     20,
		RunsComplete:  18,
		RunsFailed:    2,
		FailRate:      0.1,
		AvgConfidence: 0.9,
		LookbackHours: 24,
	}
}

func TestAlerter_Evaluate(t *testing.T) {
	t.Parallel()

	a := NewAlerter(config.MonitoringConfig{FailureRateThreshold: 0.5})

	t.Run("healthy snapshot raises nothing", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, a.Evaluate(healthySnapshot()))
	})

	t.Run("high failure rate raises an alert", func(t *testing.T) {
		t.Parallel()
		snap := healthySnapshot()
		snap.RunsComplete = 4
		snap.RunsFailed = 6
		snap.FailRate = 0.6

		alerts := a.Evaluate(snap)
		require.Len(t, alerts, 1)
		assert.Equal(t, AlertFailureRate, alerts[0].Type)
		assert.Equal(t, "high", alerts[0].Severity)
		assert.Contains(t, alerts[0].Message, "60%")
	})

	t.Run("low mean confidence raises an alert", func(t *testing.T) {
		t.Parallel()
		snap := healthySnapshot()
		snap.AvgConfidence = 0.3

		alerts := a.Evaluate(snap)
		require.Len(t, alerts, 1)
		assert.Equal(t, AlertLowConfidence, alerts[0].Type)
		assert.Equal(t, "medium", alerts[0].Severity)
	})

	t.Run("both thresholds breached raises both", func(t *testing.T) {
		t.Parallel()
		snap := healthySnapshot()
		snap.RunsFailed = 12
		snap.FailRate = 0.6
		snap.AvgConfidence = 0.2

		assert.Len(t, a.Evaluate(snap), 2)
	})

	t.Run("too few runs suppresses alerts", func(t *testing.T) {
		t.Parallel()
		snap := &MetricsSnapshot{
			RunsTotal:     3,
			RunsComplete:  1,
			RunsFailed:    2,
			FailRate:      2.0 / 3.0,
			AvgConfidence: 0.2,
			LookbackHours: 24,
		}
		assert.Empty(t, a.Evaluate(snap))
	})

	t.Run("zero confidence is treated as no data", func(t *testing.T) {
		t.Parallel()
		snap := healthySnapshot()
		snap.AvgConfidence = 0
		assert.Empty(t, a.Evaluate(snap))
	})
}

func TestAlerter_Send(t *testing.T) {
	t.Parallel()

	t.Run("posts JSON to the webhook", func(t *testing.T) {
		t.Parallel()
		var got Alert
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		a := NewAlerter(config.MonitoringConfig{WebhookURL: srv.URL})
		err := a.Send(context.Background(), Alert{Type: AlertFailureRate, Severity: "high", Message: "boom"})
		require.NoError(t, err)
		assert.Equal(t, AlertFailureRate, got.Type)
		assert.Equal(t, "boom", got.Message)
	})

	t.Run("non-2xx response is an error", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		a := NewAlerter(config.MonitoringConfig{WebhookURL: srv.URL})
		assert.Error(t, a.Send(context.Background(), Alert{Type: AlertFailureRate}))
	})

	t.Run("no webhook configured is a no-op", func(t *testing.T) {
		t.Parallel()
		a := NewAlerter(config.MonitoringConfig{})
		assert.NoError(t, a.Send(context.Background(), Alert{Type: AlertFailureRate}))
	})
}

func TestAlerter_SendAlerts(t *testing.T) {
	t.Parallel()

	t.Run("counts successful deliveries", func(t *testing.T) {
		t.Parallel()
		calls := 0
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls++
			if calls == 2 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		a := NewAlerter(config.MonitoringConfig{WebhookURL: srv.URL})
		sent := a.SendAlerts(context.Background(), []Alert{
			{Type: AlertFailureRate},
			{Type: AlertLowConfidence},
			{Type: AlertFailureRate},
		})
		assert.Equal(t, 2, sent)
		assert.Equal(t, 3, calls)
	})

	t.Run("no webhook sends nothing", func(t *testing.T) {
		t.Parallel()
		a := NewAlerter(config.MonitoringConfig{})
		assert.Zero(t, a.SendAlerts(context.Background(), []Alert{{Type: AlertFailureRate}}))
	})
}
