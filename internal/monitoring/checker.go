package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tracewell-health/ecg-cli/internal/config"
)

// Checker periodically samples digitization health from the run store and
// pushes any triggered alerts through the webhook. One snapshot is taken
// immediately on startup so a degraded inference endpoint surfaces before
// the first full interval elapses.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	cfg       config.MonitoringConfig
}

// NewChecker creates a background digitization health checker.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	return &Checker{
		collector: collector,
		alerter:   alerter,
		cfg:       cfg,
	}
}

// Run takes a baseline snapshot, then re-checks every interval. It blocks
// until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	interval := time.Duration(c.cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("digitization health checker started",
		zap.Duration("interval", interval),
		zap.Int("lookback_hours", c.cfg.LookbackWindowHours),
		zap.Bool("webhook_configured", c.cfg.WebhookURL != ""),
	)

	c.check(ctx, log)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("digitization health checker stopped")
			return
		case <-ticker.C:
			c.check(ctx, log)
		}
	}
}

func (c *Checker) check(ctx context.Context, log *zap.Logger) {
	snap, err := c.collector.Collect(ctx, c.cfg.LookbackWindowHours)
	if err != nil {
		log.Error("digitization health snapshot failed", zap.Error(err))
		return
	}

	log.Debug("digitization health snapshot",
		zap.Int("runs_total", snap.RunsTotal),
		zap.Int("runs_failed", snap.RunsFailed),
		zap.Float64("fail_rate", snap.FailRate),
		zap.Float64("avg_confidence", snap.AvgConfidence),
		zap.Float64("avg_score", snap.AvgScore),
	)

	alerts := c.alerter.Evaluate(snap)
	if len(alerts) == 0 {
		return
	}

	sent := c.alerter.SendAlerts(ctx, alerts)
	log.Warn("digitization health degraded",
		zap.Int("alerts_triggered", len(alerts)),
		zap.Int("alerts_sent", sent),
		zap.Float64("fail_rate", snap.FailRate),
		zap.Float64("avg_confidence", snap.AvgConfidence),
	)
}
