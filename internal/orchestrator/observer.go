package orchestrator

import (
	"go.uber.org/zap"

	"github.com/tracewell-health/ecg-cli/internal/model"
)

// AttemptObserver receives a notification after each attempt is scored. The
// orchestrator core knows nothing about logging or UI sinks; observers do.
// Observers must not mutate the record.
type AttemptObserver interface {
	OnAttempt(attempt int, record *model.AttemptRecord)
}

// ObserverFunc adapts a plain callback to AttemptObserver.
type ObserverFunc func(attempt int, record *model.AttemptRecord)

func (f ObserverFunc) OnAttempt(attempt int, record *model.AttemptRecord) {
	f(attempt, record)
}

// LogObserver logs each attempt through the global zap logger.
type LogObserver struct{}

func (LogObserver) OnAttempt(attempt int, record *model.AttemptRecord) {
	fields := []zap.Field{
		zap.Int("attempt", attempt),
		zap.Bool("succeeded", record.Succeeded()),
		zap.Float64("score", record.Score),
	}
	if record.Validation != nil {
		fields = append(fields,
			zap.Bool("valid", record.Validation.Valid),
			zap.Float64("confidence", record.Validation.Confidence),
		)
	}
	zap.L().Info("orchestrator: attempt scored", fields...)
}

// MultiObserver fans each notification out to several observers, in slice
// order.
type MultiObserver []AttemptObserver

func (m MultiObserver) OnAttempt(attempt int, record *model.AttemptRecord) {
	for _, o := range m {
		o.OnAttempt(attempt, record)
	}
}
