package logger

import (
	"time"

	"github.com/sirupsen/logrus"
)

// RunLogger provides dedicated logging for reconciliation runs.
type RunLogger struct {
	*logrus.Entry
}

// NewRunLogger creates a new run logger.
func NewRunLogger(baseLogger *logrus.Logger) *RunLogger {
	return &RunLogger{
		Entry: baseLogger.WithField("component", "reconcile"),
	}
}

// LogRunStarted logs the start of a reconciliation pass for one date.
func (rl *RunLogger) LogRunStarted(date string, meetings, tips int) {
	rl.WithFields(logrus.Fields{
		"date":     date,
		"meetings": meetings,
		"tips":     tips,
	}).Info("Reconciliation started")
}

// LogFeedFetched logs the rows one provider returned.
func (rl *RunLogger) LogFeedFetched(provider, date string, rows int, duration time.Duration) {
	rl.WithFields(logrus.Fields{
		"provider":    provider,
		"date":        date,
		"rows":        rows,
		"duration_ms": duration.Milliseconds(),
	}).Debug("Provider feed fetched")
}

// LogRunCompleted logs the summary of a reconciliation pass.
func (rl *RunLogger) LogRunCompleted(date string, resultsWritten, outcomesWritten, pending int, partial bool, duration time.Duration) {
	entry := rl.WithFields(logrus.Fields{
		"date":             date,
		"results_written":  resultsWritten,
		"outcomes_written": outcomesWritten,
		"pending":          pending,
		"partial":          partial,
		"duration_ms":      duration.Milliseconds(),
	})
	if partial {
		entry.Warn("Reconciliation completed with missing providers")
		return
	}
	entry.Info("Reconciliation completed")
}
