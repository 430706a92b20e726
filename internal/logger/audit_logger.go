package logger

import (
	"github.com/sirupsen/logrus"
)

// AuditLogger provides dedicated audit trail logging for reconciliation decisions
// that may need to be reviewed after the fact.
type AuditLogger struct {
	*logrus.Entry
}

// NewAuditLogger creates a new audit logger.
func NewAuditLogger(baseLogger *logrus.Logger) *AuditLogger {
	return &AuditLogger{
		Entry: baseLogger.WithField("component", "audit"),
	}
}

// LogAmbiguousMatch records a fuzzy track match that had more than one plausible candidate.
func (al *AuditLogger) LogAmbiguousMatch(date, state, feedTrack string, raceNumber int, strategy, chosen string, candidates []string) {
	al.WithFields(logrus.Fields{
		"date":        date,
		"state":       state,
		"feed_track":  feedTrack,
		"race_number": raceNumber,
		"strategy":    strategy,
		"chosen":      chosen,
		"candidates":  candidates,
	}).Warn("Ambiguous track match resolved by tie-break")
}

// LogPrecedenceRefusal records a lower-precedence provider being refused an outcome overwrite.
func (al *AuditLogger) LogPrecedenceRefusal(tipID, existingProvider, incomingProvider string) {
	al.WithFields(logrus.Fields{
		"tip_id":            tipID,
		"existing_provider": existingProvider,
		"incoming_provider": incomingProvider,
	}).Info("Outcome kept from higher-precedence provider")
}

// LogMeetingCreated records a meeting first sighted in a result feed.
func (al *AuditLogger) LogMeetingCreated(meetingID, date, state, track, provider string) {
	al.WithFields(logrus.Fields{
		"meeting_id": meetingID,
		"date":       date,
		"state":      state,
		"track":      track,
		"provider":   provider,
	}).Info("Meeting created from result feed")
}

// LogPriceBackfill records a missing starting price filled from the live-price feed.
func (al *AuditLogger) LogPriceBackfill(kind, id string, tabNumber int, price string) {
	al.WithFields(logrus.Fields{
		"kind":       kind,
		"id":         id,
		"tab_number": tabNumber,
		"price":      price,
	}).Info("Starting price back-filled")
}

// LogFeedFailure records a provider whose data was treated as absent for a date.
func (al *AuditLogger) LogFeedFailure(provider, date string, err error) {
	al.WithFields(logrus.Fields{
		"provider": provider,
		"date":     date,
	}).WithError(err).Warn("Provider feed failed; treating its data as absent")
}
