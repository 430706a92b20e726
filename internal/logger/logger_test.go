package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestLogger() (*logrus.Logger, *bytes.Buffer) {
	log := logrus.New()
	buf := &bytes.Buffer{}
	log.SetOutput(buf)
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrus.DebugLevel)
	return log, buf
}

func parseLogOutput(buf *bytes.Buffer) map[string]interface{} {
	var logEntry map[string]interface{}
	err := json.Unmarshal(buf.Bytes(), &logEntry)
	if err != nil {
		return nil
	}
	return logEntry
}

func TestNewLoggerLevels(t *testing.T) {
	buf := &bytes.Buffer{}
	log := newLogger(buf, "debug", "production")
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
	_, isJSON := log.Formatter.(*logrus.JSONFormatter)
	assert.True(t, isJSON)

	log = newLogger(buf, "nonsense", "development")
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
	_, isText := log.Formatter.(*logrus.TextFormatter)
	assert.True(t, isText)
}

func TestRunLoggerStarted(t *testing.T) {
	log, buf := setupTestLogger()
	runLogger := NewRunLogger(log)

	runLogger.LogRunStarted("2025-11-18", 4, 32)

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "reconcile", logEntry["component"])
	assert.Equal(t, "2025-11-18", logEntry["date"])
	assert.Equal(t, float64(32), logEntry["tips"])
}

func TestRunLoggerCompletedPartialWarns(t *testing.T) {
	log, buf := setupTestLogger()
	runLogger := NewRunLogger(log)

	runLogger.LogRunCompleted("2025-11-18", 10, 8, 2, true, 1500*time.Millisecond)

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "warning", logEntry["level"])
	assert.Equal(t, true, logEntry["partial"])
	assert.Equal(t, float64(1500), logEntry["duration_ms"])
}

func TestRunLoggerFeedFetched(t *testing.T) {
	log, buf := setupTestLogger()
	runLogger := NewRunLogger(log)

	runLogger.LogFeedFetched("PF", "2025-11-18", 120, 250*time.Millisecond)

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "PF", logEntry["provider"])
	assert.Equal(t, "debug", logEntry["level"])
}

func TestAuditLoggerAmbiguousMatch(t *testing.T) {
	log, buf := setupTestLogger()
	auditLogger := NewAuditLogger(log)

	auditLogger.LogAmbiguousMatch("2025-11-18", "NSW", "Rose", 3, "affix", "Rosehill", []string{"Rosehill", "Rosebud"})

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "audit", logEntry["component"])
	assert.Equal(t, "Rosehill", logEntry["chosen"])
	assert.Len(t, logEntry["candidates"], 2)
}

func TestAuditLoggerPrecedenceRefusal(t *testing.T) {
	log, buf := setupTestLogger()
	auditLogger := NewAuditLogger(log)

	auditLogger.LogPrecedenceRefusal("tip_1", "PF", "RA")

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "PF", logEntry["existing_provider"])
	assert.Equal(t, "RA", logEntry["incoming_provider"])
}

func TestAuditLoggerFeedFailure(t *testing.T) {
	log, buf := setupTestLogger()
	auditLogger := NewAuditLogger(log)

	auditLogger.LogFeedFailure("RA", "2025-11-18", errors.New("connection refused"))

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "connection refused", logEntry["error"])
	assert.Equal(t, "warning", logEntry["level"])
}

func TestAuditLoggerMeetingAndBackfill(t *testing.T) {
	log, buf := setupTestLogger()
	auditLogger := NewAuditLogger(log)

	auditLogger.LogMeetingCreated("m1", "2025-11-18", "VIC", "Flemington", "RA")
	first := buf.Bytes()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.SplitN(first, []byte("\n"), 2)[0], &entry))
	assert.Equal(t, "Flemington", entry["track"])

	buf.Reset()
	auditLogger.LogPriceBackfill("tip_outcome", "tip_9", 4, "5.5")
	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, float64(4), logEntry["tab_number"])
	assert.Equal(t, "5.5", logEntry["price"])
}

func BenchmarkAuditLoggerPrecedenceRefusal(b *testing.B) {
	log := logrus.New()
	log.SetOutput(&bytes.Buffer{})
	auditLogger := NewAuditLogger(log)

	for i := 0; i < b.N; i++ {
		auditLogger.LogPrecedenceRefusal("tip_1", "PF", "RA")
	}
}
