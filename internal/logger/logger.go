package logger

import (
	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/config"

	"github.com/sirupsen/logrus"
)

// Logger wraps logrus.Logger with additional functionality
type Logger struct {
	*logrus.Logger
}

// NewLogger creates a new structured logger instance
func NewLogger(cfg *config.Config) *Logger {
	log := logrus.New()

	// Set log level
	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	// Set log format
	if cfg.Logging.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return &Logger{Logger: log}
}

// WithTenant adds tenant context to log entries
func (l *Logger) WithTenant(tenantID string) *logrus.Entry {
	return l.WithField("tenant_id", tenantID)
}

// WithRun adds tenant and ingestion run context to log entries
func (l *Logger) WithRun(tenantID, runID string) *logrus.Entry {
	return l.WithFields(logrus.Fields{
		"tenant_id": tenantID,
		"run_id":    runID,
	})
}

// WithOutboxEvent adds outbox event context to log entries
func (l *Logger) WithOutboxEvent(eventID, eventType string) *logrus.Entry {
	return l.WithFields(logrus.Fields{
		"outbox_event_id": eventID,
		"event_type":      eventType,
	})
}

// WithConnector adds connector context to log entries
func (l *Logger) WithConnector(sourceType string) *logrus.Entry {
	return l.WithField("source_type", sourceType)
}
