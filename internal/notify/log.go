// Package notify contains the notification backends. Each backend delivers a
// plain-text message; subpackages hold the networked ones.
package notify

import (
	"context"

	"go.uber.org/zap"
)

// Log writes messages to a zap logger instead of delivering them. It is the
// dry-run backend.
type Log struct {
	logger *zap.Logger
}

// NewLog returns a Log notifier.
func NewLog(logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{logger: logger}
}

// Send logs the message and never fails.
func (l *Log) Send(_ context.Context, message string) error {
	l.logger.Info("notification", zap.String("text", message))
	return nil
}
