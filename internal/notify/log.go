// Package notify delivers lifecycle notifications to external channels.
package notify

import (
	"context"

	"go.uber.org/zap"

	"fulfillment/internal/service"
)

// LogSink writes notifications to the log. It stands in for push, SMS and
// email delivery in local runs.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a new LogSink.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger.Named("notify")}
}

// Deliver implements service.Sink.
func (s *LogSink) Deliver(ctx context.Context, n service.Notification) error {
	s.logger.Debug("deliver",
		zap.String("id", n.ID),
		zap.String("type", string(n.Type)),
		zap.String("recipient_id", n.RecipientID),
		zap.String("message", n.Message),
		zap.String("action_ref", n.ActionRef),
	)
	return nil
}

var _ service.Sink = (*LogSink)(nil)
