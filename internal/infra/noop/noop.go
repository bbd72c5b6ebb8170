// Package noop provides adapters for optional collaborators that are switched off.
package noop

import (
	"context"

	"go.uber.org/zap"
)

// Publisher drops status events and dead letters, logging them at debug level.
type Publisher struct {
	logger *zap.Logger
}

func NewPublisher(logger *zap.Logger) *Publisher {
	return &Publisher{logger: logger}
}

func (p *Publisher) PublishStatus(_ context.Context, msg []byte) error {
	p.logger.Debug("status event dropped", zap.ByteString("body", msg))
	return nil
}

func (p *Publisher) PublishToDLQ(_ context.Context, msg []byte, reason string) error {
	p.logger.Debug("dead letter dropped", zap.String("reason", reason), zap.ByteString("body", msg))
	return nil
}

// Notifier logs failures instead of sending e-mail.
type Notifier struct {
	logger *zap.Logger
}

func NewNotifier(logger *zap.Logger) *Notifier {
	return &Notifier{logger: logger}
}

func (n *Notifier) NotifyFailure(_ context.Context, recipient, sessionID, errorMsg string) error {
	n.logger.Info("failure notification skipped",
		zap.String("recipient", recipient),
		zap.String("session_id", sessionID),
		zap.String("error", errorMsg),
	)
	return nil
}
