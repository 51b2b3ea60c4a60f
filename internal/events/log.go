package events

import (
	"context"
	"log/slog"
)

// LogPublisher writes events to the logger. Used when no brokers are configured.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher creates a LogPublisher.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// PublishHandshake implements Publisher.
func (p *LogPublisher) PublishHandshake(ctx context.Context, e HandshakeEvent) error {
	p.logger.InfoContext(ctx, "event",
		"event_id", e.ID,
		"type", e.Type,
		"handshake_id", e.HandshakeID,
		"from", e.From,
		"to", e.To,
		"actor_id", e.ActorID,
	)
	return nil
}

// Close implements Publisher.
func (p *LogPublisher) Close() error { return nil }

var _ Publisher = (*LogPublisher)(nil)
