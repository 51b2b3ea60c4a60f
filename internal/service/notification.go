package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/assassinoNz/CarShare-Server/internal/domain"
	"github.com/assassinoNz/CarShare-Server/internal/events"
)

// NotificationService turns committed handshake changes into events for the
// delivery pipeline. Delivery itself happens downstream.
type NotificationService struct {
	publisher events.Publisher
	logger    *slog.Logger
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(publisher events.Publisher, logger *slog.Logger) *NotificationService {
	return &NotificationService{publisher: publisher, logger: logger}
}

// HandshakeChanged publishes the transition of h from one state to another.
// Failures are logged; the transition has already been committed.
func (s *NotificationService) HandshakeChanged(ctx context.Context, h *domain.Handshake, from, to domain.HandshakeState, actorID, recipientID string, at time.Time) {
	if s == nil || s.publisher == nil {
		return
	}

	e := events.NewHandshakeEvent(h, from, to, actorID, recipientID, at)
	if err := s.publisher.PublishHandshake(ctx, e); err != nil {
		s.logger.WarnContext(ctx, "publish handshake event failed",
			"handshake_id", h.ID,
			"state", to,
			"err", err,
		)
	}
}
