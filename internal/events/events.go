// Package events publishes domain events to downstream consumers.
package events

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/zeebo/blake3"

	"github.com/assassinoNz/CarShare-Server/internal/domain"
)

// HandshakeEvent is emitted after every committed handshake transition.
type HandshakeEvent struct {
	ID              string                `json:"id"`
	Type            string                `json:"type"`
	HandshakeID     string                `json:"handshakeId"`
	HostedTripID    string                `json:"hostedTripId"`
	RequestedTripID string                `json:"requestedTripId"`
	From            domain.HandshakeState `json:"from,omitempty"`
	To              domain.HandshakeState `json:"to"`
	ActorID         string                `json:"actorId"`
	RecipientID     string                `json:"recipientId,omitempty"`
	At              time.Time             `json:"at"`
}

// NewHandshakeEvent builds the event for a transition of h to state.
// The event id is stable for a given handshake and state, so consumers
// can drop redeliveries.
func NewHandshakeEvent(h *domain.Handshake, from, to domain.HandshakeState, actorID, recipientID string, at time.Time) HandshakeEvent {
	sum := blake3.Sum256([]byte(h.ID + "/" + string(to)))
	return HandshakeEvent{
		ID:              hex.EncodeToString(sum[:16]),
		Type:            "handshake." + string(to),
		HandshakeID:     h.ID,
		HostedTripID:    h.HostedTripID,
		RequestedTripID: h.RequestedTripID,
		From:            from,
		To:              to,
		ActorID:         actorID,
		RecipientID:     recipientID,
		At:              at,
	}
}

// Publisher delivers handshake events.
type Publisher interface {
	PublishHandshake(ctx context.Context, e HandshakeEvent) error
	Close() error
}
