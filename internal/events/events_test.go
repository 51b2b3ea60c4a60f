package events

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/assassinoNz/CarShare-Server/internal/domain"
	"github.com/assassinoNz/CarShare-Server/internal/logging"
)

func TestNewHandshakeEvent_StableID(t *testing.T) {
	t.Parallel()

	h := &domain.Handshake{ID: "hs-1", HostedTripID: "h1", RequestedTripID: "r1"}
	at := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

	a := NewHandshakeEvent(h, domain.HandshakeSeen, domain.HandshakeAccepted, "u2", "u1", at)
	b := NewHandshakeEvent(h, domain.HandshakeSeen, domain.HandshakeAccepted, "u2", "u1", at.Add(time.Minute))
	c := NewHandshakeEvent(h, domain.HandshakeAccepted, domain.HandshakeCancelled, "u1", "u2", at)

	if a.ID != b.ID {
		t.Errorf("expected same id for the same state, got %s and %s", a.ID, b.ID)
	}
	if a.ID == c.ID {
		t.Errorf("expected different ids for different states")
	}
	if len(a.ID) != 32 {
		t.Errorf("expected 32 hex chars, got %d", len(a.ID))
	}
	if a.Type != "handshake.ACCEPTED" {
		t.Errorf("unexpected type %s", a.Type)
	}
}

func TestLogPublisher(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p := NewLogPublisher(logging.New(&buf, "info"))

	h := &domain.Handshake{ID: "hs-1"}
	e := NewHandshakeEvent(h, domain.HandshakeInitiated, domain.HandshakeSent, "u1", "u2", time.Now())
	if err := p.PublishHandshake(context.Background(), e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), `"type":"handshake.SENT"`) {
		t.Errorf("expected event in log, got %s", buf.String())
	}
	if err := p.Close(); err != nil {
		t.Errorf("unexpected close error: %v", err)
	}
}
