package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/assassinoNz/CarShare-Server/internal/domain"
	"github.com/assassinoNz/CarShare-Server/internal/geometry"
	"github.com/assassinoNz/CarShare-Server/internal/matcher"
	"github.com/assassinoNz/CarShare-Server/internal/observability"
	"github.com/assassinoNz/CarShare-Server/internal/repository"
)

// HandshakeService negotiates the pairing of a hosted and a requested trip.
// Every transition is checked against domain.HandshakeTransitions and
// written with its side effects in one conditional update.
type HandshakeService struct {
	handshakes repository.HandshakeRepository
	hosted     repository.HostedTripRepository
	requested  repository.RequestedTripRepository
	authz      Authorizer
	matcher    *matcher.RouteMatcher
	notifier   *NotificationService
	box        domain.BoundingBox
	logger     *slog.Logger
	now        func() time.Time
}

// NewHandshakeService creates a new HandshakeService.
func NewHandshakeService(
	handshakes repository.HandshakeRepository,
	hosted repository.HostedTripRepository,
	requested repository.RequestedTripRepository,
	authz Authorizer,
	routeMatcher *matcher.RouteMatcher,
	notifier *NotificationService,
	box domain.BoundingBox,
	logger *slog.Logger,
) *HandshakeService {
	return &HandshakeService{
		handshakes: handshakes,
		hosted:     hosted,
		requested:  requested,
		authz:      authz,
		matcher:    routeMatcher,
		notifier:   notifier,
		box:        box,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *HandshakeService) loadTrips(ctx context.Context, hostedTripID, requestedTripID string) (*domain.HostedTrip, *domain.RequestedTrip, error) {
	hosted, err := s.hosted.GetByID(ctx, hostedTripID)
	if err != nil {
		return nil, nil, storeError("get hosted trip", err)
	}
	requested, err := s.requested.GetByID(ctx, requestedTripID)
	if err != nil {
		return nil, nil, storeError("get requested trip", err)
	}
	return hosted, requested, nil
}

// InitHandshakeRequest contains the parameters for opening a handshake.
type InitHandshakeRequest struct {
	CallerID        string
	HostedTripID    string
	RequestedTripID string
}

// InitHandshake opens a handshake from the caller, who must own exactly one
// of the two trips, to the owner of the other one.
func (s *HandshakeService) InitHandshake(ctx context.Context, req InitHandshakeRequest) (*domain.Handshake, error) {
	if _, err := s.authz.Authorize(ctx, req.CallerID, domain.ActionCreateHandshake); err != nil {
		return nil, err
	}

	hosted, requested, err := s.loadTrips(ctx, req.HostedTripID, req.RequestedTripID)
	if err != nil {
		return nil, err
	}

	if hosted.HostID == requested.RequesterID {
		return nil, domain.NewValidationError("requestedTripId", "both trips belong to the same user")
	}

	var recipientID string
	switch req.CallerID {
	case hosted.HostID:
		recipientID = requested.RequesterID
	case requested.RequesterID:
		recipientID = hosted.HostID
	default:
		return nil, &domain.AuthorizationError{
			CallerID: req.CallerID,
			Action:   domain.ActionCreateHandshake.String(),
			Reason:   "caller owns neither trip",
		}
	}

	if hosted.HasEnded() {
		return nil, &domain.TripStateError{Kind: "hosted trip", TripID: hosted.ID, Reason: "already ended"}
	}
	if requested.HasEnded() {
		return nil, &domain.TripStateError{Kind: "requested trip", TripID: requested.ID, Reason: "already ended"}
	}

	existing, err := s.handshakes.FindOpenByTrips(ctx, hosted.ID, requested.ID)
	if err != nil {
		return nil, storeError("find open handshake", err)
	}
	if existing != nil {
		return nil, &domain.StateConflictError{
			HandshakeID: existing.ID,
			Current:     existing.State(),
			Attempted:   domain.HandshakeInitiated,
			Reason:      "an open handshake already links these trips",
		}
	}

	now := s.now()
	h := &domain.Handshake{
		ID:              uuid.New().String(),
		HostedTripID:    hosted.ID,
		RequestedTripID: requested.ID,
		SenderID:        req.CallerID,
		RecipientID:     recipientID,
		CreatedAt:       now,
	}
	h.Time.Set(domain.HandshakeInitiated, now)

	if err := s.handshakes.Create(ctx, h); err != nil {
		return nil, storeError("create handshake", err)
	}

	observability.HandshakeTransitions.WithLabelValues(string(domain.HandshakeInitiated), "ok").Inc()
	s.logger.InfoContext(ctx, "handshake initiated",
		"handshake_id", h.ID,
		"hosted_trip_id", hosted.ID,
		"requested_trip_id", requested.ID,
		"sender_id", h.SenderID,
	)
	s.notifier.HandshakeChanged(ctx, h, "", domain.HandshakeInitiated, req.CallerID, recipientID, now)

	return h, nil
}

// GetHandshake retrieves a handshake for one of its parties.
func (s *HandshakeService) GetHandshake(ctx context.Context, callerID, id string) (*domain.Handshake, error) {
	if _, err := s.authz.Authorize(ctx, callerID, domain.ActionRetrieveHandshake); err != nil {
		return nil, err
	}
	h, err := s.handshakes.GetByID(ctx, id)
	if err != nil {
		return nil, storeError("get handshake", err)
	}
	if callerID != h.SenderID && callerID != h.RecipientID {
		return nil, &domain.AuthorizationError{
			CallerID: callerID,
			Action:   "retrieve handshake " + id,
			Reason:   "caller is not a party to the handshake",
		}
	}
	return h, nil
}

// TransitionRequest contains the parameters for moving a handshake forward.
type TransitionRequest struct {
	CallerID    string
	HandshakeID string
	Target      domain.HandshakeState
	// Coordinate is required when the requested trip starts or ends.
	Coordinate *domain.Coordinate
}

// Transition moves a handshake to req.Target. The checks run in this order:
// state preconditions, caller role, cross-trip preconditions, input. Nothing
// is written unless all pass, and the write itself fails if the handshake
// changed in the meantime.
func (s *HandshakeService) Transition(ctx context.Context, req TransitionRequest) (h *domain.Handshake, err error) {
	defer func() {
		result := "ok"
		if err != nil {
			result = errorKind(err)
		}
		observability.HandshakeTransitions.WithLabelValues(string(req.Target), result).Inc()
	}()

	if _, err := s.authz.Authorize(ctx, req.CallerID, domain.ActionUpdateHandshake); err != nil {
		return nil, err
	}

	t, err := domain.TransitionTo(req.Target)
	if err != nil {
		return nil, err
	}

	h, err = s.handshakes.GetByID(ctx, req.HandshakeID)
	if err != nil {
		return nil, storeError("get handshake", err)
	}
	hosted, requested, err := s.loadTrips(ctx, h.HostedTripID, h.RequestedTripID)
	if err != nil {
		return nil, err
	}

	who := domain.Participants{
		SenderID:    h.SenderID,
		RecipientID: h.RecipientID,
		HostID:      hosted.HostID,
		RequesterID: requested.RequesterID,
	}
	if !t.Party.Allows(req.CallerID, who) {
		return nil, &domain.AuthorizationError{
			CallerID: req.CallerID,
			Action:   fmt.Sprintf("move handshake %s to %s", h.ID, t.To),
			Reason:   fmt.Sprintf("only the %s may do this", t.Party),
		}
	}

	if err := t.Check(h); err != nil {
		return nil, err
	}

	if t.NeedsHostedStart && !hosted.HasStarted() {
		return nil, &domain.StateConflictError{
			HandshakeID: h.ID,
			Current:     h.State(),
			Required:    t.Requires,
			Attempted:   t.To,
			Reason:      "hosted trip has not started",
		}
	}
	if t.NeedsCoordinate {
		if req.Coordinate == nil {
			return nil, domain.NewValidationError("coordinate", "required for %s", t.To)
		}
		if err := s.box.ValidateCoordinate("coordinate", *req.Coordinate); err != nil {
			return nil, err
		}
	}

	now := s.now()
	w, err := s.buildWrite(ctx, t, h, hosted, requested, req.Coordinate, now)
	if err != nil {
		return nil, err
	}

	from := h.State()
	if err := s.handshakes.ApplyTransition(ctx, w); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, s.concurrentConflict(ctx, t, h.ID)
		}
		return nil, storeError("apply handshake transition", err)
	}

	updated, err := s.handshakes.GetByID(ctx, h.ID)
	if err != nil {
		return nil, storeError("get handshake", err)
	}

	s.logger.InfoContext(ctx, "handshake transition",
		"handshake_id", h.ID,
		"from", from,
		"to", t.To,
		"caller_id", req.CallerID,
		"seat_delta", w.SeatDelta,
	)
	recipientID := who.SenderID
	if req.CallerID == who.SenderID {
		recipientID = who.RecipientID
	}
	s.notifier.HandshakeChanged(ctx, updated, from, t.To, req.CallerID, recipientID, now)

	return updated, nil
}

// buildWrite assembles the conditional write for t including its side effect.
func (s *HandshakeService) buildWrite(
	ctx context.Context,
	t domain.Transition,
	h *domain.Handshake,
	hosted *domain.HostedTrip,
	requested *domain.RequestedTrip,
	coord *domain.Coordinate,
	now time.Time,
) (repository.TransitionWrite, error) {
	w := repository.TransitionWrite{
		HandshakeID:     h.ID,
		ExpectedVersion: h.Version,
		State:           t.To,
		At:              now,
		HostedTripID:    hosted.ID,
	}

	switch t.Effect {
	case domain.EffectReserveSeats:
		w.SeatDelta = -requested.Seats

	case domain.EffectReleaseSeats:
		if t.ReleasesSeats(h) {
			w.SeatDelta = requested.Seats
		}

	case domain.EffectMarkPickupPoints:
		coords := requested.Route.KeyCoords
		pickup, err := s.matcher.ClosestPoint(ctx, coords[0], hosted.Route.Polylines)
		if err != nil {
			return w, err
		}
		dropoff, err := s.matcher.ClosestPoint(ctx, coords[len(coords)-1], hosted.Route.Polylines)
		if err != nil {
			return w, err
		}
		w.Pickup, w.Dropoff = &pickup, &dropoff

	case domain.EffectMirrorStart:
		w.Mirror = &repository.RequestedTripMirror{
			RequestedTripID: requested.ID,
			State:           domain.HostedTripStateStarted,
			At:              now,
			Coord:           *coord,
		}

	case domain.EffectMirrorEnd:
		w.Mirror = &repository.RequestedTripMirror{
			RequestedTripID: requested.ID,
			State:           domain.HostedTripStateEnded,
			At:              now,
			Coord:           *coord,
		}

	case domain.EffectComputeFare:
		start, end := requested.Route.Started, requested.Route.Ended
		if start == nil || end == nil {
			return w, &domain.StateConflictError{
				HandshakeID: h.ID,
				Current:     h.State(),
				Required:    t.Requires,
				Attempted:   t.To,
				Reason:      "requested trip has no recorded start and end",
			}
		}
		km := geometry.GreatCircleMeters(*start, *end) / 1000
		w.Payment = &domain.Payment{
			Amount:     roundCents(hosted.Billing.Fare(km)),
			DistanceKm: math.Round(km*1000) / 1000,
			Status:     domain.PaymentStatusPending,
		}
	}

	if t.To == domain.HandshakeDonePayment {
		paid := h.Payment
		paid.Status = domain.PaymentStatusDone
		w.Payment = &paid
	}

	return w, nil
}

// concurrentConflict reloads the handshake after a lost compare-and-swap so
// the error shows the state that won.
func (s *HandshakeService) concurrentConflict(ctx context.Context, t domain.Transition, id string) error {
	conflict := &domain.StateConflictError{
		HandshakeID: id,
		Required:    t.Requires,
		Attempted:   t.To,
		Reason:      "handshake changed concurrently",
	}
	if latest, err := s.handshakes.GetByID(ctx, id); err == nil {
		conflict.Current = latest.State()
		if t.Check(latest) != nil {
			conflict.Reason = "handshake changed concurrently; transition no longer allowed"
		}
	}
	return conflict
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// errorKind names the domain kind of err for metric labels.
func errorKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, domain.ErrStateConflict):
		return "state_conflict"
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrCapacity):
		return "capacity"
	case errors.Is(err, domain.ErrUpstream):
		return "upstream"
	}
	return "internal"
}
