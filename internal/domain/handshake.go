package domain

import "time"

// HandshakeState is the negotiation state of a handshake. A handshake stores
// one timestamp per state; the current state is derived from which are set.
type HandshakeState string

const (
	HandshakeInitiated                     HandshakeState = "INITIATED"
	HandshakeSent                          HandshakeState = "SENT"
	HandshakeSeen                          HandshakeState = "SEEN"
	HandshakeAccepted                      HandshakeState = "ACCEPTED"
	HandshakeConfirmedAccepted             HandshakeState = "CONFIRMED_ACCEPTED"
	HandshakeStartedRequestedTrip          HandshakeState = "STARTED_REQUESTED_TRIP"
	HandshakeConfirmedStartedRequestedTrip HandshakeState = "CONFIRMED_STARTED_REQUESTED_TRIP"
	HandshakeEndedRequestedTrip            HandshakeState = "ENDED_REQUESTED_TRIP"
	HandshakeConfirmedEndedRequestedTrip   HandshakeState = "CONFIRMED_ENDED_REQUESTED_TRIP"
	HandshakeDonePayment                   HandshakeState = "DONE_PAYMENT"
	HandshakeCancelled                     HandshakeState = "CANCELLED"
)

// HandshakeProgression is the canonical successor order, excluding CANCELLED.
var HandshakeProgression = []HandshakeState{
	HandshakeInitiated,
	HandshakeSent,
	HandshakeSeen,
	HandshakeAccepted,
	HandshakeConfirmedAccepted,
	HandshakeStartedRequestedTrip,
	HandshakeConfirmedStartedRequestedTrip,
	HandshakeEndedRequestedTrip,
	HandshakeConfirmedEndedRequestedTrip,
	HandshakeDonePayment,
}

// Valid reports whether s is a known state.
func (s HandshakeState) Valid() bool {
	if s == HandshakeCancelled {
		return true
	}
	for _, p := range HandshakeProgression {
		if p == s {
			return true
		}
	}
	return false
}

// HandshakeTime is the time record. A set field is never unset.
type HandshakeTime struct {
	Initiated                     *time.Time `json:"initiated,omitempty"`
	Sent                          *time.Time `json:"sent,omitempty"`
	Seen                          *time.Time `json:"seen,omitempty"`
	Accepted                      *time.Time `json:"accepted,omitempty"`
	ConfirmedAccepted             *time.Time `json:"confirmedAccepted,omitempty"`
	StartedRequestedTrip          *time.Time `json:"startedRequestedTrip,omitempty"`
	ConfirmedStartedRequestedTrip *time.Time `json:"confirmedStartedRequestedTrip,omitempty"`
	EndedRequestedTrip            *time.Time `json:"endedRequestedTrip,omitempty"`
	ConfirmedEndedRequestedTrip   *time.Time `json:"confirmedEndedRequestedTrip,omitempty"`
	PaymentDone                   *time.Time `json:"paymentDone,omitempty"`
	Cancelled                     *time.Time `json:"cancelled,omitempty"`
}

func (t *HandshakeTime) slot(s HandshakeState) **time.Time {
	switch s {
	case HandshakeInitiated:
		return &t.Initiated
	case HandshakeSent:
		return &t.Sent
	case HandshakeSeen:
		return &t.Seen
	case HandshakeAccepted:
		return &t.Accepted
	case HandshakeConfirmedAccepted:
		return &t.ConfirmedAccepted
	case HandshakeStartedRequestedTrip:
		return &t.StartedRequestedTrip
	case HandshakeConfirmedStartedRequestedTrip:
		return &t.ConfirmedStartedRequestedTrip
	case HandshakeEndedRequestedTrip:
		return &t.EndedRequestedTrip
	case HandshakeConfirmedEndedRequestedTrip:
		return &t.ConfirmedEndedRequestedTrip
	case HandshakeDonePayment:
		return &t.PaymentDone
	case HandshakeCancelled:
		return &t.Cancelled
	}
	return nil
}

// Has reports whether the timestamp for s is set.
func (t *HandshakeTime) Has(s HandshakeState) bool {
	p := t.slot(s)
	return p != nil && *p != nil
}

// At returns the timestamp for s, or nil.
func (t *HandshakeTime) At(s HandshakeState) *time.Time {
	if p := t.slot(s); p != nil {
		return *p
	}
	return nil
}

// Set records the timestamp for s. Already-set fields are left unchanged.
func (t *HandshakeTime) Set(s HandshakeState, at time.Time) {
	p := t.slot(s)
	if p == nil || *p != nil {
		return
	}
	v := at
	*p = &v
}

// Handshake links one hosted trip and one requested trip.
type Handshake struct {
	ID              string        `json:"id"`
	HostedTripID    string        `json:"hostedTripId"`
	RequestedTripID string        `json:"requestedTripId"`
	SenderID        string        `json:"senderId"`
	RecipientID     string        `json:"recipientId"`
	Version         int           `json:"version"`
	Time            HandshakeTime `json:"time"`
	Pickup          *Coordinate   `json:"pickup,omitempty"`
	Dropoff         *Coordinate   `json:"dropoff,omitempty"`
	Payment         Payment       `json:"payment"`
	Rating          Rating        `json:"rating"`
	CreatedAt       time.Time     `json:"createdAt"`
}

// State is the highest state whose timestamp is set. CANCELLED wins over everything.
func (h *Handshake) State() HandshakeState {
	if h.Time.Has(HandshakeCancelled) {
		return HandshakeCancelled
	}
	for i := len(HandshakeProgression) - 1; i >= 0; i-- {
		if h.Time.Has(HandshakeProgression[i]) {
			return HandshakeProgression[i]
		}
	}
	return ""
}

// IsTerminal reports whether no further transition is possible.
func (h *Handshake) IsTerminal() bool {
	s := h.State()
	return s == HandshakeCancelled || s == HandshakeDonePayment
}

// Party identifies which participant may perform a transition.
type Party string

const (
	PartySender    Party = "SENDER"
	PartyRecipient Party = "RECIPIENT"
	PartyHost      Party = "HOST"
	PartyRequester Party = "REQUESTER"
	PartyEither    Party = "SENDER_OR_RECIPIENT"
)

// Participants are the resolved identities around a handshake. Host and
// requester come from the referenced trips, not from sender/recipient.
type Participants struct {
	SenderID    string
	RecipientID string
	HostID      string
	RequesterID string
}

// Allows reports whether callerID plays party p.
func (p Party) Allows(callerID string, who Participants) bool {
	switch p {
	case PartySender:
		return callerID == who.SenderID
	case PartyRecipient:
		return callerID == who.RecipientID
	case PartyHost:
		return callerID == who.HostID
	case PartyRequester:
		return callerID == who.RequesterID
	case PartyEither:
		return callerID == who.SenderID || callerID == who.RecipientID
	}
	return false
}

// SideEffect is the extra write performed together with a transition.
type SideEffect string

const (
	EffectNone             SideEffect = ""
	EffectReserveSeats     SideEffect = "RESERVE_SEATS"
	EffectReleaseSeats     SideEffect = "RELEASE_SEATS"
	EffectMarkPickupPoints SideEffect = "MARK_PICKUP_POINTS"
	EffectMirrorStart      SideEffect = "MIRROR_REQUESTED_START"
	EffectMirrorEnd        SideEffect = "MIRROR_REQUESTED_END"
	EffectComputeFare      SideEffect = "COMPUTE_FARE"
)

// Transition is one row of the handshake transition table.
type Transition struct {
	To       HandshakeState
	Requires HandshakeState // immediate predecessor; empty for CANCELLED
	Party    Party
	Effect   SideEffect

	// NeedsCoordinate transitions mirror a position onto the requested trip.
	NeedsCoordinate bool
	// NeedsHostedStart transitions require the hosted trip to have started.
	NeedsHostedStart bool
}

// HandshakeTransitions is the full legality table, keyed by target state.
var HandshakeTransitions = map[HandshakeState]Transition{
	HandshakeSent:                          {To: HandshakeSent, Requires: HandshakeInitiated, Party: PartySender},
	HandshakeSeen:                          {To: HandshakeSeen, Requires: HandshakeSent, Party: PartyRecipient},
	HandshakeAccepted:                      {To: HandshakeAccepted, Requires: HandshakeSeen, Party: PartyRecipient, Effect: EffectReserveSeats},
	HandshakeConfirmedAccepted:             {To: HandshakeConfirmedAccepted, Requires: HandshakeAccepted, Party: PartySender, Effect: EffectMarkPickupPoints},
	HandshakeStartedRequestedTrip:          {To: HandshakeStartedRequestedTrip, Requires: HandshakeConfirmedAccepted, Party: PartyHost, Effect: EffectMirrorStart, NeedsCoordinate: true, NeedsHostedStart: true},
	HandshakeConfirmedStartedRequestedTrip: {To: HandshakeConfirmedStartedRequestedTrip, Requires: HandshakeStartedRequestedTrip, Party: PartyRequester},
	HandshakeEndedRequestedTrip:            {To: HandshakeEndedRequestedTrip, Requires: HandshakeConfirmedStartedRequestedTrip, Party: PartyRequester, Effect: EffectMirrorEnd, NeedsCoordinate: true, NeedsHostedStart: true},
	HandshakeConfirmedEndedRequestedTrip:   {To: HandshakeConfirmedEndedRequestedTrip, Requires: HandshakeEndedRequestedTrip, Party: PartyHost, Effect: EffectComputeFare},
	HandshakeDonePayment:                   {To: HandshakeDonePayment, Requires: HandshakeConfirmedEndedRequestedTrip, Party: PartyHost},
	HandshakeCancelled:                     {To: HandshakeCancelled, Party: PartyEither, Effect: EffectReleaseSeats},
}

// TransitionTo looks up the table row for target.
func TransitionTo(target HandshakeState) (Transition, error) {
	if !target.Valid() {
		return Transition{}, NewValidationError("state", "unknown handshake state %q", target)
	}
	t, ok := HandshakeTransitions[target]
	if !ok {
		return Transition{}, NewValidationError("state", "%s is set when the handshake is created", target)
	}
	return t, nil
}

// Check validates the state preconditions of t against h, ignoring who the caller is.
func (t Transition) Check(h *Handshake) error {
	current := h.State()
	conflict := func(reason string) error {
		return &StateConflictError{
			HandshakeID: h.ID,
			Current:     current,
			Required:    t.Requires,
			Attempted:   t.To,
			Reason:      reason,
		}
	}

	if current == HandshakeCancelled {
		return conflict("handshake is cancelled")
	}
	if h.Time.Has(t.To) {
		return conflict("state already reached")
	}
	if t.To == HandshakeCancelled {
		if current == HandshakeDonePayment {
			return conflict("handshake is complete")
		}
		return nil
	}
	if !h.Time.Has(t.Requires) {
		return conflict("predecessor state not reached")
	}
	return nil
}

// ReleasesSeats reports whether cancelling h must give seats back.
func (t Transition) ReleasesSeats(h *Handshake) bool {
	return t.Effect == EffectReleaseSeats && h.Time.Has(HandshakeAccepted)
}
