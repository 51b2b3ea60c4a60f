package domain

import "time"

// HostedTripState is a host-driven lifecycle step of a hosted trip.
type HostedTripState string

const (
	HostedTripStateStarted HostedTripState = "STARTED"
	HostedTripStateEnded   HostedTripState = "ENDED"
)

// VehicleFeatures are the comfort features a vehicle offers.
type VehicleFeatures struct {
	AC      bool `json:"ac"`
	Luggage bool `json:"luggage"`
}

// FeatureRequirements are a requester's wishes. A nil field means don't care;
// a non-nil field must match the vehicle exactly.
type FeatureRequirements struct {
	AC      *bool `json:"ac,omitempty"`
	Luggage *bool `json:"luggage,omitempty"`
}

// SatisfiedBy reports whether the vehicle features meet every stated requirement.
func (r FeatureRequirements) SatisfiedBy(f VehicleFeatures) bool {
	if r.AC != nil && *r.AC != f.AC {
		return false
	}
	if r.Luggage != nil && *r.Luggage != f.Luggage {
		return false
	}
	return true
}

// Vehicle is either a registered vehicle or an ad-hoc one embedded in a hosted trip.
type Vehicle struct {
	ID       string          `json:"id,omitempty"`
	OwnerID  string          `json:"ownerId,omitempty"`
	Number   string          `json:"number,omitempty"`
	Model    string          `json:"model,omitempty"`
	Features VehicleFeatures `json:"features"`
	IsActive bool            `json:"isActive"`
}

// Billing holds the fare terms a host offers.
type Billing struct {
	PriceFirstKm  float64 `json:"priceFirstKm"`
	PriceNextKm   float64 `json:"priceNextKm"`
	BankAccountID string  `json:"bankAccountId,omitempty"`
}

// Fare applies the billing terms to a distance in kilometres.
func (b Billing) Fare(km float64) float64 {
	if km <= 0 {
		return 0
	}
	if km <= 1 {
		return b.PriceFirstKm
	}
	return b.PriceFirstKm + (km-1)*b.PriceNextKm
}

// TripTime records schedule and actual start/end of a trip.
type TripTime struct {
	Schedule time.Time  `json:"schedule"`
	Started  *time.Time `json:"started,omitempty"`
	Ended    *time.Time `json:"ended,omitempty"`
}

// HostedRoute is a hosted trip's fixed route.
type HostedRoute struct {
	From      string       `json:"from"`
	To        string       `json:"to"`
	KeyCoords []Coordinate `json:"keyCoords"`
	Polylines []string     `json:"polylines"`
	Overlap   TileOverlap  `json:"overlap"`
	Started   *Coordinate  `json:"started,omitempty"`
	Ended     *Coordinate  `json:"ended,omitempty"`
}

// RequestedRoute is a requested trip's waypoints; its overlap is the OR of all
// candidate routes between them.
type RequestedRoute struct {
	From      string       `json:"from"`
	To        string       `json:"to"`
	KeyCoords []Coordinate `json:"keyCoords"`
	Overlap   TileOverlap  `json:"overlap"`
	Started   *Coordinate  `json:"started,omitempty"`
	Ended     *Coordinate  `json:"ended,omitempty"`
}

// HostedTrip is a ride offered by a host.
type HostedTrip struct {
	ID             string      `json:"id"`
	HostID         string      `json:"hostId"`
	VehicleID      string      `json:"vehicleId,omitempty"`
	Vehicle        *Vehicle    `json:"vehicle,omitempty"` // ad-hoc or resolved
	Route          HostedRoute `json:"route"`
	Seats          int         `json:"seats"`
	RemainingSeats int         `json:"remainingSeats"`
	Billing        Billing     `json:"billing"`
	Time           TripTime    `json:"time"`
	CreatedAt      time.Time   `json:"createdAt"`
}

// HasStarted reports whether the host has started the trip.
func (t *HostedTrip) HasStarted() bool { return t.Time.Started != nil }

// HasEnded reports whether the host has ended the trip.
func (t *HostedTrip) HasEnded() bool { return t.Time.Ended != nil }

// Features returns the features of the trip's vehicle, or none.
func (t *HostedTrip) Features() VehicleFeatures {
	if t.Vehicle == nil {
		return VehicleFeatures{}
	}
	return t.Vehicle.Features
}

// RequestedTrip is a ride wanted by a requester.
type RequestedTrip struct {
	ID          string              `json:"id"`
	RequesterID string              `json:"requesterId"`
	Route       RequestedRoute      `json:"route"`
	Seats       int                 `json:"seats"`
	Features    FeatureRequirements `json:"features"`
	Time        TripTime            `json:"time"`
	CreatedAt   time.Time           `json:"createdAt"`
}

// HasEnded reports whether the requested trip has an end timestamp.
func (t *RequestedTrip) HasEnded() bool { return t.Time.Ended != nil }
