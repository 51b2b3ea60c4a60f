package domain

import "time"

// PaymentStatus represents the current status of a handshake's payment record.
type PaymentStatus string

const (
	PaymentStatusNone    PaymentStatus = ""
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusDone    PaymentStatus = "DONE"
)

// Payment is the fare record of a handshake. Settlement happens outside this service.
type Payment struct {
	Amount     float64       `json:"amount"`
	DistanceKm float64       `json:"distanceKm"`
	Status     PaymentStatus `json:"status,omitempty"`
	PaidAt     *time.Time    `json:"paidAt,omitempty"`
}

// Rating holds the placeholders each side can fill after the trip.
type Rating struct {
	ByHost      *int `json:"byHost,omitempty"`
	ByRequester *int `json:"byRequester,omitempty"`
}
