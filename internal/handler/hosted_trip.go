package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/assassinoNz/CarShare-Server/internal/domain"
	"github.com/assassinoNz/CarShare-Server/internal/middleware"
	"github.com/assassinoNz/CarShare-Server/internal/service"
)

// HostedTripHandler handles HTTP requests for hosted trips and their matches.
type HostedTripHandler struct {
	trips    *service.TripService
	matching *service.MatchingService
}

// NewHostedTripHandler creates a new HostedTripHandler.
func NewHostedTripHandler(trips *service.TripService, matching *service.MatchingService) *HostedTripHandler {
	return &HostedTripHandler{trips: trips, matching: matching}
}

// CreateHostedTripRequest is the HTTP request for offering a ride.
type CreateHostedTripRequest struct {
	Route struct {
		From      string              `json:"from"`
		To        string              `json:"to"`
		KeyCoords []domain.Coordinate `json:"keyCoords"`
		Polylines []string            `json:"polylines"`
	} `json:"route"`
	VehicleID string          `json:"vehicleId"`
	Vehicle   *domain.Vehicle `json:"vehicle"`
	Seats     int             `json:"seats"`
	Billing   domain.Billing  `json:"billing"`
	Time      struct {
		Schedule time.Time `json:"schedule"`
	} `json:"time"`
}

// UpdateStateRequest is the HTTP request for starting or ending a hosted trip.
type UpdateStateRequest struct {
	State      domain.HostedTripState `json:"state"`
	Coordinate domain.Coordinate      `json:"coordinate"`
}

// MatchesResponse lists the requested trips matching a hosted trip.
type MatchesResponse struct {
	HostedTripID string                  `json:"hostedTripId"`
	Matches      []*domain.RequestedTrip `json:"matches"`
}

// Create handles POST /v1/hosted-trips
func (h *HostedTripHandler) Create(c *gin.Context) {
	var req CreateHostedTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	trip, err := h.trips.CreateHostedTrip(c.Request.Context(), service.CreateHostedTripRequest{
		CallerID:  middleware.CallerID(c),
		From:      req.Route.From,
		To:        req.Route.To,
		KeyCoords: req.Route.KeyCoords,
		Polylines: req.Route.Polylines,
		VehicleID: req.VehicleID,
		Vehicle:   req.Vehicle,
		Seats:     req.Seats,
		Billing:   req.Billing,
		Schedule:  req.Time.Schedule,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, trip)
}

// Get handles GET /v1/hosted-trips/:id
func (h *HostedTripHandler) Get(c *gin.Context) {
	trip, err := h.trips.GetHostedTrip(c.Request.Context(), middleware.CallerID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, trip)
}

// UpdateState handles POST /v1/hosted-trips/:id/state
func (h *HostedTripHandler) UpdateState(c *gin.Context) {
	var req UpdateStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	trip, err := h.trips.UpdateHostedTripState(c.Request.Context(), service.UpdateHostedTripStateRequest{
		CallerID:     middleware.CallerID(c),
		HostedTripID: c.Param("id"),
		State:        req.State,
		Coordinate:   req.Coordinate,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, trip)
}

// FindMatches handles GET /v1/hosted-trips/:id/matches
func (h *HostedTripHandler) FindMatches(c *gin.Context) {
	hostedTripID := c.Param("id")

	matches, err := h.matching.FindMatches(c.Request.Context(), middleware.CallerID(c), hostedTripID)
	if err != nil {
		respondError(c, err)
		return
	}
	if matches == nil {
		matches = []*domain.RequestedTrip{}
	}

	respondJSON(c, http.StatusOK, MatchesResponse{HostedTripID: hostedTripID, Matches: matches})
}

// MatchDetail handles GET /v1/hosted-trips/:id/matches/:requestedTripId
func (h *HostedTripHandler) MatchDetail(c *gin.Context) {
	detail, err := h.matching.MatchDetail(c.Request.Context(), middleware.CallerID(c), c.Param("id"), c.Param("requestedTripId"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, detail)
}
