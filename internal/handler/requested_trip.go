package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/assassinoNz/CarShare-Server/internal/domain"
	"github.com/assassinoNz/CarShare-Server/internal/middleware"
	"github.com/assassinoNz/CarShare-Server/internal/service"
)

// RequestedTripHandler handles HTTP requests for requested trips.
type RequestedTripHandler struct {
	trips *service.TripService
}

// NewRequestedTripHandler creates a new RequestedTripHandler.
func NewRequestedTripHandler(trips *service.TripService) *RequestedTripHandler {
	return &RequestedTripHandler{trips: trips}
}

// CreateRequestedTripRequest is the HTTP request for asking for a ride.
type CreateRequestedTripRequest struct {
	Route struct {
		From      string              `json:"from"`
		To        string              `json:"to"`
		KeyCoords []domain.Coordinate `json:"keyCoords"`
	} `json:"route"`
	Seats    int                        `json:"seats"`
	Features domain.FeatureRequirements `json:"features"`
	Time     struct {
		Schedule time.Time `json:"schedule"`
	} `json:"time"`
}

// Create handles POST /v1/requested-trips
func (h *RequestedTripHandler) Create(c *gin.Context) {
	var req CreateRequestedTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	trip, err := h.trips.CreateRequestedTrip(c.Request.Context(), service.CreateRequestedTripRequest{
		CallerID:  middleware.CallerID(c),
		From:      req.Route.From,
		To:        req.Route.To,
		KeyCoords: req.Route.KeyCoords,
		Seats:     req.Seats,
		Features:  req.Features,
		Schedule:  req.Time.Schedule,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, trip)
}

// Get handles GET /v1/requested-trips/:id
func (h *RequestedTripHandler) Get(c *gin.Context) {
	trip, err := h.trips.GetRequestedTrip(c.Request.Context(), middleware.CallerID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, trip)
}
