package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/assassinoNz/CarShare-Server/internal/domain"
	"github.com/assassinoNz/CarShare-Server/internal/middleware"
	"github.com/assassinoNz/CarShare-Server/internal/service"
)

// HandshakeHandler handles HTTP requests for handshakes.
type HandshakeHandler struct {
	handshakes *service.HandshakeService
}

// NewHandshakeHandler creates a new HandshakeHandler.
func NewHandshakeHandler(handshakes *service.HandshakeService) *HandshakeHandler {
	return &HandshakeHandler{handshakes: handshakes}
}

// InitHandshakeRequest is the HTTP request for opening a handshake.
type InitHandshakeRequest struct {
	HostedTripID    string `json:"hostedTripId" binding:"required"`
	RequestedTripID string `json:"requestedTripId" binding:"required"`
}

// TransitionRequest is the HTTP request for moving a handshake to a new state.
type TransitionRequest struct {
	State      domain.HandshakeState `json:"state" binding:"required"`
	Coordinate *domain.Coordinate    `json:"coordinate"`
}

// HandshakeResponse is a handshake together with its derived state.
type HandshakeResponse struct {
	*domain.Handshake
	State domain.HandshakeState `json:"state"`
}

func newHandshakeResponse(h *domain.Handshake) HandshakeResponse {
	return HandshakeResponse{Handshake: h, State: h.State()}
}

// Init handles POST /v1/handshakes
func (h *HandshakeHandler) Init(c *gin.Context) {
	var req InitHandshakeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	hs, err := h.handshakes.InitHandshake(c.Request.Context(), service.InitHandshakeRequest{
		CallerID:        middleware.CallerID(c),
		HostedTripID:    req.HostedTripID,
		RequestedTripID: req.RequestedTripID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, newHandshakeResponse(hs))
}

// Get handles GET /v1/handshakes/:id
func (h *HandshakeHandler) Get(c *gin.Context) {
	hs, err := h.handshakes.GetHandshake(c.Request.Context(), middleware.CallerID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, newHandshakeResponse(hs))
}

// Transition handles POST /v1/handshakes/:id/transitions
func (h *HandshakeHandler) Transition(c *gin.Context) {
	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	hs, err := h.handshakes.Transition(c.Request.Context(), service.TransitionRequest{
		CallerID:    middleware.CallerID(c),
		HandshakeID: c.Param("id"),
		Target:      req.State,
		Coordinate:  req.Coordinate,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, newHandshakeResponse(hs))
}
