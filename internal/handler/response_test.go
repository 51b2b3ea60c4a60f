package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/assassinoNz/CarShare-Server/internal/domain"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestMapErrorToHTTPStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", &domain.NotFoundError{Kind: "hosted trip", ID: "x"}, http.StatusNotFound, "not_found"},
		{"validation", domain.NewValidationError("seats", "must be positive"), http.StatusBadRequest, "validation"},
		{"unauthorized", &domain.AuthorizationError{CallerID: "u"}, http.StatusForbidden, "unauthorized"},
		{"state conflict", &domain.StateConflictError{HandshakeID: "h"}, http.StatusConflict, "state_conflict"},
		{"trip state", &domain.TripStateError{Kind: "hosted trip"}, http.StatusConflict, "state_conflict"},
		{"capacity", &domain.CapacityError{HostedTripID: "t"}, http.StatusConflict, "capacity"},
		{"upstream", domain.Upstream("osrm", "route", errors.New("timeout")), http.StatusBadGateway, "upstream"},
		{"wrapped", fmt.Errorf("outer: %w", &domain.CapacityError{}), http.StatusConflict, "capacity"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			status, code := mapErrorToHTTPStatus(tt.err)
			if status != tt.status || code != tt.code {
				t.Errorf("got %d/%s, want %d/%s", status, code, tt.status, tt.code)
			}
		})
	}
}

func TestRespondError_Body(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		err         error
		wantError   string
		wantDetails map[string]any
	}{
		{
			name: "capacity details",
			err:  &domain.CapacityError{HostedTripID: "t1", Remaining: 1, Requested: 2},
			wantDetails: map[string]any{
				"hostedTripId": "t1",
				"remaining":    float64(1),
				"requested":    float64(2),
			},
		},
		{
			name: "conflict without required state",
			err: &domain.StateConflictError{
				HandshakeID: "h1",
				Current:     domain.HandshakeDonePayment,
				Attempted:   domain.HandshakeCancelled,
			},
			wantDetails: map[string]any{
				"handshakeId": "h1",
				"current":     "DONE_PAYMENT",
				"attempted":   "CANCELLED",
			},
		},
		{
			name:      "internal errors are not leaked",
			err:       errors.New("pq: password authentication failed"),
			wantError: "internal error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			respondError(c, tt.err)

			var body ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if tt.wantError != "" && body.Error != tt.wantError {
				t.Errorf("error = %q, want %q", body.Error, tt.wantError)
			}
			if len(body.Details) != len(tt.wantDetails) {
				t.Fatalf("details = %v, want %v", body.Details, tt.wantDetails)
			}
			for k, v := range tt.wantDetails {
				if body.Details[k] != v {
					t.Errorf("details[%s] = %v, want %v", k, body.Details[k], v)
				}
			}
			if len(c.Errors) != 1 {
				t.Errorf("expected the error attached to the context, got %d", len(c.Errors))
			}
		})
	}
}
