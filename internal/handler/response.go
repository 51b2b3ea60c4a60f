package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/assassinoNz/CarShare-Server/internal/domain"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Code    string         `json:"code"`
	Details map[string]any `json:"details,omitempty"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	status, code := mapErrorToHTTPStatus(err)
	body := ErrorResponse{Error: err.Error(), Code: code, Details: errorDetails(err)}
	if status == http.StatusInternalServerError {
		body.Error = "internal error"
	}
	c.JSON(status, body)
}

// respondBadRequest reports a body that could not be decoded.
func respondBadRequest(c *gin.Context, err error) {
	respondError(c, domain.NewValidationError("", "invalid request body: %v", err))
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps domain error kinds to HTTP status codes.
func mapErrorToHTTPStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "validation"
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden, "unauthorized"
	case errors.Is(err, domain.ErrStateConflict):
		return http.StatusConflict, "state_conflict"
	case errors.Is(err, domain.ErrCapacity):
		return http.StatusConflict, "capacity"
	case errors.Is(err, domain.ErrUpstream):
		return http.StatusBadGateway, "upstream"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func errorDetails(err error) map[string]any {
	var (
		notFound  *domain.NotFoundError
		authz     *domain.AuthorizationError
		conflict  *domain.StateConflictError
		tripState *domain.TripStateError
		invalid   *domain.ValidationError
		capacity  *domain.CapacityError
		upstream  *domain.UpstreamError
	)
	switch {
	case errors.As(err, &conflict):
		d := map[string]any{
			"handshakeId": conflict.HandshakeID,
			"current":     conflict.Current,
			"attempted":   conflict.Attempted,
		}
		if conflict.Required != "" {
			d["required"] = conflict.Required
		}
		return d
	case errors.As(err, &capacity):
		return map[string]any{
			"hostedTripId": capacity.HostedTripID,
			"remaining":    capacity.Remaining,
			"requested":    capacity.Requested,
		}
	case errors.As(err, &tripState):
		return map[string]any{"kind": tripState.Kind, "tripId": tripState.TripID}
	case errors.As(err, &notFound):
		return map[string]any{"kind": notFound.Kind, "id": notFound.ID}
	case errors.As(err, &invalid):
		if invalid.Field == "" {
			return nil
		}
		return map[string]any{"field": invalid.Field}
	case errors.As(err, &authz):
		return map[string]any{"action": authz.Action}
	case errors.As(err, &upstream):
		return map[string]any{"service": upstream.Service, "op": upstream.Op}
	}
	return nil
}
