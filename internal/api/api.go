// Package api provides the JSON response envelope and the mapping from
// classified faults to HTTP statuses.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/athanasso/photos-widget/internal/faults"
)

// ErrorEnvelope is the body of every non-2xx JSON response.
type ErrorEnvelope struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Reason codes carried in ErrorEnvelope.Error.
const (
	ReasonInvalidRequest = "invalid_request"
	ReasonAuth           = "auth_failed"
	ReasonTimeout        = "selection_timeout"
	ReasonEmptySelection = "empty_selection"
	ReasonPersistence    = "persistence_failed"
	ReasonTransport      = "upstream_unavailable"
	ReasonBusy           = "acquisition_in_progress"
	ReasonCanceled       = "canceled"
	ReasonRateLimited    = "rate_limited"
	ReasonNotFound       = "not_found"
	ReasonInternal       = "internal_error"
)

// WriteJSON writes a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// WriteError writes an ErrorEnvelope with the given status and reason.
func WriteError(w http.ResponseWriter, status int, reason, message string) {
	WriteJSON(w, status, ErrorEnvelope{Error: reason, Message: message})
}

// WriteFault classifies err and writes the matching status and reason.
func WriteFault(w http.ResponseWriter, err error) {
	status, reason := MapFault(err)
	WriteError(w, status, reason, err.Error())
}

// MapFault returns the HTTP status and reason code for a classified
// error. Unclassified errors map to 500.
func MapFault(err error) (int, string) {
	var fe *faults.Error
	if !errors.As(err, &fe) {
		return http.StatusInternalServerError, ReasonInternal
	}
	switch fe.Kind {
	case faults.KindValidation:
		return http.StatusBadRequest, ReasonInvalidRequest
	case faults.KindAuth:
		return http.StatusUnauthorized, ReasonAuth
	case faults.KindTimeout:
		return http.StatusGatewayTimeout, ReasonTimeout
	case faults.KindEmptySelection:
		return http.StatusUnprocessableEntity, ReasonEmptySelection
	case faults.KindPersistence:
		return http.StatusInternalServerError, ReasonPersistence
	case faults.KindTransport:
		return http.StatusBadGateway, ReasonTransport
	case faults.KindCanceled:
		return http.StatusConflict, ReasonCanceled
	default:
		return http.StatusInternalServerError, ReasonInternal
	}
}

// HealthResponse is the response for the health endpoint.
type HealthResponse struct {
	Status string `json:"status"`
}

// HealthHandler handles GET /healthz requests.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}
