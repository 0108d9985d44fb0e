package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/desertthunder/jukebox/internal/shared"
)

// Reply reasons sent to listeners on a failed command.
const (
	ReasonNotFound    = "not_found"
	ReasonInvalid     = "invalid"
	ReasonUnavailable = "unavailable"
	ReasonRateLimited = "rate_limited"
	ReasonInternal    = "internal"
)

// ErrorBody is the payload of error replies and error responses.
type ErrorBody struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// reason classifies err by the shared sentinel it wraps.
func reason(err error) string {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		return ReasonNotFound
	case errors.Is(err, shared.ErrValidation), errors.Is(err, shared.ErrInvalidInput):
		return ReasonInvalid
	case errors.Is(err, shared.ErrStoreUnavailable), errors.Is(err, shared.ErrServiceUnavailable):
		return ReasonUnavailable
	case errors.Is(err, shared.ErrRateLimited):
		return ReasonRateLimited
	default:
		return ReasonInternal
	}
}

func statusCode(err error) int {
	switch reason(err) {
	case ReasonNotFound:
		return http.StatusNotFound
	case ReasonInvalid:
		return http.StatusBadRequest
	case ReasonUnavailable:
		return http.StatusServiceUnavailable
	case ReasonRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusCode(err), ErrorBody{Reason: reason(err), Message: err.Error()})
}
