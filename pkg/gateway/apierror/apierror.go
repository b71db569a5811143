// Package apierror maps internal errors onto the JSON error envelope the
// HTTP surface returns.
package apierror

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hypecast-live/hypecast/pkg/core/agent"
	"github.com/hypecast-live/hypecast/pkg/core/session"
	"github.com/hypecast-live/hypecast/pkg/stream"
)

type ErrorType string

const (
	ErrInvalidRequest ErrorType = "invalid_request_error"
	ErrNotFound       ErrorType = "not_found_error"
	ErrConflict       ErrorType = "conflict_error"
	ErrOverloaded     ErrorType = "overloaded_error"
	ErrUnavailable    ErrorType = "unavailable_error"
	ErrAPI            ErrorType = "api_error"
)

type Error struct {
	Type      ErrorType `json:"type"`
	Message   string    `json:"message"`
	Param     string    `json:"param,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
}

func (e *Error) Error() string { return string(e.Type) + ": " + e.Message }

type Envelope struct {
	Error *Error `json:"error"`
}

// FromError maps an internal error to the wire error and HTTP status.
// Unknown errors become an opaque internal error so details do not leak.
func FromError(err error, requestID string) (*Error, int) {
	if err == nil {
		return nil, http.StatusOK
	}

	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr != nil {
		out := *apiErr
		out.RequestID = requestID
		return &out, statusFromType(out.Type)
	}

	switch {
	case errors.Is(err, session.ErrNotFound):
		return &Error{Type: ErrNotFound, Message: "session not found", RequestID: requestID}, http.StatusNotFound
	case errors.Is(err, session.ErrExists):
		return &Error{Type: ErrConflict, Message: "session already exists", RequestID: requestID}, http.StatusConflict
	case errors.Is(err, agent.ErrTooManySessions):
		return &Error{Type: ErrOverloaded, Message: "too many concurrent sessions", RequestID: requestID}, http.StatusTooManyRequests
	case errors.Is(err, stream.ErrNotConfigured):
		return &Error{Type: ErrUnavailable, Message: "stream credentials not configured", RequestID: requestID}, http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Type: ErrAPI, Message: "request timeout", RequestID: requestID}, http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return &Error{Type: ErrAPI, Message: "request cancelled", RequestID: requestID}, http.StatusRequestTimeout
	}

	return &Error{Type: ErrAPI, Message: "internal error", RequestID: requestID}, http.StatusInternalServerError
}

// Write encodes the envelope for err onto w.
func Write(w http.ResponseWriter, err error, requestID string) {
	apiErr, status := FromError(err, requestID)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Envelope{Error: apiErr})
}

// Invalid is a convenience constructor for request validation failures.
func Invalid(message, param string) *Error {
	return &Error{Type: ErrInvalidRequest, Message: message, Param: param}
}

func statusFromType(t ErrorType) int {
	switch t {
	case ErrInvalidRequest:
		return http.StatusBadRequest
	case ErrNotFound:
		return http.StatusNotFound
	case ErrConflict:
		return http.StatusConflict
	case ErrOverloaded:
		return http.StatusTooManyRequests
	case ErrUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
