package response

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/clahub/clahub/internal/clerrors"
)

// Meta holds metadata for every API response.
type Meta struct {
	RequestID string `json:"requestId"`
	Timestamp string `json:"timestamp"`
}

// Error represents a structured API error.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Envelope is the standard API response wrapper.
type Envelope struct {
	Data  any    `json:"data"`
	Error *Error `json:"error"`
	Meta  Meta   `json:"meta"`
}

// NewMeta creates a Meta with a new UUID and current timestamp.
// If requestID is provided, it uses that instead of generating a new one.
func NewMeta(requestID string) Meta {
	if requestID == "" {
		requestID = uuid.New().String()
	}
	return Meta{
		RequestID: requestID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// JSON writes a JSON response with the given status code and envelope.
func JSON(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// Success writes a successful JSON response.
func Success(w http.ResponseWriter, status int, data any, requestID string) {
	JSON(w, status, Envelope{
		Data: data,
		Meta: NewMeta(requestID),
	})
}

// NoContent writes a 204 No Content response.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Err writes an error JSON response.
func Err(w http.ResponseWriter, status int, code string, message string, requestID string) {
	JSON(w, status, Envelope{
		Error: &Error{
			Code:    code,
			Message: message,
		},
		Meta: NewMeta(requestID),
	})
}

// ErrWithDetails writes an error JSON response with additional details.
func ErrWithDetails(w http.ResponseWriter, status int, code string, message string, details any, requestID string) {
	JSON(w, status, Envelope{
		Error: &Error{
			Code:    code,
			Message: message,
			Details: details,
		},
		Meta: NewMeta(requestID),
	})
}

// DomainErr maps an engine error onto the API error taxonomy: not-found to
// 404, precondition failures to 400, conflicts to 409, provider failures to
// 502, everything else to 500.
func DomainErr(w http.ResponseWriter, err error, requestID string) {
	var (
		notFound     *clerrors.NotFoundError
		precondition *clerrors.PreconditionError
		conflict     *clerrors.ConflictError
		provider     *clerrors.ProviderError
	)
	switch {
	case errors.As(err, &notFound):
		Err(w, http.StatusNotFound, clerrors.CodeNotFound, notFound.Error(), requestID)
	case errors.As(err, &precondition):
		Err(w, http.StatusBadRequest, precondition.Code, precondition.Message, requestID)
	case errors.As(err, &conflict):
		Err(w, http.StatusConflict, conflict.Code, conflict.Message, requestID)
	case errors.As(err, &provider):
		Err(w, http.StatusBadGateway, clerrors.CodeProviderFailure, provider.Error(), requestID)
	default:
		slog.Error("unhandled error", "error", err, "requestId", requestID)
		Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", requestID)
	}
}
