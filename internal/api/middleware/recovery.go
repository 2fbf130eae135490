package middleware

import (
	"log/slog"
	"net/http"

	"github.com/clahub/clahub/internal/api/response"
)

// Recovery is middleware that turns a handler panic into a structured 500
// envelope instead of a dropped connection; the signing provider treats a
// dropped callback as retriable, so the response must still be well-formed.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				requestID := GetRequestID(r.Context())
				slog.Error("panic recovered", "error", err, "requestId", requestID)
				response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", requestID)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
