package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clahub/clahub/internal/api/middleware"
	"github.com/clahub/clahub/internal/api/response"
)

// CallbackProcessor consumes raw provider callback payloads.
type CallbackProcessor interface {
	HandleIndividualCallback(ctx context.Context, raw []byte, signatureID uuid.UUID) error
	HandleCorporateCallback(ctx context.Context, raw []byte, projectID, companyID uuid.UUID) error
}

// CallbackHandler receives signing-provider status callbacks. The provider
// retries on non-2xx responses, so processing failures are logged and
// acknowledged rather than surfaced; the contributor has already signed and
// must never see an error page because our side effects failed.
type CallbackHandler struct {
	service CallbackProcessor
}

// NewCallbackHandler creates a new CallbackHandler.
func NewCallbackHandler(service CallbackProcessor) *CallbackHandler {
	return &CallbackHandler{service: service}
}

// Individual handles POST /signed/individual/{id}.
func (h *CallbackHandler) Individual(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	sigID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Err(w, http.StatusBadRequest, "VALIDATION_ERROR", "id must be a valid UUID", requestID)
		return
	}

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 4<<20))
	if err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_BODY", "Unable to read callback body", requestID)
		return
	}

	if err := h.service.HandleIndividualCallback(r.Context(), raw, sigID); err != nil {
		slog.Error("individual callback processing failed",
			"signatureId", sigID, "requestId", requestID, "error", err)
	}
	response.NoContent(w)
}

// Corporate handles POST /signed/corporate/{projectId}/{companyId}.
func (h *CallbackHandler) Corporate(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	projectID, err := uuid.Parse(chi.URLParam(r, "projectId"))
	if err != nil {
		response.Err(w, http.StatusBadRequest, "VALIDATION_ERROR", "projectId must be a valid UUID", requestID)
		return
	}
	companyID, err := uuid.Parse(chi.URLParam(r, "companyId"))
	if err != nil {
		response.Err(w, http.StatusBadRequest, "VALIDATION_ERROR", "companyId must be a valid UUID", requestID)
		return
	}

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 4<<20))
	if err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_BODY", "Unable to read callback body", requestID)
		return
	}

	if err := h.service.HandleCorporateCallback(r.Context(), raw, projectID, companyID); err != nil {
		slog.Error("corporate callback processing failed",
			"projectId", projectID, "companyId", companyID, "requestId", requestID, "error", err)
	}
	response.NoContent(w)
}
