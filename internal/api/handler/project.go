package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clahub/clahub/internal/api/middleware"
	"github.com/clahub/clahub/internal/api/response"
	"github.com/clahub/clahub/internal/project"
)

// documentBody is the request/response shape of a CLA document template.
type documentBody struct {
	TemplateID   string `json:"templateId"`
	Name         string `json:"name"`
	MajorVersion int    `json:"majorVersion"`
	MinorVersion int    `json:"minorVersion"`
}

func (d *documentBody) toModel() *project.Document {
	if d == nil {
		return nil
	}
	return &project.Document{
		TemplateID:   d.TemplateID,
		Name:         d.Name,
		MajorVersion: d.MajorVersion,
		MinorVersion: d.MinorVersion,
	}
}

func toDocumentBody(d *project.Document) *documentBody {
	if d == nil {
		return nil
	}
	return &documentBody{
		TemplateID:   d.TemplateID,
		Name:         d.Name,
		MajorVersion: d.MajorVersion,
		MinorVersion: d.MinorVersion,
	}
}

type projectResponse struct {
	ID                 string        `json:"id"`
	Name               string        `json:"name"`
	ICLAEnabled        bool          `json:"iclaEnabled"`
	CCLAEnabled        bool          `json:"cclaEnabled"`
	CCLARequiresICLA   bool          `json:"cclaRequiresIcla"`
	IndividualDocument *documentBody `json:"individualDocument,omitempty"`
	CorporateDocument  *documentBody `json:"corporateDocument,omitempty"`
	CreatedAt          string        `json:"createdAt"`
	UpdatedAt          string        `json:"updatedAt"`
}

func toProjectResponse(p *project.Project) projectResponse {
	return projectResponse{
		ID:                 p.ID.String(),
		Name:               p.Name,
		ICLAEnabled:        p.ICLAEnabled,
		CCLAEnabled:        p.CCLAEnabled,
		CCLARequiresICLA:   p.CCLARequiresICLA,
		IndividualDocument: toDocumentBody(p.IndividualDocument),
		CorporateDocument:  toDocumentBody(p.CorporateDocument),
		CreatedAt:          p.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:          p.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// ProjectHandler handles project catalog endpoints.
type ProjectHandler struct {
	repo project.Repository
}

// NewProjectHandler creates a new ProjectHandler.
func NewProjectHandler(repo project.Repository) *ProjectHandler {
	return &ProjectHandler{repo: repo}
}

// Create handles POST /projects. Admin only.
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	identity := middleware.GetIdentity(r.Context())
	if identity == nil || !identity.IsAdmin {
		response.Err(w, http.StatusForbidden, "FORBIDDEN", "Creating projects requires admin access", requestID)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req struct {
		Name               string        `json:"name"`
		ICLAEnabled        bool          `json:"iclaEnabled"`
		CCLAEnabled        bool          `json:"cclaEnabled"`
		CCLARequiresICLA   bool          `json:"cclaRequiresIcla"`
		IndividualDocument *documentBody `json:"individualDocument,omitempty"`
		CorporateDocument  *documentBody `json:"corporateDocument,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", requestID)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		response.Err(w, http.StatusBadRequest, "VALIDATION_ERROR", "name is required", requestID)
		return
	}

	p := &project.Project{
		ID:                 uuid.New(),
		Name:               strings.TrimSpace(req.Name),
		ICLAEnabled:        req.ICLAEnabled,
		CCLAEnabled:        req.CCLAEnabled,
		CCLARequiresICLA:   req.CCLARequiresICLA,
		IndividualDocument: req.IndividualDocument.toModel(),
		CorporateDocument:  req.CorporateDocument.toModel(),
	}
	if err := h.repo.Create(r.Context(), p); err != nil {
		response.DomainErr(w, err, requestID)
		return
	}

	response.Success(w, http.StatusCreated, toProjectResponse(p), requestID)
}

// GetByID handles GET /projects/{projectId}.
func (h *ProjectHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	id, ok := parseUUID(w, chi.URLParam(r, "projectId"), "projectId", requestID)
	if !ok {
		return
	}

	p, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if err == project.ErrProjectNotFound {
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "Project not found", requestID)
			return
		}
		response.DomainErr(w, err, requestID)
		return
	}

	response.Success(w, http.StatusOK, toProjectResponse(p), requestID)
}

// List handles GET /projects.
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	projects, err := h.repo.List(r.Context())
	if err != nil {
		response.DomainErr(w, err, requestID)
		return
	}

	out := make([]projectResponse, 0, len(projects))
	for i := range projects {
		out = append(out, toProjectResponse(&projects[i]))
	}
	response.Success(w, http.StatusOK, out, requestID)
}
