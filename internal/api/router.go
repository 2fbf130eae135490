package api

import (
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/clahub/clahub/internal/api/handler"
	"github.com/clahub/clahub/internal/api/middleware"
	"github.com/clahub/clahub/internal/auth"
	"github.com/clahub/clahub/internal/company"
	"github.com/clahub/clahub/internal/metrics"
	"github.com/clahub/clahub/internal/project"
	"github.com/clahub/clahub/internal/signature"
	"github.com/clahub/clahub/internal/signing"
	"github.com/clahub/clahub/internal/user"
)

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	Signing       *signing.Service
	SignatureRepo signature.Repository
	ProjectRepo   project.Repository
	CompanyRepo   company.Repository
	UserRepo      user.Repository
	Auth          *auth.Service
	DBPinger      handler.DBPinger
	Metrics       *metrics.Metrics
	Version       string
}

// NewRouter creates and configures a Chi router with all middleware and
// routes. Signature management routes require an API key; signing-provider
// callback routes are unauthenticated since the provider cannot carry our
// credentials, and their URLs embed unguessable identifiers.
func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery)
	if deps.Metrics != nil {
		r.Use(middleware.Metrics(deps.Metrics))
	}
	r.Use(chimiddleware.Logger)

	healthHandler := handler.NewHealthHandler(deps.DBPinger, deps.Version)
	r.Get("/health", healthHandler.ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())

	sigHandler := handler.NewSignatureHandler(deps.Signing, deps.SignatureRepo)
	callbackHandler := handler.NewCallbackHandler(deps.Signing)
	projectHandler := handler.NewProjectHandler(deps.ProjectRepo)
	companyHandler := handler.NewCompanyHandler(deps.CompanyRepo)
	userHandler := handler.NewUserHandler(deps.UserRepo, deps.Auth)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/signed/individual/{id}", callbackHandler.Individual)
		r.Post("/signed/corporate/{projectId}/{companyId}", callbackHandler.Corporate)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(deps.Auth))

			r.Route("/signatures", func(r chi.Router) {
				r.Post("/individual", sigHandler.RequestIndividual)
				r.Post("/corporate", sigHandler.RequestCorporate)
				r.Post("/employee", sigHandler.RequestEmployee)
				r.Get("/individual/{userId}/{projectId}/active", sigHandler.GetIndividualActive)
				r.Get("/{id}", sigHandler.GetByID)
				r.Put("/{id}/approved", sigHandler.SetApproved)
				r.Put("/{id}/approval-list", sigHandler.UpdateApprovalLists)
				r.Post("/{id}/acl", sigHandler.AddACLMember)
				r.Delete("/{id}/acl/{username}", sigHandler.RemoveACLMember)
				r.Delete("/{id}", sigHandler.Delete)
			})

			r.Route("/projects", func(r chi.Router) {
				r.Post("/", projectHandler.Create)
				r.Get("/", projectHandler.List)
				r.Get("/{projectId}", projectHandler.GetByID)
				r.Get("/{projectId}/signatures", sigHandler.ListByProject)
			})

			r.Route("/companies", func(r chi.Router) {
				r.Post("/", companyHandler.Create)
				r.Get("/", companyHandler.List)
				r.Get("/{companyId}", companyHandler.GetByID)
			})

			r.Route("/users", func(r chi.Router) {
				r.Post("/", userHandler.Create)
				r.Get("/{userId}", userHandler.GetByID)
				r.Post("/{userId}/api-key", userHandler.IssueKey)
			})
		})
	})

	return r
}
