// Package httpapi exposes the platform core over HTTP. Handlers decode,
// delegate to the domain services, and render the response envelope; all
// policy lives below this package.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/feelens/feelens-core/internal/auth"
	"github.com/feelens/feelens-core/internal/evidence"
	"github.com/feelens/feelens-core/internal/lifecycle"
	"github.com/feelens/feelens-core/internal/schema"
	"github.com/feelens/feelens-core/internal/store"
	"github.com/feelens/feelens-core/internal/submit"
)

// Server holds the wired domain services behind the HTTP surface.
type Server struct {
	authn    auth.Authenticator
	submit   *submit.Service
	entries  *lifecycle.EntryEngine
	reports  *lifecycle.ReportEngine
	disputes *lifecycle.DisputeEngine
	evidence *evidence.Service
	registry *schema.Registry
	store    store.Store
	throttle *ipThrottle
}

// Config tunes the transport middleware.
type Config struct {
	RequestsPerSec float64
	Burst          int
	AllowedOrigins []string
}

// NewServer wires the HTTP surface.
func NewServer(
	cfg Config,
	authn auth.Authenticator,
	sub *submit.Service,
	entries *lifecycle.EntryEngine,
	reports *lifecycle.ReportEngine,
	disputes *lifecycle.DisputeEngine,
	ev *evidence.Service,
	registry *schema.Registry,
	st store.Store,
) *Server {
	if cfg.RequestsPerSec <= 0 {
		cfg.RequestsPerSec = 20
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 40
	}
	return &Server{
		authn:    authn,
		submit:   sub,
		entries:  entries,
		reports:  reports,
		disputes: disputes,
		evidence: ev,
		registry: registry,
		store:    st,
		throttle: newIPThrottle(cfg.RequestsPerSec, cfg.Burst),
	}
}

// Router builds the route tree.
func (s *Server) Router(cfg Config) http.Handler {
	r := chi.NewRouter()

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(s.throttle.middleware)

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(requireAuth(s.authn))

		api.Post("/entries", s.handleSubmitEntry)
		api.Post("/entries/{id}/report", s.handleCreateReport)
		api.Post("/disputes", s.handleOpenDispute)
		api.Post("/evidence/upload-request", s.handleUploadRequest)
		api.Post("/evidence/{id}/confirm", s.handleConfirmEvidence)
		api.Post("/evidence/{id}/fail", s.handleFailEvidence)

		api.Route("/admin", func(admin chi.Router) {
			admin.Post("/entries/{id}/moderate", s.handleModerateEntry)
			admin.Post("/reports/{id}/resolve", s.handleResolveReport)
			admin.Post("/disputes/{id}/resolve", s.handleResolveDispute)
			admin.Get("/schemas/{industry}", s.handleListSchemas)
			admin.Get("/audit", s.handleListAudit)
		})
	})

	return r
}
