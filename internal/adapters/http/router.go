package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/viralforge/license-service/internal/application"
)

// Handler is the HTTP adapter entrypoint for license use-cases.
// Keeping only application dependencies here preserves clean adapter boundaries.
type Handler struct {
	service    *application.Service
	adminToken string
	readyCheck func(ctx context.Context) error
}

// NewHandler constructs an HTTP handler bound to the application service.
// readyCheck reports store reachability for the readiness probe.
func NewHandler(service *application.Service, adminToken string, readyCheck func(ctx context.Context) error) *Handler {
	return &Handler{service: service, adminToken: adminToken, readyCheck: readyCheck}
}

// NewRouter registers the HTTP routes and middleware stack.
// Centralizing routes here ensures consistent auth and error behavior across endpoints.
func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)

	r.Get("/healthz", handler.healthz)
	r.Get("/readyz", handler.readyz)

	r.Route("/license/v1", func(r chi.Router) {
		r.Post("/activate", handler.activate)
		r.Post("/check", handler.check)

		r.Group(func(r chi.Router) {
			r.Use(handler.adminAuthMiddleware)
			r.Post("/admin/licenses", handler.createLicense)
			r.Get("/admin/licenses", handler.listLicenses)
			r.Delete("/admin/licenses/{key}", handler.deactivateLicense)
		})
	})

	return r
}
