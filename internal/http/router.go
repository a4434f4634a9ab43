// Package httpapi assembles the HTTP surface: public validation and document
// endpoints, the operator subtree, and the usual health and metrics plumbing.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	adminhandler "verifid/internal/admin/handler"
	documentshandler "verifid/internal/documents/handler"
	validatorhandler "verifid/internal/validator/handler"
	adminmw "verifid/pkg/platform/middleware/admin"
	"verifid/pkg/platform/middleware/requestid"
	"verifid/pkg/platform/middleware/requesttime"
)

// Deps carries everything the router mounts.
type Deps struct {
	Documents *documentshandler.Handler
	Validator *validatorhandler.Handler
	Admin     *adminhandler.Handler

	// AdminToken guards the /admin subtree. Empty disables the subtree
	// entirely rather than leaving it open.
	AdminToken string

	Logger *slog.Logger
}

// NewRouter wires middleware and handlers into the served mux.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(requesttime.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		deps.Documents.Register(r)
		deps.Validator.Register(r)
	})

	if deps.AdminToken != "" {
		r.Route("/admin", func(r chi.Router) {
			r.Use(adminmw.RequireAdminToken(deps.AdminToken, deps.Logger))
			deps.Admin.Register(r)
		})
	} else {
		deps.Logger.Warn("admin token not configured; admin endpoints disabled")
	}

	return r
}
