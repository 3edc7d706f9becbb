package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	mw "github.com/kiranshivaraju/tubedrop/internal/api/middleware"
	"github.com/kiranshivaraju/tubedrop/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	// AdminAuth is nil when no panel credentials are configured; admin routes
	// are then not mounted.
	AdminAuth *mw.AdminAuth
	RateLimit *mw.RateLimit

	HealthHandler  http.HandlerFunc
	SubmitJob      http.HandlerFunc
	GetJob         http.HandlerFunc
	DownloadJob    http.HandlerFunc
	JobEvents      http.HandlerFunc
	LoginHandler   http.HandlerFunc
	LogoutHandler  http.HandlerFunc
	HistoryHandler http.HandlerFunc
	GetDownloads   http.HandlerFunc
	SetDownloads   http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	r.Get("/api/v1/jobs/{jobID}", orNotImplemented(deps.GetJob))
	r.Get("/api/v1/jobs/{jobID}/download", orNotImplemented(deps.DownloadJob))
	r.Get("/api/v1/jobs/{jobID}/events", orNotImplemented(deps.JobEvents))

	// Rate-limited by client IP
	r.Group(func(r chi.Router) {
		if deps.RateLimit != nil {
			r.Use(deps.RateLimit.Limit)
		}

		r.Post("/api/v1/jobs", orNotImplemented(deps.SubmitJob))
		if deps.AdminAuth != nil {
			r.Post("/api/v1/admin/login", orNotImplemented(deps.LoginHandler))
		}
	})

	// Admin routes
	if deps.AdminAuth != nil {
		r.Group(func(r chi.Router) {
			r.Use(deps.AdminAuth.Authenticate)

			r.Post("/api/v1/admin/logout", orNotImplemented(deps.LogoutHandler))
			r.Get("/api/v1/admin/history", orNotImplemented(deps.HistoryHandler))
			r.Get("/api/v1/admin/downloads", orNotImplemented(deps.GetDownloads))
			r.Put("/api/v1/admin/downloads", orNotImplemented(deps.SetDownloads))
		})
	}

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
