package handlers

import (
	"net/http"

	"github.com/gorilla/sessions"

	"github.com/websitelelo/websitelelo/internal/auth"
	"github.com/websitelelo/websitelelo/internal/content"
	"github.com/websitelelo/websitelelo/internal/metrics"
	"github.com/websitelelo/websitelelo/internal/models"
)

const uploadsPrefix = "/uploads/"

type RouterConfig struct {
	Catalog        *content.Catalog
	Gate           *auth.Gate
	SessionStore   sessions.Store
	CSRF           func(http.Handler) http.Handler
	CookieSecure   bool
	CORSOrigin     string
	UploadDir      string
	ContactLimiter *RateLimiter
	Notifier       LeadNotifier
	Metrics        *metrics.Metrics
}

// NewRouter builds the API mux wrapped in the middleware chain
// Logger -> Security Headers -> CORS -> Mux.
func NewRouter(cfg RouterConfig) http.Handler {
	admin := &AdminHandler{
		Gate:         cfg.Gate,
		Catalog:      cfg.Catalog,
		SessionStore: cfg.SessionStore,
		CSRF:         cfg.CSRF,
		CookieSecure: cfg.CookieSecure,
		Metrics:      cfg.Metrics,
	}
	home := &HomeHandler{Catalog: cfg.Catalog}
	contact := &ContactHandler{Leads: cfg.Catalog.Leads, Notifier: cfg.Notifier}
	upload := &UploadHandler{Dir: cfg.UploadDir, URLPrefix: uploadsPrefix}
	protect := admin.AuthMiddleware

	limiter := cfg.ContactLimiter
	if limiter == nil {
		limiter = NewRateLimiter(0)
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", home.Index)
	mux.HandleFunc("GET /health", home.Health)
	mux.Handle("GET /metrics", cfg.Metrics.Handler())
	mux.Handle("GET "+uploadsPrefix, Uploads(cfg.UploadDir, uploadsPrefix))

	mux.HandleFunc("POST /api/admin/login", admin.Login)
	mux.HandleFunc("POST /api/admin/logout", admin.Logout)
	mux.HandleFunc("GET /api/admin/me", protect(admin.Me))
	mux.HandleFunc("GET /api/admin/stats", protect(admin.Stats))

	registerResource(mux, "/api/plans", &ResourceHandler[models.Plan]{Store: cfg.Catalog.Plans, Label: "Plan", PublicActiveOnly: true}, protect)
	registerResource(mux, "/api/portfolio", &ResourceHandler[models.PortfolioItem]{Store: cfg.Catalog.Portfolio, Label: "Portfolio item"}, protect)
	registerResource(mux, "/api/team", &ResourceHandler[models.TeamMember]{Store: cfg.Catalog.Team, Label: "Team member"}, protect)
	registerResource(mux, "/api/testimonials", &ResourceHandler[models.Testimonial]{Store: cfg.Catalog.Testimonials, Label: "Testimonial"}, protect)
	registerResource(mux, "/api/offers", &ResourceHandler[models.Offer]{Store: cfg.Catalog.Offers, Label: "Offer", PublicActiveOnly: true}, protect)

	mux.HandleFunc("POST /api/contact", limiter.Middleware(contact.Submit))
	mux.HandleFunc("GET /api/contact", protect(contact.List))
	mux.HandleFunc("PUT /api/contact/{id}", protect(contact.UpdateStatus))
	mux.HandleFunc("DELETE /api/contact/{id}", protect(contact.Delete))

	mux.HandleFunc("POST /api/upload", protect(upload.Upload))

	return LoggingMiddleware(
		SecurityHeadersMiddleware(
			CORSMiddleware(mux, cfg.CORSOrigin),
		),
		cfg.Metrics,
	)
}

func registerResource[T any](mux *http.ServeMux, base string, h *ResourceHandler[T], protect func(http.HandlerFunc) http.HandlerFunc) {
	mux.HandleFunc("GET "+base, h.PublicList)
	mux.HandleFunc("GET "+base+"/all", protect(h.AdminList))
	mux.HandleFunc("GET "+base+"/{id}", protect(h.Get))
	mux.HandleFunc("POST "+base, protect(h.Create))
	mux.HandleFunc("PUT "+base+"/{id}", protect(h.Update))
	mux.HandleFunc("DELETE "+base+"/{id}", protect(h.Delete))
}
