package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/Shivanand-hulikatti/sled-race-registration/internal/telemetry"
)

// RouterConfig holds the router options.
type RouterConfig struct {
	AllowedOrigin string
	// AdminToken guards the registration listing. Empty disables the route.
	AdminToken string
	Metrics    *telemetry.Metrics
}

// NewRouter builds the HTTP routes.
func NewRouter(h *EventHandler, cfg RouterConfig) http.Handler {
	if cfg.AllowedOrigin == "" {
		cfg.AllowedOrigin = "*"
	}

	r := chi.NewRouter()

	// Global middleware stack
	r.Use(chimiddleware.Recoverer) // recover from panics, return 500
	r.Use(chimiddleware.RequestID) // attach request IDs
	r.Use(chimiddleware.RealIP)    // trust X-Forwarded-For
	r.Use(Logger(cfg.Metrics))     // structured access log
	r.Use(CORS(cfg.AllowedOrigin))

	r.Get("/health", HealthCheck)
	r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/registrations", h.CreateRegistration)
		r.Post("/contact", h.SendContact)

		r.Route("/events", func(r chi.Router) {
			r.Get("/", h.ListEvents)
			r.Get("/{tag}", h.GetEvent)
			r.Get("/{tag}/registrations/{id}", h.GetConfirmation)
			if cfg.AdminToken != "" {
				r.With(RequireBearer(cfg.AdminToken)).Get("/{tag}/registrations", h.ListRegistrations)
			}
		})
	})

	return r
}
