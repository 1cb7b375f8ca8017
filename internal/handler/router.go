package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/registration-ledger/internal/metrics"
)

// RouterOptions configure the router around a Handler.
type RouterOptions struct {
	Log     *zap.Logger
	Metrics *metrics.Metrics

	// Admin routes are mounted only when Username is set, behind basic auth
	// with these credentials.
	AdminUsername string
	AdminPassword string
}

// Routes builds the HTTP API.
func (h *Handler) Routes(opts RouterOptions) http.Handler {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()

	// Global middleware stack
	r.Use(chimiddleware.Recoverer) // recover from panics, return 500
	r.Use(chimiddleware.RequestID) // attach request IDs
	r.Use(chimiddleware.RealIP)    // trust X-Forwarded-For
	r.Use(Logger(log))
	if opts.Metrics != nil {
		r.Use(Instrument(opts.Metrics))
	}
	r.Use(CORS)

	r.Get("/health", HealthCheck)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/sessions", h.CreateSession)
		r.Post("/password/validate", h.ValidatePassword)
		r.Get("/metadata", h.Metadata)

		r.Group(func(r chi.Router) {
			r.Use(h.auth.RequireSession)

			r.Post("/registrations", h.Register)
			r.Get("/registrations/{sessionId}", h.GetRegistration)
			r.Get("/tickets/status", h.TicketStatus)

			r.Post("/checkin/lookup", h.LookupCheckIn)
			r.Post("/checkin", h.CheckIn)
		})

		if opts.AdminUsername == "" {
			log.Warn("admin routes disabled: admin.username is not set")
			return
		}
		r.Route("/admin", func(r chi.Router) {
			r.Use(chimiddleware.BasicAuth("registration-ledger", map[string]string{
				opts.AdminUsername: opts.AdminPassword,
			}))
			r.Post("/mail/initial", h.SendInitial)
			r.Post("/mail/final", h.SendFinal)
			r.Get("/mail/quota", h.MailQuota)
		})
	})

	return r
}

