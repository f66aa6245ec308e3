package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/tonyboom3d/exact-view-framework/pkg/logger"
)

// NewRouter mounts the checkout API under /api/v1 plus /health and, when
// metrics is not nil, /metrics.
func NewRouter(h *HTTPHandler, metrics http.Handler, l logger.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logger.HTTPLogger(l))
	r.Use(middleware.Recoverer)

	r.Get("/health", h.HealthCheck)
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/tickets", h.ListTickets)
		r.Post("/sessions", h.OpenSession)

		r.Route("/sessions/{sessionId}", func(r chi.Router) {
			r.Use(h.RequireSession)

			r.Get("/", h.GetSession)
			r.Delete("/", h.CloseSession)
			r.Put("/selection", h.SelectTicket)
			r.Put("/details", h.UpdateDetails)
			r.Post("/next", h.Next)
			r.Post("/back", h.Back)
			r.Post("/reset", h.Reset)
			r.Post("/checkout", h.SubmitPayment)
			r.Post("/pending/cancel", h.CancelPending)
			r.Post("/pending/resume", h.ResumePending)
			r.Post("/pending/discard", h.DiscardPending)
		})
	})
	return r
}
