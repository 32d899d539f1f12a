package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/romariotrain/truetestify/internal/auth"
)

func NewRouter(h *Handler, verifier *auth.Verifier) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.log))
	r.Use(middleware.Recoverer)

	r.Get("/health", h.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Embed widgets link here without the /api prefix.
	r.Get("/public/{slug}/reviews", h.ListPublicReviews)

	r.Route("/api", func(r chi.Router) {
		r.Route("/public/{slug}", func(r chi.Router) {
			r.Get("/", h.PublicProfile)
			r.Get("/reviews", h.ListPublicReviews)
			r.Post("/reviews", h.SubmitReview)
			r.Get("/media/{assetId}/url", h.MediaURL)
		})

		r.Get("/billing/pricing-plans", h.PricingPlans)
		r.Post("/billing/webhook", h.Webhook)

		r.Group(func(r chi.Router) {
			r.Use(requireOwner(verifier))

			r.Post("/businesses", h.CreateBusiness)
			r.Route("/businesses/{businessId}", func(r chi.Router) {
				r.Get("/", h.GetBusiness)
				r.Patch("/", h.UpdateBusiness)
				r.Get("/reviews", h.ListOwnerReviews)
				r.Get("/reviews/stats", h.ReviewStats)
				r.Patch("/reviews/{reviewId}/status", h.ChangeStatus)
				r.Delete("/reviews/{reviewId}", h.DeleteReview)
			})

			r.Post("/billing/checkout", h.Checkout)
			r.Post("/billing/portal", h.Portal)
			r.Get("/billing/subscription", h.Subscription)
		})
	})

	return r
}
