/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for hotel dashboards
  5. Duration:   Prometheus request-duration histogram (when enabled)

ROUTE GROUPS:
  /api/bookings/*   Booking lifecycle
  /api/providers/*  Provider registration and markup
  /api/hotels/*     Per-hotel views and configuration
  /metrics          Prometheus scrape endpoint

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, corsOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))
	if h.Metrics != nil {
		r.Use(durationMiddleware(h))
	}

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Booking routes
		r.Route("/bookings", func(r chi.Router) {
			r.Post("/", h.CreateBooking)
			r.Post("/transportation", h.CreateTransportationBooking)
			r.Get("/{id}", h.GetBooking)
			r.Post("/{id}/status", h.TransitionBooking)
			r.Post("/{id}/sla", h.RecordSLAEvent)
			r.Post("/{id}/reprice", h.RepriceBooking)
			r.Post("/{id}/payment", h.SettlePayment)
			r.Post("/{id}/feedback", h.SubmitFeedback)
		})

		// Provider routes
		r.Route("/providers", func(r chi.Router) {
			r.Post("/", h.CreateProvider)
			r.Get("/{id}", h.GetProvider)
			r.Put("/{id}/markup", h.SetMarkup)
		})

		// Hotel routes
		r.Route("/hotels", func(r chi.Router) {
			r.Get("/{id}/bookings", h.ListHotelBookings)
			r.Get("/{id}/providers", h.ListHotelProviders)
			r.Post("/{id}/assignments", h.AssignProvider)
			r.Get("/{id}/revenue", h.HotelRevenue)
			r.Put("/{id}/config", h.UpdateHotelConfig)
			r.Get("/{id}/loyalty/{guestID}", h.GetLoyaltyMember)
		})
	})

	// Prometheus scrape endpoint
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// durationMiddleware records per-route request duration.
func durationMiddleware(h *Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)

			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = r.URL.Path
			}
			h.Metrics.HTTPDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
		})
	}
}
