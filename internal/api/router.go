// Tripstream - Realtime Sync for Legacy Trip-Approval Workflows
// Copyright 2026 Relaywire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relaywire/tripstream

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/relaywire/tripstream/internal/auth"
	"github.com/relaywire/tripstream/internal/middleware"
)

// NewRouter assembles the HTTP surface. CORS is global so OPTIONS preflight
// works everywhere; the bearer gate covers only the trip endpoints, and login
// gets its own tight rate limit.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.cfg.Security.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(middleware.PrometheusMetrics)

	r.Get("/api/health", h.Health)

	r.Route("/api/auth", func(r chi.Router) {
		r.With(httprate.LimitByIP(
			h.cfg.Security.RateLimitReqs,
			h.cfg.Security.RateLimitWindow,
		)).Post("/login", h.Login)
	})

	r.Route("/api/trips", func(r chi.Router) {
		r.Use(auth.RequireToken)

		r.Get("/", h.ListTrips)
		r.Post("/", h.CreateTrip)
		r.Post("/bulk", h.BulkUpsert)
		r.Get("/{id}", h.GetTrip)
		r.Patch("/{id}", h.PatchTrip)
	})

	// The websocket endpoint authenticates via bearer like the trip routes,
	// but browsers cannot set Authorization on the upgrade request, so the
	// token also rides a query parameter.
	r.Get("/ws", h.WebSocketWithQueryToken)

	r.Handle("/metrics", promhttp.Handler())

	return r
}

// WebSocketWithQueryToken accepts the bearer either as a header or a ?token=
// query parameter, then upgrades.
func (h *Handler) WebSocketWithQueryToken(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") == "" {
		if token := r.URL.Query().Get("token"); token != "" {
			r.Header.Set("Authorization", "Bearer "+token)
		}
	}

	auth.RequireToken(http.HandlerFunc(h.WebSocket)).ServeHTTP(w, r)
}
