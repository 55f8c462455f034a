// Shotcaster - Self-Hosted Upload and Screenshot Manager
// Copyright 2026 Shotcaster Contributors
// SPDX-License-Identifier: MIT
// https://github.com/shotcaster/shotcaster

// Package api provides HTTP routing and handlers using the Chi router.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shotcaster/shotcaster/internal/config"
	"github.com/shotcaster/shotcaster/internal/middleware"
)

// Router assembles the HTTP surface from its handler set and configuration.
type Router struct {
	cfg     *config.Config
	handler *Handler
}

// NewRouter creates a router around the given handler set.
func NewRouter(cfg *config.Config, handler *Handler) *Router {
	return &Router{cfg: cfg, handler: handler}
}

// Setup configures all HTTP routes and the global middleware stack.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   router.corsOrigins(),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health endpoints get a permissive limit so monitors can poll freely.
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(httprate.LimitByIP(1000, router.cfg.Security.RateLimitWindow))
		r.Get("/", router.handler.Health)
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(router.cfg.Security.RateLimitReqs, router.cfg.Security.RateLimitWindow))
		r.Use(middleware.PrometheusMetrics)

		r.Get("/events", router.handler.Events)
		r.Post("/notify/upload", router.handler.NotifyUpload)
		r.Get("/stats/access", router.handler.StatsAccess)
		r.Get("/uploads/recent", router.handler.RecentUploads)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

func (router *Router) corsOrigins() []string {
	if len(router.cfg.Security.CORSOrigins) == 0 {
		return []string{"*"}
	}
	return router.cfg.Security.CORSOrigins
}
