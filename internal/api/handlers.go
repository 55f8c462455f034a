// Shotcaster - Self-Hosted Upload and Screenshot Manager
// Copyright 2026 Shotcaster Contributors
// SPDX-License-Identifier: MIT
// https://github.com/shotcaster/shotcaster

package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/shotcaster/shotcaster/internal/config"
	"github.com/shotcaster/shotcaster/internal/database"
	"github.com/shotcaster/shotcaster/internal/geo"
	"github.com/shotcaster/shotcaster/internal/history"
	"github.com/shotcaster/shotcaster/internal/logging"
	"github.com/shotcaster/shotcaster/internal/models"
	"github.com/shotcaster/shotcaster/internal/sse"
)

// Handler bundles the dependencies behind the HTTP surface.
type Handler struct {
	cfg       *config.Config
	broadcast *sse.Manager
	geoCache  *geo.Cache
	db        *database.DB
	uploads   *history.Store
	startTime time.Time
}

// NewHandler creates the handler set.
func NewHandler(cfg *config.Config, broadcast *sse.Manager, geoCache *geo.Cache, db *database.DB, uploads *history.Store) *Handler {
	return &Handler{
		cfg:       cfg,
		broadcast: broadcast,
		geoCache:  geoCache,
		db:        db,
		uploads:   uploads,
		startTime: time.Now(),
	}
}

// respondJSON writes the standard response envelope.
func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	w.Header().Set("Content-Type", "application/json")

	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("failed to write JSON response")
	}
}

// respondData wraps payload data in a success envelope.
func respondData(w http.ResponseWriter, status int, data interface{}, started time.Time) {
	respondJSON(w, status, &models.APIResponse{
		Status: "success",
		Data:   data,
		Metadata: models.Metadata{
			Timestamp:   time.Now(),
			QueryTimeMS: time.Since(started).Milliseconds(),
		},
	})
}

func respondError(w http.ResponseWriter, status int, code, message string, err error) {
	if err != nil {
		logging.Error().Str("code", code).Err(err).Msg("api error")
	}

	respondJSON(w, status, &models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now()},
		Error: &models.APIError{
			Code:    code,
			Message: message,
		},
	})
}

// Health reports overall service status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	status := "healthy"
	httpStatus := http.StatusOK
	if err := h.db.Ping(r.Context()); err != nil {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	respondData(w, httpStatus, map[string]interface{}{
		"status":         status,
		"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
		"sse_clients":    h.broadcast.ClientCount(),
	}, started)
}

// HealthLive is the liveness probe: the process is up.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondData(w, http.StatusOK, map[string]string{"status": "alive"}, time.Now())
}

// HealthReady is the readiness probe: dependencies are reachable.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	if err := h.db.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "DATABASE_ERROR", "database not reachable", err)
		return
	}
	respondData(w, http.StatusOK, map[string]string{"status": "ready"}, started)
}
