// Shotcaster - Self-Hosted Upload and Screenshot Manager
// Copyright 2026 Shotcaster Contributors
// SPDX-License-Identifier: MIT
// https://github.com/shotcaster/shotcaster

package api

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/shotcaster/shotcaster/internal/geo"
	"github.com/shotcaster/shotcaster/internal/models"
)

// ipStats is one aggregated access-log row enriched with geo metadata.
// Geo is nil when the address could not be resolved this round.
type ipStats struct {
	IP    string            `json:"ip"`
	Count int64             `json:"count"`
	Geo   *models.GeoResult `json:"geo,omitempty"`
}

// marker aggregates access counts per resolved location for map rendering.
type marker struct {
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	City    string  `json:"city"`
	Country string  `json:"country"`
	Count   int64   `json:"count"`
}

type accessStats struct {
	Total       int64     `json:"total"`
	Window      string    `json:"window"`
	IPs         []ipStats `json:"ips"`
	Markers     []marker  `json:"markers"`
	RateLimited bool      `json:"rate_limited"`
}

// StatsAccess aggregates the recent access log: top IPs by frequency, each
// enriched with geo metadata, plus per-location marker aggregation. A
// rate-limited geo batch degrades to partial enrichment, never an error.
func (h *Handler) StatsAccess(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	window := 24 * time.Hour
	if raw := r.URL.Query().Get("window"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "window must be a positive duration", err)
			return
		}
		window = parsed
	}

	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "limit must be a positive integer", err)
			return
		}
		limit = parsed
	}

	since := time.Now().Add(-window)

	total, err := h.db.CountSince(r.Context(), since)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "failed to aggregate access log", err)
		return
	}

	counts, err := h.db.TopIPs(r.Context(), since, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "failed to aggregate access log", err)
		return
	}

	ips := make([]string, len(counts))
	for i, c := range counts {
		ips[i] = geo.NormalizeIP(c.IP)
	}
	resolved := h.geoCache.BatchResolve(r.Context(), ips)

	stats := accessStats{
		Total:       total,
		Window:      window.String(),
		IPs:         make([]ipStats, len(counts)),
		RateLimited: resolved.RateLimited,
	}

	byLocation := make(map[string]*marker)
	for i, c := range counts {
		entry := ipStats{IP: c.IP, Count: c.Count}
		if res, ok := resolved.Results[ips[i]]; ok {
			entry.Geo = &res
			if !res.IsPrivate {
				key := fmt.Sprintf("%.4f,%.4f", res.Lat, res.Lon)
				m, exists := byLocation[key]
				if !exists {
					m = &marker{Lat: res.Lat, Lon: res.Lon, City: res.City, Country: res.Country}
					byLocation[key] = m
				}
				m.Count += c.Count
			}
		}
		stats.IPs[i] = entry
	}

	stats.Markers = make([]marker, 0, len(byLocation))
	for _, m := range byLocation {
		stats.Markers = append(stats.Markers, *m)
	}
	sort.Slice(stats.Markers, func(i, j int) bool {
		if stats.Markers[i].Count != stats.Markers[j].Count {
			return stats.Markers[i].Count > stats.Markers[j].Count
		}
		return stats.Markers[i].City < stats.Markers[j].City
	})

	respondData(w, http.StatusOK, stats, started)
}
