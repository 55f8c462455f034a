// Shotcaster - Self-Hosted Upload and Screenshot Manager
// Copyright 2026 Shotcaster Contributors
// SPDX-License-Identifier: MIT
// https://github.com/shotcaster/shotcaster

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/shotcaster/shotcaster/internal/geo"
	"github.com/shotcaster/shotcaster/internal/models"
)

// NotifyUpload records a completed upload: appended to the history file,
// logged as an access-log row, and broadcast to live-update subscribers.
func (h *Handler) NotifyUpload(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	var notification models.UploadNotification
	if err := json.NewDecoder(r.Body).Decode(&notification); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body", err)
		return
	}
	if notification.FileName == "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "file is required", nil)
		return
	}
	if notification.UploadedAt.IsZero() {
		notification.UploadedAt = time.Now()
	}

	if err := h.uploads.Append(notification); err != nil {
		respondError(w, http.StatusInternalServerError, "STORAGE_ERROR", "failed to record upload", err)
		return
	}

	access := models.AccessRecord{
		IP:         geo.NormalizeIP(r.RemoteAddr),
		Path:       "/uploads/" + notification.FileName,
		UserAgent:  r.UserAgent(),
		AccessedAt: notification.UploadedAt,
	}
	if err := h.db.RecordAccess(r.Context(), access); err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "failed to record access", err)
		return
	}

	h.broadcast.Broadcast("upload", notification)

	respondData(w, http.StatusOK, notification, started)
}

// RecentUploads returns the newest entries from the upload history.
func (h *Handler) RecentUploads(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "limit must be a positive integer", err)
			return
		}
		limit = parsed
	}

	respondData(w, http.StatusOK, map[string]interface{}{
		"uploads": h.uploads.Recent(limit),
		"total":   h.uploads.Len(),
	}, started)
}
