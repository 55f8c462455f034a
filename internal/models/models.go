// Shotcaster - Self-Hosted Upload and Screenshot Manager
// Copyright 2026 Shotcaster Contributors
// SPDX-License-Identifier: MIT
// https://github.com/shotcaster/shotcaster

// Package models defines the shared data types exchanged between the API
// layer, the broadcast manager, and the geo-resolution cache.
package models

import "time"

// GeoResult is the resolved place/ISP metadata for one IP address.
// Immutable once created. CachedAt drives TTL expiry across snapshot
// round-trips.
type GeoResult struct {
	IP          string    `json:"ip"`
	Country     string    `json:"country"`
	CountryCode string    `json:"countryCode"`
	City        string    `json:"city"`
	Lat         float64   `json:"lat"`
	Lon         float64   `json:"lon"`
	ISP         string    `json:"isp"`
	IsPrivate   bool      `json:"isPrivate,omitempty"`
	CachedAt    time.Time `json:"cachedAt"`
}

// AccessRecord is one access-log row: a request against an uploaded file.
type AccessRecord struct {
	IP         string    `json:"ip"`
	Path       string    `json:"path"`
	UserAgent  string    `json:"user_agent,omitempty"`
	AccessedAt time.Time `json:"accessed_at"`
}

// IPCount is an aggregated access count for one IP, ordered by frequency.
type IPCount struct {
	IP    string `json:"ip"`
	Count int64  `json:"count"`
}

// UploadNotification is the payload posted by the upload pipeline when a new
// file lands, and the payload broadcast to live-update subscribers.
type UploadNotification struct {
	FileName   string    `json:"file"`
	Size       int64     `json:"size,omitempty"`
	UploadedBy string    `json:"uploaded_by,omitempty"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// APIResponse is the standard response envelope for all JSON endpoints.
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata contains response metadata for observability.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
}

// APIError is a structured error with a machine-readable code.
//
// Common codes: VALIDATION_ERROR, DATABASE_ERROR, NOT_FOUND, INTERNAL_ERROR.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
