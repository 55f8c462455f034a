// Shotcaster - Self-Hosted Upload and Screenshot Manager
// Copyright 2026 Shotcaster Contributors
// SPDX-License-Identifier: MIT
// https://github.com/shotcaster/shotcaster

// Package history keeps the upload history in a single flat JSON file. The
// file holds the most recent uploads newest-first; every append rewrites the
// whole file. Single-process deployment is assumed, so a mutex is the only
// write coordination.
package history

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"

	"github.com/shotcaster/shotcaster/internal/config"
	"github.com/shotcaster/shotcaster/internal/logging"
	"github.com/shotcaster/shotcaster/internal/models"
)

// maxEntries bounds the history file; the oldest entries fall off.
const maxEntries = 1000

// Store is the flat-file upload history. Safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	path    string
	entries []models.UploadNotification
}

// NewStore loads the history file at cfg.Path. A missing or corrupt file is
// treated as empty history.
func NewStore(cfg *config.HistoryConfig) *Store {
	s := &Store{path: cfg.Path}

	data, err := os.ReadFile(cfg.Path)
	if err != nil {
		if !os.IsNotExist(err) {
			logging.Warn().Err(err).Str("path", cfg.Path).Msg("failed to read upload history, starting empty")
		}
		return s
	}

	if err := json.Unmarshal(data, &s.entries); err != nil {
		logging.Warn().Err(err).Str("path", cfg.Path).Msg("corrupt upload history, starting empty")
		s.entries = nil
	}
	return s
}

// Append records a new upload at the head of the history and rewrites the
// file. The entry is kept in memory even when the write fails.
func (s *Store) Append(entry models.UploadNotification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append([]models.UploadNotification{entry}, s.entries...)
	if len(s.entries) > maxEntries {
		s.entries = s.entries[:maxEntries]
	}

	return s.saveLocked()
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(limit int) []models.UploadNotification {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 || limit > len(s.entries) {
		limit = len(s.entries)
	}

	out := make([]models.UploadNotification, limit)
	copy(out, s.entries[:limit])
	return out
}

// Len returns the number of stored entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) saveLocked() error {
	data, err := json.Marshal(s.entries)
	if err != nil {
		return fmt.Errorf("failed to marshal upload history: %w", err)
	}

	dir := filepath.Dir(s.path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create history directory %s: %w", dir, err)
		}
	}

	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write upload history: %w", err)
	}
	return nil
}
