// Shotcaster - Self-Hosted Upload and Screenshot Manager
// Copyright 2026 Shotcaster Contributors
// SPDX-License-Identifier: MIT
// https://github.com/shotcaster/shotcaster

package geo

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"

	"github.com/shotcaster/shotcaster/internal/logging"
	"github.com/shotcaster/shotcaster/internal/models"
)

// snapshotStore persists the memory cache as a single JSON object mapping
// IP string to GeoResult at a fixed path. Reads happen once per process;
// every write is a full overwrite. Writes are serialized by a mutex,
// last-write-wins between overlapping batch resolutions. There is no file
// locking against other processes; single-process deployment is assumed.
type snapshotStore struct {
	path    string
	writeMu sync.Mutex
}

func newSnapshotStore(path string) *snapshotStore {
	return &snapshotStore{path: path}
}

// load reads the snapshot from disk. A missing or corrupt file is treated as
// an empty cache.
func (s *snapshotStore) load() map[string]models.GeoResult {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logging.Warn().Err(err).Str("path", s.path).Msg("failed to read geo cache snapshot, starting empty")
		}
		return nil
	}

	var entries map[string]models.GeoResult
	if err := json.Unmarshal(data, &entries); err != nil {
		logging.Warn().Err(err).Str("path", s.path).Msg("corrupt geo cache snapshot, starting empty")
		return nil
	}

	return entries
}

// save overwrites the snapshot with the given entries.
func (s *snapshotStore) save(entries map[string]models.GeoResult) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to marshal geo cache snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create snapshot directory %s: %w", dir, err)
		}
	}

	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write geo cache snapshot: %w", err)
	}

	return nil
}
