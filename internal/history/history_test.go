// Shotcaster - Self-Hosted Upload and Screenshot Manager
// Copyright 2026 Shotcaster Contributors
// SPDX-License-Identifier: MIT
// https://github.com/shotcaster/shotcaster

package history

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shotcaster/shotcaster/internal/config"
	"github.com/shotcaster/shotcaster/internal/logging"
	"github.com/shotcaster/shotcaster/internal/models"
)

//nolint:gochecknoinits // init ensures quiet logging for tests
func init() {
	logging.Init(logging.Config{Level: "info", Format: "json", Output: io.Discard})
}

func testStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.json")
	return NewStore(&config.HistoryConfig{Path: path}), path
}

func upload(name string) models.UploadNotification {
	return models.UploadNotification{
		FileName:   name,
		Size:       1024,
		UploadedAt: time.Now(),
	}
}

func TestAppendAndRecent(t *testing.T) {
	s, _ := testStore(t)

	for _, name := range []string{"a.png", "b.png", "c.png"} {
		if err := s.Append(upload(name)); err != nil {
			t.Fatalf("failed to append %s: %v", name, err)
		}
	}

	recent := s.Recent(2)
	if len(recent) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(recent))
	}
	if recent[0].FileName != "c.png" || recent[1].FileName != "b.png" {
		t.Errorf("expected newest-first ordering, got %q then %q", recent[0].FileName, recent[1].FileName)
	}

	if got := s.Recent(0); len(got) != 3 {
		t.Errorf("expected limit 0 to return everything, got %d", len(got))
	}
}

func TestReloadFromDisk(t *testing.T) {
	s, path := testStore(t)

	if err := s.Append(upload("a.png")); err != nil {
		t.Fatalf("failed to append: %v", err)
	}
	if err := s.Append(upload("b.png")); err != nil {
		t.Fatalf("failed to append: %v", err)
	}

	reloaded := NewStore(&config.HistoryConfig{Path: path})
	if reloaded.Len() != 2 {
		t.Fatalf("expected 2 entries after reload, got %d", reloaded.Len())
	}
	if got := reloaded.Recent(1); got[0].FileName != "b.png" {
		t.Errorf("expected newest entry first after reload, got %q", got[0].FileName)
	}
}

func TestMissingFileStartsEmpty(t *testing.T) {
	s := NewStore(&config.HistoryConfig{Path: filepath.Join(t.TempDir(), "absent.json")})
	if s.Len() != 0 {
		t.Errorf("expected empty history, got %d entries", s.Len())
	}
}

func TestCorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("failed to seed corrupt file: %v", err)
	}

	s := NewStore(&config.HistoryConfig{Path: path})
	if s.Len() != 0 {
		t.Errorf("expected corrupt file to count as empty, got %d entries", s.Len())
	}

	// The store must still be writable afterwards.
	if err := s.Append(upload("a.png")); err != nil {
		t.Fatalf("failed to append after corrupt load: %v", err)
	}
}

func TestHistoryBounded(t *testing.T) {
	s, _ := testStore(t)

	for i := 0; i < maxEntries+25; i++ {
		if err := s.Append(upload(fmt.Sprintf("f%d.png", i))); err != nil {
			t.Fatalf("failed to append entry %d: %v", i, err)
		}
	}

	if s.Len() != maxEntries {
		t.Fatalf("expected history capped at %d, got %d", maxEntries, s.Len())
	}
	if got := s.Recent(1); got[0].FileName != fmt.Sprintf("f%d.png", maxEntries+24) {
		t.Errorf("expected the newest entry retained, got %q", got[0].FileName)
	}
}
