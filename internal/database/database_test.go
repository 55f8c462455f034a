// Shotcaster - Self-Hosted Upload and Screenshot Manager
// Copyright 2026 Shotcaster Contributors
// SPDX-License-Identifier: MIT
// https://github.com/shotcaster/shotcaster

package database

import (
	"context"
	"io"
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

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(&config.DatabaseConfig{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("failed to close database: %v", err)
		}
	})
	return db
}

func TestNewAndPing(t *testing.T) {
	db := newTestDB(t)
	if err := db.Ping(context.Background()); err != nil {
		t.Fatalf("expected ping to succeed: %v", err)
	}
}

func TestRecordAccessAndTopIPs(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now()

	accesses := []models.AccessRecord{
		{IP: "8.8.8.8", Path: "/u/a.png", UserAgent: "curl/8.0", AccessedAt: now},
		{IP: "8.8.8.8", Path: "/u/b.png", AccessedAt: now},
		{IP: "8.8.8.8", Path: "/u/c.png", AccessedAt: now},
		{IP: "1.1.1.1", Path: "/u/a.png", AccessedAt: now},
		{IP: "1.1.1.1", Path: "/u/a.png", AccessedAt: now},
		{IP: "9.9.9.9", Path: "/u/a.png", AccessedAt: now},
	}
	for _, rec := range accesses {
		if err := db.RecordAccess(ctx, rec); err != nil {
			t.Fatalf("failed to record access: %v", err)
		}
	}

	counts, err := db.TopIPs(ctx, now.Add(-time.Hour), 10)
	if err != nil {
		t.Fatalf("failed to query top IPs: %v", err)
	}

	want := []models.IPCount{
		{IP: "8.8.8.8", Count: 3},
		{IP: "1.1.1.1", Count: 2},
		{IP: "9.9.9.9", Count: 1},
	}
	if len(counts) != len(want) {
		t.Fatalf("expected %d rows, got %d", len(want), len(counts))
	}
	for i, w := range want {
		if counts[i] != w {
			t.Errorf("row %d: expected %+v, got %+v", i, w, counts[i])
		}
	}
}

func TestTopIPsRespectsSinceAndLimit(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now()

	old := models.AccessRecord{IP: "203.0.113.1", Path: "/u/old.png", AccessedAt: now.Add(-48 * time.Hour)}
	if err := db.RecordAccess(ctx, old); err != nil {
		t.Fatalf("failed to record access: %v", err)
	}
	for _, ip := range []string{"8.8.8.8", "1.1.1.1", "9.9.9.9"} {
		if err := db.RecordAccess(ctx, models.AccessRecord{IP: ip, Path: "/u/a.png", AccessedAt: now}); err != nil {
			t.Fatalf("failed to record access: %v", err)
		}
	}

	counts, err := db.TopIPs(ctx, now.Add(-time.Hour), 2)
	if err != nil {
		t.Fatalf("failed to query top IPs: %v", err)
	}
	if len(counts) != 2 {
		t.Fatalf("expected limit of 2 rows, got %d", len(counts))
	}
	for _, c := range counts {
		if c.IP == "203.0.113.1" {
			t.Error("expected rows older than the window to be excluded")
		}
	}
}

func TestRecordAccessDefaultsTimestamp(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.RecordAccess(ctx, models.AccessRecord{IP: "8.8.8.8", Path: "/u/a.png"}); err != nil {
		t.Fatalf("failed to record access: %v", err)
	}

	total, err := db.CountSince(ctx, time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("failed to count accesses: %v", err)
	}
	if total != 1 {
		t.Errorf("expected zero AccessedAt to default to now, count %d", total)
	}
}

func TestPruneBefore(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now()

	for i, age := range []time.Duration{0, -time.Hour, -72 * time.Hour, -96 * time.Hour} {
		rec := models.AccessRecord{IP: "8.8.8.8", Path: "/u/a.png", AccessedAt: now.Add(age)}
		if err := db.RecordAccess(ctx, rec); err != nil {
			t.Fatalf("failed to record access %d: %v", i, err)
		}
	}

	removed, err := db.PruneBefore(ctx, now.Add(-48*time.Hour))
	if err != nil {
		t.Fatalf("failed to prune: %v", err)
	}
	if removed != 2 {
		t.Errorf("expected 2 rows pruned, got %d", removed)
	}

	total, err := db.CountSince(ctx, now.Add(-200*time.Hour))
	if err != nil {
		t.Fatalf("failed to count accesses: %v", err)
	}
	if total != 2 {
		t.Errorf("expected 2 rows remaining, got %d", total)
	}
}
