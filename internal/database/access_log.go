// Shotcaster - Self-Hosted Upload and Screenshot Manager
// Copyright 2026 Shotcaster Contributors
// SPDX-License-Identifier: MIT
// https://github.com/shotcaster/shotcaster

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/shotcaster/shotcaster/internal/metrics"
	"github.com/shotcaster/shotcaster/internal/models"
)

// RecordAccess appends one access-log row. AccessedAt defaults to now when
// unset.
func (db *DB) RecordAccess(ctx context.Context, rec models.AccessRecord) error {
	accessedAt := rec.AccessedAt
	if accessedAt.IsZero() {
		accessedAt = time.Now()
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO access_log (ip, path, user_agent, accessed_at) VALUES (?, ?, ?, ?)`,
		rec.IP, rec.Path, rec.UserAgent, accessedAt)
	if err != nil {
		metrics.AccessLogInserts.WithLabelValues("failure").Inc()
		return fmt.Errorf("failed to record access: %w", err)
	}

	metrics.AccessLogInserts.WithLabelValues("success").Inc()
	return nil
}

// TopIPs returns per-IP access counts since the given time, most frequent
// first with the IP string as tiebreaker for stable ordering.
func (db *DB) TopIPs(ctx context.Context, since time.Time, limit int) ([]models.IPCount, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT ip, COUNT(*) AS hits
		 FROM access_log
		 WHERE accessed_at >= ?
		 GROUP BY ip
		 ORDER BY hits DESC, ip ASC
		 LIMIT ?`,
		since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top IPs: %w", err)
	}
	defer rows.Close()

	var counts []models.IPCount
	for rows.Next() {
		var c models.IPCount
		if err := rows.Scan(&c.IP, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan access count: %w", err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate access counts: %w", err)
	}

	return counts, nil
}

// CountSince returns the total number of logged accesses since the given time.
func (db *DB) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var total int64
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM access_log WHERE accessed_at >= ?`, since).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to count accesses: %w", err)
	}
	return total, nil
}

// PruneBefore deletes access-log rows older than the cutoff and reports how
// many were removed.
func (db *DB) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM access_log WHERE accessed_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune access log: %w", err)
	}

	removed, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return removed, nil
}
