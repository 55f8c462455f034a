// Shotcaster - Self-Hosted Upload and Screenshot Manager
// Copyright 2026 Shotcaster Contributors
// SPDX-License-Identifier: MIT
// https://github.com/shotcaster/shotcaster

// Package geo resolves IP addresses to place/ISP metadata through a two-tier
// cache: a bounded in-memory LRU backed by an on-disk JSON snapshot, with
// batched upstream lookups and rate-limit detection.
//
// The cache is a process-wide singleton constructed at startup. Private and
// loopback addresses are answered synthetically and never reach the upstream
// resolver.
package geo

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shotcaster/shotcaster/internal/config"
	"github.com/shotcaster/shotcaster/internal/logging"
	"github.com/shotcaster/shotcaster/internal/metrics"
	"github.com/shotcaster/shotcaster/internal/models"
)

// BatchResult is the outcome of one batch resolution: the results that could
// be resolved, plus whether the upstream rate limit cut the batch short.
// An IP absent from Results means "unknown", not "error".
type BatchResult struct {
	Results     map[string]models.GeoResult
	RateLimited bool
}

// Cache is the geo-resolution cache. All methods are safe for concurrent use;
// one mutex guards the memory tier and a second serializes snapshot writes.
type Cache struct {
	mu  sync.Mutex
	lru *lruCache

	snapshot *snapshotStore
	loadOnce sync.Once

	client    *batchClient
	batchSize int
}

// NewCache creates a geo-resolution cache from configuration. The disk
// snapshot is loaded lazily on first use, not here.
func NewCache(cfg *config.GeoIPConfig) *Cache {
	batchSize := cfg.BatchSize
	if batchSize <= 0 || batchSize > 100 {
		batchSize = 100
	}

	return &Cache{
		lru:       newLRUCache(cfg.CacheCapacity, cfg.CacheTTL),
		snapshot:  newSnapshotStore(cfg.SnapshotPath),
		client:    newBatchClient(cfg.BatchURL, cfg.RequestTimeout, cfg.RatePerMinute),
		batchSize: batchSize,
	}
}

// Lookup resolves a single IP from the synthetic private-range path or the
// memory cache. It never triggers an upstream call; a nil result means the
// address is not cached.
func (c *Cache) Lookup(ip string) *models.GeoResult {
	if IsPrivateIP(ip) {
		res := privateResult(ip)
		return &res
	}

	c.ensureLoaded()

	c.mu.Lock()
	defer c.mu.Unlock()

	if res, ok := c.lru.get(ip); ok {
		metrics.GeoCacheHits.Inc()
		return &res
	}
	metrics.GeoCacheMisses.Inc()
	return nil
}

// BatchResolve is the primary entry point: it partitions the input into
// private, cached, and unresolved addresses, resolves the unresolved set in
// upstream chunks, and persists the memory cache to disk afterwards.
//
// A chunk answered with HTTP 429 (or an exhausted local budget) sets
// RateLimited and stops the remaining chunks; their IPs are simply absent
// from Results. Any other chunk failure is logged and skipped. The method
// never returns an error for upstream failures.
func (c *Cache) BatchResolve(ctx context.Context, ips []string) BatchResult {
	c.ensureLoaded()

	results := make(map[string]models.GeoResult, len(ips))
	seen := make(map[string]struct{}, len(ips))
	var unresolved []string

	c.mu.Lock()
	for _, ip := range ips {
		if _, dup := seen[ip]; dup {
			continue
		}
		seen[ip] = struct{}{}

		if IsPrivateIP(ip) {
			results[ip] = privateResult(ip)
			continue
		}
		if res, ok := c.lru.get(ip); ok {
			metrics.GeoCacheHits.Inc()
			results[ip] = res
			continue
		}
		metrics.GeoCacheMisses.Inc()
		unresolved = append(unresolved, ip)
	}
	c.mu.Unlock()

	rateLimited := c.resolveChunks(ctx, unresolved, results)

	c.persist()

	return BatchResult{Results: results, RateLimited: rateLimited}
}

// resolveChunks dispatches the unresolved set upstream in chunks of at most
// batchSize, inserting successful entries into the memory cache and the
// result map. Returns true when rate limiting stopped processing early.
func (c *Cache) resolveChunks(ctx context.Context, unresolved []string, results map[string]models.GeoResult) bool {
	for start := 0; start < len(unresolved); start += c.batchSize {
		end := start + c.batchSize
		if end > len(unresolved) {
			end = len(unresolved)
		}
		chunk := unresolved[start:end]

		entries, err := c.client.resolve(ctx, chunk)
		if err != nil {
			if isRateLimited(err) {
				logging.Warn().Int("remaining", len(unresolved)-start).Msg("geo upstream rate limited, stopping batch early")
				return true
			}
			logging.Warn().Err(err).Int("chunk_size", len(chunk)).Msg("geo upstream chunk failed, skipping")
			continue
		}

		now := time.Now()
		c.mu.Lock()
		for _, entry := range entries {
			if entry.Status != "success" {
				logging.Debug().Str("ip", entry.Query).Str("reason", entry.Message).Msg("geo lookup failed for ip")
				continue
			}
			res := models.GeoResult{
				IP:          entry.Query,
				Country:     entry.Country,
				CountryCode: entry.CountryCode,
				City:        entry.City,
				Lat:         entry.Lat,
				Lon:         entry.Lon,
				ISP:         entry.ISP,
				CachedAt:    now,
			}
			c.lru.add(res)
			results[res.IP] = res
		}
		metrics.GeoCacheEntries.Set(float64(c.lru.len()))
		c.mu.Unlock()
	}

	return false
}

// ensureLoaded loads the disk snapshot into the memory cache exactly once
// per process lifetime. Missing or corrupt snapshots count as empty.
func (c *Cache) ensureLoaded() {
	c.loadOnce.Do(func() {
		entries := c.snapshot.load()

		c.mu.Lock()
		defer c.mu.Unlock()
		for _, res := range entries {
			if time.Since(res.CachedAt) >= c.lru.ttl {
				continue
			}
			c.lru.add(res)
		}
		metrics.GeoCacheEntries.Set(float64(c.lru.len()))

		if len(entries) > 0 {
			logging.Info().Int("entries", c.lru.len()).Msg("geo cache snapshot loaded")
		}
	})
}

// persist writes the entire current memory cache to disk, a full overwrite.
// A write failure is logged and never fails the resolution that produced it.
func (c *Cache) persist() {
	c.mu.Lock()
	entries := c.lru.snapshot()
	c.mu.Unlock()

	if err := c.snapshot.save(entries); err != nil {
		metrics.GeoSnapshotWrites.WithLabelValues("failure").Inc()
		logging.Warn().Err(err).Msg("failed to persist geo cache snapshot")
		return
	}
	metrics.GeoSnapshotWrites.WithLabelValues("success").Inc()
}

// resetForTest clears the memory tier and re-arms the lazy snapshot load,
// simulating a process restart.
func (c *Cache) resetForTest() {
	c.mu.Lock()
	c.lru.clear()
	c.mu.Unlock()
	c.loadOnce = sync.Once{}
}

func isRateLimited(err error) bool {
	return errors.Is(err, errRateLimited)
}
