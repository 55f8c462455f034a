// Shotcaster - Self-Hosted Upload and Screenshot Manager
// Copyright 2026 Shotcaster Contributors
// SPDX-License-Identifier: MIT
// https://github.com/shotcaster/shotcaster

// Package sse implements the Server-Sent-Events broadcast manager: a
// process-wide registry of live-update subscribers with capacity-bounded
// eviction, dead-connection detection, and heartbeats.
//
// The manager is constructed once at startup and injected into the HTTP
// layer; it owns its clients exclusively. A single mutex guards the registry,
// and the fan-out loop calls each client's send capability synchronously
// under that lock, so registrations, removals, and broadcasts never observe
// a half-mutated registry.
package sse

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/shotcaster/shotcaster/internal/logging"
	"github.com/shotcaster/shotcaster/internal/metrics"
)

// SendFunc pushes one raw text-event-stream frame to a connection.
// It returns an error when the remote end is gone.
type SendFunc func(frame string) error

// Client is one registered live connection.
type Client struct {
	id           string
	send         SendFunc
	userAgent    string
	lastActivity time.Time
}

// Config holds broadcast manager settings.
type Config struct {
	// MaxClients bounds the registry; the least-recently-active clients are
	// evicted first when a registration would exceed it.
	MaxClients int

	// PingInterval is the dead-connection sweep cadence.
	PingInterval time.Duration

	// InactivityWindow is the staleness bound for the inactivity sweep.
	InactivityWindow time.Duration

	// SweepInactive enables the inactivity sweep. Production builds leave
	// this off; it exists to stop silent client accumulation across
	// development hot-reload cycles.
	SweepInactive bool
}

// Manager maintains the set of registered clients and fans out named events
// to all of them.
type Manager struct {
	mu        sync.Mutex
	clients   map[string]*Client
	messageID uint64

	maxClients       int
	pingInterval     time.Duration
	inactivityWindow time.Duration
	sweepInactive    bool
}

// NewManager creates a broadcast manager. Call Serve to run the background
// sweeps.
func NewManager(cfg Config) *Manager {
	if cfg.MaxClients <= 0 {
		cfg.MaxClients = 100
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.InactivityWindow <= 0 {
		cfg.InactivityWindow = 5 * time.Minute
	}

	return &Manager{
		clients:          make(map[string]*Client),
		maxClients:       cfg.MaxClients,
		pingInterval:     cfg.PingInterval,
		inactivityWindow: cfg.InactivityWindow,
		sweepInactive:    cfg.SweepInactive,
	}
}

// AddClient registers a subscriber. When the registration would exceed
// MaxClients, the least-recently-active existing clients are evicted first.
// A duplicate id overwrites the previous registration.
func (m *Manager) AddClient(id string, send SendFunc, userAgent string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.clients[id]; !exists && len(m.clients) >= m.maxClients {
		m.evictOldestLocked(len(m.clients) - m.maxClients + 1)
	}

	m.clients[id] = &Client{
		id:           id,
		send:         send,
		userAgent:    userAgent,
		lastActivity: time.Now(),
	}
	metrics.SSEClients.Set(float64(len(m.clients)))

	logging.Debug().Str("client_id", id).Int("total_clients", len(m.clients)).Msg("sse client registered")
}

// RemoveClient unregisters a subscriber. No-op when the id is absent.
func (m *Manager) RemoveClient(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.clients[id]; !ok {
		return
	}
	delete(m.clients, id)
	metrics.SSEClients.Set(float64(len(m.clients)))
	metrics.SSEClientRemovals.WithLabelValues("disconnect").Inc()

	logging.Debug().Str("client_id", id).Int("total_clients", len(m.clients)).Msg("sse client removed")
}

// Broadcast serializes one frame tagged with the next message id and attempts
// delivery to every registered client. A failed send removes that client
// immediately; no retry, and no error surfaces to the caller. The message id
// increments by exactly 1 per call regardless of client count.
func (m *Manager) Broadcast(event string, data interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.messageID++
	metrics.SSEBroadcastsTotal.WithLabelValues(event).Inc()

	payload, err := json.Marshal(data)
	if err != nil {
		logging.Warn().Err(err).Str("event", event).Msg("failed to marshal broadcast payload")
		return
	}
	frame := eventFrame(m.messageID, event, payload)

	now := time.Now()
	for _, client := range m.sortedClientsLocked() {
		if err := client.send(frame); err != nil {
			delete(m.clients, client.id)
			metrics.SSEClientRemovals.WithLabelValues("send_failed").Inc()
			logging.Debug().Str("client_id", client.id).Err(err).Msg("sse send failed, client removed")
			continue
		}
		client.lastActivity = now
	}
	metrics.SSEClients.Set(float64(len(m.clients)))
}

// ClientCount returns the current registry size.
func (m *Manager) ClientCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.clients)
}

// Serve runs the background sweeps until the context is canceled. It
// implements suture.Service.
func (m *Manager) Serve(ctx context.Context) error {
	pingTicker := time.NewTicker(m.pingInterval)
	defer pingTicker.Stop()

	inactivityTicker := time.NewTicker(m.inactivityWindow)
	defer inactivityTicker.Stop()

	logging.Info().
		Bool("inactivity_sweep", m.sweepInactive).
		Dur("ping_interval", m.pingInterval).
		Msg("sse manager started")

	for {
		select {
		case <-ctx.Done():
			logging.Info().Int("clients", m.ClientCount()).Msg("sse manager stopped")
			return ctx.Err()
		case <-pingTicker.C:
			m.sweepDead()
		case <-inactivityTicker.C:
			if m.sweepInactive {
				m.sweepStale()
			}
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (m *Manager) String() string {
	return "sse-manager"
}

// sweepDead pings every client with a comment frame; a failed ping is the
// backstop for transports that closed without the explicit RemoveClient path
// firing.
func (m *Manager) sweepDead() {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for _, client := range m.sortedClientsLocked() {
		if err := client.send(PingFrame); err != nil {
			delete(m.clients, client.id)
			metrics.SSEClientRemovals.WithLabelValues("ping_failed").Inc()
			removed++
		}
	}

	if removed > 0 {
		metrics.SSEClients.Set(float64(len(m.clients)))
		logging.Debug().Int("removed", removed).Int("total_clients", len(m.clients)).Msg("sse ping sweep removed dead clients")
	}
}

// sweepStale removes clients whose lastActivity is older than the inactivity
// window.
func (m *Manager) sweepStale() {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-m.inactivityWindow)
	removed := 0
	for id, client := range m.clients {
		if client.lastActivity.Before(cutoff) {
			delete(m.clients, id)
			metrics.SSEClientRemovals.WithLabelValues("inactive").Inc()
			removed++
		}
	}

	if removed > 0 {
		metrics.SSEClients.Set(float64(len(m.clients)))
		logging.Debug().Int("removed", removed).Msg("sse inactivity sweep removed stale clients")
	}
}

// evictOldestLocked removes n clients in ascending lastActivity order.
// Caller must hold m.mu.
func (m *Manager) evictOldestLocked(n int) {
	byActivity := m.sortedClientsLocked()
	sort.SliceStable(byActivity, func(i, j int) bool {
		return byActivity[i].lastActivity.Before(byActivity[j].lastActivity)
	})

	for i := 0; i < n && i < len(byActivity); i++ {
		delete(m.clients, byActivity[i].id)
		metrics.SSEClientRemovals.WithLabelValues("capacity").Inc()
		logging.Debug().Str("client_id", byActivity[i].id).Msg("sse client evicted for capacity")
	}
}

// sortedClientsLocked snapshots the registry sorted by client id so fan-out
// and sweeps iterate in a stable order. Caller must hold m.mu.
func (m *Manager) sortedClientsLocked() []*Client {
	clients := make([]*Client, 0, len(m.clients))
	for _, c := range m.clients {
		clients = append(clients, c)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})
	return clients
}
