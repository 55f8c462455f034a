// Shotcaster - Self-Hosted Upload and Screenshot Manager
// Copyright 2026 Shotcaster Contributors
// SPDX-License-Identifier: MIT
// https://github.com/shotcaster/shotcaster

package sse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shotcaster/shotcaster/internal/logging"
)

//nolint:gochecknoinits // init ensures quiet logging for tests
func init() {
	logging.Init(logging.Config{Level: "info", Format: "json", Output: io.Discard})
}

// recorder captures frames pushed through a client's send capability.
type recorder struct {
	mu     sync.Mutex
	frames []string
	fail   bool
}

func (r *recorder) send(frame string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("connection closed")
	}
	r.frames = append(r.frames, frame)
	return nil
}

func (r *recorder) recorded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.frames))
	copy(out, r.frames)
	return out
}

func newTestManager(maxClients int) *Manager {
	return NewManager(Config{
		MaxClients:       maxClients,
		PingInterval:     time.Hour,
		InactivityWindow: time.Hour,
	})
}

func TestAddClientRespectsCapacity(t *testing.T) {
	m := newTestManager(3)

	for i := 0; i < 10; i++ {
		rec := &recorder{}
		m.AddClient(fmt.Sprintf("c%02d", i), rec.send, "")
		if got := m.ClientCount(); got > 3 {
			t.Fatalf("registry size %d exceeds max 3 after registration %d", got, i)
		}
	}

	if got := m.ClientCount(); got != 3 {
		t.Errorf("expected 3 clients after 10 registrations, got %d", got)
	}
}

func TestAddClientEvictsLeastRecentlyActive(t *testing.T) {
	m := newTestManager(3)
	for _, id := range []string{"a", "b", "c"} {
		rec := &recorder{}
		m.AddClient(id, rec.send, "")
	}

	// Age the clients explicitly so the eviction order is unambiguous:
	// "b" is the stalest, then "c", then "a".
	m.mu.Lock()
	now := time.Now()
	m.clients["b"].lastActivity = now.Add(-3 * time.Minute)
	m.clients["c"].lastActivity = now.Add(-2 * time.Minute)
	m.clients["a"].lastActivity = now.Add(-1 * time.Minute)
	m.mu.Unlock()

	rec := &recorder{}
	m.AddClient("d", rec.send, "")

	m.mu.Lock()
	_, hasB := m.clients["b"]
	_, hasA := m.clients["a"]
	_, hasC := m.clients["c"]
	_, hasD := m.clients["d"]
	m.mu.Unlock()

	if hasB {
		t.Error("expected stalest client b to be evicted")
	}
	if !hasA || !hasC || !hasD {
		t.Errorf("expected a, c, d to survive eviction (a=%v c=%v d=%v)", hasA, hasC, hasD)
	}
}

func TestAddClientDuplicateIDOverwrites(t *testing.T) {
	m := newTestManager(5)
	first := &recorder{}
	second := &recorder{}

	m.AddClient("dup", first.send, "")
	m.AddClient("dup", second.send, "")

	if got := m.ClientCount(); got != 1 {
		t.Fatalf("expected 1 client after duplicate registration, got %d", got)
	}

	m.Broadcast("ping-check", map[string]string{"k": "v"})

	if len(first.recorded()) != 0 {
		t.Error("overwritten registration should no longer receive frames")
	}
	if len(second.recorded()) != 1 {
		t.Errorf("expected newer registration to receive 1 frame, got %d", len(second.recorded()))
	}
}

func TestRemoveClientAbsentIsNoop(t *testing.T) {
	m := newTestManager(2)
	m.RemoveClient("ghost") // must not panic or error

	rec := &recorder{}
	m.AddClient("real", rec.send, "")
	m.RemoveClient("real")
	m.RemoveClient("real")

	if got := m.ClientCount(); got != 0 {
		t.Errorf("expected empty registry, got %d", got)
	}
}

func TestBroadcastMessageIDIncrementsPerCall(t *testing.T) {
	m := newTestManager(5)

	// Zero clients: the counter still advances.
	m.Broadcast("e1", nil)
	m.Broadcast("e2", nil)

	rec := &recorder{}
	m.AddClient("c1", rec.send, "")
	m.Broadcast("e3", map[string]int{"n": 1})

	frames := rec.recorded()
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	if !strings.HasPrefix(frames[0], "id: 3\n") {
		t.Errorf("expected third broadcast to carry id 3, frame: %q", frames[0])
	}

	m.mu.Lock()
	got := m.messageID
	m.mu.Unlock()
	if got != 3 {
		t.Errorf("expected messageID 3 after three broadcasts, got %d", got)
	}
}

func TestBroadcastRemovesFailingClientOnly(t *testing.T) {
	m := newTestManager(5)
	healthy1 := &recorder{}
	failing := &recorder{fail: true}
	healthy2 := &recorder{}

	m.AddClient("h1", healthy1.send, "")
	m.AddClient("bad", failing.send, "")
	m.AddClient("h2", healthy2.send, "")

	m.Broadcast("upload", map[string]string{"file": "x.png"})

	if got := m.ClientCount(); got != 2 {
		t.Errorf("expected failing client removed, registry size 2, got %d", got)
	}
	m.mu.Lock()
	_, stillThere := m.clients["bad"]
	m.mu.Unlock()
	if stillThere {
		t.Error("failing client still registered after broadcast")
	}

	if len(healthy1.recorded()) != 1 || len(healthy2.recorded()) != 1 {
		t.Errorf("healthy clients affected by peer failure: %d, %d frames",
			len(healthy1.recorded()), len(healthy2.recorded()))
	}
}

func TestBroadcastFrameFormat(t *testing.T) {
	m := newTestManager(5)
	recs := map[string]*recorder{}
	for _, id := range []string{"c1", "c2", "c3"} {
		rec := &recorder{}
		recs[id] = rec
		m.AddClient(id, rec.send, "test-agent")
	}

	m.Broadcast("upload", map[string]string{"file": "a.png"})

	var sharedID string
	for id, rec := range recs {
		frames := rec.recorded()
		if len(frames) != 1 {
			t.Fatalf("client %s: expected 1 frame, got %d", id, len(frames))
		}
		frame := frames[0]

		if !strings.Contains(frame, "event: upload\n") {
			t.Errorf("client %s: frame missing event line: %q", id, frame)
		}
		if !strings.Contains(frame, `data: {"file":"a.png"}`) {
			t.Errorf("client %s: frame missing data line: %q", id, frame)
		}
		if !strings.HasSuffix(frame, "\n\n") {
			t.Errorf("client %s: frame not terminated by blank line: %q", id, frame)
		}

		idLine := strings.SplitN(frame, "\n", 2)[0]
		if sharedID == "" {
			sharedID = idLine
		} else if idLine != sharedID {
			t.Errorf("client %s: id line %q differs from %q", id, idLine, sharedID)
		}
	}
}

func TestPingSweepRemovesDeadClients(t *testing.T) {
	m := newTestManager(5)
	alive := &recorder{}
	dead := &recorder{fail: true}

	m.AddClient("alive", alive.send, "")
	m.AddClient("dead", dead.send, "")

	m.sweepDead()

	if got := m.ClientCount(); got != 1 {
		t.Errorf("expected 1 client after ping sweep, got %d", got)
	}

	frames := alive.recorded()
	if len(frames) != 1 || frames[0] != PingFrame {
		t.Errorf("expected surviving client to receive ping frame, got %v", frames)
	}
}

func TestInactivitySweepRemovesStaleClients(t *testing.T) {
	m := NewManager(Config{
		MaxClients:       5,
		PingInterval:     time.Hour,
		InactivityWindow: 5 * time.Minute,
		SweepInactive:    true,
	})
	fresh := &recorder{}
	stale := &recorder{}

	m.AddClient("fresh", fresh.send, "")
	m.AddClient("stale", stale.send, "")

	m.mu.Lock()
	m.clients["stale"].lastActivity = time.Now().Add(-10 * time.Minute)
	m.mu.Unlock()

	m.sweepStale()

	m.mu.Lock()
	_, hasFresh := m.clients["fresh"]
	_, hasStale := m.clients["stale"]
	m.mu.Unlock()

	if !hasFresh {
		t.Error("fresh client removed by inactivity sweep")
	}
	if hasStale {
		t.Error("stale client survived inactivity sweep")
	}
}

func TestServeStopsOnContextCancel(t *testing.T) {
	m := NewManager(Config{
		MaxClients:       5,
		PingInterval:     10 * time.Millisecond,
		InactivityWindow: time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Serve(ctx) }()

	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after context cancellation")
	}
}

func TestConcurrentRegistryAccess(t *testing.T) {
	m := newTestManager(50)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("c%d", n)
			rec := &recorder{}
			m.AddClient(id, rec.send, "")
			m.Broadcast("tick", map[string]int{"n": n})
			m.RemoveClient(id)
		}(i)
	}
	wg.Wait()

	if got := m.ClientCount(); got != 0 {
		t.Errorf("expected empty registry after concurrent churn, got %d", got)
	}
}

func TestHandshakeFrame(t *testing.T) {
	frame := HandshakeFrame("abc-123")

	if !strings.HasPrefix(frame, "event: connected\n") {
		t.Errorf("handshake frame missing connected event: %q", frame)
	}
	if !strings.Contains(frame, `"clientId":"abc-123"`) {
		t.Errorf("handshake frame missing client id: %q", frame)
	}
	if strings.Contains(frame, "id:") {
		t.Errorf("handshake frame must not carry a message id: %q", frame)
	}
	if !strings.HasSuffix(frame, "\n\n") {
		t.Errorf("handshake frame not terminated by blank line: %q", frame)
	}
}
