// Shotcaster - Self-Hosted Upload and Screenshot Manager
// Copyright 2026 Shotcaster Contributors
// SPDX-License-Identifier: MIT
// https://github.com/shotcaster/shotcaster

package api

import (
	"io"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/shotcaster/shotcaster/internal/logging"
	"github.com/shotcaster/shotcaster/internal/sse"
)

// Events is the SSE endpoint. It registers the connection with the broadcast
// manager and blocks until the client disconnects; all frames after the
// handshake are written by the manager through the send capability.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "streaming unsupported", nil)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	clientID := uuid.New().String()

	// The manager's sweep goroutine and this request goroutine both write;
	// the mutex keeps frames from interleaving.
	var writeMu sync.Mutex
	send := func(frame string) error {
		writeMu.Lock()
		defer writeMu.Unlock()

		if _, err := io.WriteString(w, frame); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	if err := send(sse.HandshakeFrame(clientID)); err != nil {
		logging.Debug().Str("client_id", clientID).Err(err).Msg("sse handshake failed")
		return
	}

	h.broadcast.AddClient(clientID, send, r.UserAgent())
	defer h.broadcast.RemoveClient(clientID)

	logging.Info().Str("client_id", clientID).Str("remote", r.RemoteAddr).Msg("sse client connected")

	<-r.Context().Done()

	logging.Info().Str("client_id", clientID).Msg("sse client disconnected")
}
