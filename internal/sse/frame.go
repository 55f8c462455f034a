// Shotcaster - Self-Hosted Upload and Screenshot Manager
// Copyright 2026 Shotcaster Contributors
// SPDX-License-Identifier: MIT
// https://github.com/shotcaster/shotcaster

package sse

import (
	"fmt"

	"github.com/goccy/go-json"
)

// PingFrame is the comment-only heartbeat frame. Comment lines carry no
// id/event/data and are ignored by EventSource clients.
const PingFrame = ": ping\n\n"

// eventFrame formats one text-event-stream frame:
//
//	id: <messageID>
//	event: <eventName>
//	data: <JSON payload>
//
// terminated by a blank line.
func eventFrame(id uint64, event string, payload []byte) string {
	return fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", id, event, payload)
}

// HandshakeFrame formats the initial `connected` event sent to a client
// before any broadcast traffic.
func HandshakeFrame(clientID string) string {
	payload, _ := json.Marshal(map[string]string{
		"clientId": clientID,
		"message":  "connected to event stream",
	})
	return fmt.Sprintf("event: connected\ndata: %s\n\n", payload)
}
