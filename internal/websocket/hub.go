// Meet Tracker - Presence Session Tracking for Recurring Meeting Rooms
// Copyright 2026 Sarmad Makhdoom
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sarmadmakhdoom/meet-tracker-sub000

// Package websocket pushes live session-lifecycle updates to connected
// dashboard clients. The hub consumes the tracker's in-process event bus
// through the Relay, so the lifecycle controller never blocks on a slow
// client.
package websocket

import (
	"context"
	"sync"

	"github.com/sarmadmakhdoom/meet-tracker-sub000/internal/logging"
	"github.com/sarmadmakhdoom/meet-tracker-sub000/internal/metrics"
)

// Message types for client communication.
const (
	MessageTypeSessionEvent = "session_event"
	MessageTypePing         = "ping"
	MessageTypePong         = "pong"
)

// Message is one frame exchanged with a client.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Hub maintains the set of connected clients and broadcasts messages to
// them. It implements suture.Service via Serve.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Broadcast queues a message for every connected client. Non-blocking:
// when the hub's queue is full the message is dropped, because a live
// view that lags is worth less than a blocked publisher.
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		logging.Warn().Str("type", msg.Type).Msg("websocket broadcast queue full, dropping message")
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Serve runs the hub until the context is canceled, then closes every
// client. Suitable for suture supervision.
func (h *Hub) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return ctx.Err()
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			metrics.WebsocketClients.Set(float64(total))
			logging.Info().Int("total_clients", total).Msg("websocket client connected")
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			metrics.WebsocketClients.Set(float64(total))
			logging.Info().Int("total_clients", total).Msg("websocket client disconnected")
		case msg := <-h.broadcast:
			h.broadcastToClients(msg)
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (h *Hub) String() string {
	return "websocket-hub"
}

func (h *Hub) broadcastToClients(msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		select {
		case client.send <- msg:
		default:
			// Slow client: skip this frame rather than stall the hub.
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
	metrics.WebsocketClients.Set(0)
}
