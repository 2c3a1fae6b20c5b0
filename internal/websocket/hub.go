// Tripstream - Realtime Sync for Legacy Trip-Approval Workflows
// Copyright 2026 Relaywire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relaywire/tripstream

// Package websocket implements the realtime broadcaster: a hub fanning trip
// events out to every connected client over gorilla/websocket.
package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/relaywire/tripstream/internal/logging"
	"github.com/relaywire/tripstream/internal/metrics"
)

// Control message types exchanged with clients alongside trip events.
const (
	MessageTypePing = "ping"
	MessageTypePong = "pong"
)

// Message is the wire envelope for every event on the channel. Type is either
// a control type or a trip event name (trip:created, trip:updated, trip:bulk);
// Data carries the normalized record or record array.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Hub maintains the set of active clients and fans broadcast messages out to
// all of them. One hub instance serves the whole process.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a hub. Run it with Serve before registering clients.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// Serve runs the hub loop until ctx is canceled, then closes every client and
// returns ctx.Err(). Implements suture.Service.
//
// Lifecycle events are drained before broadcasts so the client set is always
// settled when a message fans out; Go's select picks randomly between ready
// channels, which would otherwise interleave them unpredictably.
func (h *Hub) Serve(ctx context.Context) error {
	for {
		select {
		case client := <-h.Register:
			h.addClient(client)
			continue
		case client := <-h.Unregister:
			h.removeClient(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.closeAllClients()
			return ctx.Err()
		case client := <-h.Register:
			h.addClient(client)
		case client := <-h.Unregister:
			h.removeClient(client)
		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

// Publish queues one event for delivery to every connected client. It
// implements the repository's EventSink. A full broadcast buffer drops the
// message rather than blocking a mutation handler.
func (h *Hub) Publish(event string, data any) {
	select {
	case h.broadcast <- Message{Type: event, Data: data}:
		metrics.WSMessagesSent.Inc()
	default:
		metrics.WSMessagesDropped.Inc()
		logging.Warn().Str("event", event).Msg("broadcast buffer full, dropping event")
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	h.mu.Unlock()
	metrics.WSConnections.Inc()
	logging.Info().Int("total_clients", h.ClientCount()).Msg("websocket client connected")
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
		metrics.WSConnections.Dec()
	}
	h.mu.Unlock()
	logging.Info().Int("total_clients", h.ClientCount()).Msg("websocket client disconnected")
}

// broadcastToClients delivers a message to every client in id order. A client
// whose send buffer is full is dropped from the hub; its pumps shut down when
// the channel closes.
func (h *Hub) broadcastToClients(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := sortedClients(h.clients)

	var toRemove []*Client
	for _, client := range clients {
		select {
		case client.send <- message:
		default:
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		close(client.send)
		delete(h.clients, client)
		metrics.WSConnections.Dec()
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range sortedClients(h.clients) {
		close(client.send)
		delete(h.clients, client)
		metrics.WSConnections.Dec()
	}
	logging.Info().Msg("closed all websocket clients during shutdown")
}

// sortedClients returns the client set ordered by id so fan-out and shutdown
// order is reproducible.
func sortedClients(set map[*Client]bool) []*Client {
	clients := make([]*Client, 0, len(set))
	for client := range set {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})
	return clients
}
