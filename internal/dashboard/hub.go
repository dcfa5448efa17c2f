// Package dashboard fans engine output out to connected websocket clients,
// adapted from the teacher's websocket hub/client/handler trio and
// repurposed to carry aggregate events, alert events, and metrics
// snapshots instead of telemetry diagnoses.
package dashboard

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/fluxline/pulsecore/internal/events"
	"github.com/fluxline/pulsecore/internal/metrics"
)

// Message is what goes out over the wire to a dashboard client.
type Message struct {
	Type      string        `json:"type"`
	Channel   string        `json:"channel,omitempty"`
	Timestamp string        `json:"timestamp"`
	Data      any           `json:"data,omitempty"`
	Error     *ErrorDetails `json:"error,omitempty"`
}

// ErrorDetails describes a protocol-level error sent to a client.
type ErrorDetails struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Channel names clients subscribe to.
const (
	ChannelEvent   = "event"
	ChannelAgg     = "agg"
	ChannelAlert   = "alert"
	ChannelMetrics = "metrics"
)

// Hub maintains active websocket connections and fans broadcasts out to
// their channel subscriptions.
type Hub struct {
	clients       map[*Client]bool
	broadcast     chan *Message
	register      chan *Client
	unregister    chan *Client
	subscriptions map[string]map[*Client]bool

	mu sync.RWMutex
}

// NewHub returns an empty Hub.
func NewHub() *Hub {
	return &Hub{
		clients:       make(map[*Client]bool),
		broadcast:     make(chan *Message, 256),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		subscriptions: make(map[string]map[*Client]bool),
	}
}

// Run drives the hub's main loop until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				for channel := range h.subscriptions {
					delete(h.subscriptions[channel], client)
				}
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.deliver(message)

		case <-ticker.C:
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- &Message{Type: "ping", Timestamp: time.Now().UTC().Format(time.RFC3339Nano)}:
				default:
				}
			}
			h.mu.RUnlock()

		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
			}
			h.clients = make(map[*Client]bool)
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) deliver(message *Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	subscribers, ok := h.subscriptions[message.Channel]
	if !ok {
		return
	}
	for client := range subscribers {
		select {
		case client.send <- message:
		default:
			log.Printf("dashboard: client %s send buffer full, dropping %s message", client.id, message.Channel)
		}
	}
}

// Subscribe adds client to the given channels.
func (h *Hub) Subscribe(client *Client, channels []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range channels {
		if h.subscriptions[ch] == nil {
			h.subscriptions[ch] = make(map[*Client]bool)
		}
		h.subscriptions[ch][client] = true
	}
}

// Unsubscribe removes client from the given channels.
func (h *Hub) Unsubscribe(client *Client, channels []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range channels {
		delete(h.subscriptions[ch], client)
	}
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) enqueue(msg *Message) {
	select {
	case h.broadcast <- msg:
	default:
		log.Printf("dashboard: broadcast buffer full, dropping %s message", msg.Channel)
	}
}

// BroadcastEvent implements metrics.Sink: raw events go to the event
// channel, aggregate events to the agg channel, alert events to the alert
// channel.
func (h *Hub) BroadcastEvent(e events.Event) {
	channel := ChannelEvent
	switch e.EventType {
	case events.TypeAggregated:
		channel = ChannelAgg
	case events.TypeAlert:
		channel = ChannelAlert
	}
	h.enqueue(&Message{Type: "update", Channel: channel, Timestamp: time.Now().UTC().Format(time.RFC3339Nano), Data: e})
}

// BroadcastSnapshot implements metrics.Sink.
func (h *Hub) BroadcastSnapshot(snap metrics.Snapshot) {
	h.enqueue(&Message{Type: "update", Channel: ChannelMetrics, Timestamp: time.Now().UTC().Format(time.RFC3339Nano), Data: snap})
}

// Close implements metrics.Sink. The hub's own shutdown is driven by Run's
// ctx instead, so Close is a no-op kept to satisfy the interface.
func (h *Hub) Close() {}
