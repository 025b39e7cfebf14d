// internal/hub/hub.go
package hub

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Hub multiplexes messages to connected observers. It is the single source
// of truth for which client is connected and which channels each client is
// subscribed to. One Hub instance is constructed at startup and handed to
// the websocket handler, the scheduler, and the bus subscriber.
//
// Registry mutation is mutually exclusive with broadcasts: a broadcast
// takes a snapshot of its targets under the read lock and delivers after
// releasing it, so delivery to one slow client never blocks the registry
// or delivery to other clients.
type Hub struct {
	mu            sync.RWMutex
	clients       map[string]*Client
	subscriptions map[string]map[string]struct{}
	logger        *zap.Logger
}

// New creates an empty hub
func New(logger *zap.Logger) *Hub {
	return &Hub{
		clients:       make(map[string]*Client),
		subscriptions: make(map[string]map[string]struct{}),
		logger:        logger,
	}
}

// Register adds a client with no subscriptions
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.clients[client.ID] = client
	h.mu.Unlock()

	h.logger.Info("Client connected",
		zap.String("client_id", client.ID),
		zap.String("remote_addr", client.RemoteAddr),
	)
}

// Unregister removes a client and drops it from every channel's subscriber
// set. Unregistering an unknown id is a no-op, so it is safe to call from
// any goroutine any number of times.
func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	client, ok := h.clients[clientID]
	if ok {
		delete(h.clients, clientID)
		for _, subscribers := range h.subscriptions {
			delete(subscribers, clientID)
		}
	}
	h.mu.Unlock()

	if ok {
		client.Close()
		h.logger.Info("Client disconnected", zap.String("client_id", clientID))
	}
}

// Subscribe adds the client to each named channel, creating channels
// lazily. Any string is a valid channel name. Subscribing an unknown
// client is a no-op.
func (h *Hub) Subscribe(clientID string, channels []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[clientID]; !ok {
		return
	}

	for _, channel := range channels {
		subscribers, ok := h.subscriptions[channel]
		if !ok {
			subscribers = make(map[string]struct{})
			h.subscriptions[channel] = subscribers
		}
		subscribers[clientID] = struct{}{}
	}
}

// Unsubscribe removes the client from each named channel
func (h *Hub) Unsubscribe(clientID string, channels []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, channel := range channels {
		if subscribers, ok := h.subscriptions[channel]; ok {
			delete(subscribers, clientID)
		}
	}
}

// SendTo delivers a message to exactly one client. Sending to a client
// that has already disconnected is a silent no-op.
func (h *Hub) SendTo(clientID string, message *Message) {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("Failed to marshal message", zap.Error(err), zap.String("type", message.Type))
		return
	}

	h.mu.RLock()
	client, ok := h.clients[clientID]
	h.mu.RUnlock()

	if !ok {
		return
	}

	h.deliver(client, data)
}

// Broadcast delivers a message to every subscriber of the channel,
// best-effort and in unspecified order.
func (h *Hub) Broadcast(channel string, message *Message) {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("Failed to marshal broadcast message", zap.Error(err), zap.String("type", message.Type))
		return
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.subscriptions[channel]))
	for clientID := range h.subscriptions[channel] {
		if client, ok := h.clients[clientID]; ok {
			targets = append(targets, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range targets {
		h.deliver(client, data)
	}
}

// BroadcastAll delivers a message to every connected client
func (h *Hub) BroadcastAll(message *Message) {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("Failed to marshal broadcast message", zap.Error(err), zap.String("type", message.Type))
		return
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	for _, client := range targets {
		h.deliver(client, data)
	}
}

// deliver enqueues a frame for the client's write pump. A full send queue
// means the client is not draining; it is disconnected so the broadcast
// never stalls on it.
func (h *Hub) deliver(client *Client, data []byte) {
	select {
	case client.Send <- data:
	default:
		h.logger.Warn("Client send queue full, disconnecting",
			zap.String("client_id", client.ID),
		)
		h.Unregister(client.ID)
	}
}

// Stats reports current connection counts
func (h *Hub) Stats() *Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := &Stats{
		TotalConnections:   len(h.clients),
		ChannelSubscribers: make(map[string]int, len(h.subscriptions)),
	}
	for channel, subscribers := range h.subscriptions {
		stats.ChannelSubscribers[channel] = len(subscribers)
	}
	return stats
}

// Stats represents hub connection statistics
type Stats struct {
	TotalConnections   int            `json:"total_connections"`
	ChannelSubscribers map[string]int `json:"channel_subscribers"`
}
