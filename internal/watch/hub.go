package watch

import (
	"log/slog"
	"sync"

	"github.com/snake-game/backend/internal/domain"
	"github.com/snake-game/backend/internal/metrics"
)

// Hub fans session events out to observer connections. Join and leave
// events are announced to every connection; only update events honor the
// subscription filter. That asymmetry is part of the protocol: new and
// departing players are global news, state updates are opt-in.
type Hub struct {
	registry *Registry
	logger   *slog.Logger
	metrics  *metrics.Metrics

	mu      sync.Mutex
	stopped bool
}

// NewHub creates a hub with an empty registry
func NewHub(logger *slog.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		registry: NewRegistry(),
		logger:   logger,
		metrics:  m,
	}
}

// Register adds a connection to the hub. During shutdown the connection
// is closed instead.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		c.close()
		return
	}
	h.registry.Register(c)
	h.mu.Unlock()

	h.metrics.ObserverConnections.Inc()
	h.logger.Debug("client registered", "connection_id", c.id)
}

// Unregister drops a connection and all its subscriptions. Idempotent:
// only the call that actually removes the client closes it.
func (h *Hub) Unregister(c *Client) {
	if removed := h.registry.Unregister(c.id); removed != nil {
		removed.close()
		h.metrics.ObserverConnections.Dec()
		h.logger.Debug("client unregistered", "connection_id", c.id)
	}
}

// Subscribe adds a player watch for the connection
func (h *Hub) Subscribe(c *Client, playerID string) {
	h.registry.Subscribe(c.id, playerID)
	h.logger.Debug("client subscribed", "connection_id", c.id, "player_id", playerID)
}

// Unsubscribe removes a player watch from the connection
func (h *Hub) Unsubscribe(c *Client, playerID string) {
	h.registry.Unsubscribe(c.id, playerID)
	h.logger.Debug("client unsubscribed", "connection_id", c.id, "player_id", playerID)
}

// Publish delivers one event to every matching connection. Delivery is
// best-effort: a connection that cannot take the frame is dropped and the
// rest still receive it.
func (h *Hub) Publish(event domain.Event) {
	data, err := EncodeEvent(event)
	if err != nil {
		h.logger.Error("failed to encode event", "type", event.Type, "session_id", event.SessionID, "error", err)
		return
	}
	h.metrics.EventsPublished.WithLabelValues(string(event.Type)).Inc()

	var recipients []*Client
	switch event.Type {
	case domain.EventPlayerUpdate:
		recipients = h.registry.MatchingConnections(event.SessionID)
	default:
		recipients = h.registry.AllConnections()
	}

	for _, c := range recipients {
		if c.trySend(data) {
			h.metrics.EventsDelivered.Inc()
			continue
		}
		h.logger.Warn("dropping observer connection", "connection_id", c.id, "event_type", event.Type)
		h.metrics.DeliveryFailures.Inc()
		h.Unregister(c)
	}
}

// Stop closes every observer connection and clears the registry. New
// registrations after Stop are refused. Cleanup runs synchronously so
// callers can rely on the connections being gone when Stop returns.
func (h *Hub) Stop() {
	h.mu.Lock()
	h.stopped = true
	clients := h.registry.AllConnections()
	h.mu.Unlock()

	for _, c := range clients {
		h.Unregister(c)
	}
	h.logger.Info("watch hub stopped", "connections_closed", len(clients))
}

// GetTotalConnections returns the number of connected observers
func (h *Hub) GetTotalConnections() int {
	return h.registry.Count()
}
