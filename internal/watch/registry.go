package watch

import "sync"

// connection pairs an observer client with the set of player ids it is
// watching. An empty set means the connection receives every event.
type connection struct {
	client *Client
	subs   map[string]struct{}
}

// Registry tracks observer connections and their subscriptions. It is
// shared between the gateway's receive loops and the broadcast path, so
// every method takes the lock; iteration for fan-out goes through the
// snapshot methods, never the live maps.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*connection
}

// NewRegistry creates an empty subscription registry
func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]*connection),
	}
}

// Register adds a connection with an empty subscription set
func (r *Registry) Register(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[c.id] = &connection{
		client: c,
		subs:   make(map[string]struct{}),
	}
}

// Unregister removes a connection and all its subscriptions, returning the
// removed client. Unregistering an unknown or already-removed id is a
// no-op and returns nil.
func (r *Registry) Unregister(connectionID string) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.conns[connectionID]
	if !ok {
		return nil
	}
	delete(r.conns, connectionID)
	return conn.client
}

// Subscribe adds a player id to the connection's watch set. Subscribing on
// an unknown connection is a no-op.
func (r *Registry) Subscribe(connectionID, playerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if conn, ok := r.conns[connectionID]; ok {
		conn.subs[playerID] = struct{}{}
	}
}

// Unsubscribe removes a player id from the connection's watch set
func (r *Registry) Unsubscribe(connectionID, playerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if conn, ok := r.conns[connectionID]; ok {
		delete(conn.subs, playerID)
	}
}

// matches reports whether a subscription set should receive events for
// playerID. The empty set is the broadcast-all sentinel: it matches every
// player, it does not mean "nothing".
func matches(subs map[string]struct{}, playerID string) bool {
	if len(subs) == 0 {
		return true
	}
	_, ok := subs[playerID]
	return ok
}

// MatchingConnections returns a snapshot of the clients that should
// receive events for the given player
func (r *Registry) MatchingConnections(playerID string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	clients := make([]*Client, 0, len(r.conns))
	for _, conn := range r.conns {
		if matches(conn.subs, playerID) {
			clients = append(clients, conn.client)
		}
	}
	return clients
}

// AllConnections returns a snapshot of every registered client
func (r *Registry) AllConnections() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	clients := make([]*Client, 0, len(r.conns))
	for _, conn := range r.conns {
		clients = append(clients, conn.client)
	}
	return clients
}

// Subscriptions returns a copy of the connection's watch set, nil if the
// connection is unknown
func (r *Registry) Subscriptions(connectionID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[connectionID]
	if !ok {
		return nil
	}
	subs := make([]string, 0, len(conn.subs))
	for id := range conn.subs {
		subs = append(subs, id)
	}
	return subs
}

// Count returns the number of registered connections
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
