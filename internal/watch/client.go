package watch

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096

	// Outbound frames buffered per connection
	sendBufferSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins for development
		return true
	},
}

// Client represents one observer websocket connection
type Client struct {
	id      string
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	logger  *slog.Logger
	closing int32
	once    sync.Once
}

// newClient creates a client with a fresh connection id
func newClient(hub *Hub, conn *websocket.Conn, logger *slog.Logger) *Client {
	return &Client{
		id:     uuid.New().String(),
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		logger: logger,
	}
}

// ID returns the server-assigned connection id
func (c *Client) ID() string {
	return c.id
}

// trySend queues a frame without blocking. It reports false when the
// buffer is full or the client is closing.
func (c *Client) trySend(data []byte) (ok bool) {
	// close may run between the closing check and the channel send;
	// recover instead of taking a mutex on every frame.
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()

	if atomic.LoadInt32(&c.closing) == 1 {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// close shuts the client down. Safe to call multiple times; only the
// first call takes effect.
func (c *Client) close() {
	c.once.Do(func() {
		atomic.StoreInt32(&c.closing, 1)
		close(c.send)
		if c.conn != nil {
			c.conn.Close()
		}
	})
}

// readPump pumps control frames from the connection into the hub
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("websocket error", "connection_id", c.id, "error", err)
			}
			break
		}

		var frame ControlFrame
		if err := json.Unmarshal(message, &frame); err != nil {
			c.trySend(encodeError("Invalid JSON format"))
			continue
		}

		c.handleControl(&frame)
	}
}

// handleControl dispatches one inbound control frame. Bad frames get an
// error response; the connection stays open.
func (c *Client) handleControl(frame *ControlFrame) {
	switch frame.Type {
	case MessageTypeSubscribe:
		if frame.PlayerID == "" {
			c.trySend(encodeError("playerId required for subscribe"))
			return
		}
		c.hub.Subscribe(c, frame.PlayerID)
		c.trySend(encodeSubscription(MessageTypeSubscribed, frame.PlayerID))

	case MessageTypeUnsubscribe:
		if frame.PlayerID == "" {
			c.trySend(encodeError("playerId required for unsubscribe"))
			return
		}
		c.hub.Unsubscribe(c, frame.PlayerID)
		c.trySend(encodeSubscription(MessageTypeUnsubscribed, frame.PlayerID))

	case MessageTypePing:
		c.trySend(encodePong())

	default:
		c.trySend(encodeError("Unknown message type"))
	}
}

// writePump pumps queued frames to the connection and keeps the link
// alive with pings
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the client
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWS handles observer websocket requests
func ServeWS(hub *Hub, logger *slog.Logger, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := newClient(hub, conn, logger)

	// The connected acknowledgement must be the first frame on the wire,
	// so queue it before the client can match any broadcast.
	client.trySend(encodeConnected(client.id))
	hub.Register(client)

	go client.writePump()
	go client.readPump()

	logger.Debug("new observer connection", "connection_id", client.id)
}
