// Package notify fans activity out to websocket clients and keeps the most
// recent notifications for clients that connect later.
package notify

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/pkordes/vehicle-requests/backend/internal/domain"
)

const (
	// RecentLimit is how many notifications the hub remembers.
	RecentLimit = 5

	sendBuffer = 32
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var errHubClosed = errors.New("notify: hub closed")

// MessageType tags a websocket message.
type MessageType string

const (
	// MessageRecent is the first message a client receives: the backlog.
	MessageRecent       MessageType = "recent"
	MessageNotification MessageType = "notification"
	// MessageChange carries one document delta of a live collection.
	MessageChange MessageType = "change"
)

// Message is the JSON envelope written to websocket clients.
type Message struct {
	Type          MessageType           `json:"type"`
	Notification  *domain.Notification  `json:"notification,omitempty"`
	Notifications []domain.Notification `json:"notifications,omitempty"`
	Collection    string                `json:"collection,omitempty"`
	Kind          string                `json:"kind,omitempty"`
	Key           string                `json:"key,omitempty"`
	Document      any                   `json:"document,omitempty"`
}

// ClientRecorder observes websocket client churn.
type ClientRecorder interface {
	ClientConnected()
	ClientDisconnected()
}

// Options configures a Hub.
type Options struct {
	Logger   *slog.Logger
	Recorder ClientRecorder
	// AllowedOrigins restricts websocket upgrades by Origin header. Empty
	// allows any origin.
	AllowedOrigins []string
	Now            func() time.Time
}

// Hub owns the websocket clients and the recent-notification ring.
type Hub struct {
	logger   *slog.Logger
	recorder ClientRecorder
	upgrader websocket.Upgrader
	now      func() time.Time

	mu      sync.Mutex
	recent  []domain.Notification // newest first
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub returns a hub with no clients.
func NewHub(opts Options) *Hub {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Recorder == nil {
		opts.Recorder = noopRecorder{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	allowed := slices.Clone(opts.AllowedOrigins)
	return &Hub{
		logger:   opts.Logger,
		recorder: opts.Recorder,
		now:      opts.Now,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowed) == 0 || origin == "" || slices.Contains(allowed, origin)
			},
		},
		clients: make(map[*client]struct{}),
	}
}

// Publish records n and pushes it to every client. A zero ID or Timestamp
// is filled in. The stored notification is returned.
func (h *Hub) Publish(n domain.Notification) domain.Notification {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = h.now()
	}

	h.mu.Lock()
	h.recent = slices.Insert(h.recent, 0, n)
	if len(h.recent) > RecentLimit {
		h.recent = h.recent[:RecentLimit]
	}
	h.mu.Unlock()

	h.Broadcast(Message{Type: MessageNotification, Notification: &n})
	return n
}

// Broadcast writes msg to every client without blocking. A client whose
// buffer is full is disconnected.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("notify: marshal message", "type", msg.Type, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("notify: dropping slow websocket client", "remote", c.remote())
			h.remove(c)
		}
	}
}

// Recent returns the remembered notifications, newest first.
func (h *Hub) Recent() []domain.Notification {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.recent)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeWS upgrades the connection and streams messages until the client
// goes away. The first message is the recent backlog.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		h.logger.Warn("notify: websocket upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	if err := h.register(c); err != nil {
		h.logger.Error("notify: register client", "error", err)
		_ = conn.Close()
		return
	}

	go h.writePump(c)
	h.readPump(c)
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.remove(c)
	}
}

func (h *Hub) register(c *client) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return errHubClosed
	}

	backlog, err := json.Marshal(Message{Type: MessageRecent, Notifications: slices.Clone(h.recent)})
	if err != nil {
		return err
	}
	c.send <- backlog
	h.clients[c] = struct{}{}
	h.recorder.ClientConnected()
	return nil
}

// remove must be called with h.mu held.
func (h *Hub) remove(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.recorder.ClientDisconnected()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remove(c)
}

// readPump only watches for the client closing; clients never send data.
func (h *Hub) readPump(c *client) {
	defer h.unregister(c)

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("notify: websocket closed", "remote", c.remote(), "error", err)
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) remote() string {
	if c.conn == nil {
		return ""
	}
	return c.conn.RemoteAddr().String()
}

type noopRecorder struct{}

func (noopRecorder) ClientConnected()    {}
func (noopRecorder) ClientDisconnected() {}
