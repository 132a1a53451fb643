// Package preview renders the watched document in an ordinary browser. A
// frame page embeds the virtual root and reloads it when the hub broadcasts
// over a websocket.
package preview

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"watchme/internal/logging"

	"github.com/gorilla/websocket"
)

const (
	writeTimeout     = 10 * time.Second
	clientSendBuffer = 4
)

// ErrNoClients is returned by Reload when no browser is connected.
var ErrNoClients = errors.New("no preview clients connected")

type reloadMessage struct {
	Type string    `json:"type"`
	At   time.Time `json:"at"`
}

type client struct {
	conn *websocket.Conn
	send chan reloadMessage
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.send)
	})
}

// Hub tracks connected preview frames and implements the view handle.
type Hub struct {
	mutex    sync.Mutex
	clients  map[*client]struct{}
	closed   bool
	logger   *logging.Logger
	upgrader websocket.Upgrader
}

func NewHub(logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Hub{
		clients: make(map[*client]struct{}),
		logger:  logger.Component("preview"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     sameOrigin,
		},
	}
}

// Reload asks every connected frame to reload the document.
func (h *Hub) Reload() error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if len(h.clients) == 0 {
		return ErrNoClients
	}
	message := reloadMessage{Type: "reload", At: time.Now().UTC()}
	for c := range h.clients {
		select {
		case c.send <- message:
		default:
			// A reload is already pending for this client.
		}
	}
	return nil
}

// Clients reports the number of connected frames.
func (h *Hub) Clients() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients)
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mutex.Lock()
	clients := h.clients
	h.clients = make(map[*client]struct{})
	h.closed = true
	h.mutex.Unlock()

	for c := range clients {
		c.close()
	}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	c := &client{conn: conn, send: make(chan reloadMessage, clientSendBuffer)}
	if !h.register(c) {
		return
	}
	defer h.unregister(c)

	go h.writeLoop(c)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) register(c *client) bool {
	h.mutex.Lock()
	if h.closed {
		h.mutex.Unlock()
		return false
	}
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mutex.Unlock()

	h.logger.Debug("preview client connected", map[string]string{
		"remote":  c.conn.RemoteAddr().String(),
		"clients": strconv.Itoa(count),
	})
	return true
}

func (h *Hub) unregister(c *client) {
	h.mutex.Lock()
	delete(h.clients, c)
	h.mutex.Unlock()
	c.close()
}

func (h *Hub) writeLoop(c *client) {
	for message := range c.send {
		if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
			return
		}
		if err := c.conn.WriteJSON(message); err != nil {
			h.logger.Debug("preview write failed", map[string]string{
				"error": err.Error(),
			})
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
		time.Now().Add(time.Second))
}

func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return parsed.Host == r.Host
}
