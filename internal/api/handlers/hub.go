package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wonny/sp500scope/backend/internal/contracts"
	"github.com/wonny/sp500scope/backend/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// StatusHub pushes refresh state changes to websocket clients.
// A new client first receives the current state.
type StatusHub struct {
	current    func() contracts.RefreshState
	clients    map[*client]struct{}
	register   chan *client
	unregister chan *client
	broadcast  chan contracts.RefreshState
	done       chan struct{}
	logger     *logger.Logger
}

type client struct {
	hub  *StatusHub
	conn *websocket.Conn
	send chan contracts.RefreshState
}

// NewStatusHub creates a hub; current supplies the state sent on connect
func NewStatusHub(current func() contracts.RefreshState, log *logger.Logger) *StatusHub {
	return &StatusHub{
		current:    current,
		clients:    make(map[*client]struct{}),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan contracts.RefreshState, 64),
		done:       make(chan struct{}),
		logger:     log.WithField("module", "ws"),
	}
}

// Run is the hub loop; it owns the client set
func (h *StatusHub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			return

		case c := <-h.register:
			h.clients[c] = struct{}{}
			c.send <- h.current()

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}

		case state := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- state:
				default:
					// slow consumer
					delete(h.clients, c)
					close(c.send)
				}
			}
		}
	}
}

// Publish queues a state for broadcast and never blocks the caller.
// It is registered as the coordinator's state observer.
func (h *StatusHub) Publish(state contracts.RefreshState) {
	select {
	case h.broadcast <- state:
	default:
		h.logger.Debug("Status broadcast dropped, hub busy")
	}
}

// ServeWS upgrades the request and registers the client
// GET /ws/refresh
func (h *StatusHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("Failed to upgrade websocket")
		return
	}

	c := &client{hub: h, conn: conn, send: make(chan contracts.RefreshState, 16)}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// readPump only watches the connection; clients do not send commands
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.WithError(err).Debug("WebSocket closed")
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case state, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(state); err != nil {
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
