package hud

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 20 * time.Second
	sendBuf    = 8
)

// hub tracks connected HUD clients and fans broadcast frames out to them,
// dropping slow clients rather than blocking, grounded on
// nikoskalogridis-streamerbrainz's state_ws.go Hub.
type hub struct {
	logger *slog.Logger

	register   chan *client
	unregister chan *client
	broadcast  chan []byte

	mu      sync.Mutex
	clients map[*client]struct{}

	expandedClients atomic.Int32
}

func newHub(logger *slog.Logger) *hub {
	return &hub{
		logger:     logger,
		register:   make(chan *client, 16),
		unregister: make(chan *client, 16),
		broadcast:  make(chan []byte, 64),
		clients:    make(map[*client]struct{}),
	}
}

func (h *hub) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("hud client connected", "remote_addr", c.remoteAddr, "clients", n)

		case c := <-h.unregister:
			h.remove(c, "unregister")

		case msg := <-h.broadcast:
			var slow []*client
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					slow = append(slow, c)
				}
			}
			h.mu.Unlock()
			for _, c := range slow {
				h.remove(c, "slow_client")
			}
		}
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if c.conn != nil {
			_ = c.conn.Close()
		}
		safeClose(c.send)
		delete(h.clients, c)
	}
}

func (h *hub) remove(c *client, reason string) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
	}
	n := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}
	if c.expanded.Load() {
		h.expandedClients.Add(-1)
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
	safeClose(c.send)
	h.logger.Info("hud client disconnected", "remote_addr", c.remoteAddr, "reason", reason, "clients", n)
}

func safeClose(ch chan []byte) {
	defer func() { _ = recover() }()
	close(ch)
}

// broadcastBytes enqueues a pre-serialized frame. Never blocks; drops on a
// full hub queue, per §5's "frame must not stall" rule.
func (h *hub) broadcastBytes(msg []byte) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("hud hub broadcast queue full, dropping message")
	}
}

func (h *hub) anyExpanded() bool {
	return h.expandedClients.Load() > 0
}

func (h *hub) clientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// client is one connected HUD viewer.
type client struct {
	hub  *hub
	conn *websocket.Conn
	send chan []byte

	remoteAddr string
	logger     *slog.Logger

	expanded       atomic.Bool
	onModeChange   func(expanded bool)
	onCameraToggle func(enabled bool)
}

func newClient(h *hub, conn *websocket.Conn, remoteAddr string, logger *slog.Logger) *client {
	return &client{
		hub:        h,
		conn:       conn,
		send:       make(chan []byte, sendBuf),
		remoteAddr: remoteAddr,
		logger:     logger,
	}
}

func (c *client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					c.logger.Info("hud writePump exiting", "remote_addr", c.remoteAddr, "error", err)
				}
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

func (c *client) readPump(ctx context.Context) {
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.hub != nil {
				c.hub.unregister <- c
			}
			return
		}
		c.handleInbound(data)
	}
}

func (c *client) handleInbound(data []byte) {
	var env inboundEnvelope
	if err := unmarshalQuiet(data, &env); err != nil {
		c.logger.Warn("hud client sent malformed message", "remote_addr", c.remoteAddr, "error", ErrHudClientError)
		if c.hub != nil {
			c.hub.unregister <- c
		}
		return
	}
	switch env.Type {
	case "mode":
		var m modeMsg
		if unmarshalQuiet(data, &m) != nil {
			return
		}
		was := c.expanded.Swap(m.Expanded)
		if was != m.Expanded {
			if m.Expanded {
				c.hub.expandedClients.Add(1)
			} else {
				c.hub.expandedClients.Add(-1)
			}
		}
		if c.onModeChange != nil {
			c.onModeChange(m.Expanded)
		}
	case "camera_enabled":
		var m cameraEnabledMsg
		if unmarshalQuiet(data, &m) != nil {
			return
		}
		if c.onCameraToggle != nil {
			c.onCameraToggle(m.Enabled)
		}
	}
}
