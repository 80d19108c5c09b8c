// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package web

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/relabs-tech/geofence/internal/geofence"
)

const (
	writeWait  = 5 * time.Second
	clientSend = 16
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// Hub streams geofence events to websocket clients. New clients first get
// the current status, then every event and broker connectivity change.
type Hub struct {
	status func() geofence.RangeStatus
	logger zerolog.Logger

	mu      sync.Mutex
	clients map[*hubClient]struct{}
}

type hubClient struct {
	conn *websocket.Conn
	send chan []byte
}

func NewHub(status func() geofence.RangeStatus, logger zerolog.Logger) *Hub {
	return &Hub{
		status:  status,
		logger:  logger.With().Str("component", "ws_hub").Logger(),
		clients: make(map[*hubClient]struct{}),
	}
}

// OnEvent implements geofence.Observer. Slow clients miss events rather
// than stall the update path.
func (h *Hub) OnEvent(e geofence.Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		h.logger.Error().Err(err).Msg("event JSON marshal error")
		return
	}
	h.broadcast(payload)
}

// OnConnectivity pushes a {"connected": bool} message to every client; it
// is meant for connectivity.Monitor.OnChange.
func (h *Hub) OnConnectivity(connected bool) {
	payload, err := json.Marshal(connectivityMessage{Connected: connected})
	if err != nil {
		h.logger.Error().Err(err).Msg("connectivity JSON marshal error")
		return
	}
	h.broadcast(payload)
}

type connectivityMessage struct {
	Connected bool `json:"connected"`
}

func (h *Hub) broadcast(payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			h.logger.Warn().Str("remote", c.conn.RemoteAddr().String()).Msg("websocket client too slow, message dropped")
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade error")
		return
	}

	c := &hubClient{conn: conn, send: make(chan []byte, clientSend)}

	// snapshot and register under one lock so no event falls in between
	h.mu.Lock()
	initial, err := json.Marshal(geofence.Event{Status: h.status()})
	if err == nil {
		c.send <- initial
		h.clients[c] = struct{}{}
	}
	h.mu.Unlock()
	if err != nil {
		h.logger.Error().Err(err).Msg("status JSON marshal error")
		conn.Close()
		return
	}

	go c.writeLoop()
	h.readLoop(c)
}

// readLoop discards client messages and unregisters the client on close.
func (h *Hub) readLoop(c *hubClient) {
	defer func() {
		h.mu.Lock()
		delete(h.clients, c)
		close(c.send)
		h.mu.Unlock()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn().Err(err).Msg("websocket error")
			}
			return
		}
	}
}

func (c *hubClient) writeLoop() {
	defer c.conn.Close()

	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
}
