package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-bridge/internal/control"
	"github.com/nerrad567/gray-logic-bridge/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-bridge/internal/infrastructure/logging"
)

// WebSocket message types.
const (
	WSTypeSubscribe = "subscribe"
	WSTypePing      = "ping"
	WSTypePong      = "pong"
	WSTypeEvent     = "event"
	WSTypeResponse  = "response"
	WSTypeError     = "error"

	wsSendBufferSize = 256

	defaultWSPath         = "/ws"
	defaultWSPingInterval = 30 * time.Second
	defaultWSPongWait     = 10 * time.Second
)

// WSMessage is a message sent to a WebSocket client.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// wsRequest is a message received from a client.
type wsRequest struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

// Hub fans events out to WebSocket clients. It is the command service's
// notifier; a client only receives the channels it subscribed to, such as
// control.ChannelStateChanged and control.ChannelSceneRun.
type Hub struct {
	logger  *logging.Logger
	clients map[*WSClient]struct{}
	mu      sync.RWMutex
}

// WSClient is one connected WebSocket client.
type WSClient struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	channels map[string]struct{}
	mu       sync.RWMutex

	// actor is the token subject, empty when auth is disabled.
	actor string
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origin checking is handled by CORS middleware
		return true
	},
}

// NewHub creates a hub. Call Run to tie its lifetime to a context.
func NewHub(logger *logging.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		client.conn.Close()
		delete(h.clients, client)
	}
}

func (h *Hub) register(client *WSClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", n, "actor", client.actor)
}

// unregister removes client. Only the call that removes it closes its
// send channel.
func (h *Hub) unregister(client *WSClient) {
	h.mu.Lock()
	_, ok := h.clients[client]
	delete(h.clients, client)
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		close(client.send)
	}
	h.logger.Debug("websocket client disconnected", "clients", n)
}

// Broadcast sends payload as an event to every client subscribed to
// channel. Slow clients whose buffer is full miss the event.
func (h *Hub) Broadcast(channel string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error("failed to marshal broadcast message", "channel", channel, "error", err)
		return
	}

	h.mu.RLock()
	clients := make([]*WSClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		if client.subscribed(channel) {
			client.trySend(data)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// handleWebSocket upgrades the request. Authentication has already
// happened in authMiddleware.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &WSClient{
		hub:      s.hub,
		conn:     conn,
		send:     make(chan []byte, wsSendBufferSize),
		channels: make(map[string]struct{}),
		actor:    control.ActorFrom(r.Context()),
	}
	s.hub.register(client)

	pingInterval, pongWait := wsTimings(s.wsCfg)
	go client.writePump(pingInterval, pongWait)
	go client.readPump(int64(s.wsCfg.MaxMessageSize), pingInterval+pongWait)
}

func (s *Server) wsPath() string {
	if s.wsCfg.Path == "" {
		return defaultWSPath
	}
	return s.wsCfg.Path
}

// wsTimings returns the ping interval and pong wait, defaulting unset values.
func wsTimings(cfg config.WebSocketConfig) (pingInterval, pongWait time.Duration) {
	pingInterval = time.Duration(cfg.PingInterval) * time.Second
	if pingInterval <= 0 {
		pingInterval = defaultWSPingInterval
	}
	pongWait = time.Duration(cfg.PongTimeout) * time.Second
	if pongWait <= 0 {
		pongWait = defaultWSPongWait
	}
	return pingInterval, pongWait
}

// readPump handles client messages until the connection fails. Any frame
// from the client, pong or message, extends the read deadline.
func (c *WSClient) readPump(limit int64, idle time.Duration) {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	if limit > 0 {
		c.conn.SetReadLimit(limit)
	}
	extend := func() error { return c.conn.SetReadDeadline(time.Now().Add(idle)) }
	extend() //nolint:errcheck // best-effort deadline
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		extend() //nolint:errcheck // best-effort deadline
		c.handleMessage(data)
	}
}

// writePump sends queued messages and keepalive pings until the send
// channel is closed or a write fails.
func (c *WSClient) writePump(pingInterval, writeWait time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		var (
			kind = websocket.TextMessage
			data []byte
		)
		select {
		case msg, ok := <-c.send:
			if !ok {
				//nolint:errcheck // best-effort close frame
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			data = msg
		case <-ticker.C:
			kind = websocket.PingMessage
		}

		//nolint:errcheck // write error caught below
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(kind, data); err != nil {
			return
		}
	}
}

func (c *WSClient) handleMessage(data []byte) {
	var req wsRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.reply("", WSTypeError, map[string]string{"message": "invalid JSON message"})
		return
	}

	switch req.Type {
	case WSTypeSubscribe:
		c.subscribe(req)
	case WSTypePing:
		c.reply(req.ID, WSTypePong, nil)
	default:
		c.reply(req.ID, WSTypeError, map[string]string{"message": "unknown message type: " + req.Type})
	}
}

// subscribe adds {"channels": [...]} to the client's channels.
func (c *WSClient) subscribe(req wsRequest) {
	var payload struct {
		Channels []string `json:"channels"`
	}
	if err := json.Unmarshal(req.Payload, &payload); err != nil || len(payload.Channels) == 0 {
		c.reply(req.ID, WSTypeError, map[string]string{"message": "subscribe needs a list of channels"})
		return
	}

	c.mu.Lock()
	for _, ch := range payload.Channels {
		c.channels[ch] = struct{}{}
	}
	c.mu.Unlock()

	c.hub.logger.Info("websocket client subscribed", "channels", payload.Channels, "actor", c.actor)
	c.reply(req.ID, WSTypeResponse, map[string]any{"subscribed": payload.Channels})
}

func (c *WSClient) subscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.channels[channel]
	return ok
}

func (c *WSClient) reply(id, msgType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		return
	}
	c.trySend(data)
}

// trySend queues data unless the client's buffer is full. A client that
// disconnected mid-broadcast has a closed channel; the send is dropped.
func (c *WSClient) trySend(data []byte) {
	defer func() {
		recover() //nolint:errcheck // send on closed channel
	}()

	select {
	case c.send <- data:
	default:
	}
}
