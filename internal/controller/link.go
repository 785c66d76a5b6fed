package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-bridge/internal/infrastructure/config"
)

const (
	defaultQueueSize      = 64
	defaultReconnectDelay = 5 * time.Second
	defaultSyncInterval   = 5 * time.Second

	handshakeTimeout = 10 * time.Second
	writeTimeout     = 5 * time.Second
	maxReplySize     = 1 << 20
)

// Message fields fixed by the controller protocol.
const (
	MethodSetState = "set_state"
	MethodGetState = "get_state"
	typeAll        = "*"
	majordomo      = "bridge"
)

var (
	// ErrQueueFull is returned when a message cannot be queued.
	ErrQueueFull = errors.New("controller: send queue full")

	// ErrClosed is returned after Run has returned.
	ErrClosed = errors.New("controller: link closed")
)

// Message is one request to the controller.
type Message struct {
	Method    string      `json:"method"`
	Type      string      `json:"type"`
	Majordomo string      `json:"majordomo"`
	Data      SetStateArg `json:"data"`
}

// request is a message without arguments, such as get_state.
type request struct {
	Method    string `json:"method"`
	Type      string `json:"type"`
	Majordomo string `json:"majordomo"`
}

// SetStateArg addresses a device by its code block.
type SetStateArg struct {
	Code  map[string]any `json:"codice"`
	State any            `json:"stato"`
}

// Reply is what the controller answers; unknown fields are ignored.
// A get_state answer carries the whole state document, with Method set.
type Reply struct {
	OK     *bool           `json:"ok,omitempty"`
	Error  string          `json:"error,omitempty"`
	Hello  bool            `json:"hello,omitempty"`
	Note   string          `json:"note,omitempty"`
	Method string          `json:"method,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// StateHandler receives each state snapshot the controller sends, as the
// raw document.
type StateHandler func(ctx context.Context, snapshot []byte) error

// Logger is the logging surface the link needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// Link is a self-healing WebSocket connection to the controller.
//
// Thread Safety:
//   - SetState and IsConnected are safe for concurrent use.
//   - Run must be called once.
type Link struct {
	url            string
	reconnectDelay time.Duration
	syncInterval   time.Duration
	dialer         *websocket.Dialer
	getState       []byte

	queue     chan []byte
	connected atomic.Bool
	closed    atomic.Bool

	onState StateHandler
	logger  Logger
}

// New creates a link for cfg. Nothing is dialled until Run.
func New(cfg config.ControllerConfig) *Link {
	size := cfg.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	delay := time.Duration(cfg.ReconnectDelay) * time.Second
	if delay <= 0 {
		delay = defaultReconnectDelay
	}
	interval := time.Duration(cfg.SyncInterval) * time.Second
	if interval <= 0 {
		interval = defaultSyncInterval
	}

	//nolint:errcheck // a struct of strings always encodes
	getState, _ := json.Marshal(request{Method: MethodGetState, Type: typeAll, Majordomo: majordomo})

	return &Link{
		url:            cfg.URL,
		reconnectDelay: delay,
		syncInterval:   interval,
		dialer:         &websocket.Dialer{HandshakeTimeout: handshakeTimeout},
		getState:       getState,
		queue:          make(chan []byte, size),
		logger:         noopLogger{},
	}
}

// SetLogger sets the logger. Call before Run.
func (l *Link) SetLogger(logger Logger) {
	if logger != nil {
		l.logger = logger
	}
}

// SetOnState sets the handler for state snapshots. Call before Run.
func (l *Link) SetOnState(handler StateHandler) {
	l.onState = handler
}

// IsConnected reports whether the link currently has a connection.
func (l *Link) IsConnected() bool {
	return l.connected.Load()
}

// SetState queues a set_state message for the device addressed by code.
func (l *Link) SetState(code map[string]any, state any) error {
	if l.closed.Load() {
		return ErrClosed
	}

	data, err := json.Marshal(Message{
		Method:    MethodSetState,
		Type:      typeAll,
		Majordomo: majordomo,
		Data:      SetStateArg{Code: code, State: state},
	})
	if err != nil {
		return fmt.Errorf("controller: encoding set_state: %w", err)
	}

	select {
	case l.queue <- data:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run connects and delivers queued messages until ctx is cancelled. On
// every connection it asks for the controller state at once and then every
// sync interval.
func (l *Link) Run(ctx context.Context) {
	defer l.closed.Store(true)

	for {
		conn, _, err := l.dialer.DialContext(ctx, l.url, nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			l.logger.Warn("controller unreachable", "url", l.url, "error", err, "retry_in", l.reconnectDelay)
		} else {
			l.logger.Info("controller connected", "url", l.url)
			l.connected.Store(true)
			err = l.serve(ctx, conn)
			l.connected.Store(false)
			if ctx.Err() != nil {
				return
			}
			l.logger.Warn("controller connection lost", "error", err, "retry_in", l.reconnectDelay)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(l.reconnectDelay):
		}
	}
}

// serve writes queued messages and state requests to conn until the
// connection fails or ctx ends. A message whose write fails is lost.
func (l *Link) serve(ctx context.Context, conn *websocket.Conn) error {
	defer conn.Close()

	readErr := make(chan error, 1)
	go func() {
		readErr <- l.readReplies(ctx, conn)
	}()

	if err := l.write(conn, l.getState); err != nil {
		return err
	}
	ticker := time.NewTicker(l.syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			//nolint:errcheck // best-effort close frame
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeTimeout))
			return ctx.Err()

		case err := <-readErr:
			return err

		case <-ticker.C:
			if err := l.write(conn, l.getState); err != nil {
				return err
			}

		case msg := <-l.queue:
			if err := l.write(conn, msg); err != nil {
				return err
			}
		}
	}
}

func (l *Link) write(conn *websocket.Conn, msg []byte) error {
	//nolint:errcheck // write error caught below
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		l.logger.Warn("controller write failed, message dropped", "error", err)
		return err
	}
	return nil
}

func (l *Link) readReplies(ctx context.Context, conn *websocket.Conn) error {
	conn.SetReadLimit(maxReplySize)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		l.handleReply(ctx, data)
	}
}

func (l *Link) handleReply(ctx context.Context, data []byte) {
	var reply Reply
	if err := json.Unmarshal(data, &reply); err != nil {
		l.logger.Debug("controller sent non-JSON reply", "size", len(data))
		return
	}

	switch {
	case reply.Method == MethodGetState && len(reply.Data) > 0 && string(reply.Data) != "null":
		if l.onState == nil {
			return
		}
		if err := l.onState(ctx, data); err != nil {
			l.logger.Warn("controller state not applied", "error", err)
		}
	case reply.Hello:
		l.logger.Info("controller ready", "note", reply.Note)
	case reply.OK != nil && !*reply.OK:
		l.logger.Warn("controller rejected command", "error", reply.Error)
	default:
		l.logger.Debug("controller reply", "reply", string(data))
	}
}
