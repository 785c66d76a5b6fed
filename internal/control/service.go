package control

import (
	"context"
	"errors"

	"github.com/nerrad567/gray-logic-bridge/internal/audit"
	"github.com/nerrad567/gray-logic-bridge/internal/catalog"
	"github.com/nerrad567/gray-logic-bridge/internal/resolve"
)

// Publisher sends JSON messages to the MQTT bus.
type Publisher interface {
	PublishJSON(topic string, v any, retained bool) error
}

// Metrics records device value history.
type Metrics interface {
	WriteDeviceValue(room, device, kind string, value float64, source string)
}

// AuditRecorder stores audit entries.
type AuditRecorder interface {
	Create(ctx context.Context, entry *audit.Entry) error
}

// Notifier pushes events to connected WebSocket clients.
type Notifier interface {
	Broadcast(channel string, payload any)
}

// Forwarder relays a change to the field controller.
type Forwarder interface {
	SetState(code map[string]any, state any) error
}

// Logger is the logging surface the service needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Deps holds the service's collaborators. Store and Engine are required;
// leave the others nil to disable them.
type Deps struct {
	Store     *catalog.Store
	Engine    *resolve.Engine
	Publisher Publisher
	Metrics   Metrics
	Audit     AuditRecorder
	Notifier  Notifier
	Forwarder Forwarder
	Logger    Logger
}

// Service executes commands against the catalog.
//
// Thread Safety:
//   - Safe for concurrent use; Store serialises document access.
type Service struct {
	store     *catalog.Store
	engine    *resolve.Engine
	publisher Publisher
	metrics   Metrics
	audit     AuditRecorder
	notifier  Notifier
	forwarder Forwarder
	logger    Logger
}

// New creates a Service.
func New(deps Deps) (*Service, error) {
	if deps.Store == nil {
		return nil, errors.New("control: store is required")
	}
	if deps.Engine == nil {
		return nil, errors.New("control: engine is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	return &Service{
		store:     deps.Store,
		engine:    deps.Engine,
		publisher: deps.Publisher,
		metrics:   deps.Metrics,
		audit:     deps.Audit,
		notifier:  deps.Notifier,
		forwarder: deps.Forwarder,
		logger:    logger,
	}, nil
}
