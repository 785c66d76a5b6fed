package control

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-bridge/internal/audit"
	"github.com/nerrad567/gray-logic-bridge/internal/catalog"
	"github.com/nerrad567/gray-logic-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-bridge/internal/resolve"
)

// WebSocket channels.
const (
	ChannelStateChanged = "device.state_changed"
	ChannelSceneRun     = "scene.run"
)

// change is a saved device update waiting to be announced. It copies what
// it needs out of the document, which must not be touched after Update.
type change struct {
	room        string
	device      string
	label       string
	kind        catalog.Kind
	value       catalog.Value
	code        map[string]any
	setByBridge bool
	source      string
	query       string
}

func newChange(m resolve.Match, source, query string) change {
	return change{
		room:        m.Room.Name,
		device:      m.Device.Name,
		label:       m.Label(),
		kind:        m.Device.Kind,
		value:       m.Device.Value,
		code:        m.Device.Code.Fields(),
		setByBridge: m.Device.SetByBridge,
		source:      source,
		query:       query,
	}
}

func (c change) fromField() bool {
	return c.source == audit.SourceField
}

// CommandMessage is published on graylogic/command/{kind}/{device}.
type CommandMessage struct {
	ID        string         `json:"id"`
	Room      string         `json:"room"`
	Device    string         `json:"device"`
	Kind      string         `json:"kind"`
	Value     any            `json:"value"`
	Code      map[string]any `json:"code,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// StateEvent is broadcast to WebSocket clients and retained on
// graylogic/core/device/{device}/state.
type StateEvent struct {
	Room        string    `json:"room"`
	Device      string    `json:"device"`
	Label       string    `json:"label"`
	Kind        string    `json:"kind"`
	Value       any       `json:"value"`
	SetByBridge bool      `json:"set_by_bridge"`
	Source      string    `json:"source"`
	Actor       string    `json:"actor,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// SceneMessage is published on graylogic/command/scene/{scene}.
type SceneMessage struct {
	ID        string         `json:"id"`
	Scene     string         `json:"scene"`
	Code      map[string]any `json:"code,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// announce runs every configured side effect of a saved change.
func (s *Service) announce(ctx context.Context, c change) {
	now := time.Now().UTC()
	actor := ActorFrom(ctx)
	segment := mqtt.Segment(c.label)
	kind := c.kind.String()
	topics := mqtt.Topics{}

	if s.publisher != nil {
		if !c.fromField() {
			msg := CommandMessage{
				ID:        uuid.NewString(),
				Room:      c.room,
				Device:    c.device,
				Kind:      kind,
				Value:     c.value.Interface(),
				Code:      c.code,
				Timestamp: now,
			}
			if err := s.publisher.PublishJSON(topics.DeviceCommand(kind, segment), msg, false); err != nil {
				s.logger.Warn("publishing device command", "device", c.label, "error", err)
			}
		}
		if err := s.publisher.PublishJSON(topics.DeviceState(segment), s.stateEvent(c, actor, now), true); err != nil {
			s.logger.Warn("publishing device state", "device", c.label, "error", err)
		}
	}

	if s.metrics != nil {
		s.metrics.WriteDeviceValue(c.room, c.label, kind, c.value.Float(), c.source)
	}

	if s.audit != nil {
		action := audit.ActionCommand
		if c.fromField() {
			action = audit.ActionExternalState
		}
		details := map[string]any{
			"room":   c.room,
			"device": c.device,
			"kind":   kind,
			"value":  c.value.Interface(),
		}
		if c.query != "" {
			details["query"] = c.query
		}
		entry := &audit.Entry{
			Action:     action,
			EntityType: audit.EntityDevice,
			EntityID:   c.room + "/" + c.device,
			UserID:     actor,
			Source:     c.source,
			Details:    details,
		}
		// The request may already be gone; the record must still land.
		if err := s.audit.Create(context.WithoutCancel(ctx), entry); err != nil {
			s.logger.Warn("recording audit entry", "device", c.label, "error", err)
		}
	}

	if s.notifier != nil {
		s.notifier.Broadcast(ChannelStateChanged, s.stateEvent(c, actor, now))
	}

	if s.forwarder != nil && !c.fromField() {
		if err := s.forwarder.SetState(c.code, c.value.Interface()); err != nil {
			s.logger.Warn("forwarding to controller", "device", c.label, "error", err)
		}
	}
}

func (s *Service) stateEvent(c change, actor string, at time.Time) StateEvent {
	return StateEvent{
		Room:        c.room,
		Device:      c.device,
		Label:       c.label,
		Kind:        c.kind.String(),
		Value:       c.value.Interface(),
		SetByBridge: c.setByBridge,
		Source:      c.source,
		Actor:       actor,
		Timestamp:   at,
	}
}

func (s *Service) announceScene(ctx context.Context, scene SceneResult) {
	now := time.Now().UTC()

	if s.publisher != nil {
		msg := SceneMessage{
			ID:        uuid.NewString(),
			Scene:     scene.Name,
			Code:      scene.Code,
			Timestamp: now,
		}
		if err := s.publisher.PublishJSON(mqtt.Topics{}.SceneCommand(mqtt.Segment(scene.Name)), msg, false); err != nil {
			s.logger.Warn("publishing scene command", "scene", scene.Name, "error", err)
		}
	}

	if s.audit != nil {
		entry := &audit.Entry{
			Action:     audit.ActionScene,
			EntityType: audit.EntityScene,
			EntityID:   scene.Name,
			UserID:     ActorFrom(ctx),
			Source:     audit.SourceAPI,
			Details:    map[string]any{"code": scene.Code},
		}
		if err := s.audit.Create(context.WithoutCancel(ctx), entry); err != nil {
			s.logger.Warn("recording audit entry", "scene", scene.Name, "error", err)
		}
	}

	if s.notifier != nil {
		s.notifier.Broadcast(ChannelSceneRun, map[string]any{
			"scene":     scene.Name,
			"timestamp": now,
		})
	}
}
