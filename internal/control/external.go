package control

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/nerrad567/gray-logic-bridge/internal/audit"
	"github.com/nerrad567/gray-logic-bridge/internal/catalog"
	"github.com/nerrad567/gray-logic-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-bridge/internal/resolve"
)

// ExternalState is a state report from the field:
//
//	{"code": "tapparella cucina sud", "value": 40}
//
// Code is the device's code name. When it is empty, Segment (the device
// part of the MQTT topic) selects the device instead.
type ExternalState struct {
	Code    string          `json:"code"`
	Value   json.RawMessage `json:"value"`
	Segment string          `json:"-"`
}

// ApplyExternalState records a value the field reports for a device.
//
// Switchable devices take a JSON boolean, blinds a number (clamped to
// 0..100). The device is marked as not set by the bridge.
func (s *Service) ApplyExternalState(ctx context.Context, report ExternalState) error {
	var c change
	err := s.store.Update(ctx, func(doc *catalog.Document, _ catalog.AliasTable) error {
		m, ok := findReported(doc.Catalog, report)
		if !ok {
			return ErrDeviceNotFound
		}

		value, err := reportedValue(m.Device.Kind, report.Value)
		if err != nil {
			return err
		}

		m.Device.Value = value
		m.Device.SetByBridge = false
		c = newChange(m, audit.SourceField, "")
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Debug("external state applied", "room", c.room, "device", c.device, "value", c.value.Interface())
	s.announce(ctx, c)
	return nil
}

func findReported(cat *catalog.Catalog, report ExternalState) (resolve.Match, bool) {
	code := resolve.Normalize(report.Code)
	for room, dev := range resolve.Devices(cat) {
		m := resolve.Match{Room: room, Device: dev}
		if code != "" {
			if resolve.Normalize(dev.Code.Name) == code {
				return m, true
			}
			continue
		}
		if report.Segment != "" && mqtt.Segment(m.Label()) == report.Segment {
			return m, true
		}
	}
	return resolve.Match{}, false
}

func reportedValue(kind catalog.Kind, raw json.RawMessage) (catalog.Value, error) {
	if trimmed := bytes.TrimSpace(raw); len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return catalog.Value{}, fmt.Errorf("%w: value is required", ErrInvalidValue)
	}

	if kind.IsBlind() {
		var level float64
		if err := json.Unmarshal(raw, &level); err != nil || math.IsNaN(level) || math.IsInf(level, 0) {
			return catalog.Value{}, fmt.Errorf("%w: blind position must be a number", ErrInvalidValue)
		}
		return catalog.LevelValue(catalog.ClampLevel(level)), nil
	}

	var on bool
	if err := json.Unmarshal(raw, &on); err != nil {
		return catalog.Value{}, fmt.Errorf("%w: switch state must be true or false", ErrInvalidValue)
	}
	return catalog.BoolValue(on), nil
}

// HandleFieldState adapts ApplyExternalState to an MQTT subscription on
// graylogic/state/+/+.
func (s *Service) HandleFieldState(ctx context.Context) mqtt.MessageHandler {
	return func(topic string, payload []byte) error {
		_, segment, ok := mqtt.ParseFieldState(topic)
		if !ok {
			return fmt.Errorf("control: unexpected state topic %q", topic)
		}

		var report ExternalState
		if err := json.Unmarshal(payload, &report); err != nil {
			return fmt.Errorf("%w: decoding state report: %w", ErrInvalidValue, err)
		}
		report.Segment = segment

		return s.ApplyExternalState(ctx, report)
	}
}
