package control

import (
	"context"
	"fmt"

	"github.com/nerrad567/gray-logic-bridge/internal/audit"
	"github.com/nerrad567/gray-logic-bridge/internal/catalog"
	"github.com/nerrad567/gray-logic-bridge/internal/resolve"
)

// ApplyControllerState merges a get_state snapshot sent by the controller.
//
// A snapshot device is matched to a saved one by code name, or by room and
// display name when it has no code name. Each matched device whose value
// differs is updated as a field change and announced. Values that do not
// fit the saved device's kind are ignored. It returns how many devices
// changed; a snapshot that changes nothing leaves the document untouched.
func (s *Service) ApplyControllerState(ctx context.Context, snapshot []byte) (int, error) {
	remote, err := catalog.DecodeDocument(snapshot)
	if err != nil {
		return 0, fmt.Errorf("%w: decoding controller state: %w", ErrInvalidValue, err)
	}

	var changes []change
	err = s.store.Update(ctx, func(doc *catalog.Document, _ catalog.AliasTable) error {
		for room, dev := range resolve.Devices(remote.Catalog) {
			m, ok := findSnapshotDevice(doc.Catalog, room, dev)
			if !ok {
				continue
			}
			value, ok := snapshotValue(m.Device.Kind, dev.Value)
			if !ok || value == m.Device.Value {
				continue
			}

			m.Device.Value = value
			m.Device.SetByBridge = false
			changes = append(changes, newChange(m, audit.SourceField, ""))
		}
		if len(changes) == 0 {
			return catalog.ErrNoChange
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if len(changes) > 0 {
		s.logger.Info("controller state applied", "changed", len(changes))
	}
	for _, c := range changes {
		s.announce(ctx, c)
	}
	return len(changes), nil
}

func findSnapshotDevice(cat *catalog.Catalog, room *catalog.Room, dev *catalog.Device) (resolve.Match, bool) {
	code := resolve.Normalize(dev.Code.Name)
	roomName := resolve.Normalize(room.Name)
	name := resolve.Normalize(dev.Name)

	for r, d := range resolve.Devices(cat) {
		if code != "" {
			if resolve.Normalize(d.Code.Name) == code {
				return resolve.Match{Room: r, Device: d}, true
			}
			continue
		}
		if name != "" && resolve.Normalize(r.Name) == roomName && resolve.Normalize(d.Name) == name {
			return resolve.Match{Room: r, Device: d}, true
		}
	}
	return resolve.Match{}, false
}

func snapshotValue(kind catalog.Kind, v catalog.Value) (catalog.Value, bool) {
	if kind.IsBlind() {
		level, ok := v.Level()
		if !ok {
			return catalog.Value{}, false
		}
		return catalog.LevelValue(catalog.ClampLevel(float64(level))), true
	}

	on, ok := v.Bool()
	if !ok {
		return catalog.Value{}, false
	}
	return catalog.BoolValue(on), true
}

// HandleControllerState adapts ApplyControllerState to the controller
// link's state handler.
func (s *Service) HandleControllerState(ctx context.Context, snapshot []byte) error {
	_, err := s.ApplyControllerState(ctx, snapshot)
	return err
}
