package control

import (
	"context"
	"math"
	"strings"

	"github.com/nerrad567/gray-logic-bridge/internal/audit"
	"github.com/nerrad567/gray-logic-bridge/internal/catalog"
	"github.com/nerrad567/gray-logic-bridge/internal/resolve"
)

// PowerResult describes a switched device.
type PowerResult struct {
	Room   string `json:"room"`
	Device string `json:"device"`
	Label  string `json:"label"`
	On     bool   `json:"on"`
}

// BlindResult describes a positioned blind.
type BlindResult struct {
	Room   string `json:"room"`
	Device string `json:"device"`
	Label  string `json:"label"`
	Value  int    `json:"value"`
}

// SceneResult describes a scene that was run.
type SceneResult struct {
	Name string         `json:"name"`
	Code map[string]any `json:"code,omitempty"`
}

// SetPower switches the device best matching name on or off.
func (s *Service) SetPower(ctx context.Context, name string, on bool) (PowerResult, error) {
	if strings.TrimSpace(name) == "" {
		return PowerResult{}, ErrNameRequired
	}

	var c change
	err := s.store.Update(ctx, func(doc *catalog.Document, aliases catalog.AliasTable) error {
		m, ok := s.engine.ResolveOne(doc.Catalog, aliases, name)
		if !ok {
			return ErrDeviceNotFound
		}
		if m.Device.Kind.IsBlind() {
			return ErrIsBlind
		}

		m.Device.Value = catalog.BoolValue(on)
		m.Device.SetByBridge = true
		c = newChange(m, audit.SourceAPI, name)
		return nil
	})
	if err != nil {
		return PowerResult{}, err
	}

	s.logger.Info("device switched", "query", name, "room", c.room, "device", c.device, "on", on)
	s.announce(ctx, c)

	return PowerResult{Room: c.room, Device: c.device, Label: c.label, On: on}, nil
}

// SetBlind moves the blind matching name to value, rounded half to even
// and clamped to 0..100.
//
// A generic request ("tapparella cucina") for a room with several blinds,
// or a name matching several blinds, fails with *AmbiguousError listing the
// candidates.
func (s *Service) SetBlind(ctx context.Context, name string, value float64) (BlindResult, error) {
	if strings.TrimSpace(name) == "" {
		return BlindResult{}, ErrNameRequired
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return BlindResult{}, ErrInvalidValue
	}
	level := catalog.ClampLevel(value)

	var c change
	err := s.store.Update(ctx, func(doc *catalog.Document, aliases catalog.AliasTable) error {
		m, err := s.resolveBlind(doc.Catalog, aliases, name, level)
		if err != nil {
			return err
		}

		m.Device.Value = catalog.LevelValue(level)
		m.Device.SetByBridge = true
		c = newChange(m, audit.SourceAPI, name)
		return nil
	})
	if err != nil {
		return BlindResult{}, err
	}

	s.logger.Info("blind set", "query", name, "room", c.room, "device", c.device, "value", level)
	s.announce(ctx, c)

	return BlindResult{Room: c.room, Device: c.device, Label: c.label, Value: level}, nil
}

func (s *Service) resolveBlind(cat *catalog.Catalog, aliases catalog.AliasTable, name string, level int) (resolve.Match, error) {
	if s.engine.DetectGenericCategory(cat, name) {
		if members := s.engine.MembersOfGenericCategory(cat, name); len(members) > 1 {
			return resolve.Match{}, ambiguous(ReasonRoomBlinds, level, members)
		}
	}

	matches := s.engine.ResolveMany(cat, aliases, name, resolve.OfKind(catalog.KindBlind))
	switch {
	case len(matches) == 0:
		return resolve.Match{}, ErrBlindNotFound
	case len(matches) > 1:
		return resolve.Match{}, ambiguous(ReasonManyBlinds, level, matches)
	}

	m := matches[0]
	if !m.Device.Kind.IsBlind() {
		return resolve.Match{}, ErrNotBlind
	}
	return m, nil
}

func ambiguous(reason string, level int, matches []resolve.Match) *AmbiguousError {
	options := make([]Option, 0, len(matches))
	for _, m := range matches {
		options = append(options, Option{Room: m.Room.Name, Name: m.Label()})
	}
	return &AmbiguousError{Reason: reason, Requested: level, Options: options}
}

// RunScene announces the scene whose normalized name equals name.
func (s *Service) RunScene(ctx context.Context, name string) (SceneResult, error) {
	if strings.TrimSpace(name) == "" {
		return SceneResult{}, ErrNameRequired
	}

	var scene catalog.Scene
	err := s.store.View(ctx, func(doc *catalog.Document, _ catalog.AliasTable) error {
		found, ok := doc.Scene(name, resolve.Normalize)
		if !ok {
			return ErrSceneNotFound
		}
		scene = found
		return nil
	})
	if err != nil {
		return SceneResult{}, err
	}

	result := SceneResult{Name: scene.Name, Code: scene.Code.Fields()}
	s.logger.Info("scene run", "query", name, "scene", scene.Name)
	s.announceScene(ctx, result)

	return result, nil
}
