package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Kind is the device category tag stored in the "tipo" field.
//
// Only KindBlind is distinguished; every other value is a generic
// switchable device driven by a boolean.
type Kind int

// KindBlind marks a roller blind or shutter driven by a 0-100 position.
const KindBlind Kind = 1

// Blind position range.
const (
	MinLevel = 0
	MaxLevel = 100
)

// IsBlind reports whether k is the blind kind.
func (k Kind) IsBlind() bool {
	return k == KindBlind
}

// String returns "blind" or "switch".
func (k Kind) String() string {
	if k.IsBlind() {
		return "blind"
	}
	return "switch"
}

type valueType uint8

const (
	valueUnset valueType = iota
	valueBool
	valueLevel
)

// Value is a device's current state: a boolean for switchable devices or a
// 0-100 position for blinds. The zero Value is unset.
type Value struct {
	typ   valueType
	on    bool
	level int
}

// BoolValue returns a boolean Value.
func BoolValue(on bool) Value {
	return Value{typ: valueBool, on: on}
}

// LevelValue returns a position Value. The level is not clamped; callers
// clamp with ClampLevel before writing a blind.
func LevelValue(level int) Value {
	return Value{typ: valueLevel, level: level}
}

// IsSet reports whether the value holds a boolean or a level.
func (v Value) IsSet() bool {
	return v.typ != valueUnset
}

// Bool returns the boolean state and whether the value is a boolean.
func (v Value) Bool() (on bool, ok bool) {
	return v.on, v.typ == valueBool
}

// Level returns the position and whether the value is a level.
func (v Value) Level() (level int, ok bool) {
	return v.level, v.typ == valueLevel
}

// Float returns the value as a number for metrics: 1/0 for booleans.
func (v Value) Float() float64 {
	switch v.typ {
	case valueBool:
		if v.on {
			return 1
		}
		return 0
	case valueLevel:
		return float64(v.level)
	default:
		return 0
	}
}

// Interface returns the value as a bool, an int, or nil when unset.
func (v Value) Interface() any {
	switch v.typ {
	case valueBool:
		return v.on
	case valueLevel:
		return v.level
	default:
		return nil
	}
}

// MarshalJSON encodes the value as true/false, an integer, or null.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// UnmarshalJSON accepts a boolean or a number; numbers are rounded to the
// nearest integer. Any other JSON yields an unset Value.
func (v *Value) UnmarshalJSON(data []byte) error {
	*v = decodeValue(data)
	return nil
}

func decodeValue(raw json.RawMessage) Value {
	if raw == nil || isNull(raw) {
		return Value{}
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return BoolValue(b)
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return LevelValue(int(math.Round(f)))
	}
	return Value{}
}

// ClampLevel rounds a requested position half to even and clamps it to
// MinLevel..MaxLevel.
func ClampLevel(requested float64) int {
	if math.IsNaN(requested) {
		return MinLevel
	}
	r := math.RoundToEven(requested)
	switch {
	case r < MinLevel:
		return MinLevel
	case r > MaxLevel:
		return MaxLevel
	default:
		return int(r)
	}
}

// Code is the controller addressing block ("codice") of a device or scene.
//
// Name is the canonical code name used for disambiguation. Every other
// field (port, node, action, channel) is opaque to the bridge and is kept
// for forwarding to the controller.
type Code struct {
	Name string
	raw  *object
}

// MarshalJSON re-emits the original block with Name applied.
func (c Code) MarshalJSON() ([]byte, error) {
	obj := newObject()
	if c.raw != nil {
		obj = c.raw.clone()
		if _, had := obj.get("nome"); !had && c.Name == "" {
			return obj.MarshalJSON()
		}
	}
	if err := obj.setValue("nome", c.Name); err != nil {
		return nil, err
	}
	return obj.MarshalJSON()
}

// Fields returns the code block as a generic map for forwarding.
func (c Code) Fields() map[string]any {
	out := map[string]any{}
	if c.raw != nil {
		for _, k := range c.raw.keys {
			var v any
			if json.Unmarshal(c.raw.values[k], &v) == nil {
				out[k] = v
			}
		}
	}
	if c.Name != "" {
		out["nome"] = c.Name
	}
	return out
}

func decodeCode(raw json.RawMessage) (Code, error) {
	if raw == nil || isNull(raw) {
		return Code{}, nil
	}
	obj, err := decodeObject(raw)
	if err != nil {
		return Code{}, err
	}
	name, err := optionalString(obj, "nome")
	if err != nil {
		return Code{}, err
	}
	return Code{Name: name, raw: obj}, nil
}

// Device is one controllable entity inside a room.
type Device struct {
	// Name is the free-text display name ("nome").
	Name string
	// Code carries the canonical code name and controller address.
	Code Code
	// Kind decides the legal value shape.
	Kind Kind
	// Value is the current state ("stato").
	Value Value
	// SetByBridge records that Value was last written by this bridge
	// ("statoDevice") rather than reported by the field.
	SetByBridge bool

	raw       *object
	origValue Value
	origSetBy bool
}

// Label returns the name shown to a user choosing between devices:
// the code name when present, otherwise "room name".
func (d *Device) Label(room string) string {
	if d.Code.Name != "" {
		return d.Code.Name
	}
	return room + " " + d.Name
}

// MarshalJSON writes the device back. Decoded devices keep every original
// field; only "stato" and "statoDevice" are rewritten, and only if changed.
func (d *Device) MarshalJSON() ([]byte, error) {
	if d.raw == nil {
		obj := newObject()
		for _, kv := range []struct {
			key string
			val any
		}{
			{"nome", d.Name},
			{"codice", d.Code},
			{"tipo", int(d.Kind)},
			{"stato", d.Value},
			{"statoDevice", d.SetByBridge},
		} {
			if err := obj.setValue(kv.key, kv.val); err != nil {
				return nil, err
			}
		}
		return obj.MarshalJSON()
	}

	obj := d.raw.clone()
	if d.Value != d.origValue {
		if err := obj.setValue("stato", d.Value); err != nil {
			return nil, err
		}
	}
	if d.SetByBridge != d.origSetBy || d.Value != d.origValue {
		if err := obj.setValue("statoDevice", d.SetByBridge); err != nil {
			return nil, err
		}
	}
	return obj.MarshalJSON()
}

// decodeDevice parses a device record. A record that is not an object or
// whose known fields have the wrong type is reported as an error so the
// caller can skip it.
func decodeDevice(raw json.RawMessage) (*Device, error) {
	obj, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}

	d := &Device{raw: obj}

	if d.Name, err = optionalString(obj, "nome"); err != nil {
		return nil, err
	}

	if v, ok := obj.get("codice"); ok {
		if d.Code, err = decodeCode(v); err != nil {
			return nil, fmt.Errorf("field codice: %w", err)
		}
	}

	if v, ok := obj.get("tipo"); ok && !isNull(v) {
		kind, kindErr := decodeKind(v)
		if kindErr != nil {
			return nil, kindErr
		}
		d.Kind = kind
	}

	if v, ok := obj.get("stato"); ok {
		d.Value = decodeValue(v)
	}

	if v, ok := obj.get("statoDevice"); ok {
		var b bool
		if json.Unmarshal(v, &b) == nil {
			d.SetByBridge = b
		}
	}

	d.origValue = d.Value
	d.origSetBy = d.SetByBridge
	return d, nil
}

func decodeKind(raw json.RawMessage) (Kind, error) {
	// json.Number also accepts a quoted number.
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '"' {
		return 0, fmt.Errorf("field tipo: not a number")
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, fmt.Errorf("field tipo: not a number")
	}
	if i, err := strconv.Atoi(string(n)); err == nil {
		return Kind(i), nil
	}
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("field tipo: not an integer")
	}
	return Kind(int(f)), nil
}

// optionalString reads a string field; absent or null yields "".
func optionalString(obj *object, key string) (string, error) {
	v, ok := obj.get(key)
	if !ok || isNull(v) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return "", fmt.Errorf("field %s: not a string", key)
	}
	return s, nil
}

// slot records one element of a room's device list in document order.
// device is an index into Room.Devices, or -1 for a skipped raw element.
type slot struct {
	device int
	raw    json.RawMessage
}

// Room is a named space holding an ordered list of devices.
type Room struct {
	Name    string
	Devices []*Device

	layout []slot
	raw    json.RawMessage // set when the room value is not a list
}

// MarshalJSON writes the device list in original order, including any
// skipped elements.
func (r *Room) MarshalJSON() ([]byte, error) {
	if r.raw != nil {
		return r.raw, nil
	}

	items := make([]json.RawMessage, 0, len(r.Devices)+len(r.layout))
	written := make(map[int]bool, len(r.Devices))
	for _, s := range r.layout {
		if s.device < 0 {
			items = append(items, s.raw)
			continue
		}
		if s.device >= len(r.Devices) {
			continue
		}
		b, err := r.Devices[s.device].MarshalJSON()
		if err != nil {
			return nil, err
		}
		items = append(items, b)
		written[s.device] = true
	}
	for i, d := range r.Devices {
		if written[i] {
			continue
		}
		b, err := d.MarshalJSON()
		if err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	return marshalValue(items)
}

func decodeRoom(name string, raw json.RawMessage) *Room {
	room := &Room{Name: name}
	items, ok := decodeList(raw)
	if !ok {
		room.raw = raw
		return room
	}
	for _, item := range items {
		dev, err := decodeDevice(item)
		if err != nil {
			room.layout = append(room.layout, slot{device: -1, raw: item})
			continue
		}
		room.layout = append(room.layout, slot{device: len(room.Devices)})
		room.Devices = append(room.Devices, dev)
	}
	return room
}

// Catalog is the full room→devices structure in document order.
type Catalog struct {
	Rooms []*Room
}

// DeviceCount returns the number of well-formed devices across all rooms.
func (c *Catalog) DeviceCount() int {
	if c == nil {
		return 0
	}
	n := 0
	for _, r := range c.Rooms {
		n += len(r.Devices)
	}
	return n
}

// MarshalJSON writes rooms as an object keyed by room name, in order.
func (c *Catalog) MarshalJSON() ([]byte, error) {
	obj := newObject()
	if c != nil {
		for _, r := range c.Rooms {
			b, err := r.MarshalJSON()
			if err != nil {
				return nil, fmt.Errorf("encoding room %q: %w", r.Name, err)
			}
			obj.set(r.Name, b)
		}
	}
	return obj.MarshalJSON()
}

func decodeCatalog(raw json.RawMessage) (*Catalog, error) {
	obj, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}
	cat := &Catalog{Rooms: make([]*Room, 0, len(obj.keys))}
	for _, name := range obj.keys {
		cat.Rooms = append(cat.Rooms, decodeRoom(name, obj.values[name]))
	}
	return cat, nil
}

// Scene is a named controller scenario ("SCENARI" entry).
type Scene struct {
	Name string
	Code Code
}
