package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// object is a JSON object that remembers key order.
//
// Values are kept as raw JSON so fields the bridge does not understand
// survive a decode/encode round trip byte for byte. Duplicate keys keep the
// position of their first occurrence and the value of their last.
type object struct {
	keys   []string
	values map[string]json.RawMessage
}

func newObject() *object {
	return &object{values: make(map[string]json.RawMessage)}
}

// decodeObject parses data as a JSON object, preserving key order.
// Returns errNotObject if data is valid JSON of another kind.
func decodeObject(data []byte) (*object, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("reading object start: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errNotObject
	}

	obj := newObject()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("reading object key: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected object key %v", tok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("reading value of %q: %w", key, err)
		}
		obj.set(key, raw)
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("reading object end: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after object")
	}
	return obj, nil
}

// get returns the raw value for key and whether it was present.
func (o *object) get(key string) (json.RawMessage, bool) {
	v, ok := o.values[key]
	return v, ok
}

// set stores a raw value, appending key if it is new.
func (o *object) set(key string, raw json.RawMessage) {
	if _, exists := o.values[key]; !exists {
		o.keys = append(o.keys, key)
	}
	o.values[key] = raw
}

// setValue marshals v and stores it under key.
func (o *object) setValue(key string, v any) error {
	raw, err := marshalValue(v)
	if err != nil {
		return fmt.Errorf("encoding %q: %w", key, err)
	}
	o.set(key, raw)
	return nil
}

// clone returns a shallow copy; raw values are shared but never mutated.
func (o *object) clone() *object {
	cpy := &object{
		keys:   make([]string, len(o.keys)),
		values: make(map[string]json.RawMessage, len(o.values)),
	}
	copy(cpy.keys, o.keys)
	for k, v := range o.values {
		cpy.values[k] = v
	}
	return cpy
}

// MarshalJSON writes the object with its keys in their recorded order.
func (o *object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := marshalValue(key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(o.values[key])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// marshalValue encodes v without HTML escaping and without a trailing newline,
// so non-ASCII room and device names stay readable in the saved file.
func marshalValue(v any) (json.RawMessage, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// isNull reports whether raw is the JSON literal null.
func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}

// decodeList splits a JSON array into its raw elements.
// Returns false if raw is not an array.
func decodeList(raw json.RawMessage) ([]json.RawMessage, bool) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false
	}
	if items == nil && isNull(raw) {
		return nil, false
	}
	return items, true
}
