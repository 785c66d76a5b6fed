package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Document keys of the state file.
const (
	keyData   = "data"
	keyRooms  = "STANZE"
	keyScenes = "SCENARI"
)

// Document is a decoded state file.
//
// Only the catalog is mutable; scenes and every other key are kept as read
// from disk and written back unchanged.
type Document struct {
	Catalog *Catalog
	Scenes  []Scene

	top  *object
	data *object
}

// NewDocument wraps a catalog in a fresh state document.
func NewDocument(cat *Catalog) *Document {
	if cat == nil {
		cat = &Catalog{}
	}
	return &Document{Catalog: cat}
}

// DecodeDocument parses a state file.
//
// A missing "data" object or a "data.STANZE" value that is not an object
// yields an empty catalog rather than an error, since another writer may
// have left the file half-built.
func DecodeDocument(raw []byte) (*Document, error) {
	top, err := decodeObject(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	doc := &Document{Catalog: &Catalog{}, top: top}

	dataRaw, ok := top.get(keyData)
	if !ok {
		return doc, nil
	}
	data, err := decodeObject(dataRaw)
	if err != nil {
		if errors.Is(err, errNotObject) {
			return doc, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	doc.data = data

	if roomsRaw, ok := data.get(keyRooms); ok {
		if cat, err := decodeCatalog(roomsRaw); err == nil {
			doc.Catalog = cat
		}
	}

	if scenesRaw, ok := data.get(keyScenes); ok {
		doc.Scenes = decodeScenes(scenesRaw)
	}

	return doc, nil
}

func decodeScenes(raw json.RawMessage) []Scene {
	items, ok := decodeList(raw)
	if !ok {
		return nil
	}
	scenes := make([]Scene, 0, len(items))
	for _, item := range items {
		obj, err := decodeObject(item)
		if err != nil {
			continue
		}
		name, err := optionalString(obj, "nome")
		if err != nil {
			continue
		}
		var code Code
		if v, ok := obj.get("codice"); ok {
			if code, err = decodeCode(v); err != nil {
				continue
			}
		}
		scenes = append(scenes, Scene{Name: name, Code: code})
	}
	return scenes
}

// Encode serialises the document with two-space indentation, original key
// order, and UTF-8 text left unescaped.
func (d *Document) Encode() ([]byte, error) {
	fresh := d.top == nil
	top := newObject()
	if !fresh {
		top = d.top.clone()
		if _, ok := top.get(keyData); ok && d.data == nil {
			// "data" is present but is not an object; nothing of ours to write.
			return indent(top)
		}
	}

	data := newObject()
	if d.data != nil {
		data = d.data.clone()
	}

	prev, had := data.get(keyRooms)
	if fresh || (had && isObjectJSON(prev)) || (!had && len(d.Catalog.Rooms) > 0) {
		rooms, err := d.Catalog.MarshalJSON()
		if err != nil {
			return nil, err
		}
		data.set(keyRooms, rooms)
	}

	if fresh || d.data != nil || len(data.keys) > 0 {
		dataRaw, err := data.MarshalJSON()
		if err != nil {
			return nil, err
		}
		top.set(keyData, dataRaw)
	}
	return indent(top)
}

// Scene returns the first scene whose normalized name matches, using the
// supplied normalizer.
func (d *Document) Scene(name string, normalize func(string) string) (Scene, bool) {
	target := normalize(name)
	for _, s := range d.Scenes {
		if normalize(s.Name) == target {
			return s, true
		}
	}
	return Scene{}, false
}

func isObjectJSON(raw json.RawMessage) bool {
	return strings.HasPrefix(string(bytes.TrimSpace(raw)), "{")
}

func indent(obj *object) ([]byte, error) {
	compact, err := obj.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, compact, "", "  "); err != nil {
		return nil, fmt.Errorf("indenting document: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
