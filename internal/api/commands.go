package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
)

var (
	errValueRequired = errors.New("value is required")
	errValueNumeric  = errors.New("value must be numeric")
)

// commandBody is a command request body. A body that is not a JSON object
// reads as empty, so the command fails on its missing fields.
type commandBody map[string]json.RawMessage

func decodeCommandBody(r *http.Request) commandBody {
	var body commandBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body == nil {
		return commandBody{}
	}
	return body
}

// name returns the name field; anything but a JSON string reads as empty.
func (b commandBody) name() string {
	var name string
	if raw, ok := b["name"]; ok {
		//nolint:errcheck // non-strings leave name empty
		json.Unmarshal(raw, &name)
	}
	return name
}

// on returns the truthiness of the on field: false when missing or null,
// zero, an empty string, array or object.
func (b commandBody) on() bool {
	raw, ok := b["on"]
	if !ok {
		return false
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return false
	}
}

// value returns the value field, a JSON number or a numeric string.
func (b commandBody) value() (float64, error) {
	raw, ok := b["value"]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return 0, errValueRequired
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}

	var str string
	if err := json.Unmarshal(raw, &str); err != nil {
		return 0, errValueNumeric
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(str), 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, errValueNumeric
	}
	return n, nil
}

// handleDevicePower switches a device on or off by name.
//
// Request: {"name": "luce cucina tavolo", "on": true}
func (s *Server) handleDevicePower(w http.ResponseWriter, r *http.Request) {
	body := decodeCommandBody(r)
	name := body.name()
	on := body.on()

	result, err := s.service.SetPower(r.Context(), name, on)
	if err != nil {
		s.writeServiceError(w, r, name, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":     true,
		"room":   result.Room,
		"device": result.Device,
		"label":  result.Label,
		"name":   name,
		"on":     result.On,
	})
}

// handleBlindSet positions a blind by name.
//
// Request: {"name": "tapparella cucina sud", "value": 40}
func (s *Server) handleBlindSet(w http.ResponseWriter, r *http.Request) {
	body := decodeCommandBody(r)
	name := body.name()

	if strings.TrimSpace(name) == "" {
		writeBadRequest(w, "name is required")
		return
	}
	value, err := body.value()
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	result, err := s.service.SetBlind(r.Context(), name, value)
	if err != nil {
		s.writeServiceError(w, r, name, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":     true,
		"room":   result.Room,
		"device": result.Device,
		"label":  result.Label,
		"name":   name,
		"value":  result.Value,
	})
}

// handleSceneRun runs a scene by name.
//
// Request: {"name": "buonanotte"}
func (s *Server) handleSceneRun(w http.ResponseWriter, r *http.Request) {
	name := decodeCommandBody(r).name()

	result, err := s.service.RunScene(r.Context(), name)
	if err != nil {
		s.writeServiceError(w, r, name, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":    true,
		"scene": result.Name,
		"name":  name,
	})
}
