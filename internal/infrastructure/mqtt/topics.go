package mqtt

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Topic prefixes.
//
// Commands and field state use the flat scheme
// graylogic/{category}/{kind}/{device}; state owned by the bridge lives
// under graylogic/core.
const (
	TopicPrefix       = "graylogic"
	TopicPrefixCore   = "graylogic/core"
	TopicPrefixSystem = "graylogic/system"
)

// maxSegmentLength bounds a slugged topic segment.
const maxSegmentLength = 100

// Topics builds the bridge's MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.DeviceCommand("blind", "tapparella-cucina-1")
//	// graylogic/command/blind/tapparella-cucina-1
type Topics struct{}

// DeviceCommand is where a device change is announced to field bridges.
//
// Example: graylogic/command/switch/luce-cucina
func (Topics) DeviceCommand(kind, device string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefix, kind, device)
}

// SceneCommand is where a scene run is announced.
//
// Example: graylogic/command/scene/buonanotte
func (Topics) SceneCommand(scene string) string {
	return fmt.Sprintf("%s/command/scene/%s", TopicPrefix, scene)
}

// FieldState is where the field reports a device's actual state.
//
// Example: graylogic/state/blind/tapparella-cucina-1
func (Topics) FieldState(kind, device string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefix, kind, device)
}

// DeviceState is the retained state the bridge publishes after a change.
//
// Example: graylogic/core/device/luce-cucina/state
func (Topics) DeviceState(device string) string {
	return fmt.Sprintf("%s/device/%s/state", TopicPrefixCore, device)
}

// SystemStatus carries online/offline announcements and the Last Will.
//
// Example: graylogic/system/status
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// AllFieldStates matches every field state report.
//
// Pattern: graylogic/state/+/+
func (Topics) AllFieldStates() string {
	return TopicPrefix + "/state/+/+"
}

// AllDeviceStates matches every retained device state.
//
// Pattern: graylogic/core/device/+/state
func (Topics) AllDeviceStates() string {
	return TopicPrefixCore + "/device/+/state"
}

// ParseFieldState splits a field state topic into kind and device.
func ParseFieldState(topic string) (kind, device string, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != TopicPrefix || parts[1] != "state" {
		return "", "", false
	}
	if parts[2] == "" || parts[3] == "" {
		return "", "", false
	}
	return parts[2], parts[3], true
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Segment turns a device or scene name into a topic segment: accents
// stripped, lowercase ASCII letters and digits, runs of anything else
// replaced by one hyphen. "Soggiorno più" becomes "soggiorno-piu".
func Segment(name string) string {
	plain, _, err := transform.String(stripMarks, name)
	if err != nil {
		plain = name
	}

	var b strings.Builder
	hyphen := false
	for _, r := range strings.ToLower(plain) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			hyphen = false
			continue
		}
		if !hyphen && b.Len() > 0 {
			b.WriteByte('-')
			hyphen = true
		}
	}

	seg := strings.TrimRight(b.String(), "-")
	if len(seg) > maxSegmentLength {
		seg = strings.TrimRight(seg[:maxSegmentLength], "-")
	}
	return seg
}
