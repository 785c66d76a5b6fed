package control

import (
	"errors"
	"fmt"
)

var (
	// ErrNameRequired is returned for an empty or blank device name.
	ErrNameRequired = errors.New("control: name is required")

	// ErrDeviceNotFound is returned when no device matches.
	ErrDeviceNotFound = errors.New("control: device not found")

	// ErrIsBlind is returned when a power command resolves to a blind.
	ErrIsBlind = errors.New("control: device is a blind, use the blind endpoint")

	// ErrBlindNotFound is returned when no blind matches.
	ErrBlindNotFound = errors.New("control: blind not found")

	// ErrNotBlind is returned when a blind command resolves to another kind.
	ErrNotBlind = errors.New("control: device is not a blind, use the power endpoint")

	// ErrSceneNotFound is returned when no scene has the requested name.
	ErrSceneNotFound = errors.New("control: scene not found")

	// ErrInvalidValue is returned for a value the device cannot take.
	ErrInvalidValue = errors.New("control: invalid value")
)

// Ambiguity reasons.
const (
	ReasonRoomBlinds = "more blinds in the room"
	ReasonManyBlinds = "more blinds match"
)

// Option is one device the caller may pick to settle an ambiguity.
type Option struct {
	Room string `json:"room"`
	Name string `json:"name"`
}

// AmbiguousError is returned when a blind command matches more than one
// blind. Requested is the clamped level the caller asked for, so a client
// can repeat the command with one of Options.
type AmbiguousError struct {
	Reason    string
	Requested int
	Options   []Option
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("control: ambiguous request: %s (%d options)", e.Reason, len(e.Options))
}
