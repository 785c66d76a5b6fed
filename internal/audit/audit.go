// Package audit records the changes the bridge makes and the state the
// field reports, in the audit_logs table.
package audit

import (
	"context"
	"time"
)

// Actions.
const (
	ActionCommand       = "command"
	ActionScene         = "scene"
	ActionExternalState = "external_state"
)

// Entity types.
const (
	EntityDevice = "device"
	EntityScene  = "scene"
)

// Sources.
const (
	SourceAPI   = "api"
	SourceField = "field"
)

// Page size bounds for List.
const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// Entry is one audit record. EntityID is the device or scene label the
// change resolved to; UserID is the token subject when auth is on.
type Entry struct {
	ID         string         `json:"id"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id,omitempty"`
	UserID     string         `json:"user_id,omitempty"`
	Source     string         `json:"source"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Filter selects entries; empty fields match everything.
type Filter struct {
	Action     string
	EntityType string
	EntityID   string
	Source     string
	Since      time.Time
	Limit      int
	Offset     int
}

// normalize clamps the paging fields.
func (f Filter) normalize() Filter {
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// ListResult is one page of entries, newest first.
type ListResult struct {
	Logs   []Entry `json:"logs"`
	Total  int     `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
}

// Repository stores audit entries.
type Repository interface {
	Create(ctx context.Context, entry *Entry) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}
