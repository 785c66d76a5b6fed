package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/gray-logic-bridge/internal/catalog"
	"github.com/nerrad567/gray-logic-bridge/internal/infrastructure/influxdb"
)

const defaultHistoryWindow = 24 * time.Hour

// HistoryReader reads recorded device values back.
type HistoryReader interface {
	DeviceHistory(ctx context.Context, device string, since time.Time, limit int) ([]influxdb.HistoryPoint, error)
}

// handleDeviceHistory returns the recorded values of the device a phrase
// resolves to.
//
// Query parameters:
//   - q: the phrase (required)
//   - since: RFC 3339 timestamp (default 24 hours ago)
//   - limit: max points, newest kept (default 500)
func (s *Server) handleDeviceHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeInternalError(w, "device history not configured")
		return
	}

	q := r.URL.Query()
	query := q.Get("q")
	if query == "" {
		writeBadRequest(w, "q is required")
		return
	}

	since := time.Now().Add(-defaultHistoryWindow)
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeBadRequest(w, "since must be an RFC 3339 timestamp")
			return
		}
		since = t
	}
	limit := 0
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	lookup, err := s.service.Lookup(r.Context(), query, false)
	if errors.Is(err, catalog.ErrStateNotFound) {
		writeNotFound(w, "state document not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to resolve query", "query", query, "error", err)
		writeInternalError(w, "failed to resolve query")
		return
	}
	if lookup.Best == nil {
		writeNotFound(w, "device not found: "+query)
		return
	}

	points, err := s.history.DeviceHistory(r.Context(), lookup.Best.Label, since, limit)
	if err != nil {
		s.logger.Error("failed to read device history", "device", lookup.Best.Label, "error", err)
		writeInternalError(w, "failed to read device history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device": lookup.Best,
		"since":  since.UTC(),
		"points": points,
	})
}
