package api

import (
	"errors"
	"net/http"

	"github.com/nerrad567/gray-logic-bridge/internal/catalog"
)

// kindBlind is the only kind filter /resolve accepts.
const kindBlind = "blind"

// handleGetState returns the state document as stored.
func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	var data []byte
	err := s.store.View(r.Context(), func(doc *catalog.Document, _ catalog.AliasTable) error {
		var err error
		data, err = doc.Encode()
		return err
	})
	if errors.Is(err, catalog.ErrStateNotFound) {
		writeNotFound(w, "state document not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to read state document", "error", err)
		writeInternalError(w, "failed to read state document")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // Best-effort write to response; connection may be closed
	w.Write(data)
}

// handleResolve shows what a phrase resolves to without changing anything.
//
// Query parameters:
//   - q: the phrase (required)
//   - kind: "blind" to restrict the match list to blinds
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := q.Get("q")
	if query == "" {
		writeBadRequest(w, "q is required")
		return
	}

	kind := q.Get("kind")
	if kind != "" && kind != kindBlind {
		writeBadRequest(w, `kind must be "blind" or empty`)
		return
	}

	result, err := s.service.Lookup(r.Context(), query, kind == kindBlind)
	if errors.Is(err, catalog.ErrStateNotFound) {
		writeNotFound(w, "state document not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to resolve query", "query", query, "error", err)
		writeInternalError(w, "failed to resolve query")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
