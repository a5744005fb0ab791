package api

import (
	"errors"
	"net/http"

	"switchyard/internal/engine"
	"switchyard/internal/model"
)

const defaultHistoryLimit = 50

// selectionResponse is the JSON body for GET /v1/selection. Selection is
// nil while unresolved.
type selectionResponse struct {
	Resolved  bool             `json:"resolved"`
	Selection *model.Selection `json:"selection,omitempty"`
}

// handleGetSelection reports the active selection without resolving it.
// This is the explicit query surface for observing fallback: selection is
// silent on the happy path and a caller inspects it here.
func (s *Server) handleGetSelection(w http.ResponseWriter, _ *http.Request) {
	sel := s.selector.Current()
	s.writeJSON(w, http.StatusOK, selectionResponse{
		Resolved:  sel != nil,
		Selection: sel,
	})
}

// handleReconfigure forces a fresh probe-and-select cycle and returns the
// new selection. In-flight dispatches finish against the snapshot they
// started with.
func (s *Server) handleReconfigure(w http.ResponseWriter, r *http.Request) {
	sel, err := s.dispatcher.Reconfigure(r.Context())
	if err != nil {
		if errors.Is(err, engine.ErrNoEngineAvailable) {
			s.writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		s.logger.Error("reconfigure", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to reconfigure")
		return
	}

	s.writeJSON(w, http.StatusOK, selectionResponse{Resolved: true, Selection: sel})
}

// handleSelectionHistory lists recent selection cycles, newest first.
func (s *Server) handleSelectionHistory(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", defaultHistoryLimit)
	if limit <= 0 || limit > maxListLimit {
		limit = defaultHistoryLimit
	}

	records, err := s.store.ListSelections(r.Context(), limit)
	if err != nil {
		s.logger.Error("list selections", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list selections")
		return
	}
	if records == nil {
		records = []*model.SelectionRecord{}
	}

	s.writeJSON(w, http.StatusOK, records)
}
