package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"switchyard/internal/engine"
	"switchyard/internal/model"
	"switchyard/internal/store"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
	maxBodySize      = 8 << 20
)

// dispatchRequest is the JSON body for POST /v1/dispatches.
type dispatchRequest struct {
	Operation string          `json:"operation"`
	Args      json.RawMessage `json:"args"`
}

// listDispatchesResponse wraps the paginated list response.
type listDispatchesResponse struct {
	Dispatches []*model.Dispatch `json:"dispatches"`
	Total      int               `json:"total"`
	Limit      int               `json:"limit"`
	Offset     int               `json:"offset"`
}

// handleDispatch routes one operation call through the dispatcher. Handler
// failures surface with their original error text; an operation the active
// engine does not support is 422, and the caller decides whether to retry
// after a reconfigure.
func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	var req dispatchRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Operation == "" {
		s.writeError(w, http.StatusBadRequest, "operation is required")
		return
	}

	outcome, err := s.dispatcher.Dispatch(r.Context(), req.Operation, req.Args)
	if err != nil {
		var unsupported *engine.UnsupportedOperationError
		switch {
		case errors.As(err, &unsupported):
			s.writeError(w, http.StatusUnprocessableEntity, unsupported.Error())
		case errors.Is(err, engine.ErrNoEngineAvailable):
			s.writeError(w, http.StatusServiceUnavailable, err.Error())
		default:
			s.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	s.writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleGetDispatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	d, err := s.store.GetDispatch(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "dispatch not found")
		return
	}
	if err != nil {
		s.logger.Error("get dispatch", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get dispatch")
		return
	}

	s.writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleListDispatches(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", defaultListLimit)
	offset := parseIntQuery(r, "offset", 0)

	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	dispatches, total, err := s.store.ListDispatches(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("list dispatches", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list dispatches")
		return
	}

	if dispatches == nil {
		dispatches = []*model.Dispatch{}
	}

	s.writeJSON(w, http.StatusOK, listDispatchesResponse{
		Dispatches: dispatches,
		Total:      total,
		Limit:      limit,
		Offset:     offset,
	})
}
