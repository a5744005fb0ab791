package api

import (
	"net/http"

	"switchyard/internal/engine"
	"switchyard/internal/probe"
)

// handleListEngines reports the registered engines in selection order, with
// readiness evaluated against the most recent probe. Before any resolution
// has run, readiness is evaluated against an empty probe result, so only
// unconditionally ready engines report ready.
func (s *Server) handleListEngines(w http.ResponseWriter, _ *http.Request) {
	var res probe.Result
	if last := s.selector.LastProbe(); last != nil {
		res = *last
	}

	engines := s.registry.List()
	infos := make([]engine.Info, 0, len(engines))
	for _, e := range engines {
		infos = append(infos, engine.Info{
			Kind:       e.Kind(),
			Rank:       e.Rank(),
			Operations: e.Operations(),
			Ready:      e.Ready(res),
		})
	}

	s.writeJSON(w, http.StatusOK, infos)
}
