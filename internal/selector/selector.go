// Package selector owns the process-wide active engine selection. It applies
// a deterministic precedence policy: engines are tried in registry rank
// order and the first one whose readiness predicate passes against a fresh
// environment probe wins. The selector is the only component that mutates
// the active selection.
package selector

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"switchyard/internal/engine"
	"switchyard/internal/model"
	"switchyard/internal/probe"
)

// Prober is the environment probe consumed by selection cycles.
// *probe.Prober satisfies it; tests substitute fixed results.
type Prober interface {
	Probe(ctx context.Context) probe.Result
}

// Recorder observes each published selection, typically to persist it in
// the audit store. A nil Recorder disables recording.
type Recorder interface {
	InsertSelection(ctx context.Context, rec *model.SelectionRecord) error
}

// Selector picks exactly one engine from the registry based on environment
// probes and publishes the choice as an immutable snapshot.
type Selector struct {
	registry *engine.Registry
	prober   Prober
	recorder Recorder
	logger   *slog.Logger

	// mu serializes writers so one probe-then-select cycle can never
	// interleave with another. Readers never take it: they load the
	// published snapshot atomically.
	mu         sync.Mutex
	generation uint64
	current    atomic.Pointer[model.Selection]
	lastProbe  atomic.Pointer[probe.Result]
}

// New creates a selector over the given registry and prober. The selection
// starts unresolved; the first Resolve or Reconfigure call publishes one.
func New(reg *engine.Registry, p Prober, rec Recorder, logger *slog.Logger) *Selector {
	return &Selector{
		registry: reg,
		prober:   p,
		recorder: rec,
		logger:   logger,
	}
}

// Current returns the active selection snapshot, or nil while unresolved.
// The returned value is immutable; re-selection publishes a new snapshot
// rather than mutating this one.
func (s *Selector) Current() *model.Selection {
	return s.current.Load()
}

// LastProbe returns the most recent probe result, or nil if no cycle has
// run yet.
func (s *Selector) LastProbe() *probe.Result {
	return s.lastProbe.Load()
}

// Resolve returns the current selection, running one probe-and-select cycle
// first if the selection is still unresolved.
func (s *Selector) Resolve(ctx context.Context) (*model.Selection, error) {
	if sel := s.current.Load(); sel != nil {
		return sel, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another caller may have resolved while we waited on the lock.
	if sel := s.current.Load(); sel != nil {
		return sel, nil
	}
	return s.reselect(ctx)
}

// Reconfigure unconditionally re-probes the environment and re-selects,
// bumping the generation counter. Dispatches that loaded the previous
// snapshot finish against the engine they started with.
func (s *Selector) Reconfigure(ctx context.Context) (*model.Selection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reconfiguresTotal.Inc()
	return s.reselect(ctx)
}

// reselect runs one probe-then-select cycle. Callers hold mu.
func (s *Selector) reselect(ctx context.Context) (*model.Selection, error) {
	start := time.Now()
	res := s.prober.Probe(ctx)
	probeDuration.Observe(time.Since(start).Seconds())
	s.lastProbe.Store(&res)

	for _, e := range s.registry.List() {
		if !e.Ready(res) {
			continue
		}

		s.generation++
		sel := &model.Selection{
			Kind:       e.Kind(),
			Generation: s.generation,
			ResolvedAt: time.Now().UTC(),
		}
		// Record before publishing so a reader can never observe a
		// generation that is missing from the audit trail.
		s.record(ctx, sel, res)
		s.publishMetrics(sel)
		s.current.Store(sel)

		s.logger.Info("engine selected",
			"kind", sel.Kind,
			"generation", sel.Generation,
			"endpoint_configured", res.EndpointConfigured,
			"reachable", res.Reachable,
		)
		return sel, nil
	}

	return nil, engine.ErrNoEngineAvailable
}

// publishMetrics marks the chosen kind active and all other registered
// kinds inactive.
func (s *Selector) publishMetrics(sel *model.Selection) {
	for _, e := range s.registry.List() {
		v := 0.0
		if e.Kind() == sel.Kind {
			v = 1.0
		}
		activeEngine.WithLabelValues(e.Kind()).Set(v)
	}
	selectionsTotal.WithLabelValues(sel.Kind).Inc()
}

// record persists the selection in the audit store. Persistence failures
// are logged and never fail the selection itself.
func (s *Selector) record(ctx context.Context, sel *model.Selection, res probe.Result) {
	if s.recorder == nil {
		return
	}

	rec := &model.SelectionRecord{
		Generation:         sel.Generation,
		Kind:               sel.Kind,
		EndpointConfigured: res.EndpointConfigured,
		Reachable:          res.Reachable,
		CreatedAt:          sel.ResolvedAt,
	}
	if err := s.recorder.InsertSelection(ctx, rec); err != nil {
		s.logger.Error("record selection", "generation", sel.Generation, "error", err)
	}
}
