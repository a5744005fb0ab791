// Package dispatch routes operation calls to the currently selected engine.
// The dispatcher is a transparent router: handler results and errors pass
// through verbatim, with no retry, fallback, or suppression. Each call is
// recorded in the audit store and published to the event broker.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"switchyard/internal/engine"
	"switchyard/internal/model"
	"switchyard/internal/selector"
	"switchyard/internal/store"
)

// Outcome pairs a handler result with the routing metadata recorded for it.
type Outcome struct {
	DispatchID string          `json:"dispatch_id"`
	EngineKind string          `json:"engine_kind"`
	Generation uint64          `json:"generation"`
	DurationMS int             `json:"duration_ms"`
	Result     json.RawMessage `json:"result"`
}

// Dispatcher presents one uniform operation-invocation surface over the
// registered engines.
type Dispatcher struct {
	selector *selector.Selector
	registry *engine.Registry
	store    store.Store
	logger   *slog.Logger
	broker   *EventBroker
}

// NewDispatcher creates a dispatcher over the given selector and registry.
func NewDispatcher(sel *selector.Selector, reg *engine.Registry, st store.Store, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		selector: sel,
		registry: reg,
		store:    st,
		logger:   logger,
		broker:   NewEventBroker(),
	}
}

// Broker returns the dispatcher's event broker for SSE subscription.
func (d *Dispatcher) Broker() *EventBroker {
	return d.broker
}

// Dispatch routes one operation call to the active engine. The selection
// snapshot is taken once at entry; a concurrent Reconfigure never switches
// a call mid-flight. Handler errors are returned verbatim.
func (d *Dispatcher) Dispatch(ctx context.Context, operation string, args json.RawMessage) (*Outcome, error) {
	sel, err := d.selector.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	eng, ok := d.registry.Get(sel.Kind)
	if !ok {
		// A selection always names a registered engine; reaching this means
		// the registry was mutated after startup.
		return nil, fmt.Errorf("selected engine %q is not registered", sel.Kind)
	}

	h, ok := eng.Handler(operation)
	if !ok {
		return nil, &engine.UnsupportedOperationError{Operation: operation, Kind: sel.Kind}
	}

	rec := &model.Dispatch{
		ID:         model.NewID(),
		Operation:  operation,
		EngineKind: sel.Kind,
		Generation: sel.Generation,
		Status:     model.DispatchRunning,
		CreatedAt:  time.Now().UTC(),
	}
	if err := d.store.CreateDispatch(ctx, rec); err != nil {
		// Audit only; never blocks the call itself.
		d.logger.Error("create dispatch record", "dispatch_id", rec.ID, "error", err)
	}

	dispatchesInFlight.WithLabelValues(sel.Kind).Inc()
	start := time.Now()
	result, err := h(ctx, args)
	duration := time.Since(start)
	dispatchesInFlight.WithLabelValues(sel.Kind).Dec()

	status := model.DispatchCompleted
	errMsg := ""
	if err != nil {
		status = model.DispatchFailed
		errMsg = err.Error()
	}
	d.finish(rec, status, errMsg, duration)

	if err != nil {
		return nil, err
	}
	return &Outcome{
		DispatchID: rec.ID,
		EngineKind: sel.Kind,
		Generation: sel.Generation,
		DurationMS: int(duration.Milliseconds()),
		Result:     result,
	}, nil
}

// Reconfigure forces a fresh probe-and-select cycle. The previous selection
// stays in effect for dispatches already in flight.
func (d *Dispatcher) Reconfigure(ctx context.Context) (*model.Selection, error) {
	return d.selector.Reconfigure(ctx)
}

// finish closes out the audit record and publishes the dispatch event.
// Uses a background context: the caller's context may already be done, and
// the audit trail should still record the outcome.
func (d *Dispatcher) finish(rec *model.Dispatch, status, errMsg string, duration time.Duration) {
	durationMS := int(duration.Milliseconds())
	if err := d.store.FinishDispatch(context.Background(), rec.ID, status, errMsg, durationMS); err != nil {
		d.logger.Error("finish dispatch record", "dispatch_id", rec.ID, "error", err)
	}

	dispatchesTotal.WithLabelValues(rec.EngineKind, rec.Operation, status).Inc()
	dispatchDuration.WithLabelValues(rec.EngineKind, rec.Operation).Observe(duration.Seconds())

	d.broker.Publish(Event{
		DispatchID: rec.ID,
		Operation:  rec.Operation,
		EngineKind: rec.EngineKind,
		Generation: rec.Generation,
		Status:     status,
		DurationMS: durationMS,
		Error:      errMsg,
	})
}
