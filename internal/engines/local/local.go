// Package local implements the single-process execution engine. It is the
// fallback of last resort: always ready, lowest selection priority, running
// every operation in-process.
package local

import (
	"sort"

	"switchyard/internal/dataset"
	"switchyard/internal/engine"
	"switchyard/internal/model"
	"switchyard/internal/probe"
)

// Rank places the local engine after the distributed engine in the
// selection order.
const Rank = 2

// Engine runs dataset operations in-process.
type Engine struct {
	handlers map[string]engine.Handler
}

// Compile-time interface satisfaction check.
var _ engine.Engine = (*Engine)(nil)

// New creates a local engine with the built-in dataset operations.
func New() *Engine {
	return &Engine{
		handlers: map[string]engine.Handler{
			dataset.OpAggregate: dataset.Aggregate,
			dataset.OpFilter:    dataset.Filter,
			dataset.OpSort:      dataset.Sort,
		},
	}
}

// Kind returns model.KindLocal.
func (e *Engine) Kind() string { return model.KindLocal }

// Rank returns the engine's selection rank.
func (e *Engine) Rank() int { return Rank }

// Ready always reports true. The local engine's unconditional readiness is
// what guarantees selection terminates with a choice on any non-empty
// registry that includes it.
func (e *Engine) Ready(_ probe.Result) bool { return true }

// Handler returns the handler for the named operation.
func (e *Engine) Handler(operation string) (engine.Handler, bool) {
	h, ok := e.handlers[operation]
	return h, ok
}

// Operations lists the supported operation names, sorted.
func (e *Engine) Operations() []string {
	ops := make([]string, 0, len(e.handlers))
	for name := range e.handlers {
		ops = append(ops, name)
	}
	sort.Strings(ops)
	return ops
}
