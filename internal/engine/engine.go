package engine

import (
	"context"
	"encoding/json"

	"switchyard/internal/probe"
)

// Handler executes one named operation. Arguments and results are raw JSON
// so the dispatcher stays agnostic to each operation's shape.
type Handler func(ctx context.Context, args json.RawMessage) (json.RawMessage, error)

// Engine is the interface all execution engines implement.
type Engine interface {
	// Kind returns the engine's kind, unique within a registry.
	Kind() string

	// Rank is the engine's position in the selection order. Lower rank wins.
	// Ranks are unique within a registry, so selection needs no tie-break.
	Rank() int

	// Ready reports whether the engine can serve dispatches given a fresh
	// environment probe. Must be pure: no I/O, no side effects.
	Ready(res probe.Result) bool

	// Handler returns the handler for the named operation, if this engine
	// supports it.
	Handler(operation string) (Handler, bool)

	// Operations lists the operation names this engine supports, sorted.
	Operations() []string
}

// Info describes a registered engine in API responses.
type Info struct {
	Kind       string   `json:"kind"`
	Rank       int      `json:"rank"`
	Operations []string `json:"operations"`
	Ready      bool     `json:"ready"`
}
