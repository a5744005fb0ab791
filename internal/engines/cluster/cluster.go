// Package cluster implements the distributed execution engine. Operations
// are forwarded as JSON over HTTP to an already-running worker; the engine
// never provisions or tears down cluster machines itself. Aggregations can
// additionally be sharded across concurrent worker calls.
package cluster

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"switchyard/internal/dataset"
	"switchyard/internal/engine"
	"switchyard/internal/model"
	"switchyard/internal/probe"
)

// Rank places the distributed engine first in the selection order:
// prefer distributed when available.
const Rank = 1

const defaultRequestTimeout = 60 * time.Second

// Engine forwards dataset operations to a cluster worker over HTTP.
type Engine struct {
	endpoint string
	client   *http.Client
	shards   int
	handlers map[string]engine.Handler
}

// Compile-time interface satisfaction check.
var _ engine.Engine = (*Engine)(nil)

// New creates a distributed engine targeting the given worker endpoint.
// When shards > 1, aggregate requests are partitioned and fanned out across
// that many concurrent worker calls.
func New(endpoint string, shards int) *Engine {
	e := &Engine{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   &http.Client{Timeout: defaultRequestTimeout},
		shards:   shards,
	}
	e.handlers = map[string]engine.Handler{
		dataset.OpAggregate: e.aggregate,
		dataset.OpFilter:    e.forwardOp(dataset.OpFilter),
		dataset.OpSort:      e.forwardOp(dataset.OpSort),
	}
	return e
}

// Kind returns model.KindDistributed.
func (e *Engine) Kind() string { return model.KindDistributed }

// Rank returns the engine's selection rank.
func (e *Engine) Rank() int { return Rank }

// Ready requires a configured, reachable endpoint. Capability flags do not
// enter the predicate; they gate engine registration at wiring time.
func (e *Engine) Ready(res probe.Result) bool {
	return res.EndpointConfigured && res.Reachable
}

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

// forwardOp returns a handler that sends the operation to the worker as-is.
func (e *Engine) forwardOp(operation string) engine.Handler {
	return func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
		return e.forward(ctx, operation, args)
	}
}

// forward posts one operation call to the worker and returns its response
// body verbatim. Worker failures come back as errors carrying the worker's
// message; the engine adds no retry logic.
func (e *Engine) forward(ctx context.Context, operation string, args json.RawMessage) (json.RawMessage, error) {
	url := e.endpoint + "/v1/ops/" + operation
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(args))
	if err != nil {
		return nil, fmt.Errorf("build worker request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call worker: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read worker response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var payload struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
			return nil, fmt.Errorf("worker: %s", payload.Error)
		}
		return nil, fmt.Errorf("worker returned status %d", resp.StatusCode)
	}

	return body, nil
}
