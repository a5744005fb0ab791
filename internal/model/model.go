package model

import "time"

// Engine kind constants. Kinds are unique within a registry.
const (
	KindDistributed = "distributed"
	KindLocal       = "local"
)

// Dispatch status constants.
const (
	DispatchRunning   = "running"
	DispatchCompleted = "completed"
	DispatchFailed    = "failed"
)

// Selection is an immutable snapshot of the active engine choice. Every
// resolution cycle publishes a fresh value; readers keep whichever snapshot
// they loaded for the duration of their call, so a concurrent re-selection
// can never produce a torn (kind, generation) pair.
type Selection struct {
	Kind       string    `json:"kind"`
	Generation uint64    `json:"generation"`
	ResolvedAt time.Time `json:"resolved_at"`
}

// SelectionRecord is the persisted audit row for one resolution cycle.
type SelectionRecord struct {
	Generation         uint64    `json:"generation"`
	Kind               string    `json:"kind"`
	EndpointConfigured bool      `json:"endpoint_configured"`
	Reachable          bool      `json:"reachable"`
	CreatedAt          time.Time `json:"created_at"`
}

// Dispatch is the audit record for a single routed operation call.
type Dispatch struct {
	ID         string     `json:"id"`
	Operation  string     `json:"operation"`
	EngineKind string     `json:"engine_kind"`
	Generation uint64     `json:"generation"`
	Status     string     `json:"status"`
	Error      string     `json:"error,omitempty"`
	DurationMS *int       `json:"duration_ms,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
