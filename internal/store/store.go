// Package store persists dispatch and selection audit records.
package store

import (
	"context"
	"errors"

	"switchyard/internal/model"
)

// ErrNotFound is returned when a dispatch record is not found.
var ErrNotFound = errors.New("dispatch not found")

// DispatchStats holds aggregate dispatch statistics.
type DispatchStats struct {
	Total         int            `json:"total"`
	CountByEngine map[string]int `json:"count_by_engine"`
	CountByStatus map[string]int `json:"count_by_status"`
	AvgDurationMS float64        `json:"avg_duration_ms"`
}

// Store defines the persistence operations for the audit trail.
type Store interface {
	CreateDispatch(ctx context.Context, d *model.Dispatch) error
	FinishDispatch(ctx context.Context, id, status, errMsg string, durationMS int) error
	GetDispatch(ctx context.Context, id string) (*model.Dispatch, error)
	ListDispatches(ctx context.Context, limit, offset int) ([]*model.Dispatch, int, error)
	GetDispatchStats(ctx context.Context) (*DispatchStats, error)
	InsertSelection(ctx context.Context, rec *model.SelectionRecord) error
	ListSelections(ctx context.Context, limit int) ([]*model.SelectionRecord, error)
	Close() error
}
