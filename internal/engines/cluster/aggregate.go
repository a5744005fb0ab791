package cluster

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"switchyard/internal/dataset"
)

// minRowsPerShard keeps tiny datasets on a single worker call, where the
// fan-out overhead would exceed any gain.
const minRowsPerShard = 2

// aggregate partitions the request rows into shards, aggregates each shard
// on the worker concurrently, and merges the partial results. Small
// requests, or engines configured without sharding, forward in one call.
func (e *Engine) aggregate(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	if e.shards <= 1 {
		return e.forward(ctx, dataset.OpAggregate, args)
	}

	var req dataset.AggregateRequest
	if err := json.Unmarshal(args, &req); err != nil {
		return nil, fmt.Errorf("decode aggregate request: %w", err)
	}
	if len(req.Rows) < e.shards*minRowsPerShard {
		return e.forward(ctx, dataset.OpAggregate, args)
	}

	parts := partition(req.Rows, e.shards)
	partials := make([]dataset.AggregateResult, len(parts))

	g, gctx := errgroup.WithContext(ctx)
	for i, rows := range parts {
		i, rows := i, rows
		g.Go(func() error {
			body, err := json.Marshal(dataset.AggregateRequest{
				Rows:   rows,
				Column: req.Column,
				Func:   req.Func,
			})
			if err != nil {
				return fmt.Errorf("encode shard %d: %w", i, err)
			}
			out, err := e.forward(gctx, dataset.OpAggregate, body)
			if err != nil {
				return fmt.Errorf("shard %d: %w", i, err)
			}
			return json.Unmarshal(out, &partials[i])
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged, err := dataset.Merge(req.Func, req.Column, partials)
	if err != nil {
		return nil, err
	}
	return json.Marshal(merged)
}

// partition splits rows into at most n contiguous, near-equal chunks.
func partition(rows []dataset.Row, n int) [][]dataset.Row {
	if n > len(rows) {
		n = len(rows)
	}
	parts := make([][]dataset.Row, 0, n)
	size := (len(rows) + n - 1) / n
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		parts = append(parts, rows[start:end])
	}
	return parts
}
