// Package dataset implements the built-in dataset operations shared by the
// local engine and the cluster worker. Operations take and return raw JSON
// so they plug directly into the engine handler surface.
package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
)

// Operation names. Both engines expose the same vocabulary so callers see a
// uniform surface regardless of which engine is active.
const (
	OpAggregate = "dataset.aggregate"
	OpFilter    = "dataset.filter"
	OpSort      = "dataset.sort"
)

// Aggregate function names.
const (
	AggSum   = "sum"
	AggMean  = "mean"
	AggMin   = "min"
	AggMax   = "max"
	AggCount = "count"
)

// Row is one dataset record.
type Row map[string]any

// AggregateRequest asks for one aggregate over a numeric column.
type AggregateRequest struct {
	Rows   []Row  `json:"rows"`
	Column string `json:"column"`
	Func   string `json:"func"`
}

// AggregateResult carries the aggregate value plus the partial sums needed
// to merge shard results (see Merge).
type AggregateResult struct {
	Func   string  `json:"func"`
	Column string  `json:"column"`
	Value  float64 `json:"value"`
	Count  int     `json:"count"`
	Sum    float64 `json:"sum"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// FilterRequest selects rows whose column compares against a value.
// Op is one of eq, ne, gt, lt, ge, le.
type FilterRequest struct {
	Rows   []Row  `json:"rows"`
	Column string `json:"column"`
	Op     string `json:"op"`
	Value  any    `json:"value"`
}

// FilterResult holds the matching rows.
type FilterResult struct {
	Rows    []Row `json:"rows"`
	Matched int   `json:"matched"`
}

// SortRequest orders rows by a column.
type SortRequest struct {
	Rows   []Row  `json:"rows"`
	Column string `json:"column"`
	Desc   bool   `json:"desc"`
}

// SortResult holds the ordered rows.
type SortResult struct {
	Rows []Row `json:"rows"`
}

// Aggregate computes one aggregate over a numeric column. All partial fields
// (Sum, Count, Min, Max) are populated regardless of the requested function
// so results can be merged across shards.
func Aggregate(_ context.Context, args json.RawMessage) (json.RawMessage, error) {
	var req AggregateRequest
	if err := json.Unmarshal(args, &req); err != nil {
		return nil, fmt.Errorf("decode aggregate request: %w", err)
	}
	if req.Column == "" {
		return nil, fmt.Errorf("column is required")
	}
	if !validAggFunc(req.Func) {
		return nil, fmt.Errorf("unknown aggregate func %q", req.Func)
	}

	res := AggregateResult{Func: req.Func, Column: req.Column}
	for i, row := range req.Rows {
		v, ok := row[req.Column]
		if !ok {
			return nil, fmt.Errorf("row %d has no column %q", i, req.Column)
		}
		n, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("row %d: column %q is not numeric", i, req.Column)
		}

		if res.Count == 0 || n < res.Min {
			res.Min = n
		}
		if res.Count == 0 || n > res.Max {
			res.Max = n
		}
		res.Sum += n
		res.Count++
	}

	if err := finalize(&res); err != nil {
		return nil, err
	}
	return json.Marshal(res)
}

// Merge combines shard-level aggregate partials into one result.
func Merge(fn, column string, partials []AggregateResult) (AggregateResult, error) {
	res := AggregateResult{Func: fn, Column: column}
	for _, p := range partials {
		if p.Count == 0 {
			continue
		}
		if res.Count == 0 || p.Min < res.Min {
			res.Min = p.Min
		}
		if res.Count == 0 || p.Max > res.Max {
			res.Max = p.Max
		}
		res.Sum += p.Sum
		res.Count += p.Count
	}
	if err := finalize(&res); err != nil {
		return AggregateResult{}, err
	}
	return res, nil
}

// finalize derives Value from the accumulated partials.
func finalize(res *AggregateResult) error {
	switch res.Func {
	case AggCount:
		res.Value = float64(res.Count)
		return nil
	case AggSum:
		res.Value = res.Sum
		return nil
	}

	// mean/min/max are undefined over zero rows.
	if res.Count == 0 {
		return fmt.Errorf("aggregate %q over zero rows", res.Func)
	}
	switch res.Func {
	case AggMean:
		res.Value = res.Sum / float64(res.Count)
	case AggMin:
		res.Value = res.Min
	case AggMax:
		res.Value = res.Max
	}
	return nil
}

func validAggFunc(fn string) bool {
	switch fn {
	case AggSum, AggMean, AggMin, AggMax, AggCount:
		return true
	}
	return false
}

// Filter returns the rows whose column matches the comparison. Rows missing
// the column, or whose value's type does not match the comparison value,
// are excluded.
func Filter(_ context.Context, args json.RawMessage) (json.RawMessage, error) {
	var req FilterRequest
	if err := json.Unmarshal(args, &req); err != nil {
		return nil, fmt.Errorf("decode filter request: %w", err)
	}
	if req.Column == "" {
		return nil, fmt.Errorf("column is required")
	}
	if !validFilterOp(req.Op) {
		return nil, fmt.Errorf("unknown filter op %q", req.Op)
	}

	out := FilterResult{Rows: []Row{}}
	for _, row := range req.Rows {
		v, ok := row[req.Column]
		if !ok {
			continue
		}
		cmp, ok := compare(v, req.Value)
		if !ok {
			continue
		}
		if opMatches(req.Op, cmp) {
			out.Rows = append(out.Rows, row)
		}
	}
	out.Matched = len(out.Rows)
	return json.Marshal(out)
}

func validFilterOp(op string) bool {
	switch op {
	case "eq", "ne", "gt", "lt", "ge", "le":
		return true
	}
	return false
}

// compare orders two JSON values of the same type. Numbers compare
// numerically, strings lexically, booleans with false < true.
func compare(a, b any) (int, bool) {
	switch av := a.(type) {
	case float64:
		bv, ok := b.(float64)
		if !ok {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		}
		return 0, true
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		}
		return 0, true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case av == bv:
			return 0, true
		case bv:
			return -1, true
		}
		return 1, true
	}
	return 0, false
}

func opMatches(op string, cmp int) bool {
	switch op {
	case "eq":
		return cmp == 0
	case "ne":
		return cmp != 0
	case "gt":
		return cmp > 0
	case "lt":
		return cmp < 0
	case "ge":
		return cmp >= 0
	case "le":
		return cmp <= 0
	}
	return false
}

// Sort orders rows by a column. The sort is stable; rows missing the column
// or holding an incomparable type sort after all comparable rows.
func Sort(_ context.Context, args json.RawMessage) (json.RawMessage, error) {
	var req SortRequest
	if err := json.Unmarshal(args, &req); err != nil {
		return nil, fmt.Errorf("decode sort request: %w", err)
	}
	if req.Column == "" {
		return nil, fmt.Errorf("column is required")
	}

	rows := make([]Row, len(req.Rows))
	copy(rows, req.Rows)

	sort.SliceStable(rows, func(i, j int) bool {
		vi, iOK := rows[i][req.Column]
		vj, jOK := rows[j][req.Column]
		if !iOK || !jOK {
			// Missing values sort last regardless of direction.
			return iOK && !jOK
		}
		cmp, ok := compare(vi, vj)
		if !ok {
			return false
		}
		if req.Desc {
			return cmp > 0
		}
		return cmp < 0
	})

	return json.Marshal(SortResult{Rows: rows})
}
