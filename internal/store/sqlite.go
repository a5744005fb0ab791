package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"switchyard/internal/model"

	_ "modernc.org/sqlite"
)

const createDispatchesTable = `
CREATE TABLE IF NOT EXISTS dispatches (
    id          TEXT PRIMARY KEY,
    operation   TEXT NOT NULL,
    engine_kind TEXT NOT NULL,
    generation  INTEGER NOT NULL,
    status      TEXT NOT NULL,
    error       TEXT,
    duration_ms INTEGER,
    created_at  DATETIME NOT NULL,
    finished_at DATETIME
)`

const createSelectionsTable = `
CREATE TABLE IF NOT EXISTS selections (
    generation          INTEGER PRIMARY KEY,
    kind                TEXT NOT NULL,
    endpoint_configured INTEGER NOT NULL,
    reachable           INTEGER NOT NULL,
    created_at          DATETIME NOT NULL
)`

// Compile-time interface satisfaction check.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the SQLite database at dbPath and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	for _, stmt := range []string{createDispatchesTable, createSelectionsTable} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create table: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateDispatch inserts a new dispatch record.
func (s *SQLiteStore) CreateDispatch(ctx context.Context, d *model.Dispatch) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dispatches (
			id, operation, engine_kind, generation, status,
			error, duration_ms, created_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Operation, d.EngineKind, d.Generation, d.Status,
		d.Error, d.DurationMS, d.CreatedAt, d.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert dispatch: %w", err)
	}
	return nil
}

// FinishDispatch marks a dispatch as finished with the given status,
// error message, and duration.
func (s *SQLiteStore) FinishDispatch(ctx context.Context, id, status, errMsg string, durationMS int) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE dispatches
		 SET status = ?, error = ?, duration_ms = ?, finished_at = ?
		 WHERE id = ?`,
		status, errMsg, durationMS, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("finish dispatch: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetDispatch retrieves a dispatch record by ID.
func (s *SQLiteStore) GetDispatch(ctx context.Context, id string) (*model.Dispatch, error) {
	d := &model.Dispatch{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, operation, engine_kind, generation, status,
			error, duration_ms, created_at, finished_at
		FROM dispatches WHERE id = ?`, id,
	).Scan(
		&d.ID, &d.Operation, &d.EngineKind, &d.Generation, &d.Status,
		&d.Error, &d.DurationMS, &d.CreatedAt, &d.FinishedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get dispatch: %w", err)
	}
	return d, nil
}

// ListDispatches returns a paginated list of dispatches, newest first, along
// with the total count.
func (s *SQLiteStore) ListDispatches(ctx context.Context, limit, offset int) ([]*model.Dispatch, int, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, 0, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	var total int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM dispatches").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count dispatches: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT id, operation, engine_kind, generation, status,
			error, duration_ms, created_at, finished_at
		FROM dispatches ORDER BY id DESC LIMIT ? OFFSET ?`, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list dispatches: %w", err)
	}
	defer rows.Close()

	var dispatches []*model.Dispatch
	for rows.Next() {
		d := &model.Dispatch{}
		if err := rows.Scan(
			&d.ID, &d.Operation, &d.EngineKind, &d.Generation, &d.Status,
			&d.Error, &d.DurationMS, &d.CreatedAt, &d.FinishedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan dispatch: %w", err)
		}
		dispatches = append(dispatches, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate dispatches: %w", err)
	}

	return dispatches, total, nil
}

// GetDispatchStats computes aggregate dispatch statistics.
func (s *SQLiteStore) GetDispatchStats(ctx context.Context) (*DispatchStats, error) {
	stats := &DispatchStats{
		CountByEngine: make(map[string]int),
		CountByStatus: make(map[string]int),
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT engine_kind, status, COUNT(*) FROM dispatches GROUP BY engine_kind, status")
	if err != nil {
		return nil, fmt.Errorf("count dispatches: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var kind, status string
		var count int
		if err := rows.Scan(&kind, &status, &count); err != nil {
			return nil, fmt.Errorf("scan dispatch counts: %w", err)
		}
		stats.Total += count
		stats.CountByEngine[kind] += count
		stats.CountByStatus[status] += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dispatch counts: %w", err)
	}

	var avg sql.NullFloat64
	err = s.db.QueryRowContext(ctx,
		"SELECT AVG(duration_ms) FROM dispatches WHERE duration_ms IS NOT NULL").Scan(&avg)
	if err != nil {
		return nil, fmt.Errorf("average duration: %w", err)
	}
	if avg.Valid {
		stats.AvgDurationMS = avg.Float64
	}

	return stats, nil
}

// InsertSelection records one resolution cycle.
func (s *SQLiteStore) InsertSelection(ctx context.Context, rec *model.SelectionRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO selections (generation, kind, endpoint_configured, reachable, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.Generation, rec.Kind, rec.EndpointConfigured, rec.Reachable, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert selection: %w", err)
	}
	return nil
}

// ListSelections returns the most recent selection records, newest first.
func (s *SQLiteStore) ListSelections(ctx context.Context, limit int) ([]*model.SelectionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT generation, kind, endpoint_configured, reachable, created_at
		FROM selections ORDER BY generation DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list selections: %w", err)
	}
	defer rows.Close()

	var records []*model.SelectionRecord
	for rows.Next() {
		rec := &model.SelectionRecord{}
		if err := rows.Scan(
			&rec.Generation, &rec.Kind, &rec.EndpointConfigured, &rec.Reachable, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan selection: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate selections: %w", err)
	}

	return records, nil
}
