package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/seantiz/easel/internal/model"

	_ "modernc.org/sqlite"
)

const createBatchesTable = `
CREATE TABLE IF NOT EXISTS batches (
    id             TEXT PRIMARY KEY,
    kind           TEXT NOT NULL,
    status         TEXT NOT NULL,
    total          INTEGER NOT NULL,
    success_count  INTEGER NOT NULL DEFAULT 0,
    failed_indices TEXT NOT NULL DEFAULT '[]',
    backends       TEXT NOT NULL DEFAULT '[]',
    pool_size      INTEGER NOT NULL DEFAULT 0,
    error          TEXT NOT NULL DEFAULT '',
    created_at     DATETIME NOT NULL,
    finished_at    DATETIME
)`

const createTaskResultsTable = `
CREATE TABLE IF NOT EXISTS task_results (
    batch_id    TEXT NOT NULL REFERENCES batches(id),
    idx         INTEGER NOT NULL,
    artifact    TEXT NOT NULL,
    success     INTEGER NOT NULL,
    backend     TEXT NOT NULL,
    error       TEXT NOT NULL DEFAULT '',
    duration_ms INTEGER NOT NULL,
    created_at  DATETIME NOT NULL,
    PRIMARY KEY (batch_id, idx)
)`

// ErrNotFound is returned when a batch is not found.
var ErrNotFound = errors.New("batch not found")

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
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	for name, stmt := range map[string]string{
		"batches":      createBatchesTable,
		"task_results": createTaskResultsTable,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create %s table: %w", name, err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateBatch inserts a new batch record.
func (s *SQLiteStore) CreateBatch(ctx context.Context, b *model.Batch) error {
	failed, backends, err := encodeLists(b)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO batches (
			id, kind, status, total, success_count, failed_indices,
			backends, pool_size, error, created_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Kind, b.Status, b.Total, b.SuccessCount, failed,
		backends, b.PoolSize, b.Error, b.CreatedAt, b.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}
	return nil
}

// FinishBatch moves a running batch to its terminal status and records its
// outcome. Transitions not allowed by model.ValidTransition are rejected.
func (s *SQLiteStore) FinishBatch(ctx context.Context, b *model.Batch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx, "SELECT status FROM batches WHERE id = ?", b.ID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get batch status: %w", err)
	}
	if !model.ValidTransition(current, b.Status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, b.Status)
	}

	failed, backends, err := encodeLists(b)
	if err != nil {
		return err
	}
	finished := time.Now().UTC()
	if b.FinishedAt != nil {
		finished = *b.FinishedAt
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE batches SET status = ?, success_count = ?, failed_indices = ?,
			backends = ?, pool_size = ?, error = ?, finished_at = ?
		WHERE id = ?`,
		b.Status, b.SuccessCount, failed, backends, b.PoolSize, b.Error, finished, b.ID,
	); err != nil {
		return fmt.Errorf("update batch: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

const selectBatch = `SELECT id, kind, status, total, success_count, failed_indices,
	backends, pool_size, error, created_at, finished_at FROM batches`

type scanner interface {
	Scan(dest ...any) error
}

func scanBatch(row scanner) (*model.Batch, error) {
	b := &model.Batch{}
	var failed, backends string
	if err := row.Scan(
		&b.ID, &b.Kind, &b.Status, &b.Total, &b.SuccessCount, &failed,
		&backends, &b.PoolSize, &b.Error, &b.CreatedAt, &b.FinishedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(failed), &b.FailedIndices); err != nil {
		return nil, fmt.Errorf("decode failed_indices: %w", err)
	}
	if err := json.Unmarshal([]byte(backends), &b.Backends); err != nil {
		return nil, fmt.Errorf("decode backends: %w", err)
	}
	return b, nil
}

// GetBatch retrieves a batch by ID.
func (s *SQLiteStore) GetBatch(ctx context.Context, id string) (*model.Batch, error) {
	b, err := scanBatch(s.db.QueryRowContext(ctx, selectBatch+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get batch: %w", err)
	}
	return b, nil
}

// ListBatches returns a page of batches, newest first, along with the total
// count of all batches.
func (s *SQLiteStore) ListBatches(ctx context.Context, limit, offset int) ([]*model.Batch, int, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, 0, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	var total int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM batches").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count batches: %w", err)
	}

	rows, err := tx.QueryContext(ctx, selectBatch+" ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?", limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	var batches []*model.Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan batch: %w", err)
		}
		batches = append(batches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate batches: %w", err)
	}

	return batches, total, nil
}

// InsertTaskResult records one task outcome. A later result for the same
// batch and index replaces the earlier one.
func (s *SQLiteStore) InsertTaskResult(ctx context.Context, r *model.TaskRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO task_results (
			batch_id, idx, artifact, success, backend, error, duration_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.BatchID, r.Index, r.Artifact, r.Success, r.Backend, r.Error, r.DurationMS, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert task result: %w", err)
	}
	return nil
}

// GetTaskResults returns the task outcomes of a batch ordered by index.
func (s *SQLiteStore) GetTaskResults(ctx context.Context, batchID string) ([]model.TaskRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT batch_id, idx, artifact, success, backend, error, duration_ms, created_at
		FROM task_results WHERE batch_id = ? ORDER BY idx`, batchID,
	)
	if err != nil {
		return nil, fmt.Errorf("get task results: %w", err)
	}
	defer rows.Close()

	var out []model.TaskRecord
	for rows.Next() {
		var r model.TaskRecord
		if err := rows.Scan(&r.BatchID, &r.Index, &r.Artifact, &r.Success, &r.Backend, &r.Error, &r.DurationMS, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan task result: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task results: %w", err)
	}
	return out, nil
}

// GetBatchStats aggregates the batch history.
func (s *SQLiteStore) GetBatchStats(ctx context.Context) (*BatchStats, error) {
	stats := &BatchStats{
		CountByStatus: make(map[string]int),
		CountByKind:   make(map[string]int),
	}

	rows, err := s.db.QueryContext(ctx, "SELECT status, kind, COUNT(*) FROM batches GROUP BY status, kind")
	if err != nil {
		return nil, fmt.Errorf("count batches: %w", err)
	}
	for rows.Next() {
		var status, kind string
		var n int
		if err := rows.Scan(&status, &kind, &n); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan batch counts: %w", err)
		}
		stats.Total += n
		stats.CountByStatus[status] += n
		stats.CountByKind[kind] += n
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate batch counts: %w", err)
	}
	rows.Close()

	var avg sql.NullFloat64
	var succeeded sql.NullInt64
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), SUM(success), AVG(duration_ms) FROM task_results",
	).Scan(&stats.TasksTotal, &succeeded, &avg); err != nil {
		return nil, fmt.Errorf("aggregate task results: %w", err)
	}
	stats.TasksSucceeded = int(succeeded.Int64)
	stats.AvgTaskDurationMS = avg.Float64

	return stats, nil
}

func encodeLists(b *model.Batch) (string, string, error) {
	failed := b.FailedIndices
	if failed == nil {
		failed = []int{}
	}
	backends := b.Backends
	if backends == nil {
		backends = []string{}
	}
	f, err := json.Marshal(failed)
	if err != nil {
		return "", "", fmt.Errorf("encode failed_indices: %w", err)
	}
	bk, err := json.Marshal(backends)
	if err != nil {
		return "", "", fmt.Errorf("encode backends: %w", err)
	}
	return string(f), string(bk), nil
}
