package store

import (
	"context"
	"errors"

	"github.com/seantiz/easel/internal/model"
)

// ErrInvalidTransition is returned when a batch status transition is not allowed.
var ErrInvalidTransition = errors.New("invalid status transition")

// BatchStats holds aggregate history statistics.
type BatchStats struct {
	Total             int            `json:"total"`
	CountByStatus     map[string]int `json:"count_by_status"`
	CountByKind       map[string]int `json:"count_by_kind"`
	TasksTotal        int            `json:"tasks_total"`
	TasksSucceeded    int            `json:"tasks_succeeded"`
	AvgTaskDurationMS float64        `json:"avg_task_duration_ms"`
}

// Store defines the persistence operations for batch history.
type Store interface {
	CreateBatch(ctx context.Context, b *model.Batch) error
	FinishBatch(ctx context.Context, b *model.Batch) error
	GetBatch(ctx context.Context, id string) (*model.Batch, error)
	ListBatches(ctx context.Context, limit, offset int) ([]*model.Batch, int, error)
	InsertTaskResult(ctx context.Context, r *model.TaskRecord) error
	GetTaskResults(ctx context.Context, batchID string) ([]model.TaskRecord, error)
	GetBatchStats(ctx context.Context) (*BatchStats, error)
	Close() error
}
