package model

import "time"

// Batch status constants.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Batch kinds.
const (
	KindDispatch   = "dispatch"
	KindRegenerate = "regenerate"
)

// validTransitions maps each batch status to the set of statuses it may transition to.
var validTransitions = map[string]map[string]bool{
	StatusRunning: {
		StatusCompleted: true,
		StatusFailed:    true,
	},
}

// ValidTransition reports whether transitioning from one status to another is allowed.
func ValidTransition(from, to string) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// GenerationResult is the outcome of one attempted task. Exactly one is
// produced per attempted task per dispatch call.
type GenerationResult struct {
	Index      int    `json:"index"`
	Success    bool   `json:"success"`
	Backend    string `json:"backend"`
	Error      string `json:"error,omitempty"`
	DurationMS int    `json:"duration_ms"`
}

// Summary describes a finished dispatch or regeneration call.
// FailedIndices and Skipped are 1-based.
type Summary struct {
	BatchID          string             `json:"batch_id"`
	Kind             string             `json:"kind"`
	Total            int                `json:"total"`
	SuccessCount     int                `json:"success_count"`
	FailedIndices    []int              `json:"failed_indices"`
	Skipped          []int              `json:"skipped,omitempty"`
	Backends         []string           `json:"backends"`
	PoolSize         int                `json:"pool_size"`
	LogWriteFailures int                `json:"log_write_failures"`
	Results          []GenerationResult `json:"results"`
	StartedAt        time.Time          `json:"started_at"`
	FinishedAt       time.Time          `json:"finished_at"`
}

// Batch is the persisted history record of one dispatch call.
type Batch struct {
	ID            string     `json:"id"`
	Kind          string     `json:"kind"`
	Status        string     `json:"status"`
	Total         int        `json:"total"`
	SuccessCount  int        `json:"success_count"`
	FailedIndices []int      `json:"failed_indices"`
	Backends      []string   `json:"backends"`
	PoolSize      int        `json:"pool_size"`
	Error         string     `json:"error,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

// TaskRecord is a persisted GenerationResult tied to its batch.
type TaskRecord struct {
	BatchID    string    `json:"batch_id"`
	Index      int       `json:"index"`
	Artifact   string    `json:"artifact"`
	Success    bool      `json:"success"`
	Backend    string    `json:"backend"`
	Error      string    `json:"error,omitempty"`
	DurationMS int       `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}
