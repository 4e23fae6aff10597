package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/seantiz/easel/internal/model"
)

var (
	// ErrInvalidRegenerationIndex is wrapped by InvalidIndexError.
	ErrInvalidRegenerationIndex = errors.New("invalid regeneration index")

	// ErrNothingToRegenerate is returned when no requested index is valid.
	ErrNothingToRegenerate = errors.New("no valid indices to regenerate")
)

// InvalidIndexError reports a 1-based regeneration index outside 1..Total.
type InvalidIndexError struct {
	Index int
	Total int
}

func (e *InvalidIndexError) Error() string {
	return fmt.Sprintf("index %d out of range 1..%d", e.Index, e.Total)
}

func (e *InvalidIndexError) Unwrap() error { return ErrInvalidRegenerationIndex }

// ValidateIndex checks a 1-based index against a batch of total tasks.
func ValidateIndex(n, total int) error {
	if n < 1 || n > total {
		return &InvalidIndexError{Index: n, Total: total}
	}
	return nil
}

// SelectIndices splits 1-based indices into valid and skipped ones, keeping
// first-seen order and dropping duplicates.
func SelectIndices(total int, indices []int) (valid, skipped []int) {
	seen := make(map[int]bool, len(indices))
	for _, n := range indices {
		if seen[n] {
			continue
		}
		seen[n] = true
		if ValidateIndex(n, total) != nil {
			skipped = append(skipped, n)
			continue
		}
		valid = append(valid, n)
	}
	return valid, skipped
}

// Regenerate re-runs the tasks at the given 1-based indices and waits for the
// result. tasks is the full task list the indices refer to. Invalid indices
// are skipped and reported in the summary; when none is valid, the summary
// lists the skipped indices and the error is ErrNothingToRegenerate.
func (d *Dispatcher) Regenerate(ctx context.Context, tasks []model.Task, indices []int, opts Options) (*model.Summary, error) {
	run, err := d.StartRegenerate(ctx, tasks, indices, opts)
	if errors.Is(err, ErrNothingToRegenerate) {
		_, skipped := SelectIndices(len(tasks), indices)
		return &model.Summary{Kind: model.KindRegenerate, Skipped: skipped, FailedIndices: []int{}}, err
	}
	if err != nil {
		return nil, err
	}
	return run.Wait(), nil
}

// StartRegenerate deletes the artifacts of the valid indices and launches a
// fresh batch over just those tasks. Backends are probed again and
// round-robin starts over at the first selected task; each task keeps its
// index, so it overwrites its own artifact.
func (d *Dispatcher) StartRegenerate(ctx context.Context, tasks []model.Task, indices []int, opts Options) (*Run, error) {
	if !d.busy.CompareAndSwap(false, true) {
		return nil, ErrBatchInProgress
	}

	valid, skipped := SelectIndices(len(tasks), indices)
	for _, n := range skipped {
		d.logger.Warn("skipping regeneration index", "index", n, "error", ValidateIndex(n, len(tasks)))
	}
	if len(valid) == 0 {
		d.busy.Store(false)
		return nil, fmt.Errorf("%w: skipped %v", ErrNothingToRegenerate, skipped)
	}

	narrowed := make([]model.Task, 0, len(valid))
	for _, n := range valid {
		if err := d.artifacts.Remove(n); err != nil {
			d.logger.Warn("failed to remove artifact", "index", n, "error", err)
		}
		narrowed = append(narrowed, tasks[n-1])
	}

	run, err := d.start(ctx, narrowed, opts, model.KindRegenerate, skipped)
	if err != nil {
		d.busy.Store(false)
		return nil, err
	}
	return run, nil
}
