package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/seantiz/easel/internal/artifact"
	"github.com/seantiz/easel/internal/backend"
	"github.com/seantiz/easel/internal/backend/webui"
	"github.com/seantiz/easel/internal/model"
	"github.com/seantiz/easel/internal/store"
)

// ErrBatchInProgress is returned when a batch is started while another one is
// still running on the same dispatcher.
var ErrBatchInProgress = errors.New("a batch is already in progress")

// Renderer submits one render request to the backend at addr and returns the
// decoded image.
type Renderer interface {
	Render(ctx context.Context, addr string, req *webui.Txt2ImgRequest) ([]byte, error)
}

// Deps are the collaborators of a Dispatcher. Store and Pusher are optional.
type Deps struct {
	Registry      *backend.Registry
	Prober        *backend.Prober
	Renderer      Renderer
	Artifacts     *artifact.Store
	ParamsLogPath string
	Store         store.Store
	Pusher        Pusher
	Logger        *slog.Logger
}

// Options tune a single batch.
type Options struct {
	// MaxWorkers caps the pool size; zero means one worker per live backend.
	MaxWorkers int
	// BatchID is used as the batch ID when set; otherwise one is generated.
	BatchID string
}

// Dispatcher executes render batches. At most one batch runs at a time.
type Dispatcher struct {
	registry  *backend.Registry
	prober    *backend.Prober
	renderer  Renderer
	artifacts *artifact.Store
	paramsLog string
	store     store.Store
	pusher    Pusher
	logger    *slog.Logger
	broker    *Broker

	busy atomic.Bool
	wg   sync.WaitGroup
}

// NewDispatcher creates a dispatcher. The dispatcher owns d.Registry from here
// on; callers change backends through Registry().SetBackends.
func NewDispatcher(d Deps) *Dispatcher {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		registry:  d.Registry,
		prober:    d.Prober,
		renderer:  d.Renderer,
		artifacts: d.Artifacts,
		paramsLog: d.ParamsLogPath,
		store:     d.Store,
		pusher:    d.Pusher,
		logger:    logger,
		broker:    NewBroker(),
	}
}

// Registry returns the backend registry.
func (d *Dispatcher) Registry() *backend.Registry { return d.registry }

// Prober returns the health prober.
func (d *Dispatcher) Prober() *backend.Prober { return d.prober }

// Artifacts returns the artifact store.
func (d *Dispatcher) Artifacts() *artifact.Store { return d.artifacts }

// Broker returns the progress broker for SSE subscription.
func (d *Dispatcher) Broker() *Broker { return d.broker }

// Busy reports whether a batch is running.
func (d *Dispatcher) Busy() bool { return d.busy.Load() }

// Wait blocks until all started batches finish.
func (d *Dispatcher) Wait() { d.wg.Wait() }

// Run is a started batch.
type Run struct {
	// Batch is the history record as of the start of the batch.
	Batch *model.Batch

	done    chan struct{}
	summary *model.Summary
}

// Done is closed when the batch has finished.
func (r *Run) Done() <-chan struct{} { return r.done }

// Wait blocks until the batch finishes and returns its summary.
func (r *Run) Wait() *model.Summary {
	<-r.done
	return r.summary
}

// Dispatch runs tasks to completion and returns the batch summary. It fails
// with backend.ErrBackendUnavailable, before any task runs, when no registered
// backend passes probing.
func (d *Dispatcher) Dispatch(ctx context.Context, tasks []model.Task, opts Options) (*model.Summary, error) {
	run, err := d.Start(ctx, tasks, opts)
	if err != nil {
		return nil, err
	}
	return run.Wait(), nil
}

// Start probes the backends and launches the batch in the background. Errors
// are returned synchronously, before any task runs. The batch runs on ctx;
// cancelling it abandons in-flight requests and records unstarted tasks as
// interrupted.
func (d *Dispatcher) Start(ctx context.Context, tasks []model.Task, opts Options) (*Run, error) {
	if !d.busy.CompareAndSwap(false, true) {
		return nil, ErrBatchInProgress
	}
	run, err := d.start(ctx, tasks, opts, model.KindDispatch, nil)
	if err != nil {
		d.busy.Store(false)
		return nil, err
	}
	return run, nil
}

// start runs with the busy flag held and hands it to the batch goroutine on
// success.
func (d *Dispatcher) start(ctx context.Context, tasks []model.Task, opts Options, kind string, skipped []int) (*Run, error) {
	id := opts.BatchID
	if id == "" {
		id = model.NewID()
	}
	logger := d.logger.With("batch_id", id, "kind", kind)

	registered := d.registry.Backends()
	available := d.prober.ListAvailable(ctx, registered)
	if err := ctx.Err(); err != nil {
		batchesTotal.WithLabelValues(kind, outcomeInterrupted).Inc()
		logger.Warn("batch interrupted while probing", "error", err)
		d.recordNotStarted(id, kind, len(tasks), fmt.Errorf("interrupted: %w", err), logger)
		return nil, fmt.Errorf("probe backends: %w", err)
	}
	if len(available) == 0 {
		batchesTotal.WithLabelValues(kind, outcomeUnavailable).Inc()
		err := fmt.Errorf("%w: %d registered, none alive", backend.ErrBackendUnavailable, len(registered))
		logger.Error("no backends available", "registered", len(registered))
		d.recordNotStarted(id, kind, len(tasks), err, logger)
		return nil, err
	}

	pool := PoolSize(opts.MaxWorkers, len(available))
	b := &model.Batch{
		ID:            id,
		Kind:          kind,
		Status:        model.StatusRunning,
		Total:         len(tasks),
		FailedIndices: []int{},
		Backends:      available,
		PoolSize:      pool,
		CreatedAt:     time.Now().UTC(),
	}
	if d.store != nil {
		if err := d.store.CreateBatch(context.Background(), b); err != nil {
			logger.Error("failed to record batch", "error", err)
		}
	}

	snapshot := *b
	run := &Run{Batch: &snapshot, done: make(chan struct{})}

	logger.Info("batch started", "tasks", len(tasks), "backends", len(available), "pool_size", pool)

	d.wg.Go(func() {
		defer close(run.done)
		defer d.busy.Store(false)
		run.summary = d.execute(ctx, b, tasks, skipped, logger)
	})
	return run, nil
}

// execute runs every task of b on a pool of b.PoolSize workers and returns the
// aggregated summary.
func (d *Dispatcher) execute(ctx context.Context, b *model.Batch, tasks []model.Task, skipped []int, logger *slog.Logger) *model.Summary {
	defer d.broker.Close(b.ID)
	started := time.Now().UTC()

	plog, err := artifact.OpenParamsLog(d.paramsLog, logger)
	if err != nil {
		logger.Warn("params log unavailable", "path", d.paramsLog, "error", err)
	}

	assigned := Assign(len(tasks), b.Backends)
	agg := newAggregator(len(tasks))

	results := make(chan model.GenerationResult)
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for res := range results {
			agg.add(res)
			d.record(b, res, agg.count())
		}
	}()

	sem := make(chan struct{}, b.PoolSize)
	var wg sync.WaitGroup
	for i, t := range tasks {
		if err := acquire(ctx, sem); err != nil {
			logger.Warn("batch interrupted", "unstarted", len(tasks)-i, "error", err)
			for j := i; j < len(tasks); j++ {
				results <- interrupted(tasks[j], assigned[j], err)
			}
			break
		}
		addr := assigned[i]
		wg.Go(func() {
			defer func() { <-sem }()
			results <- d.runTask(ctx, t, addr, plog, logger)
		})
	}
	wg.Wait()
	close(results)
	<-collected

	summary := agg.summary()
	summary.BatchID = b.ID
	summary.Kind = b.Kind
	summary.Total = len(tasks)
	summary.Backends = b.Backends
	summary.PoolSize = b.PoolSize
	summary.Skipped = skipped
	summary.StartedAt = started

	if plog != nil {
		summary.LogWriteFailures = plog.Close()
	} else {
		summary.LogWriteFailures = summary.SuccessCount
	}
	if summary.LogWriteFailures > 0 {
		paramsLogFailuresTotal.Add(float64(summary.LogWriteFailures))
		logger.Warn("params log incomplete", "failures", summary.LogWriteFailures, "error", artifact.ErrLogWriteFailed)
	}
	summary.FinishedAt = time.Now().UTC()

	d.finish(ctx, b, summary, logger)
	return summary
}

// acquire takes a pool slot, giving up when ctx ends.
func acquire(ctx context.Context, sem chan struct{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// record persists one task result and publishes it as a progress event.
func (d *Dispatcher) record(b *model.Batch, res model.GenerationResult, completed int) {
	if d.store != nil {
		rec := &model.TaskRecord{
			BatchID:    b.ID,
			Index:      res.Index,
			Artifact:   model.ArtifactName(res.Index + 1),
			Success:    res.Success,
			Backend:    res.Backend,
			Error:      res.Error,
			DurationMS: res.DurationMS,
			CreatedAt:  time.Now().UTC(),
		}
		if err := d.store.InsertTaskResult(context.Background(), rec); err != nil {
			d.logger.Error("failed to record task result", "batch_id", b.ID, "task_index", res.Index+1, "error", err)
		}
	}

	d.broker.Publish(Event{
		BatchID:    b.ID,
		Index:      res.Index + 1,
		Success:    res.Success,
		Backend:    res.Backend,
		Error:      res.Error,
		DurationMS: res.DurationMS,
		Completed:  completed,
		Total:      b.Total,
	})
}

// finish closes the batch record, updates metrics and pushes them.
func (d *Dispatcher) finish(ctx context.Context, b *model.Batch, s *model.Summary, logger *slog.Logger) {
	outcome := outcomeCompleted
	b.Status = model.StatusCompleted
	if err := ctx.Err(); err != nil {
		outcome = outcomeInterrupted
		b.Status = model.StatusFailed
		b.Error = fmt.Sprintf("interrupted: %v", err)
	}
	b.SuccessCount = s.SuccessCount
	b.FailedIndices = s.FailedIndices
	b.FinishedAt = &s.FinishedAt
	batchesTotal.WithLabelValues(b.Kind, outcome).Inc()

	if d.store != nil {
		if err := d.store.FinishBatch(context.Background(), b); err != nil {
			logger.Error("failed to finish batch record", "error", err)
		}
	}
	if d.pusher != nil {
		if err := d.pusher.Push(); err != nil {
			logger.Warn("failed to push metrics", "error", err)
		}
	}

	logger.Info("batch finished",
		"status", b.Status,
		"success", s.SuccessCount,
		"failed", s.FailedIndices,
		"duration_ms", s.FinishedAt.Sub(s.StartedAt).Milliseconds(),
	)
}

// recordNotStarted persists a batch that failed before any task ran.
func (d *Dispatcher) recordNotStarted(id, kind string, total int, cause error, logger *slog.Logger) {
	if d.store != nil {
		now := time.Now().UTC()
		b := &model.Batch{
			ID:        id,
			Kind:      kind,
			Status:    model.StatusRunning,
			Total:     total,
			CreatedAt: now,
		}
		if err := d.store.CreateBatch(context.Background(), b); err != nil {
			logger.Error("failed to record batch", "error", err)
		} else {
			b.Status = model.StatusFailed
			b.Error = cause.Error()
			b.FinishedAt = &now
			if err := d.store.FinishBatch(context.Background(), b); err != nil {
				logger.Error("failed to finish batch record", "error", err)
			}
		}
	}
	d.broker.Close(id)
}
