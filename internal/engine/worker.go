package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/seantiz/easel/internal/artifact"
	"github.com/seantiz/easel/internal/backend/webui"
	"github.com/seantiz/easel/internal/model"
)

// runTask executes one task against addr. Every failure, including a panic,
// is converted into a failed result.
func (d *Dispatcher) runTask(ctx context.Context, t model.Task, addr string, plog *artifact.ParamsLog, logger *slog.Logger) (res model.GenerationResult) {
	start := time.Now()
	res = model.GenerationResult{Index: t.Index, Backend: addr}
	logger = logger.With("task_index", t.Index+1, "backend", addr)

	tasksInFlight.Inc()
	defer func() {
		if r := recover(); r != nil {
			res.Success = false
			res.Error = fmt.Sprintf("panic: %v", r)
			logger.Error("task panicked", "panic", r)
		}
		tasksInFlight.Dec()

		elapsed := time.Since(start)
		res.DurationMS = int(elapsed.Milliseconds())
		taskDuration.Observe(elapsed.Seconds())
		if res.Success {
			tasksTotal.WithLabelValues(outcomeSuccess).Inc()
		} else {
			tasksTotal.WithLabelValues(outcomeFailure).Inc()
		}
	}()

	req := webui.NewTxt2ImgRequest(t)

	img, err := d.renderer.Render(ctx, addr, req)
	if err != nil {
		res.Error = err.Error()
		logger.Warn("task failed", "prompt_hash", t.PromptHash, "error", err)
		return res
	}

	path, err := d.artifacts.Write(t.Index+1, img)
	if err != nil {
		res.Error = err.Error()
		logger.Warn("artifact write failed", "error", err)
		return res
	}

	if plog != nil {
		plog.Append(t.ArtifactName(), req)
	}

	res.Success = true
	logger.Info("task completed", "artifact", path, "bytes", len(img), "duration_ms", time.Since(start).Milliseconds())
	return res
}

// interrupted is the result recorded for a task that never started because
// the batch context ended first.
func interrupted(t model.Task, addr string, cause error) model.GenerationResult {
	tasksTotal.WithLabelValues(outcomeInterrupted).Inc()
	return model.GenerationResult{
		Index:   t.Index,
		Backend: addr,
		Error:   fmt.Sprintf("interrupted: %v", cause),
	}
}
