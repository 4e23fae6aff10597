package engine

import (
	"slices"

	"github.com/seantiz/easel/internal/model"
)

// aggregator accumulates task results into a summary. It is owned by a single
// collector goroutine.
type aggregator struct {
	results []model.GenerationResult
	success int
	failed  []int
}

func newAggregator(total int) *aggregator {
	return &aggregator{results: make([]model.GenerationResult, 0, total)}
}

func (a *aggregator) add(r model.GenerationResult) {
	a.results = append(a.results, r)
	if r.Success {
		a.success++
	} else {
		a.failed = append(a.failed, r.Index+1)
	}
}

func (a *aggregator) count() int { return len(a.results) }

// summary returns the counts with failed indices 1-based and ascending and the
// results ordered by task index.
func (a *aggregator) summary() *model.Summary {
	failed := slices.Clone(a.failed)
	if failed == nil {
		failed = []int{}
	}
	slices.Sort(failed)

	results := slices.Clone(a.results)
	slices.SortFunc(results, func(x, y model.GenerationResult) int { return x.Index - y.Index })

	return &model.Summary{
		Total:         len(a.results),
		SuccessCount:  a.success,
		FailedIndices: failed,
		Results:       results,
	}
}
