package pool

import (
	"context"

	"github.com/sourcegraph/conc/pool"
)

// DefaultWorkers is the fan-out width used across the sync pipeline. Upstream
// APIs tolerate this comfortably while keeping wall-clock time low.
const DefaultWorkers = 6

// Map runs fn over items with at most limit goroutines in flight and returns
// the results in input order regardless of completion order. fn is expected
// to capture its own failures in R; cancellation is observed through ctx.
func Map[T, R any](ctx context.Context, items []T, limit int, fn func(ctx context.Context, item T) R) []R {
	if limit <= 0 {
		limit = DefaultWorkers
	}

	results := make([]R, len(items))
	p := pool.New().WithMaxGoroutines(limit)
	for i, item := range items {
		p.Go(func() {
			if ctx.Err() != nil {
				return
			}
			results[i] = fn(ctx, item)
		})
	}
	p.Wait()
	return results
}

// MapErr is Map for operations that return (R, error); the first error does
// not stop remaining items, all results and errors come back index-aligned.
func MapErr[T, R any](ctx context.Context, items []T, limit int, fn func(ctx context.Context, item T) (R, error)) ([]R, []error) {
	if limit <= 0 {
		limit = DefaultWorkers
	}

	results := make([]R, len(items))
	errs := make([]error, len(items))
	p := pool.New().WithMaxGoroutines(limit)
	for i, item := range items {
		p.Go(func() {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return
			}
			results[i], errs[i] = fn(ctx, item)
		})
	}
	p.Wait()
	return results, errs
}
