// Package taskgroup fans independent tasks out over goroutines and waits for
// every one of them.
package taskgroup

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Task produces one result. Failures are part of T; a task never aborts its
// siblings.
type Task[T any] func(ctx context.Context) T

// Run executes tasks concurrently, at most limit at a time (limit < 1 means
// unbounded), and returns their results in task order once all have finished.
func Run[T any](ctx context.Context, tasks []Task[T], limit int) []T {
	results := make([]T, len(tasks))

	eg, egctx := errgroup.WithContext(ctx)
	if limit > 0 {
		eg.SetLimit(limit)
	}

	for i, task := range tasks {
		eg.Go(func() error {
			results[i] = task(egctx)
			return nil
		})
	}

	_ = eg.Wait()
	return results
}

// Any reports whether pred holds for at least one result.
func Any[T any](results []T, pred func(T) bool) bool {
	for _, r := range results {
		if pred(r) {
			return true
		}
	}
	return false
}

// Collect returns the results for which pred holds, in order.
func Collect[T any](results []T, pred func(T) bool) []T {
	var out []T
	for _, r := range results {
		if pred(r) {
			out = append(out, r)
		}
	}
	return out
}
