// Package batch runs independent work items with bounded concurrency.
package batch

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Run calls fn for every index in [0, n) with at most limit calls in
// flight. Items are independent: a failure never cancels the others. Once
// ctx is done no further items are started; skipped produces the result of
// each item that never ran. Results are returned in index order.
func Run[T any](ctx context.Context, limit, n int, fn func(ctx context.Context, i int) T, skipped func(i int, err error) T) []T {
	results := make([]T, n)
	ran := make([]bool, n)

	g := new(errgroup.Group)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			break
		}
		ran[i] = true
		g.Go(func() error {
			results[i] = fn(ctx, i)
			return nil
		})
	}
	_ = g.Wait()

	for i := range results {
		if !ran[i] {
			results[i] = skipped(i, fmt.Errorf("not processed: %w", context.Cause(ctx)))
		}
	}
	return results
}
