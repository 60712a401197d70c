// Package pool runs indexed work on a bounded number of goroutines.
package pool

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Workers resolves a requested worker count. Non-positive values mean one
// worker per CPU, and the count never exceeds n.
func Workers(jobs, n int) int {
	if jobs <= 0 {
		jobs = runtime.NumCPU()
	}
	if n > 0 && jobs > n {
		jobs = n
	}
	if jobs < 1 {
		jobs = 1
	}
	return jobs
}

// Map calls fn(ctx, i) for every i in [0, n) on at most jobs goroutines.
// The first error cancels the context handed to the remaining calls and is
// returned. Callers that write results into a slot per index get input order
// without extra locking.
func Map(ctx context.Context, jobs, n int, fn func(ctx context.Context, i int) error) error {
	if n == 0 {
		return ctx.Err()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(Workers(jobs, n))

	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, i)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
