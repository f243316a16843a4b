package xref

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// runParallel calls fn for every index in [0, n) on a pool of at most limit
// goroutines and waits for all of them. A failing item does not cancel its
// siblings; the errors are returned in index order. Items not yet started
// when ctx is cancelled are skipped and report ctx.Err().
func runParallel(ctx context.Context, limit, n int, fn func(ctx context.Context, i int) error) []error {
	if n == 0 {
		return nil
	}
	if limit <= 0 {
		limit = runtime.NumCPU()
	}
	itemErrs := make([]error, n)
	var g errgroup.Group
	g.SetLimit(min(limit, n))
	for i := range n {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				itemErrs[i] = err
				return nil
			}
			itemErrs[i] = fn(ctx, i)
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, err := range itemErrs {
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
