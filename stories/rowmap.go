package stories

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// mapRows calls fn for every index in [0,n) with at most limit calls in flight and returns the results in
// index order. The first error cancels the remaining calls.
func mapRows[T any](ctx context.Context, n, limit int, fn func(ctx context.Context, i int) (T, error)) ([]T, error) {
	if limit < 1 {
		limit = 1
	}
	out := make([]T, n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			v, err := fn(gctx, i)
			if err != nil {
				return err
			}
			out[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
