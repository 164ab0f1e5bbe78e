package worker

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// FetchPolicy paces per-item remote calls. The zero Concurrency means one
// item at a time.
type FetchPolicy struct {
	ItemDelay   time.Duration
	ItemTimeout time.Duration
	Concurrency int
}

func DefaultFetchPolicy() FetchPolicy {
	return FetchPolicy{
		ItemDelay:   250 * time.Millisecond,
		ItemTimeout: 30 * time.Second,
		Concurrency: 1,
	}
}

// ForEach calls fn for indexes 0..n-1, starting calls no closer together than
// ItemDelay and with at most Concurrency in flight. Each call gets its own
// ItemTimeout. fn reports failures through its own results.
func (p FetchPolicy) ForEach(ctx context.Context, n int, fn func(ctx context.Context, i int)) error {
	var limiter *rate.Limiter
	if p.ItemDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(p.ItemDelay), 1)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(p.Concurrency, 1))

	for i := 0; i < n; i++ {
		if limiter != nil {
			if err := limiter.Wait(gctx); err != nil {
				_ = g.Wait()
				return err
			}
		} else if err := gctx.Err(); err != nil {
			_ = g.Wait()
			return err
		}

		i := i
		g.Go(func() error {
			ictx := gctx
			if p.ItemTimeout > 0 {
				var cancel context.CancelFunc
				ictx, cancel = context.WithTimeout(gctx, p.ItemTimeout)
				defer cancel()
			}
			fn(ictx, i)
			return nil
		})
	}
	return g.Wait()
}
