package main

import (
	"context"
	"time"
)

// attemptTimeout splits what is left of ctx, capped at limit, over retries
// attempts so retrying never outlives the caller's deadline.
func attemptTimeout(ctx context.Context, limit time.Duration, retries int) (time.Duration, error) {
	total := limit
	if dl, ok := ctx.Deadline(); ok {
		total = min(total, time.Until(dl))
	}
	if total <= 0 {
		return 0, context.DeadlineExceeded
	}
	return total / time.Duration(retries), nil
}
