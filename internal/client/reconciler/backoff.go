package reconciler

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/agencysync/internal/common"
	"github.com/sethvargo/go-retry"
)

// retryDelay is the wait before attempt number attempts+1, doubling from
// base and never exceeding limit.
func retryDelay(base, limit time.Duration, attempts int) time.Duration {
	b := retry.WithCappedDuration(limit, retry.NewExponential(base))
	var d time.Duration
	for i := 0; i < attempts; i++ {
		next, stop := b.Next()
		if stop {
			break
		}
		d = next
	}
	return d
}

// isTransient reports errors that say nothing about the record itself:
// connectivity problems, expired credentials and cancellation. They are
// retried on the next pass without counting as an attempt.
func isTransient(err error) bool {
	return errors.Is(err, common.ErrUnavailable) ||
		errors.Is(err, common.ErrUnauthorized) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
