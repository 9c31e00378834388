package database

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy retries datastore operations at a fixed interval.
// MaxAttempts <= 0 retries until the context is cancelled.
type RetryPolicy struct {
	Interval    time.Duration
	MaxAttempts int
}

// DefaultRetryPolicy reconnects every five seconds without an attempt cap.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Interval: 5 * time.Second}
}

func (p RetryPolicy) interval() time.Duration {
	if p.Interval <= 0 {
		return 5 * time.Second
	}
	return p.Interval
}

// Do runs op until it succeeds, the attempts are exhausted or ctx is done.
// notify is called after every failed attempt that will be retried.
func (p RetryPolicy) Do(ctx context.Context, op func(context.Context) error, notify func(err error, next time.Duration)) error {
	var b backoff.BackOff = backoff.NewConstantBackOff(p.interval())
	if p.MaxAttempts > 0 {
		b = backoff.WithMaxRetries(b, uint64(p.MaxAttempts-1))
	}
	b = backoff.WithContext(b, ctx)
	return backoff.RetryNotify(func() error {
		return op(ctx)
	}, b, notify)
}
