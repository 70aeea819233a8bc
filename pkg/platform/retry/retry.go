// Package retry wraps cenkalti/backoff with the policy used for external
// collaborators: a few exponential attempts with a hard cap, honoring context
// cancellation. Callers mark unrecoverable errors with Permanent so client
// 4xx-style failures are not retried.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy bounds a retried operation.
type Policy struct {
	MaxAttempts     uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultPolicy suits batch workers calling HTTP upstreams: 3 attempts,
// 250ms initial backoff capped at 2s.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		InitialInterval: 250 * time.Millisecond,
		MaxInterval:     2 * time.Second,
	}
}

// Do runs op with exponential backoff under the policy.
func Do(ctx context.Context, p Policy, op func() error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.InitialInterval
	eb.MaxInterval = p.MaxInterval

	var b backoff.BackOff = eb
	if p.MaxAttempts > 0 {
		b = backoff.WithMaxRetries(eb, p.MaxAttempts-1)
	}
	return backoff.Retry(op, backoff.WithContext(b, ctx))
}

// Permanent marks an error as unrecoverable so Do stops retrying immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}
