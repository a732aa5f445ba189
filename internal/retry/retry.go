package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy is an explicit retry description, shared by every retrying call
// site instead of per-site annotations: how many attempts, how the delay
// grows, and which errors are worth another attempt.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
	// Multiplier grows the delay between attempts. Values <= 1 keep the
	// delay fixed.
	Multiplier float64
	// RetryableIf decides whether an error is transient. A nil function
	// retries every error.
	RetryableIf func(err error) bool
}

func (p Policy) newBackOff(ctx context.Context) backoff.BackOff {
	var b backoff.BackOff
	if p.Multiplier > 1 {
		exp := backoff.NewExponentialBackOff()
		exp.InitialInterval = p.Delay
		exp.Multiplier = p.Multiplier
		exp.RandomizationFactor = 0
		exp.MaxInterval = time.Hour
		exp.MaxElapsedTime = 0
		b = exp
	} else {
		b = backoff.NewConstantBackOff(p.Delay)
	}
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	b = backoff.WithMaxRetries(b, uint64(maxAttempts-1))
	return backoff.WithContext(b, ctx)
}

// Do invokes op until it succeeds, the policy is exhausted, the error is
// classified non-retryable, or ctx is done. The last error is returned.
func (p Policy) Do(ctx context.Context, op func() error) error {
	return backoff.Retry(func() error {
		err := op()
		if err != nil && p.RetryableIf != nil && !p.RetryableIf(err) {
			return backoff.Permanent(err)
		}
		return err
	}, p.newBackOff(ctx))
}
