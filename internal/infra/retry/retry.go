package retry

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/yndnr/pairmesh-go/internal/core/domain"
)

// Policy controls how Do retries.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// BaseDelay is the backoff ceiling before the second attempt. It
	// doubles for each later attempt up to MaxDelay.
	BaseDelay time.Duration

	// MaxDelay caps the backoff ceiling.
	MaxDelay time.Duration

	// AttemptTimeout bounds each attempt. Zero means no per-attempt bound.
	AttemptTimeout time.Duration

	// OnRetry is called before sleeping ahead of a retry.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultPolicy returns the policy used for storage calls.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		BaseDelay:      100 * time.Millisecond,
		MaxDelay:       2 * time.Second,
		AttemptTimeout: 10 * time.Second,
	}
}

// jitter returns a uniformly random duration in [0, max].
var jitter = func(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return rand.N(max + 1)
}

// exponential returns the ceiling schedule: BaseDelay doubling up to
// MaxDelay, with no randomization and no elapsed-time limit.
func (p Policy) exponential() *backoff.ExponentialBackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.BaseDelay
	exp.RandomizationFactor = 0
	exp.Multiplier = 2
	exp.MaxInterval = p.MaxDelay
	if exp.MaxInterval <= 0 {
		exp.MaxInterval = math.MaxInt64
	}
	exp.MaxElapsedTime = 0
	exp.Reset()
	return exp
}

// Backoff returns the ceiling of the delay before attempt n+1 (n >= 1).
func (p Policy) Backoff(n int) time.Duration {
	exp := p.exponential()
	d := exp.NextBackOff()
	for i := 1; i < n; i++ {
		d = exp.NextBackOff()
	}
	return d
}

// fullJitter draws each delay uniformly from [0, ceiling].
type fullJitter struct {
	ceiling *backoff.ExponentialBackOff
}

func (j *fullJitter) NextBackOff() time.Duration {
	d := j.ceiling.NextBackOff()
	if d == backoff.Stop {
		return d
	}
	return jitter(d)
}

func (j *fullJitter) Reset() { j.ceiling.Reset() }

// schedule bounds the jittered delays by the attempt ceiling and ctx.
func (p Policy) schedule(ctx context.Context) backoff.BackOffContext {
	var b backoff.BackOff = &backoff.StopBackOff{}
	if p.MaxAttempts > 1 {
		b = backoff.WithMaxRetries(&fullJitter{ceiling: p.exponential()}, uint64(p.MaxAttempts-1))
	}
	return backoff.WithContext(b, ctx)
}

// Do calls fn until it succeeds, returns a non-retryable error, the
// attempt ceiling is reached, or ctx is done. It returns the last error
// returned by fn, or ctx.Err() if fn never ran.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	_, err := DoValue(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoValue is Do for calls that produce a value.
func DoValue[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	var (
		attempt int
		lastErr error
	)
	op := func() (T, error) {
		attempt++
		v, err := runAttempt(ctx, p.AttemptTimeout, fn)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if !domain.IsRetryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}
	notify := func(err error, delay time.Duration) {
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}
	}

	v, err := backoff.RetryNotifyWithData(op, p.schedule(ctx), notify)
	if err == nil {
		return v, nil
	}
	// Cancellation while waiting surfaces the failure that caused the wait.
	if ctx.Err() != nil && lastErr != nil {
		return zero, lastErr
	}
	return zero, err
}

func runAttempt[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(attemptCtx)
}
