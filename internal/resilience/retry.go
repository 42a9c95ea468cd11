package resilience

import (
	"context"
	"errors"
	"time"
)

// ErrUnsuccessful is the cause reported to listeners when an attempt returned
// without error but its result was classified as a failure.
var ErrUnsuccessful = errors.New("unsuccessful result")

// Policy composes bounded exponential retry (outer) with an optional circuit
// breaker (inner). The zero value runs the operation exactly once.
type Policy struct {
	Name string
	// Retries is the number of attempts after the first one.
	Retries int
	// BaseDelay is multiplied by 2^n before retry n (1-based).
	BaseDelay time.Duration
	Breaker   *Breaker
	Listener  Listener
	// Sleep replaces the real timer in tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Backoff returns the wait before retry n (1-based).
func (p Policy) Backoff(n int) time.Duration {
	return p.BaseDelay * time.Duration(int64(1)<<n)
}

// Budget is the longest Do can take when every attempt runs for perAttempt.
func (p Policy) Budget(perAttempt time.Duration) time.Duration {
	total := time.Duration(p.Retries+1) * perAttempt
	for n := 1; n <= p.Retries; n++ {
		total += p.Backoff(n)
	}
	return total
}

// Do runs op under p. failed classifies a returned result as a qualifying
// failure; nil means only errors count. When attempts are exhausted on an
// unsuccessful result, the last result is returned with a nil error so the
// caller can inspect it. A breaker rejection aborts the remaining retries.
// Cancellation of ctx stops the loop and is not counted against the breaker.
func Do[T any](ctx context.Context, p Policy, op func(context.Context) (T, error), failed func(T) bool) (T, error) {
	listener := p.Listener
	if listener == nil {
		listener = nopListener{}
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	for attempt := 0; ; attempt++ {
		res, err := once(ctx, p.Breaker, op, failed)
		if errors.Is(err, ErrCircuitOpen) {
			return res, err
		}
		bad := err != nil || (failed != nil && failed(res))
		if !bad {
			return res, nil
		}
		if cerr := ctx.Err(); cerr != nil {
			if err == nil {
				err = cerr
			}
			return res, err
		}
		if attempt >= p.Retries {
			return res, err
		}

		cause := err
		if cause == nil {
			cause = ErrUnsuccessful
		}
		delay := p.Backoff(attempt + 1)
		listener.RetryScheduled(p.Name, attempt+1, delay, cause)
		if serr := sleep(ctx, delay); serr != nil {
			return res, serr
		}
	}
}

func once[T any](ctx context.Context, b *Breaker, op func(context.Context) (T, error), failed func(T) bool) (T, error) {
	if b == nil {
		return op(ctx)
	}
	probe, err := b.allow()
	if err != nil {
		var zero T
		return zero, err
	}
	res, err := op(ctx)
	switch {
	case err == nil && (failed == nil || !failed(res)):
		b.recordSuccess(probe)
	case ctx.Err() != nil:
		b.release(probe)
	default:
		b.recordFailure(probe)
	}
	return res, err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
