package resilience

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type transition struct{ from, to State }

type recordingListener struct {
	mu          sync.Mutex
	delays      []time.Duration
	transitions []transition
}

func (l *recordingListener) RetryScheduled(_ string, _ int, d time.Duration, _ error) {
	l.mu.Lock()
	l.delays = append(l.delays, d)
	l.mu.Unlock()
}

func (l *recordingListener) StateChanged(_ string, from, to State) {
	l.mu.Lock()
	l.transitions = append(l.transitions, transition{from, to})
	l.mu.Unlock()
}

var errDown = errors.New("connection refused")

// countingOp fails while fail is true and counts invocations.
type countingOp struct {
	calls atomic.Int32
	fail  atomic.Bool
}

func (o *countingOp) run(context.Context) (int, error) {
	o.calls.Add(1)
	if o.fail.Load() {
		return 0, errDown
	}
	return 200, nil
}

func newTestBreaker(clock *fakeClock, l Listener) *Breaker {
	opts := []BreakerOption{WithClock(clock.Now)}
	if l != nil {
		opts = append(opts, WithListener(l))
	}
	return NewBreaker("inventory", BreakerConfig{FailureThreshold: 2, OpenFor: 30 * time.Second}, opts...)
}

func TestBreaker_OpensAfterConsecutiveFailuresAndShortCircuits(t *testing.T) {
	clock := newFakeClock()
	b := newTestBreaker(clock, nil)
	p := Policy{Breaker: b}
	op := &countingOp{}
	op.fail.Store(true)

	for i := 0; i < 2; i++ {
		_, err := Do(context.Background(), p, op.run, nil)
		require.ErrorIs(t, err, errDown)
	}
	assert.Equal(t, StateOpen, b.State())

	clock.Advance(29 * time.Second)
	for i := 0; i < 5; i++ {
		_, err := Do(context.Background(), p, op.run, nil)
		require.ErrorIs(t, err, ErrCircuitOpen)
	}
	assert.EqualValues(t, 2, op.calls.Load(), "open circuit must not reach the operation")
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b := newTestBreaker(newFakeClock(), nil)
	p := Policy{Breaker: b}
	op := &countingOp{}

	op.fail.Store(true)
	_, _ = Do(context.Background(), p, op.run, nil)
	assert.Equal(t, 1, b.Failures())

	op.fail.Store(false)
	_, err := Do(context.Background(), p, op.run, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, b.Failures())

	op.fail.Store(true)
	_, _ = Do(context.Background(), p, op.run, nil)
	assert.Equal(t, StateClosed, b.State(), "failures must be consecutive to trip")
}

func TestBreaker_SingleProbeAfterCoolDown(t *testing.T) {
	clock := newFakeClock()
	rec := &recordingListener{}
	b := newTestBreaker(clock, rec)
	p := Policy{Breaker: b}

	failing := &countingOp{}
	failing.fail.Store(true)
	for i := 0; i < 2; i++ {
		_, _ = Do(context.Background(), p, failing.run, nil)
	}
	require.Equal(t, StateOpen, b.State())
	clock.Advance(30 * time.Second)

	started := make(chan struct{})
	release := make(chan struct{})
	var probeCalls atomic.Int32
	probe := func(context.Context) (int, error) {
		probeCalls.Add(1)
		close(started)
		<-release
		return 200, nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := Do(context.Background(), p, probe, nil)
		done <- err
	}()
	<-started

	other := &countingOp{}
	_, err := Do(context.Background(), p, other.run, nil)
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.EqualValues(t, 0, other.calls.Load())
	assert.Equal(t, StateHalfOpen, b.State())

	close(release)
	require.NoError(t, <-done)

	assert.EqualValues(t, 1, probeCalls.Load())
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, 0, b.Failures())
	assert.Equal(t, []transition{
		{StateClosed, StateOpen},
		{StateOpen, StateHalfOpen},
		{StateHalfOpen, StateClosed},
	}, rec.transitions)
}

func TestBreaker_FailedProbeReopens(t *testing.T) {
	clock := newFakeClock()
	b := newTestBreaker(clock, nil)
	p := Policy{Breaker: b}
	op := &countingOp{}
	op.fail.Store(true)

	for i := 0; i < 2; i++ {
		_, _ = Do(context.Background(), p, op.run, nil)
	}
	clock.Advance(30 * time.Second)

	_, err := Do(context.Background(), p, op.run, nil)
	require.ErrorIs(t, err, errDown)
	assert.EqualValues(t, 3, op.calls.Load())
	assert.Equal(t, StateOpen, b.State())

	clock.Advance(29 * time.Second)
	_, err = Do(context.Background(), p, op.run, nil)
	require.ErrorIs(t, err, ErrCircuitOpen, "cool-down restarts on a failed probe")

	clock.Advance(time.Second)
	op.fail.Store(false)
	_, err = Do(context.Background(), p, op.run, nil)
	require.NoError(t, err)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_CancelledProbeReleasesSlot(t *testing.T) {
	clock := newFakeClock()
	b := newTestBreaker(clock, nil)
	p := Policy{Breaker: b}
	op := &countingOp{}
	op.fail.Store(true)
	for i := 0; i < 2; i++ {
		_, _ = Do(context.Background(), p, op.run, nil)
	}
	clock.Advance(30 * time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancelled := func(ctx context.Context) (int, error) {
		cancel()
		return 0, ctx.Err()
	}
	_, err := Do(ctx, p, cancelled, nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateHalfOpen, b.State())
	assert.Equal(t, 2, b.Failures(), "cancellation is not a downstream failure")

	op.fail.Store(false)
	_, err = Do(context.Background(), p, op.run, nil)
	require.NoError(t, err)
	assert.Equal(t, StateClosed, b.State())
}

func recordSleep(delays *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

func TestDo_ExhaustsRetriesWithExponentialBackoff(t *testing.T) {
	var slept []time.Duration
	rec := &recordingListener{}
	p := Policy{Name: "inventory.check", Retries: 3, BaseDelay: time.Second, Sleep: recordSleep(&slept), Listener: rec}
	op := &countingOp{}
	op.fail.Store(true)

	_, err := Do(context.Background(), p, op.run, nil)

	require.ErrorIs(t, err, errDown)
	assert.EqualValues(t, 4, op.calls.Load())
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}, slept)
	assert.Equal(t, slept, rec.delays)
}

func TestPolicy_Budget(t *testing.T) {
	p := Policy{Retries: 3, BaseDelay: time.Second}
	assert.Equal(t, 54*time.Second, p.Budget(10*time.Second))
	assert.Equal(t, 10*time.Second, Policy{}.Budget(10*time.Second))
}

func TestDo_UnsuccessfulResultReturnedAfterRetries(t *testing.T) {
	var slept []time.Duration
	p := Policy{Retries: 3, BaseDelay: time.Second, Sleep: recordSleep(&slept)}
	calls := 0
	op := func(context.Context) (int, error) {
		calls++
		return 503, nil
	}

	res, err := Do(context.Background(), p, op, func(code int) bool { return code >= 300 })

	require.NoError(t, err)
	assert.Equal(t, 503, res)
	assert.Equal(t, 4, calls)
	assert.Len(t, slept, 3)
}

func TestDo_StopsOnFirstSuccess(t *testing.T) {
	var slept []time.Duration
	p := Policy{Retries: 3, BaseDelay: time.Second, Sleep: recordSleep(&slept)}
	calls := 0
	op := func(context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, errDown
		}
		return 200, nil
	}

	res, err := Do(context.Background(), p, op, nil)

	require.NoError(t, err)
	assert.Equal(t, 200, res)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []time.Duration{2 * time.Second}, slept)
}

func TestDo_BreakerTripAbortsRemainingRetries(t *testing.T) {
	var slept []time.Duration
	b := newTestBreaker(newFakeClock(), nil)
	p := Policy{Retries: 3, BaseDelay: time.Second, Breaker: b, Sleep: recordSleep(&slept)}
	op := &countingOp{}
	op.fail.Store(true)

	_, err := Do(context.Background(), p, op.run, nil)

	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.EqualValues(t, 2, op.calls.Load())
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, slept)
}

func TestDo_CancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{Retries: 3, BaseDelay: time.Second, Sleep: func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}}
	op := &countingOp{}
	op.fail.Store(true)

	_, err := Do(ctx, p, op.run, nil)

	require.ErrorIs(t, err, context.Canceled)
	assert.EqualValues(t, 1, op.calls.Load())
}

func TestBreaker_ConcurrentCallers(t *testing.T) {
	b := newTestBreaker(newFakeClock(), nil)
	p := Policy{Breaker: b}
	op := &countingOp{}
	op.fail.Store(true)

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = Do(context.Background(), p, op.run, nil)
		}()
	}
	wg.Wait()

	assert.Equal(t, StateOpen, b.State())
	_, err := Do(context.Background(), p, op.run, nil)
	require.ErrorIs(t, err, ErrCircuitOpen)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half_open", StateHalfOpen.String())
}
