package resilience

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrCircuitOpen is returned without invoking the operation while the circuit
// is open or while a half-open probe is already in flight.
var ErrCircuitOpen = errors.New("circuit open")

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type BreakerConfig struct {
	// FailureThreshold consecutive failures trip the circuit.
	FailureThreshold int
	// OpenFor is the cool-down before a probe is let through.
	OpenFor time.Duration
}

// Breaker is the circuit state for one downstream call family. Share one
// *Breaker between every call that should trip together.
type Breaker struct {
	name     string
	cfg      BreakerConfig
	now      func() time.Time
	listener Listener

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

type BreakerOption func(*Breaker)

func WithClock(now func() time.Time) BreakerOption {
	return func(b *Breaker) { b.now = now }
}

func WithListener(l Listener) BreakerOption {
	return func(b *Breaker) { b.listener = l }
}

func NewBreaker(name string, cfg BreakerConfig, opts ...BreakerOption) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 1
	}
	b := &Breaker{name: name, cfg: cfg, now: time.Now, listener: nopListener{}}
	for _, o := range opts {
		o(b)
	}
	return b
}

func (b *Breaker) Name() string { return b.name }

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// allow admits a call. probe reports whether the caller holds the half-open
// probe slot and must settle it through one of the record methods.
func (b *Breaker) allow() (probe bool, err error) {
	b.mu.Lock()
	from, changed := b.state, false
	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cfg.OpenFor {
			b.mu.Unlock()
			return false, fmt.Errorf("%s: %w", b.name, ErrCircuitOpen)
		}
		b.state, changed = StateHalfOpen, true
		fallthrough
	case StateHalfOpen:
		if b.probing {
			b.mu.Unlock()
			return false, fmt.Errorf("%s: %w", b.name, ErrCircuitOpen)
		}
		b.probing = true
		probe = true
	}
	to := b.state
	b.mu.Unlock()

	if changed {
		b.listener.StateChanged(b.name, from, to)
	}
	return probe, nil
}

func (b *Breaker) recordSuccess(probe bool) {
	b.mu.Lock()
	from := b.state
	switch {
	case probe:
		b.probing = false
		b.failures = 0
		b.state = StateClosed
	case b.state == StateClosed:
		b.failures = 0
	}
	to := b.state
	b.mu.Unlock()

	if from != to {
		b.listener.StateChanged(b.name, from, to)
	}
}

// recordFailure counts a qualifying failure. Late results from calls admitted
// before the circuit tripped are ignored.
func (b *Breaker) recordFailure(probe bool) {
	b.mu.Lock()
	from := b.state
	switch {
	case probe:
		b.probing = false
		b.failures++
		b.state = StateOpen
		b.openedAt = b.now()
	case b.state == StateClosed:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.state = StateOpen
			b.openedAt = b.now()
		}
	}
	to := b.state
	b.mu.Unlock()

	if from != to {
		b.listener.StateChanged(b.name, from, to)
	}
}

// release gives back a probe slot without judging the downstream, used when
// the caller itself gave up.
func (b *Breaker) release(probe bool) {
	if !probe {
		return
	}
	b.mu.Lock()
	b.probing = false
	b.mu.Unlock()
}
