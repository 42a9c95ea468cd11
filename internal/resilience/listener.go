package resilience

import (
	"time"

	"go.uber.org/zap"
)

// Listener observes retries and breaker transitions. Implementations must be
// safe for concurrent use and must not block.
type Listener interface {
	RetryScheduled(policy string, attempt int, delay time.Duration, cause error)
	StateChanged(breaker string, from, to State)
}

type nopListener struct{}

func (nopListener) RetryScheduled(string, int, time.Duration, error) {}
func (nopListener) StateChanged(string, State, State)               {}

// Listeners fans every notification out to each member.
type Listeners []Listener

func (ls Listeners) RetryScheduled(policy string, attempt int, delay time.Duration, cause error) {
	for _, l := range ls {
		l.RetryScheduled(policy, attempt, delay, cause)
	}
}

func (ls Listeners) StateChanged(breaker string, from, to State) {
	for _, l := range ls {
		l.StateChanged(breaker, from, to)
	}
}

type logListener struct{ log *zap.Logger }

func LogListener(log *zap.Logger) Listener {
	return logListener{log: log}
}

func (l logListener) RetryScheduled(policy string, attempt int, delay time.Duration, cause error) {
	l.log.Warn("retrying downstream call",
		zap.String("policy", policy),
		zap.Int("attempt", attempt),
		zap.Duration("delay", delay),
		zap.Error(cause),
	)
}

func (l logListener) StateChanged(breaker string, from, to State) {
	fields := []zap.Field{
		zap.String("breaker", breaker),
		zap.Stringer("from", from),
		zap.Stringer("to", to),
	}
	if to == StateOpen {
		l.log.Warn("circuit opened", fields...)
		return
	}
	l.log.Info("circuit state changed", fields...)
}
