package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/ariefcatur/resilient-orders/internal/resilience"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestListener_RecordsRetriesAndTransitions(t *testing.T) {
	var l resilience.Listener = Listener{}

	before := testutil.ToFloat64(DownstreamRetries.WithLabelValues("test.check"))
	l.RetryScheduled("test.check", 1, 2*time.Second, errors.New("boom"))
	l.RetryScheduled("test.check", 2, 4*time.Second, errors.New("boom"))
	assert.Equal(t, before+2, testutil.ToFloat64(DownstreamRetries.WithLabelValues("test.check")))

	l.StateChanged("test-breaker", resilience.StateClosed, resilience.StateOpen)
	assert.Equal(t, float64(resilience.StateOpen), testutil.ToFloat64(BreakerState.WithLabelValues("test-breaker")))
	assert.Equal(t, 1.0, testutil.ToFloat64(BreakerTransitions.WithLabelValues("test-breaker", "open")))

	l.StateChanged("test-breaker", resilience.StateOpen, resilience.StateHalfOpen)
	assert.Equal(t, float64(resilience.StateHalfOpen), testutil.ToFloat64(BreakerState.WithLabelValues("test-breaker")))
}
