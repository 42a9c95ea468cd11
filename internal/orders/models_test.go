package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProductRefFromSKU(t *testing.T) {
	tests := map[string]int{
		"SKU-1":    1,
		"SKU-123":  123,
		"AB12CD34": 34,
		"SKU-":     0,
		"":         0,
		"42":       42,
		"SKU-007":  7,
	}
	for sku, want := range tests {
		assert.Equal(t, want, ProductRefFromSKU(sku), sku)
	}
	assert.Zero(t, ProductRefFromSKU("SKU-99999999999999999999"), "overflow")
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusReceived, StatusCheckingStock))
	assert.True(t, CanTransition(StatusCheckingStock, StatusUnavailable))
	assert.True(t, CanTransition(StatusPublishing, StatusCompleted))
	assert.False(t, CanTransition(StatusCheckingStock, StatusPersisting), "reduce cannot be skipped")
	assert.False(t, CanTransition(StatusInsufficientStock, StatusReducingStock))
	assert.False(t, CanTransition(StatusCompleted, StatusReceived))

	for _, s := range []Status{StatusRejected, StatusUnavailable, StatusCheckFailed, StatusInsufficientStock, StatusReduceFailed, StatusPersistFailed, StatusCompleted} {
		assert.True(t, s.Terminal(), s)
	}
	assert.False(t, StatusPersisting.Terminal())
}
