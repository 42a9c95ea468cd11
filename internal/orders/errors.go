package orders

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRequest = errors.New("invalid order request")
	ErrNotConfigured  = errors.New("inventory service url not configured")
	ErrOrderNotFound  = errors.New("order not found")
)

// DownstreamError is a ledger call that failed after the resilience policy
// gave up. Status is the last HTTP status seen, 0 when no response arrived.
type DownstreamError struct {
	Op     string
	Status int
	Err    error
}

func (e *DownstreamError) Error() string {
	switch {
	case e.Err != nil && e.Status != 0:
		return fmt.Sprintf("inventory %s: status %d: %v", e.Op, e.Status, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("inventory %s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("inventory %s: status %d", e.Op, e.Status)
	}
}

func (e *DownstreamError) Unwrap() error { return e.Err }

type InsufficientStockError struct {
	SKU       string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: available %d, requested %d", e.SKU, e.Available, e.Requested)
}

// PersistenceError is a failed order insert. AfterReduce marks the case where
// the ledger was already decremented, so the caller cannot tell whether the
// order exists.
type PersistenceError struct {
	AfterReduce bool
	Err         error
}

func (e *PersistenceError) Error() string {
	return "persist order: " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error { return e.Err }
