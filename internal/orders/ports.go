package orders

import "context"

// Inventory is the remote stock ledger as seen by order placement.
type Inventory interface {
	CheckAvailability(ctx context.Context, sku string) (int, error)
	ReduceStock(ctx context.Context, sku string, qty int) (ReduceOutcome, error)
}

type Store interface {
	Create(ctx context.Context, o *Order) (int64, error)
	Get(ctx context.Context, id int64) (*Order, error)
}

// EventPublisher delivers at most once. Implementations must not block on a
// slow broker.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, key, payload []byte) error
}
