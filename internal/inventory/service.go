package inventory

import (
	"context"
	"errors"

	"github.com/ariefcatur/resilient-orders/internal/metrics"
	"github.com/ariefcatur/resilient-orders/internal/orders"
	"go.uber.org/zap"
)

// Reconciler applies OrderCreated events to the ledger. Messages are already
// acknowledged when they reach it, so it never asks for redelivery: bad input
// and shortfalls are logged and dropped.
//
// The order service has reduced the same units synchronously before the event
// was published; this second decrement is intentional and unresolved.
type Reconciler struct {
	Store StockStore
	Log   *zap.Logger
}

// HandleOrderCreated returns an error only when the ledger itself failed.
func (r *Reconciler) HandleOrderCreated(ctx context.Context, body []byte) error {
	env, p, err := orders.DecodeOrderCreated(body)
	if err != nil {
		r.Log.Warn("dropping malformed order event", zap.Error(err), zap.ByteString("body", truncate(body, 256)))
		metrics.Reconciliations.WithLabelValues("malformed").Inc()
		return nil
	}
	log := r.Log.With(
		zap.String("event_id", env.EventID),
		zap.Int64("order_id", p.OrderID),
		zap.String("sku", p.SKU),
		zap.Int("quantity", p.Quantity),
	)

	remaining, err := r.Store.DecrementIfAvailable(ctx, p.SKU, p.Quantity)
	switch {
	case errors.Is(err, ErrStockNotFound):
		log.Warn("stock reconciliation skipped: unknown sku")
		metrics.Reconciliations.WithLabelValues("not_found").Inc()
		return nil
	case errors.Is(err, ErrInsufficientStock):
		log.Warn("stock reconciliation skipped: insufficient stock", zap.Int("available", remaining))
		metrics.Reconciliations.WithLabelValues("insufficient").Inc()
		return nil
	case err != nil:
		metrics.Reconciliations.WithLabelValues("error").Inc()
		return err
	}
	log.Info("stock reconciled", zap.Int("available", remaining))
	metrics.Reconciliations.WithLabelValues("applied").Inc()
	return nil
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
