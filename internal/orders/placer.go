package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ariefcatur/resilient-orders/internal/metrics"
	"github.com/ariefcatur/resilient-orders/internal/resilience"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const defaultDetachedTimeout = 5 * time.Second

// Placer drives one order through check, reduce, persist and publish. There is
// no compensation: a failure after the reduce step leaves the ledger reduced.
type Placer struct {
	inv      Inventory
	store    Store
	events   EventPublisher
	log      *zap.Logger
	producer string
	now      func() time.Time

	// DetachedTimeout bounds persist and publish, which ignore caller
	// cancellation once the ledger has been reduced.
	DetachedTimeout time.Duration
}

func NewPlacer(inv Inventory, store Store, events EventPublisher, log *zap.Logger, producer string) *Placer {
	return &Placer{
		inv:             inv,
		store:           store,
		events:          events,
		log:             log,
		producer:        producer,
		now:             time.Now,
		DetachedTimeout: defaultDetachedTimeout,
	}
}

type placement struct {
	state Status
	log   *zap.Logger
}

func (p *placement) to(next Status) {
	if !CanTransition(p.state, next) {
		panic(fmt.Sprintf("orders: illegal placement transition %s -> %s", p.state, next))
	}
	p.log.Debug("placement transition", zap.String("from", string(p.state)), zap.String("to", string(next)))
	p.state = next
}

// Place runs the placement state machine. The returned Result always carries
// the terminal state; the error, if any, is one of the types in errors.go or
// wraps resilience.ErrCircuitOpen.
func (s *Placer) Place(ctx context.Context, req PlaceOrderRequest) (Result, error) {
	pl := &placement{
		state: StatusReceived,
		log:   s.log.With(zap.String("sku", req.SKU), zap.Int("quantity", req.Quantity)),
	}
	res, err := s.place(ctx, pl, req)
	res.State = pl.state
	metrics.Placements.WithLabelValues(string(pl.state)).Inc()
	return res, err
}

func (s *Placer) place(ctx context.Context, pl *placement, req PlaceOrderRequest) (Result, error) {
	if strings.TrimSpace(req.SKU) == "" {
		pl.to(StatusRejected)
		return Result{}, fmt.Errorf("%w: sku is required", ErrInvalidRequest)
	}

	pl.to(StatusCheckingStock)
	available, err := s.inv.CheckAvailability(ctx, req.SKU)
	if err != nil {
		return Result{}, s.downstreamFailed(ctx, pl, StatusCheckFailed, err)
	}
	if available < req.Quantity {
		pl.to(StatusInsufficientStock)
		pl.log.Warn("insufficient stock", zap.Int("available", available))
		return Result{Available: available}, &InsufficientStockError{SKU: req.SKU, Available: available, Requested: req.Quantity}
	}

	pl.to(StatusReducingStock)
	out, err := s.inv.ReduceStock(ctx, req.SKU, req.Quantity)
	if err == nil && !out.Success {
		err = &DownstreamError{Op: "reduce", Status: out.StatusCode}
	}
	if err != nil {
		return Result{}, s.downstreamFailed(ctx, pl, StatusReduceFailed, err)
	}

	pl.to(StatusPersisting)
	order := &Order{SKU: req.SKU, ProductRef: ProductRefFromSKU(req.SKU), Quantity: req.Quantity}
	pctx, cancel := s.detached(ctx)
	id, err := s.store.Create(pctx, order)
	cancel()
	if err != nil {
		pl.to(StatusPersistFailed)
		pl.log.Error("order not persisted after stock reduction",
			zap.Bool("consistency_risk", true),
			zap.Error(err),
		)
		return Result{}, &PersistenceError{AfterReduce: true, Err: err}
	}
	order.ID = id

	pl.to(StatusPublishing)
	if err := s.publish(ctx, order); err != nil {
		pl.log.Warn("order created event not published", zap.Int64("order_id", id), zap.Error(err))
	}

	pl.to(StatusCompleted)
	pl.log.Info("order confirmed", zap.Int64("order_id", id))
	return Result{OrderID: id, Available: available - req.Quantity}, nil
}

// downstreamFailed moves pl to StatusUnavailable for an open circuit and to
// failed otherwise. A caller that gives up mid-reduce leaves the ledger in an
// unknown state, which is flagged like a persistence failure.
func (s *Placer) downstreamFailed(ctx context.Context, pl *placement, failed Status, err error) error {
	if errors.Is(err, resilience.ErrCircuitOpen) {
		pl.to(StatusUnavailable)
		pl.log.Warn("inventory circuit open", zap.Error(err))
		return err
	}
	pl.to(failed)
	switch {
	case ctx.Err() != nil && failed == StatusReduceFailed:
		pl.log.Error("stock reduction outcome unknown after caller gave up",
			zap.Bool("consistency_risk", true),
			zap.Error(err),
		)
	case ctx.Err() != nil:
		pl.log.Info("placement abandoned by caller", zap.String("state", string(failed)), zap.Error(err))
	default:
		pl.log.Error("inventory call failed", zap.String("state", string(failed)), zap.Error(err))
	}
	return err
}

func (s *Placer) publish(ctx context.Context, o *Order) error {
	var traceID string
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		traceID = sc.TraceID().String()
	}
	body, err := NewOrderCreated(s.producer, traceID, o, s.now())
	if err != nil {
		return err
	}
	pctx, cancel := s.detached(ctx)
	defer cancel()
	return s.events.Publish(pctx, TopicOrderCreated, PartitionKey(o.SKU), body)
}

func (s *Placer) detached(ctx context.Context) (context.Context, context.CancelFunc) {
	d := s.DetachedTimeout
	if d <= 0 {
		d = defaultDetachedTimeout
	}
	return context.WithTimeout(context.WithoutCancel(ctx), d)
}

// Lookup returns a persisted order, for callers checking whether an ambiguous
// placement went through.
func (s *Placer) Lookup(ctx context.Context, id int64) (*Order, error) {
	return s.store.Get(ctx, id)
}
