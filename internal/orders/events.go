package orders

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	EventOrderCreated = "OrderCreated"

	EventVersion = 1
)

var ErrMalformedEvent = errors.New("malformed event")

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

type OrderCreatedPayload struct {
	OrderID  int64  `json:"order_id"`
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
}

// NewOrderCreated encodes the OrderCreated event for o.
func NewOrderCreated(producer, traceID string, o *Order, at time.Time) ([]byte, error) {
	payload, err := json.Marshal(OrderCreatedPayload{OrderID: o.ID, SKU: o.SKU, Quantity: o.Quantity})
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{
		EventID:       uuid.NewString(),
		EventType:     EventOrderCreated,
		EventVersion:  EventVersion,
		OccurredAt:    at.UTC(),
		Producer:      producer,
		TraceID:       traceID,
		CorrelationID: fmt.Sprint(o.ID),
		Payload:       payload,
	})
}

// DecodeOrderCreated parses an OrderCreated message. Anything that is not a
// well-formed OrderCreated event wraps ErrMalformedEvent.
func DecodeOrderCreated(b []byte) (Envelope, OrderCreatedPayload, error) {
	var (
		env Envelope
		p   OrderCreatedPayload
	)
	if err := json.Unmarshal(b, &env); err != nil {
		return env, p, fmt.Errorf("%w: envelope: %v", ErrMalformedEvent, err)
	}
	if env.EventType != EventOrderCreated {
		return env, p, fmt.Errorf("%w: unexpected event type %q", ErrMalformedEvent, env.EventType)
	}
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return env, p, fmt.Errorf("%w: payload: %v", ErrMalformedEvent, err)
	}
	if strings.TrimSpace(p.SKU) == "" || p.Quantity <= 0 {
		return env, p, fmt.Errorf("%w: sku=%q quantity=%d", ErrMalformedEvent, p.SKU, p.Quantity)
	}
	return env, p, nil
}
