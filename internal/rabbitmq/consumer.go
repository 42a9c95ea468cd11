package rabbitmq

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

var errDeliveriesClosed = errors.New("delivery channel closed")

// Consumer reads one queue with auto-ack: a message counts as delivered the
// moment the broker hands it over. Deliveries are handled one at a time.
type Consumer struct {
	s       *Session
	queue   string
	log     *zap.Logger
	backoff time.Duration
}

func NewConsumer(s *Session, queue string, log *zap.Logger) *Consumer {
	return &Consumer{s: s, queue: queue, log: log, backoff: 2 * time.Second}
}

// Start consumes until ctx is cancelled, resubscribing after connection loss.
func (c *Consumer) Start(ctx context.Context, h func(ctx context.Context, body []byte) error) error {
	for {
		err := c.s.withChannel(func(ch channel) error { return c.consume(ctx, ch, h) })
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, ErrSessionClosed) {
			return err
		}
		c.log.Warn("rabbitmq consumer interrupted, resubscribing", zap.String("queue", c.queue), zap.Error(err))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.backoff):
		}
	}
}

func (c *Consumer) consume(ctx context.Context, ch channel, h func(context.Context, []byte) error) error {
	if err := declareQueue(ch, c.queue); err != nil {
		return err
	}
	deliveries, err := ch.Consume(c.queue, "", true, false, false, false, nil)
	if err != nil {
		return err
	}
	c.log.Info("rabbitmq consumer subscribed", zap.String("queue", c.queue))
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errDeliveriesClosed
			}
			if err := h(ctx, d.Body); err != nil {
				c.log.Error("message handler failed", zap.String("queue", c.queue), zap.String("message_id", d.MessageId), zap.Error(err))
			}
		}
	}
}
