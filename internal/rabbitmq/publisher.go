package rabbitmq

import (
	"context"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher sends events to a queue of the same name as the topic through the
// default exchange. Delivery is at most once: no confirms, no retry.
type Publisher struct{ s *Session }

func NewPublisher(s *Session) *Publisher { return &Publisher{s: s} }

func (p *Publisher) Publish(ctx context.Context, topic string, key, payload []byte) error {
	return p.s.withChannel(func(ch channel) error {
		if err := declareQueue(ch, topic); err != nil {
			return err
		}
		return ch.PublishWithContext(ctx, "", topic, false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Transient,
			MessageId:    uuid.NewString(),
			Timestamp:    time.Now().UTC(),
			Headers:      amqp.Table{"key": string(key)},
			Body:         payload,
		})
	})
}

// Close closes the underlying session.
func (p *Publisher) Close() error { return p.s.Close() }
