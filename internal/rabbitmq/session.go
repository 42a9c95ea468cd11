package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

type connection interface {
	Channel() (channel, error)
	NotifyClose(receiver chan *amqp.Error) chan *amqp.Error
	IsClosed() bool
	Close() error
}

type amqpConn struct{ *amqp.Connection }

func (c amqpConn) Channel() (channel, error) {
	ch, err := c.Connection.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func dialAMQP(url string) (connection, error) {
	conn, err := amqp.DialConfig(url, amqp.Config{
		Dial:      amqp.DefaultDial(5 * time.Second),
		Heartbeat: 10 * time.Second,
	})
	if err != nil {
		return nil, err
	}
	return amqpConn{conn}, nil
}

// Session owns one broker connection for the life of the process and redials
// it after it drops. Channels are opened per operation through withChannel.
type Session struct {
	url  string
	dial func(url string) (connection, error)
	log  *zap.Logger

	mu     sync.Mutex
	conn   connection
	closed bool
}

var ErrSessionClosed = errors.New("rabbitmq session closed")

func NewSession(url string, log *zap.Logger) *Session {
	return &Session{url: url, dial: dialAMQP, log: log}
}

func (s *Session) connection() (connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	if s.conn != nil && !s.conn.IsClosed() {
		return s.conn, nil
	}
	conn, err := s.dial(s.url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	s.conn = conn
	go s.watch(conn)
	return conn, nil
}

func (s *Session) watch(conn connection) {
	closeErr, ok := <-conn.NotifyClose(make(chan *amqp.Error, 1))
	if ok && closeErr != nil {
		s.log.Warn("rabbitmq connection lost", zap.Error(closeErr))
	}
	s.drop(conn)
}

// drop forgets conn so the next operation redials.
func (s *Session) drop(conn connection) {
	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	s.mu.Unlock()
}

// withChannel runs fn on a fresh channel and closes the channel on every exit
// path, panics included.
func (s *Session) withChannel(fn func(ch channel) error) error {
	conn, err := s.connection()
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		s.drop(conn)
		_ = conn.Close()
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	defer func() { _ = ch.Close() }()
	return fn(ch)
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

// declareQueue declares the order event queue: non-durable, non-exclusive,
// kept when unused. Redeclaring with the same arguments is a no-op.
func declareQueue(ch channel, name string) error {
	_, err := ch.QueueDeclare(name, false, false, false, false, nil)
	return err
}
