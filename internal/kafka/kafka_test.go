package kafka

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	block  chan struct{}
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.block != nil {
		<-w.block
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	return nil
}

func TestProducer_FlushesOnClose(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, 16, zap.NewNop())
	p.Start()

	for i := 0; i < 3; i++ {
		require.NoError(t, p.Publish(context.Background(), "order_created", []byte("SKU-1"), []byte(fmt.Sprint(i))))
	}
	require.NoError(t, p.Close())

	require.Len(t, w.msgs, 3)
	assert.Equal(t, "order_created", w.msgs[0].Topic)
	assert.Equal(t, []byte("SKU-1"), w.msgs[0].Key)
	assert.Equal(t, []byte("2"), w.msgs[2].Value)
	assert.True(t, w.closed)

	assert.ErrorIs(t, p.Publish(context.Background(), "order_created", nil, nil), ErrProducerClosed)
	assert.NoError(t, p.Close(), "close is idempotent")
}

func TestProducer_FullInboxFailsFast(t *testing.T) {
	w := &fakeWriter{block: make(chan struct{})}
	p := newProducer(w, 1, zap.NewNop())

	require.NoError(t, p.Publish(context.Background(), "t", nil, []byte("a")))
	assert.ErrorIs(t, p.Publish(context.Background(), "t", nil, []byte("b")), ErrInboxFull)

	p.Start()
	close(w.block)
	require.NoError(t, p.Close())
	assert.Len(t, w.msgs, 1)
}

func TestProducer_LogsWriteFailure(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	w := &fakeWriter{err: errors.New("leader not available")}
	p := newProducer(w, 4, zap.New(core))
	p.Start()

	require.NoError(t, p.Publish(context.Background(), "order_created", []byte("SKU-1"), []byte("{}")))
	require.NoError(t, p.Close())

	assert.Equal(t, 1, logs.FilterMessage("kafka write failed").Len())
}

// fakeReader serves msgs, then blocks until the context ends.
type fakeReader struct {
	mu   sync.Mutex
	msgs []kafka.Message
}

func (r *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.msgs) > 0 {
		m := r.msgs[0]
		r.msgs = r.msgs[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) Close() error { return nil }

func TestConsumer_KeepsPerKeyOrder(t *testing.T) {
	var msgs []kafka.Message
	for i := 0; i < 50; i++ {
		key := fmt.Sprintf("SKU-%d", i%5)
		msgs = append(msgs, kafka.Message{Key: []byte(key), Value: []byte(fmt.Sprint(i))})
	}
	c := newConsumer(&fakeReader{msgs: msgs}, 4, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	var (
		mu   sync.Mutex
		seen = map[string][]int{}
		n    int
	)
	h := func(_ context.Context, m kafka.Message) error {
		mu.Lock()
		defer mu.Unlock()
		v, err := strconv.Atoi(string(m.Value))
		if err != nil {
			return err
		}
		seen[string(m.Key)] = append(seen[string(m.Key)], v)
		n++
		if n == len(msgs) {
			cancel()
		}
		return nil
	}

	require.NoError(t, c.Start(ctx, h))

	assert.Equal(t, 50, n)
	for k, vals := range seen {
		assert.IsIncreasing(t, vals, "key %s out of order", k)
	}
}

func TestConsumer_HandlerErrorDoesNotStopConsumption(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	msgs := []kafka.Message{{Key: []byte("a"), Value: []byte("bad")}, {Key: []byte("a"), Value: []byte("good")}}
	c := newConsumer(&fakeReader{msgs: msgs}, 1, zap.New(core))

	ctx, cancel := context.WithCancel(context.Background())
	var handled []string
	h := Values(func(_ context.Context, body []byte) error {
		handled = append(handled, string(body))
		if string(body) == "bad" {
			return errors.New("boom")
		}
		cancel()
		return nil
	})

	require.NoError(t, c.Start(ctx, h))

	assert.Equal(t, []string{"bad", "good"}, handled)
	assert.Equal(t, 1, logs.FilterMessage("message handler failed").Len())
}

func TestShardIsStable(t *testing.T) {
	assert.Equal(t, shard([]byte("SKU-1"), 8), shard([]byte("SKU-1"), 8))
	assert.Equal(t, 0, shard([]byte("anything"), 1))
}
