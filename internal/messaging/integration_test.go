//go:build integration

package messaging

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/bakery-checkout/internal/testenv"
)

func TestProducerConsumerRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	brokers := testenv.Kafka(ctx, t)
	topic := "order.confirmation.test"

	producer := NewProducer(brokers, topic, WithBatchTimeout(10*time.Millisecond))
	defer func() { _ = producer.Close() }()

	event := map[string]string{"order_number": "ORD-20260309-000001"}
	require.Eventually(t, func() bool {
		return producer.Publish(ctx, "ORD-20260309-000001", event) == nil
	}, 30*time.Second, time.Second)

	consumer := NewConsumer(brokers, topic, "roundtrip", slog.New(slog.NewTextHandler(io.Discard, nil)),
		WithStartOffset(kafka.FirstOffset))
	defer func() { _ = consumer.Close() }()

	consumeCtx, stop := context.WithCancel(ctx)
	received := make(chan map[string]string, 1)
	done := make(chan error, 1)
	go func() {
		done <- consumer.Consume(consumeCtx, func(ctx context.Context, payload []byte) error {
			var got map[string]string
			if err := json.Unmarshal(payload, &got); err != nil {
				return err
			}
			received <- got
			return nil
		})
	}()

	select {
	case got := <-received:
		assert.Equal(t, event, got)
	case <-ctx.Done():
		t.Fatal("message not consumed")
	}

	stop()
	assert.NoError(t, <-done)
}
