package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/framelab/frame-extraction-service/internal/domain/entity"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcrabbitmq "github.com/testcontainers/testcontainers-go/modules/rabbitmq"
	"go.uber.org/zap"
)

func TestBackoff(t *testing.T) {
	base := 100 * time.Millisecond
	assert.Equal(t, 100*time.Millisecond, backoff(base, 0))
	assert.Equal(t, 100*time.Millisecond, backoff(base, 1))
	assert.Equal(t, 200*time.Millisecond, backoff(base, 2))
	assert.Equal(t, 800*time.Millisecond, backoff(base, 4))
	assert.Equal(t, maxBackoff, backoff(base, 20))
	assert.Equal(t, maxBackoff, backoff(time.Second, 200))
}

func TestAttemptOf(t *testing.T) {
	assert.Equal(t, 1, attemptOf(amqp.Delivery{}))
	assert.Equal(t, 2, attemptOf(amqp.Delivery{Redelivered: true}))
	assert.Equal(t, 3, attemptOf(amqp.Delivery{Headers: amqp.Table{
		"x-death": []interface{}{amqp.Table{}, amqp.Table{}},
	}}))
}

var testTopology = Topology{
	Exchange:     "framelab.video",
	ExtractQueue: "frames.extract",
	StatusQueue:  "frames.status",
	DLQ:          "frames.extract.dlq",
}

func startRabbit(t *testing.T) (string, *amqp.Connection) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()
	container, err := tcrabbitmq.Run(ctx, "rabbitmq:3.12-management-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	url, err := container.AmqpURL(ctx)
	require.NoError(t, err)

	conn, err := amqp.Dial(url)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return url, conn
}

func TestConsumerRetriesThenAcks(t *testing.T) {
	url, conn := startRabbit(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pub, err := NewPublisher(conn, testTopology)
	require.NoError(t, err)
	defer pub.Close()

	var calls atomic.Int32
	received := make(chan entity.ExtractionRequest, 1)
	handler := func(_ context.Context, body []byte) error {
		if calls.Add(1) == 1 {
			return errors.New("transient")
		}
		var req entity.ExtractionRequest
		require.NoError(t, json.Unmarshal(body, &req))
		received <- req
		return nil
	}

	consumer, err := NewConsumer(ConsumerConfig{
		URL:         url,
		Topology:    testTopology,
		Prefetch:    1,
		WorkerCount: 1,
		BaseDelayMs: 10,
	}, handler, zap.NewNop())
	require.NoError(t, err)
	defer consumer.Close()

	consumerCtx, stop := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		_ = consumer.Start(consumerCtx)
		close(done)
	}()

	req := entity.ExtractionRequest{SessionID: "0b5e7a52-8f35-4c1f-9b7e-0d0a9a1d2c3e", TargetFPS: 5}
	require.NoError(t, NewExtractionPublisher(pub).Dispatch(ctx, req))

	select {
	case got := <-received:
		assert.Equal(t, req, got)
	case <-ctx.Done():
		t.Fatal("timeout waiting for extraction request")
	}
	assert.EqualValues(t, 2, calls.Load())

	stop()
	<-done
}

func TestStatusAndDLQPublishers(t *testing.T) {
	_, conn := startRabbit(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pub, err := NewPublisher(conn, testTopology)
	require.NoError(t, err)
	defer pub.Close()

	require.NoError(t, NewStatusPublisher(pub).PublishStatus(ctx, []byte(`{"status":"done"}`)))
	require.NoError(t, NewDLQPublisher(pub, testTopology.DLQ).PublishToDLQ(ctx, []byte(`{invalid json`), "unmarshal_error"))

	ch, err := conn.Channel()
	require.NoError(t, err)
	defer ch.Close()

	var status amqp.Delivery
	require.Eventually(t, func() bool {
		var ok bool
		status, ok, err = ch.Get(testTopology.StatusQueue, true)
		return err == nil && ok
	}, 10*time.Second, 100*time.Millisecond)
	assert.JSONEq(t, `{"status":"done"}`, string(status.Body))

	var dead amqp.Delivery
	require.Eventually(t, func() bool {
		var ok bool
		dead, ok, err = ch.Get(testTopology.DLQ, true)
		return err == nil && ok
	}, 10*time.Second, 100*time.Millisecond)
	assert.Equal(t, `{invalid json`, string(dead.Body))
	assert.Equal(t, "unmarshal_error", dead.Headers["x-dlq-reason"])
}
