package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/framelab/frame-extraction-service/internal/domain/entity"
	amqp "github.com/rabbitmq/amqp091-go"
)

type Publisher struct {
	mu       sync.Mutex
	channel  *amqp.Channel
	exchange string
}

func NewPublisher(conn *amqp.Connection, topology Topology) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open publisher channel: %w", err)
	}
	if err := topology.Declare(ch); err != nil {
		ch.Close()
		return nil, err
	}
	return &Publisher{channel: ch, exchange: topology.Exchange}, nil
}

func (p *Publisher) publish(ctx context.Context, exchange, routingKey string, msg amqp.Publishing) error {
	injectTrace(ctx, &msg)

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.channel.PublishWithContext(ctx, exchange, routingKey, false, false, msg)
}

func (p *Publisher) Close() error {
	return p.channel.Close()
}

func persistentJSON(body []byte) amqp.Publishing {
	return amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
	}
}

type StatusPublisher struct {
	pub *Publisher
}

func NewStatusPublisher(pub *Publisher) *StatusPublisher {
	return &StatusPublisher{pub: pub}
}

func (sp *StatusPublisher) PublishStatus(ctx context.Context, msg []byte) error {
	return sp.pub.publish(ctx, sp.pub.exchange, RoutingKeyStatus, persistentJSON(msg))
}

type DLQPublisher struct {
	pub   *Publisher
	queue string
}

func NewDLQPublisher(pub *Publisher, dlqQueue string) *DLQPublisher {
	return &DLQPublisher{pub: pub, queue: dlqQueue}
}

func (dp *DLQPublisher) PublishToDLQ(ctx context.Context, msg []byte, reason string) error {
	p := persistentJSON(msg)
	p.Headers = amqp.Table{"x-dlq-reason": reason}
	return dp.pub.publish(ctx, "", dp.queue, p)
}

// ExtractionPublisher hands extraction requests to the worker pool.
type ExtractionPublisher struct {
	pub *Publisher
}

func NewExtractionPublisher(pub *Publisher) *ExtractionPublisher {
	return &ExtractionPublisher{pub: pub}
}

func (ep *ExtractionPublisher) Dispatch(ctx context.Context, req entity.ExtractionRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal extraction request: %w", err)
	}
	msg := persistentJSON(body)
	msg.MessageId = req.SessionID
	if err := ep.pub.publish(ctx, ep.pub.exchange, RoutingKeyExtract, msg); err != nil {
		return fmt.Errorf("publish extraction request: %w", err)
	}
	return nil
}
