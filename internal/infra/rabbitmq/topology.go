package rabbitmq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	RoutingKeyExtract = "frames.extract"
	RoutingKeyStatus  = "frames.status"
)

// Topology names the exchange and queues shared by the API and the workers.
type Topology struct {
	Exchange     string
	ExtractQueue string
	StatusQueue  string
	DLQ          string
}

// Declare creates the topic exchange and the durable queues and binds them.
// It is idempotent, so both publishers and consumers call it on startup.
func (t Topology) Declare(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(t.Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	for _, q := range []string{t.ExtractQueue, t.DLQ, t.StatusQueue} {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", q, err)
		}
	}

	if err := ch.QueueBind(t.ExtractQueue, RoutingKeyExtract, t.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind extract queue: %w", err)
	}
	if err := ch.QueueBind(t.StatusQueue, RoutingKeyStatus, t.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind status queue: %w", err)
	}
	return nil
}
