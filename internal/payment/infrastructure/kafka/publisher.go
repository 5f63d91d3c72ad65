package kafka

import (
	"context"

	"github.com/segmentio/kafka-go"

	"github.com/dmehra2102/payment-console/pkg/outbox"
	"github.com/dmehra2102/payment-console/pkg/tracing"
)

func NewWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

type Dispatcher interface {
	Dispatch(ctx context.Context, event outbox.Event) error
}

// Publisher sends lifecycle events straight to kafka, without an outbox.
type Publisher struct {
	dispatch Dispatcher
}

func NewPublisher(dispatch Dispatcher) *Publisher {
	return &Publisher{dispatch: dispatch}
}

func (p *Publisher) Publish(ctx context.Context, eventType, aggregateID string, payload []byte) error {
	return p.dispatch.Dispatch(ctx, outbox.Event{
		AggregateType: "payment",
		AggregateID:   aggregateID,
		Type:          eventType,
		Payload:       payload,
		Headers:       map[string]string{"source": "payment-console"},
		Traceparent:   tracing.Traceparent(ctx),
	})
}
