package outbox

import (
	"context"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/dmehra2102/textbook-orders/pkg/tracing"
)

type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Dispatcher struct {
	log      *slog.Logger
	producer Producer
	topic    string
	routes   map[string]string
}

func NewDispatcher(log *slog.Logger, producer Producer, topic string) *Dispatcher {
	return &Dispatcher{log: log, producer: producer, topic: topic, routes: map[string]string{}}
}

// Route sends events of the given type to a dedicated topic instead of the default one.
func (d *Dispatcher) Route(eventType, topic string) *Dispatcher {
	d.routes[eventType] = topic
	return d
}

func (d *Dispatcher) topicFor(eventType string) string {
	if t, ok := d.routes[eventType]; ok {
		return t
	}
	return d.topic
}

// Message builds the Kafka record for event. The trace context stored with the event
// is re-injected so consumers join the trace that produced it.
func (d *Dispatcher) Message(ctx context.Context, event Event) kafka.Message {
	headers := make([]kafka.Header, 0, len(event.Headers)+2)
	for k, v := range event.Headers {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	headers = append(headers, kafka.Header{Key: "event_type", Value: []byte(event.Type)})
	headers = tracing.InjectKafkaHeaders(tracing.ContextWithTraceparent(ctx, event.Traceparent), headers)
	return kafka.Message{
		Topic:   d.topicFor(event.Type),
		Key:     []byte(event.AggregateID),
		Value:   event.Payload,
		Headers: headers,
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, event Event) error {
	if err := d.producer.WriteMessages(ctx, d.Message(ctx, event)); err != nil {
		d.log.Error("outbox dispatch failed", "event_id", event.ID, "type", event.Type, "err", err)
		return err
	}
	d.log.Info("outbox dispatched", "event_id", event.ID, "type", event.Type, "aggregate_id", event.AggregateID)
	return nil
}
