package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/textbook-orders/internal/order/application"
	"github.com/dmehra2102/textbook-orders/internal/order/domain"
	"github.com/dmehra2102/textbook-orders/pkg/tracing"
)

const (
	minBackoff = 200 * time.Millisecond
	maxBackoff = 30 * time.Second
)

// errMalformed marks events that can never be applied, however often they are retried.
var errMalformed = errors.New("malformed payment event")

type Deduper interface {
	Key(topic string, partition int, offset int64) string
	Seen(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// PaymentConsumer applies payment processor outcomes (captures and refunds) to orders.
type PaymentConsumer struct {
	log     *slog.Logger
	reader  *kafka.Reader
	svc     *application.Service
	idem    Deduper
	tracer  trace.Tracer
	backoff time.Duration
}

func NewPaymentConsumer(log *slog.Logger, brokers []string, topic, group string, svc *application.Service, idem Deduper) *PaymentConsumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})
	return &PaymentConsumer{
		log:     log,
		reader:  r,
		svc:     svc,
		idem:    idem,
		tracer:  otel.Tracer("payment-consumer"),
		backoff: minBackoff,
	}
}

// Run commits an offset only once its message was applied, found to be a duplicate,
// or rejected as malformed. Transient failures hold the partition and retry.
func (c *PaymentConsumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if err := c.Process(ctx, msg); err != nil {
			// only a cancelled context gets here; the offset stays uncommitted
			return nil
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.log.Error("commit offset failed", "offset", msg.Offset, "err", err)
		}
	}
}

// Process delivers msg until it is applied, skipped as a duplicate or dropped as
// malformed. It returns an error only when ctx ends first.
func (c *PaymentConsumer) Process(ctx context.Context, msg kafka.Message) error {
	wait := c.backoff
	for {
		err := c.deliver(ctx, msg)
		if err == nil {
			return nil
		}
		c.log.Error("payment event failed, retrying", "offset", msg.Offset, "backoff", wait, "err", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait = min(wait*2, maxBackoff)
	}
}

func (c *PaymentConsumer) deliver(ctx context.Context, msg kafka.Message) error {
	key := c.idem.Key(msg.Topic, msg.Partition, msg.Offset)
	seen, err := c.idem.Seen(ctx, key)
	if err != nil {
		return err
	}
	if seen {
		c.log.Info("duplicate message skipped", "key", key)
		return nil
	}

	err = c.Handle(ctx, msg)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errMalformed), errors.Is(err, domain.ErrValidation):
		c.log.Error("payment event dropped", "offset", msg.Offset, "err", err)
		return nil
	}
	if rerr := c.idem.Release(context.WithoutCancel(ctx), key); rerr != nil {
		c.log.Error("idempotency release failed", "key", key, "err", rerr)
	}
	return err
}

// Handle applies one payment event. Unknown event types are ignored.
func (c *PaymentConsumer) Handle(ctx context.Context, msg kafka.Message) error {
	msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
	eventType := tracing.HeaderValue(msg.Headers, "event_type")
	msgCtx, span := c.tracer.Start(msgCtx, "Consume"+eventType)
	defer span.End()

	switch eventType {
	case domain.EventPaymentProcessed:
		var ev domain.PaymentProcessed
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			return fmt.Errorf("%w: unmarshal %s: %v", errMalformed, eventType, err)
		}
		if err := c.svc.ConfirmPayment(msgCtx, ev); err != nil {
			return err
		}
		c.log.Info("payment applied", "order_id", ev.OrderID)
	case domain.EventRefundProcessed:
		var ev domain.RefundProcessed
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			return fmt.Errorf("%w: unmarshal %s: %v", errMalformed, eventType, err)
		}
		if err := c.svc.ConfirmRefund(msgCtx, ev); err != nil {
			return err
		}
		c.log.Info("refund applied", "order_id", ev.OrderID)
	default:
		c.log.Debug("payment event ignored", "type", eventType)
	}
	return nil
}
