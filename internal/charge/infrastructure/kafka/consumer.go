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

	"github.com/dmehra2102/charge-ledger/internal/charge/application"
	"github.com/dmehra2102/charge-ledger/internal/charge/domain"
	"github.com/dmehra2102/charge-ledger/pkg/tracing"
)

// gatewayWebhook is the payload the gateway posts for charge events.
type gatewayWebhook struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		ID              string `json:"id"`
		Amount          int64  `json:"amount"`
		PaidAmount      int64  `json:"paid_amount"`
		CanceledAmount  int64  `json:"canceled_amount"`
		LastTransaction *struct {
			ID              string    `json:"id"`
			TransactionType string    `json:"transaction_type"`
			Status          string    `json:"status"`
			Amount          int64     `json:"amount"`
			CreatedAt       time.Time `json:"created_at"`
		} `json:"last_transaction"`
	} `json:"data"`
}

type EventRecorder interface {
	GatewayEvent(eventType, outcome string)
}

// GatewayEventApplier applies a decoded gateway event to the ledger.
type GatewayEventApplier interface {
	ApplyGatewayEvent(ctx context.Context, ev application.GatewayEvent, headers map[string]string, traceparent string) (*domain.Charge, error)
}

// ClaimStore de-duplicates deliveries; see idempotency.Store.
type ClaimStore interface {
	Key(topic string, partition int, offset int64) string
	EventKey(source, eventID string) string
	Seen(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

const (
	defaultRetryBackoff = 500 * time.Millisecond
	maxRetryBackoff     = 30 * time.Second
)

type Consumer struct {
	log          *slog.Logger
	reader       messageReader
	svc          GatewayEventApplier
	idem         ClaimStore
	metrics      EventRecorder
	tracer       trace.Tracer
	retryBackoff time.Duration
}

func NewConsumer(log *slog.Logger, brokers []string, topic, group string, svc GatewayEventApplier, idem ClaimStore, metrics EventRecorder) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})
	return &Consumer{
		log:          log,
		reader:       r,
		svc:          svc,
		idem:         idem,
		metrics:      metrics,
		tracer:       otel.Tracer("charge-consumer"),
		retryBackoff: defaultRetryBackoff,
	}
}

// Run consumes until ctx is done. A message is committed only once it has
// been applied or judged unprocessable; transient failures are retried in
// place, so the offset never moves past an event that was not handled.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if err := c.process(ctx, msg); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) error {
	if err := c.retry(ctx, func() error { return c.handle(ctx, msg) }); err != nil {
		return err
	}
	return c.reader.CommitMessages(ctx, msg)
}

// retry calls fn until it succeeds or ctx is done, backing off between calls.
func (c *Consumer) retry(ctx context.Context, fn func() error) error {
	backoff := c.retryBackoff
	for {
		err := fn()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn("gateway event will be retried", "backoff", backoff, "err", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxRetryBackoff)
	}
}

// handle returns an error only for failures worth retrying. The idempotency
// claim is taken once; the ledger update is then retried under that claim and
// the claim is released if the consumer stops before the update succeeds.
func (c *Consumer) handle(ctx context.Context, msg kafka.Message) error {
	msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
	msgCtx, span := c.tracer.Start(msgCtx, "ConsumeGatewayWebhook")
	defer span.End()

	var hook gatewayWebhook
	if err := json.Unmarshal(msg.Value, &hook); err != nil {
		c.log.Error("unmarshal failed", "err", err)
		c.metrics.GatewayEvent("unknown", "malformed")
		return nil
	}

	ev, err := toGatewayEvent(hook)
	if err != nil {
		c.log.Error("invalid gateway event", "event_id", hook.ID, "err", err)
		c.metrics.GatewayEvent(hook.Type, "malformed")
		return nil
	}

	key := c.idem.EventKey("gateway", hook.ID)
	if hook.ID == "" {
		key = c.idem.Key(msg.Topic, msg.Partition, msg.Offset)
	}
	seen, err := c.idem.Seen(msgCtx, key)
	if err != nil {
		return fmt.Errorf("idempotency check: %w", err)
	}
	if seen {
		c.log.Info("duplicate message skipped", "key", key)
		c.metrics.GatewayEvent(hook.Type, "duplicate")
		return nil
	}

	headers := map[string]string{"source": "charge-service", "gateway_event_id": hook.ID}
	traceparent := headerValue(msg.Headers, tracing.TraceparentHeader)

	err = c.retry(msgCtx, func() error { return c.apply(msgCtx, ev, headers, traceparent) })
	if err != nil {
		relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if rerr := c.idem.Release(relCtx, key); rerr != nil {
			c.log.Error("idempotency release failed", "key", key, "err", rerr)
		}
		return err
	}
	return nil
}

func (c *Consumer) apply(ctx context.Context, ev application.GatewayEvent, headers map[string]string, traceparent string) error {
	charge, err := c.svc.ApplyGatewayEvent(ctx, ev, headers, traceparent)
	switch {
	case errors.Is(err, domain.ErrInvalidOperation), errors.Is(err, domain.ErrInvalidParam):
		c.log.Warn("gateway event rejected by ledger", "event_id", ev.ID, "charge", ev.ChargeGatewayID, "err", err)
		c.metrics.GatewayEvent(ev.Type, "rejected")
	case errors.Is(err, application.ErrChargeNotFound):
		c.log.Warn("gateway event for unknown charge", "event_id", ev.ID, "charge", ev.ChargeGatewayID)
		c.metrics.GatewayEvent(ev.Type, "unknown_charge")
	case err != nil:
		c.log.Error("gateway event failed", "event_id", ev.ID, "err", err)
		c.metrics.GatewayEvent(ev.Type, "error")
		return err
	default:
		c.log.Info("gateway event applied", "event_id", ev.ID, "charge_id", charge.ID(), "status", charge.Status())
		c.metrics.GatewayEvent(ev.Type, "applied")
	}
	return nil
}

func toGatewayEvent(hook gatewayWebhook) (application.GatewayEvent, error) {
	if hook.Data.ID == "" {
		return application.GatewayEvent{}, fmt.Errorf("event %q has no charge id", hook.ID)
	}
	ev := application.GatewayEvent{
		ID:              hook.ID,
		Type:            hook.Type,
		ChargeGatewayID: hook.Data.ID,
	}
	switch hook.Type {
	case application.GatewayChargePaid:
		ev.Amount = hook.Data.PaidAmount
	case application.GatewayChargeCanceled, application.GatewayChargeRefunded:
		ev.Amount = hook.Data.CanceledAmount
	}
	if lt := hook.Data.LastTransaction; lt != nil && lt.ID != "" {
		t := domain.NewTransaction(lt.ID, domain.TransactionType(lt.TransactionType), lt.Amount, lt.CreatedAt)
		t.Status = lt.Status
		ev.Transaction = t
	}
	return ev, nil
}

func headerValue(h []kafka.Header, key string) string {
	for _, hh := range h {
		if hh.Key == key {
			return string(hh.Value)
		}
	}
	return ""
}
