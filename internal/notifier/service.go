// Package notifier consumes the order lifecycle topics: dedups events, keeps
// the order-status cache warm, and hands the event to a notification sink.
// Actual push/toast delivery lives outside this core.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/finpro/toko-orders/internal/kafka"
	"github.com/finpro/toko-orders/internal/orders"
	"github.com/finpro/toko-orders/internal/redisx"
)

// Sink receives every deduplicated lifecycle event.
type Sink interface {
	Notify(ctx context.Context, ev orders.Envelope) error
}

// LogSink is the default sink: log saja, delivery beneran ada di luar.
type LogSink struct{}

func (LogSink) Notify(_ context.Context, ev orders.Envelope) error {
	log.Printf("notify: type=%s order=%s", ev.EventType, ev.CorrelationID)
	return nil
}

type Service struct {
	Redis       *redis.Client // optional; nil disables dedup and cache warm
	Sink        Sink
	ServiceName string
}

// Handle is mounted as the consumer handler for every lifecycle topic.
func (s *Service) Handle(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}

	if s.Redis != nil {
		dkey := fmt.Sprintf(redisx.KeyDedup, s.ServiceName, env.EventID)
		if exists, _ := redisx.Exists(ctx, s.Redis, dkey); exists {
			return nil
		}
		_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
	}

	if status, cancelBy, ok := statusOf(env); ok && s.Redis != nil {
		key := fmt.Sprintf(redisx.KeyOrderStatus, env.CorrelationID)
		body := kafkax.MustMarshal(map[string]any{"status": status, "cancel_by": cancelBy})
		_ = s.Redis.Set(ctx, key, body, redisx.TTLStatusCache).Err()
	}

	if s.Sink == nil {
		return nil
	}
	return s.Sink.Notify(ctx, env)
}

// statusOf extracts the resulting order status carried by the event, if any.
func statusOf(env orders.Envelope) (orders.Status, *orders.Party, bool) {
	switch env.EventType {
	case orders.EventOrderCreated:
		return orders.StatusAwaitingPayment, nil, true
	case orders.EventOrderStatusChanged:
		p, err := kafkax.UnwrapPayload[orders.OrderStatusChangedPayload](env.Payload)
		if err != nil {
			return "", nil, false
		}
		return p.To, nil, true
	case orders.EventCancelRequested:
		p, err := kafkax.UnwrapPayload[orders.CancelRequestedPayload](env.Payload)
		if err != nil {
			return "", nil, false
		}
		return orders.StatusCancelPending, &p.By, true
	case orders.EventCancelResolved:
		p, err := kafkax.UnwrapPayload[orders.CancelResolvedPayload](env.Payload)
		if err != nil {
			return "", nil, false
		}
		return p.Status, nil, true
	}
	return "", nil, false
}
