// Package lifecycle applies buyer/seller actions to an order after creation:
// payment decision, forward shipping, and the cancellation negotiation.
// Every write is a compare-and-set on the status the caller observed, so a
// lost race surfaces as ErrConflict instead of a silent overwrite.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/finpro/toko-orders/internal/kafka"
	"github.com/finpro/toko-orders/internal/orders"
	"github.com/finpro/toko-orders/internal/redisx"
)

type Publisher interface {
	Publish(topic string, key, value []byte, headers ...kafkago.Header)
}

type Service struct {
	Orders      orders.OrderRepository
	Shops       orders.ShopRepository
	Redis       *redis.Client // optional
	Producer    Publisher     // optional
	ServiceName string
}

// partyOf resolves which side of the order the caller is. The seller is the
// owner of the order's shop.
func (s *Service) partyOf(ctx context.Context, o orders.Order, userID string) (orders.Party, error) {
	if o.UserID == userID {
		return orders.PartyBuyer, nil
	}
	sh, err := s.Shops.Get(ctx, o.ShopID)
	if err == nil && sh.UserID == userID {
		return orders.PartySeller, nil
	}
	return "", orders.ErrForbidden
}

// AcceptPayment is the payment gate: only valid while awaitingPayment.
// accepted=false cancels the order and restores stock.
func (s *Service) AcceptPayment(ctx context.Context, orderID, userID string, accepted bool) error {
	o, err := s.Orders.Get(ctx, orderID)
	if err != nil {
		return err
	}
	party, err := s.partyOf(ctx, o, userID)
	if err != nil {
		return err
	}
	if party != orders.PartySeller {
		return orders.ErrForbidden
	}
	var ch orders.Change
	if accepted {
		ch, err = orders.ApprovePayment(o.StatusShipping)
	} else {
		ch, err = orders.RejectPayment(o.StatusShipping)
	}
	if err != nil {
		return err
	}
	if err := s.Orders.ApplyTransition(ctx, orderID, ch); err != nil {
		return err
	}
	s.afterTransition(ctx, orderID, ch, orders.PartySeller)
	return nil
}

// AdvanceShipping moves prepared->shipped->delivered, one step at a time.
// Seller only; unreachable while a cancellation is pending.
func (s *Service) AdvanceShipping(ctx context.Context, orderID, userID string, to orders.Status) error {
	o, err := s.Orders.Get(ctx, orderID)
	if err != nil {
		return err
	}
	party, err := s.partyOf(ctx, o, userID)
	if err != nil {
		return err
	}
	if party != orders.PartySeller {
		return orders.ErrForbidden
	}
	ch, err := orders.Advance(o.StatusShipping, to)
	if err != nil {
		return err
	}
	if err := s.Orders.ApplyTransition(ctx, orderID, ch); err != nil {
		return err
	}
	s.afterTransition(ctx, orderID, ch, orders.PartySeller)
	return nil
}

// RequestCancel opens a cancellation request; the requesting party is
// inferred from the caller.
func (s *Service) RequestCancel(ctx context.Context, orderID, userID string) (orders.Party, error) {
	o, err := s.Orders.Get(ctx, orderID)
	if err != nil {
		return "", err
	}
	party, err := s.partyOf(ctx, o, userID)
	if err != nil {
		return "", err
	}
	ch, err := orders.RequestCancel(o.StatusShipping, party)
	if err != nil {
		return "", err
	}
	if err := s.Orders.ApplyTransition(ctx, orderID, ch); err != nil {
		return "", err
	}
	s.cacheStatus(ctx, orderID, ch)
	s.publish(ctx, orderID, orders.EventCancelRequested, orders.TopicCancelRequested,
		orders.CancelRequestedPayload{OrderID: orderID, By: party, PriorStatus: o.StatusShipping})
	return party, nil
}

func (s *Service) ApproveCancel(ctx context.Context, orderID, userID string) error {
	return s.resolveCancel(ctx, orderID, userID, true)
}

func (s *Service) DenyCancel(ctx context.Context, orderID, userID string) error {
	return s.resolveCancel(ctx, orderID, userID, false)
}

func (s *Service) resolveCancel(ctx context.Context, orderID, userID string, approve bool) error {
	o, err := s.Orders.Get(ctx, orderID)
	if err != nil {
		return err
	}
	party, err := s.partyOf(ctx, o, userID)
	if err != nil {
		return err
	}
	ch, err := orders.ResolveCancel(o.StatusShipping, o.CancelBy, o.PriorStatus, party, approve)
	if err != nil {
		return err
	}
	if err := s.Orders.ApplyTransition(ctx, orderID, ch); err != nil {
		return err
	}
	s.cacheStatus(ctx, orderID, ch)
	s.publish(ctx, orderID, orders.EventCancelResolved, orders.TopicCancelResolved,
		orders.CancelResolvedPayload{OrderID: orderID, By: party, Approved: approve, Status: ch.To})
	return nil
}

func (s *Service) afterTransition(ctx context.Context, orderID string, ch orders.Change, actor orders.Party) {
	s.cacheStatus(ctx, orderID, ch)
	s.publish(ctx, orderID, orders.EventOrderStatusChanged, orders.TopicStatusChanged,
		orders.OrderStatusChangedPayload{OrderID: orderID, From: ch.From, To: ch.To, Actor: actor})
}

func (s *Service) cacheStatus(ctx context.Context, orderID string, ch orders.Change) {
	if s.Redis == nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	body := kafkax.MustMarshal(map[string]any{"status": ch.To, "cancel_by": ch.CancelBy})
	_ = s.Redis.Set(ctx, key, body, redisx.TTLStatusCache).Err()
}

func (s *Service) publish(ctx context.Context, orderID, eventType, topic string, payload any) {
	if s.Producer == nil {
		return
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		CorrelationID: orderID,
		Payload:       kafkax.MustMarshal(payload),
	}
	s.Producer.Publish(topic, orders.PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
