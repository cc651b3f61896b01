// Package checkout materializes a selection of one shop's cart rows into an
// immutable order: price snapshot, stock decrement, cart cleanup, all in one
// atomic step.
package checkout

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/finpro/toko-orders/internal/kafka"
	"github.com/finpro/toko-orders/internal/orders"
	"github.com/finpro/toko-orders/internal/redisx"
)

// Publisher is the slice of the kafka producer the service needs.
type Publisher interface {
	Publish(topic string, key, value []byte, headers ...kafkago.Header)
}

// ProofStore persists the payment-proof image and returns an opaque URL.
// Upload transport itself lives outside this core.
type ProofStore interface {
	Save(ctx context.Context, filename string, r io.Reader) (string, error)
	// Remove discards a previously saved proof; a missing file is a success.
	Remove(ctx context.Context, url string) error
}

// Proof is the uploaded payment confirmation attached at checkout.
type Proof struct {
	Filename string
	Size     int64
	Content  io.Reader
}

var allowedProofExt = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
}

type Service struct {
	Orders        orders.OrderRepository
	Proofs        ProofStore
	Redis         *redis.Client // optional; nil disables the fast paths
	Producer      Publisher
	DeliveryFee   int64
	ProofMaxBytes int64
	ServiceName   string
}

type CreateOrderInput struct {
	ExternalID string // idempotency key; generated when empty
	UserID     string
	ShopID     string
	CartIDs    []string
	Recipient  string
	Telephone  string
	Address    string
	Note       string
	Proof      *Proof
}

// CreateOrder runs the full materialization. Steps 3-7 are delegated to the
// repository as one transaction; any failure there leaves cart and stock
// unchanged.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (orders.CheckoutResult, error) {
	if len(in.CartIDs) == 0 {
		return orders.CheckoutResult{}, orders.ErrEmptySelection
	}
	if in.Recipient == "" || in.Telephone == "" || in.Address == "" {
		return orders.CheckoutResult{}, fmt.Errorf("%w: recipient, telephone and address are required", orders.ErrValidation)
	}
	if err := s.validateProof(in.Proof); err != nil {
		return orders.CheckoutResult{}, err
	}

	// fast path: submit kembar dijawab dari redis, tanpa simpan proof lagi
	if s.Redis != nil && in.ExternalID != "" {
		if res, ok := s.replay(ctx, in.ExternalID); ok {
			return res, nil
		}
	}
	if in.ExternalID == "" {
		in.ExternalID = uuid.NewString()
	}

	proofURL, err := s.Proofs.Save(ctx, in.Proof.Filename, in.Proof.Content)
	if err != nil {
		return orders.CheckoutResult{}, fmt.Errorf("save proof of payment: %w", err)
	}

	res, err := s.Orders.Checkout(ctx, orders.CheckoutInput{
		ExternalID:   in.ExternalID,
		UserID:       in.UserID,
		ShopID:       in.ShopID,
		CartIDs:      in.CartIDs,
		Recipient:    in.Recipient,
		Telephone:    in.Telephone,
		Address:      in.Address,
		Note:         in.Note,
		ProofPayment: proofURL,
		DeliveryFee:  s.DeliveryFee,
	})
	if err != nil {
		_ = s.Proofs.Remove(ctx, proofURL)
		return orders.CheckoutResult{}, err
	}
	if res.Existed {
		// replay yang lolos sampai sini: order lama yang dipakai, proof
		// barusan tidak
		_ = s.Proofs.Remove(ctx, proofURL)
		return res, nil
	}

	if s.Redis != nil {
		idemKey := fmt.Sprintf(redisx.KeyIdemOrderCreate, in.ExternalID)
		_ = s.Redis.Set(ctx, idemKey, res.OrderID, redisx.TTLIdempotency).Err()
		statusKey := fmt.Sprintf(redisx.KeyOrderStatus, res.OrderID)
		_ = s.Redis.Set(ctx, statusKey, `{"status":"awaitingPayment"}`, redisx.TTLStatusCache).Err()
	}

	if s.Producer != nil {
		ev := orders.Envelope{
			EventID:       uuid.NewString(),
			EventType:     orders.EventOrderCreated,
			EventVersion:  1,
			OccurredAt:    time.Now().UTC(),
			Producer:      s.ServiceName,
			CorrelationID: res.OrderID,
			Payload: kafkax.MustMarshal(orders.OrderCreatedPayload{
				OrderID:    res.OrderID,
				ExternalID: in.ExternalID,
				UserID:     in.UserID,
				ShopID:     in.ShopID,
				TotalPrice: res.TotalPrice,
			}),
		}
		s.Producer.Publish(orders.TopicOrderCreated, orders.PartitionKey(res.OrderID), kafkax.MustMarshal(ev),
			kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderCreated)},
			kafkago.Header{Key: "x-event-version", Value: []byte("1")},
		)
	}
	return res, nil
}

// replay answers a retried submission from the idempotency key, falling
// through to the repository when the key or the order is gone.
func (s *Service) replay(ctx context.Context, externalID string) (orders.CheckoutResult, bool) {
	key := fmt.Sprintf(redisx.KeyIdemOrderCreate, externalID)
	orderID, err := s.Redis.Get(ctx, key).Result()
	if err != nil || orderID == "" {
		return orders.CheckoutResult{}, false
	}
	o, err := s.Orders.Get(ctx, orderID)
	if err != nil {
		return orders.CheckoutResult{}, false
	}
	return orders.CheckoutResult{OrderID: o.ID, TotalPrice: o.TotalPrice, Existed: true}, true
}

func (s *Service) validateProof(p *Proof) error {
	if p == nil || p.Filename == "" || p.Content == nil {
		return orders.ErrPaymentProofMissing
	}
	ext := strings.ToLower(filepath.Ext(p.Filename))
	if !allowedProofExt[ext] {
		return fmt.Errorf("%w: must be PNG, JPG, JPEG, or WEBP", orders.ErrInvalidProof)
	}
	if p.Size > s.ProofMaxBytes {
		return fmt.Errorf("%w: exceeds %d bytes", orders.ErrInvalidProof, s.ProofMaxBytes)
	}
	return nil
}
