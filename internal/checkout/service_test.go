package checkout

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finpro/toko-orders/internal/memstore"
	"github.com/finpro/toko-orders/internal/orders"
)

type capturedEvent struct {
	topic string
	key   string
}

type fakePublisher struct {
	mu     sync.Mutex
	events []capturedEvent
}

func (f *fakePublisher) Publish(topic string, key, value []byte, headers ...kafkago.Header) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, capturedEvent{topic: topic, key: string(key)})
}

type recordingProofStore struct {
	saves   int
	removes int
}

func (r *recordingProofStore) Save(_ context.Context, filename string, _ io.Reader) (string, error) {
	r.saves++
	return "http://127.0.0.1:8081/assets/payments/" + filename, nil
}

func (r *recordingProofStore) Remove(_ context.Context, _ string) error {
	r.removes++
	return nil
}

func pngProof() *Proof {
	return &Proof{Filename: "transfer.png", Size: 1024, Content: strings.NewReader("fake png bytes")}
}

func newFixture(t *testing.T) (*Service, *memstore.Store, *fakePublisher) {
	t.Helper()
	st := memstore.New()
	st.PutShop(orders.Shop{ID: "shop-1", UserID: "seller-1", Name: "Toko Satu", Telephone: "0811"})
	st.PutShop(orders.Shop{ID: "shop-2", UserID: "seller-2", Name: "Toko Dua"})
	st.PutProduct(orders.Product{ID: "p-a", ShopID: "shop-1", Name: "A", Price: 100000, Stock: 10})
	st.PutProduct(orders.Product{ID: "p-b", ShopID: "shop-1", Name: "B", Price: 50000, Stock: 1})
	st.PutProduct(orders.Product{ID: "p-c", ShopID: "shop-2", Name: "C", Price: 10000, Stock: 5})

	pub := &fakePublisher{}
	svc := &Service{
		Orders:        st.Orders(),
		Proofs:        &DiskStore{Dir: t.TempDir(), BaseURL: "http://127.0.0.1:8081/assets/payments"},
		Producer:      pub,
		DeliveryFee:   30000,
		ProofMaxBytes: 5 * 1024 * 1024,
		ServiceName:   "toko-api-test",
	}
	return svc, st, pub
}

// seedCart puts qty of productID into buyer-1's cart and returns the row id.
func seedCart(t *testing.T, st *memstore.Store, productID, shopID string, qty int) string {
	t.Helper()
	it, err := st.Carts().AddItem(context.Background(), "buyer-1", productID, shopID, qty)
	require.NoError(t, err)
	return it.ID
}

func baseInput(cartIDs ...string) CreateOrderInput {
	return CreateOrderInput{
		UserID:    "buyer-1",
		ShopID:    "shop-1",
		CartIDs:   cartIDs,
		Recipient: "Budi",
		Telephone: "0812",
		Address:   "Jl. Melati 1",
		Note:      "pagar hijau",
		Proof:     pngProof(),
	}
}

func TestCreateOrderHappyPath(t *testing.T) {
	svc, st, pub := newFixture(t)
	ctx := context.Background()
	cartA := seedCart(t, st, "p-a", "shop-1", 2) // 2 x 100000
	cartB := seedCart(t, st, "p-b", "shop-1", 1) // 1 x 50000

	res, err := svc.CreateOrder(ctx, baseInput(cartA, cartB))
	require.NoError(t, err)
	assert.False(t, res.Existed)
	assert.Equal(t, int64(280000), res.TotalPrice, "subtotal 250000 + delivery fee 30000")

	// stock decremented
	assert.Equal(t, 8, st.StockOf("p-a"))
	assert.Equal(t, 0, st.StockOf("p-b"))

	// consumed cart rows are gone
	_, err = st.Carts().Get(ctx, cartA)
	assert.ErrorIs(t, err, orders.ErrNotFound)
	_, err = st.Carts().Get(ctx, cartB)
	assert.ErrorIs(t, err, orders.ErrNotFound)

	// order persisted in awaitingPayment with snapshotted prices
	d, err := st.Orders().Detail(ctx, res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusAwaitingPayment, d.Order.StatusShipping)
	assert.Nil(t, d.Order.CancelBy)
	require.Len(t, d.Items, 2)
	var sum int64
	for _, it := range d.Items {
		sum += it.SubTotal
	}
	assert.Equal(t, res.TotalPrice, sum+30000)
	assert.Contains(t, d.Order.ProofPayment, "http://127.0.0.1:8081/assets/payments/")

	// event published
	require.Len(t, pub.events, 1)
	assert.Equal(t, orders.TopicOrderCreated, pub.events[0].topic)
	assert.Equal(t, res.OrderID, pub.events[0].key)
}

func TestCreateOrderTotalNotRecomputedFromLivePrice(t *testing.T) {
	svc, st, _ := newFixture(t)
	ctx := context.Background()
	cartA := seedCart(t, st, "p-a", "shop-1", 1)

	res, err := svc.CreateOrder(ctx, baseInput(cartA))
	require.NoError(t, err)

	// price change after creation must not leak into the order
	st.PutProduct(orders.Product{ID: "p-a", ShopID: "shop-1", Name: "A", Price: 999999, Stock: 9})

	d, err := st.Orders().Detail(ctx, res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, int64(100000), d.Items[0].Price)
	assert.Equal(t, int64(130000), d.Order.TotalPrice)
}

func TestCreateOrderEmptySelection(t *testing.T) {
	svc, _, _ := newFixture(t)

	_, err := svc.CreateOrder(context.Background(), baseInput())
	assert.ErrorIs(t, err, orders.ErrEmptySelection)
}

func TestCreateOrderSpanningShops(t *testing.T) {
	svc, st, _ := newFixture(t)
	cartA := seedCart(t, st, "p-a", "shop-1", 1)
	cartC := seedCart(t, st, "p-c", "shop-2", 1)

	in := baseInput(cartA, cartC)
	in.ShopID = ""
	_, err := svc.CreateOrder(context.Background(), in)
	assert.ErrorIs(t, err, orders.ErrEmptySelection)

	// nothing consumed
	_, err = st.Carts().Get(context.Background(), cartA)
	assert.NoError(t, err)
	assert.Equal(t, 10, st.StockOf("p-a"))
}

func TestCreateOrderProofValidation(t *testing.T) {
	tests := []struct {
		name  string
		proof *Proof
		want  error
	}{
		{"missing", nil, orders.ErrPaymentProofMissing},
		{"no content", &Proof{Filename: "x.png", Size: 1}, orders.ErrPaymentProofMissing},
		{"bad extension", &Proof{Filename: "x.pdf", Size: 1, Content: strings.NewReader("x")}, orders.ErrInvalidProof},
		{"oversize", &Proof{Filename: "x.jpg", Size: 6 * 1024 * 1024, Content: strings.NewReader("x")}, orders.ErrInvalidProof},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, st, _ := newFixture(t)
			cartA := seedCart(t, st, "p-a", "shop-1", 1)
			in := baseInput(cartA)
			in.Proof = tt.proof
			_, err := svc.CreateOrder(context.Background(), in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCreateOrderInsufficientStockAllOrNothing(t *testing.T) {
	svc, st, pub := newFixture(t)
	ctx := context.Background()
	cartA := seedCart(t, st, "p-a", "shop-1", 2)
	cartB := seedCart(t, st, "p-b", "shop-1", 3) // only 1 in stock

	_, err := svc.CreateOrder(ctx, baseInput(cartA, cartB))
	require.ErrorIs(t, err, orders.ErrInsufficientStock)

	var stockErr *orders.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "p-b", stockErr.ProductID)
	assert.Equal(t, 3, stockErr.Required)
	assert.Equal(t, 1, stockErr.Available)

	// all-or-nothing: stock and cart untouched, no event
	assert.Equal(t, 10, st.StockOf("p-a"))
	assert.Equal(t, 1, st.StockOf("p-b"))
	_, err = st.Carts().Get(ctx, cartA)
	assert.NoError(t, err)
	_, err = st.Carts().Get(ctx, cartB)
	assert.NoError(t, err)
	assert.Empty(t, pub.events)
}

func TestCreateOrderMissingRecipient(t *testing.T) {
	svc, st, _ := newFixture(t)
	cartA := seedCart(t, st, "p-a", "shop-1", 1)

	in := baseInput(cartA)
	in.Recipient = ""
	_, err := svc.CreateOrder(context.Background(), in)
	assert.ErrorIs(t, err, orders.ErrValidation)
}

func TestCreateOrderIdempotentReplay(t *testing.T) {
	svc, st, pub := newFixture(t)
	ctx := context.Background()
	cartA := seedCart(t, st, "p-a", "shop-1", 2)

	in := baseInput(cartA)
	in.ExternalID = "chk-123"
	first, err := svc.CreateOrder(ctx, in)
	require.NoError(t, err)

	// a retried submission with the same key must not create a second order
	replay := baseInput("stale-cart-id")
	replay.ExternalID = "chk-123"
	second, err := svc.CreateOrder(ctx, replay)
	require.NoError(t, err)
	assert.True(t, second.Existed)
	assert.Equal(t, first.OrderID, second.OrderID)
	assert.Equal(t, first.TotalPrice, second.TotalPrice)

	assert.Equal(t, 8, st.StockOf("p-a"), "no double decrement")
	assert.Len(t, pub.events, 1, "no duplicate event on replay")
}

func TestCreateOrderReplayAnsweredFromCache(t *testing.T) {
	svc, st, pub := newFixture(t)
	mr := miniredis.RunT(t)
	svc.Redis = redis.NewClient(&redis.Options{Addr: mr.Addr()})
	proofs := &recordingProofStore{}
	svc.Proofs = proofs
	ctx := context.Background()
	cartA := seedCart(t, st, "p-a", "shop-1", 2)

	in := baseInput(cartA)
	in.ExternalID = "chk-cached"
	first, err := svc.CreateOrder(ctx, in)
	require.NoError(t, err)
	require.False(t, first.Existed)

	// the cached key answers the retry before proof storage or the DB
	replay := baseInput("stale-cart-id")
	replay.ExternalID = "chk-cached"
	second, err := svc.CreateOrder(ctx, replay)
	require.NoError(t, err)
	assert.True(t, second.Existed)
	assert.Equal(t, first.OrderID, second.OrderID)
	assert.Equal(t, first.TotalPrice, second.TotalPrice)
	assert.Equal(t, 1, proofs.saves, "cache hit must not store a second proof")
	assert.Zero(t, proofs.removes)
	assert.Len(t, pub.events, 1)

	// evicted key falls through to the repository pre-check
	mr.FlushAll()
	third, err := svc.CreateOrder(ctx, replay)
	require.NoError(t, err)
	assert.True(t, third.Existed)
	assert.Equal(t, first.OrderID, third.OrderID)
	assert.Equal(t, 2, proofs.saves)
	assert.Equal(t, 1, proofs.removes, "proof saved on the slow path is discarded")
}

func TestCreateOrderFailureDiscardsProof(t *testing.T) {
	svc, st, _ := newFixture(t)
	proofs := &recordingProofStore{}
	svc.Proofs = proofs
	cartB := seedCart(t, st, "p-b", "shop-1", 3) // only 1 in stock

	_, err := svc.CreateOrder(context.Background(), baseInput(cartB))
	require.ErrorIs(t, err, orders.ErrInsufficientStock)
	assert.Equal(t, 1, proofs.saves)
	assert.Equal(t, 1, proofs.removes, "failed checkout must not leave the proof behind")
}

func TestDiskStoreRemove(t *testing.T) {
	d := &DiskStore{Dir: t.TempDir(), BaseURL: "http://localhost/assets"}
	ctx := context.Background()

	url, err := d.Save(ctx, "bukti.png", strings.NewReader("x"))
	require.NoError(t, err)
	require.NoError(t, d.Remove(ctx, url))

	entries, err := os.ReadDir(d.Dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// removing an already removed proof is a success
	assert.NoError(t, d.Remove(ctx, url))
}
