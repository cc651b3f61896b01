package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finpro/toko-orders/internal/cart"
	"github.com/finpro/toko-orders/internal/checkout"
	"github.com/finpro/toko-orders/internal/lifecycle"
	"github.com/finpro/toko-orders/internal/memstore"
	"github.com/finpro/toko-orders/internal/orders"
)

const (
	buyerID  = "buyer-1"
	sellerID = "seller-1"
)

func newServer(t *testing.T) (*chi.Mux, *memstore.Store) {
	t.Helper()
	st := memstore.New()
	st.PutShop(orders.Shop{ID: "shop-1", UserID: sellerID, Name: "Toko Satu", Telephone: "0811"})
	st.PutProduct(orders.Product{ID: "p-a", ShopID: "shop-1", Name: "Kopi", Price: 100000, Stock: 10})
	st.PutProduct(orders.Product{ID: "p-b", ShopID: "shop-1", Name: "Teh", Price: 50000, Stock: 5})

	cartSvc := &cart.Service{Carts: st.Carts(), Products: st.Products(), Shops: st.Shops()}
	checkoutSvc := &checkout.Service{
		Orders:        st.Orders(),
		Proofs:        &checkout.DiskStore{Dir: t.TempDir(), BaseURL: "http://localhost/assets"},
		DeliveryFee:   30000,
		ProofMaxBytes: 5 * 1024 * 1024,
	}
	lifecycleSvc := &lifecycle.Service{Orders: st.Orders(), Shops: st.Shops()}

	router := NewRouter()
	router.Group(func(r chi.Router) {
		r.Use(Identity)
		(&CartHandler{Svc: cartSvc}).Register(r)
		(&OrdersHandler{
			Checkout:  checkoutSvc,
			Lifecycle: lifecycleSvc,
			Orders:    st.Orders(),
			Shops:     st.Shops(),
		}).Register(r)
	})
	return router, st
}

func doJSON(t *testing.T, router http.Handler, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if userID != "" {
		req.Header.Set(HeaderUserID, userID)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func TestIdentityRequired(t *testing.T) {
	router, _ := newServer(t)

	rec := doJSON(t, router, http.MethodGet, "/cart", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHealthzOpen(t *testing.T) {
	router, _ := newServer(t)

	rec := doJSON(t, router, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCartFlow(t *testing.T) {
	router, _ := newServer(t)

	rec := doJSON(t, router, http.MethodPost, "/cart", buyerID, map[string]any{"product_id": "p-a", "qty": 2})
	require.Equal(t, http.StatusCreated, rec.Code)
	var added struct {
		ID       string `json:"id"`
		Quantity int    `json:"quantity"`
	}
	decode(t, rec, &added)
	assert.Equal(t, 2, added.Quantity)

	// same product again increments in place
	rec = doJSON(t, router, http.MethodPost, "/cart", buyerID, map[string]any{"product_id": "p-a"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/cart", buyerID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var view orders.CartView
	decode(t, rec, &view)
	require.Len(t, view.Shops, 1)
	require.Len(t, view.Shops[0].Items, 1)
	assert.Equal(t, 3, view.Shops[0].Items[0].Quantity)
	assert.Equal(t, int64(300000), view.Total)

	// qty below 1 removes the row
	rec = doJSON(t, router, http.MethodPatch, "/cart/"+added.ID, buyerID, map[string]any{"qty": 0})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, router, http.MethodGet, "/cart", buyerID, nil)
	var after orders.CartView
	decode(t, rec, &after)
	assert.Empty(t, after.Shops)

	// delete is idempotent
	rec = doJSON(t, router, http.MethodDelete, "/cart/"+added.ID, buyerID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCartAddUnknownProduct(t *testing.T) {
	router, _ := newServer(t)

	rec := doJSON(t, router, http.MethodPost, "/cart", buyerID, map[string]any{"product_id": "nope"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// createOrderReq posts a multipart checkout for the given cart ids.
func createOrderReq(t *testing.T, router http.Handler, userID string, withProof bool, cartIDs ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, id := range cartIDs {
		require.NoError(t, mw.WriteField("cart_ids[]", id))
	}
	require.NoError(t, mw.WriteField("shop_id", "shop-1"))
	require.NoError(t, mw.WriteField("recipient", "Budi"))
	require.NoError(t, mw.WriteField("telephone", "0812"))
	require.NoError(t, mw.WriteField("address", "Jl. Melati 1"))
	require.NoError(t, mw.WriteField("note", ""))
	if withProof {
		fw, err := mw.CreateFormFile("proof_payment", "bukti.png")
		require.NoError(t, err)
		_, err = io.Copy(fw, strings.NewReader("fake image bytes"))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/orders", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(HeaderUserID, userID)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func seedCart(t *testing.T, st *memstore.Store, productID string, qty int) string {
	t.Helper()
	it, err := st.Carts().AddItem(context.Background(), buyerID, productID, "shop-1", qty)
	require.NoError(t, err)
	return it.ID
}

func TestCreateOrderAndLifecycle(t *testing.T) {
	router, st := newServer(t)
	cartA := seedCart(t, st, "p-a", 2)
	cartB := seedCart(t, st, "p-b", 1)

	rec := createOrderReq(t, router, buyerID, true, cartA, cartB)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var res orders.CheckoutResult
	decode(t, rec, &res)
	assert.Equal(t, int64(280000), res.TotalPrice)

	// buyer sees it among active orders
	rec = doJSON(t, router, http.MethodGet, "/orders", buyerID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed struct {
		Orders []orders.OrderSummary `json:"orders"`
	}
	decode(t, rec, &listed)
	require.Len(t, listed.Orders, 1)
	assert.Equal(t, orders.StatusAwaitingPayment, listed.Orders[0].StatusShipping)
	assert.Equal(t, "Toko Satu", listed.Orders[0].ShopName)

	// seller accepts payment
	rec = doJSON(t, router, http.MethodPost, "/orders/"+res.OrderID+"/payment-decision", sellerID, map[string]any{"accepted": true})
	require.Equal(t, http.StatusOK, rec.Code)

	// buyer cannot decide payment
	rec = doJSON(t, router, http.MethodPost, "/orders/"+res.OrderID+"/payment-decision", buyerID, map[string]any{"accepted": true})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// forward shipping
	rec = doJSON(t, router, http.MethodPatch, "/orders/"+res.OrderID+"/shipping-status", sellerID, map[string]any{"status": "shipped"})
	require.Equal(t, http.StatusOK, rec.Code)

	// buyer requests cancel on the shipped order
	rec = doJSON(t, router, http.MethodPost, "/orders/"+res.OrderID+"/cancel-request", buyerID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// buyer cannot approve own request
	rec = doJSON(t, router, http.MethodPost, "/orders/"+res.OrderID+"/cancel-approve", buyerID, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// seller approves; stock is restored
	rec = doJSON(t, router, http.MethodPost, "/orders/"+res.OrderID+"/cancel-approve", sellerID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 10, st.StockOf("p-a"))
	assert.Equal(t, 5, st.StockOf("p-b"))

	// order moved to history
	rec = doJSON(t, router, http.MethodGet, "/orders/history", buyerID, nil)
	decode(t, rec, &listed)
	require.Len(t, listed.Orders, 1)
	assert.Equal(t, orders.StatusCancelled, listed.Orders[0].StatusShipping)

	// terminal: second approval conflicts
	rec = doJSON(t, router, http.MethodPost, "/orders/"+res.OrderID+"/cancel-approve", sellerID, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateOrderWithoutProof(t *testing.T) {
	router, st := newServer(t)
	cartA := seedCart(t, st, "p-a", 1)

	rec := createOrderReq(t, router, buyerID, false, cartA)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateOrderInsufficientStock(t *testing.T) {
	router, st := newServer(t)
	cartB := seedCart(t, st, "p-b", 9) // only 5 in stock

	rec := createOrderReq(t, router, buyerID, true, cartB)
	require.Equal(t, http.StatusConflict, rec.Code)
	var body struct {
		ProductID string `json:"product_id"`
		Required  int    `json:"required"`
		Available int    `json:"available"`
	}
	decode(t, rec, &body)
	assert.Equal(t, "p-b", body.ProductID)
	assert.Equal(t, 9, body.Required)
	assert.Equal(t, 5, body.Available)
}

func TestOrderDetailAuthorization(t *testing.T) {
	router, st := newServer(t)
	cartA := seedCart(t, st, "p-a", 1)

	rec := createOrderReq(t, router, buyerID, true, cartA)
	require.Equal(t, http.StatusCreated, rec.Code)
	var res orders.CheckoutResult
	decode(t, rec, &res)

	for user, want := range map[string]int{
		buyerID:    http.StatusOK,
		sellerID:   http.StatusOK,
		"stranger": http.StatusForbidden,
	} {
		rec := doJSON(t, router, http.MethodGet, "/orders/"+res.OrderID, user, nil)
		assert.Equal(t, want, rec.Code, "user %s", user)
	}

	rec = doJSON(t, router, http.MethodGet, "/orders/"+res.OrderID, buyerID, nil)
	var d orders.OrderDetail
	decode(t, rec, &d)
	require.Len(t, d.Items, 1)
	assert.Equal(t, int64(100000), d.Items[0].Price)
	assert.Equal(t, "Toko Satu", d.ShopName)
}

func TestOrderStatusEndpoint(t *testing.T) {
	router, st := newServer(t)
	cartA := seedCart(t, st, "p-a", 1)

	rec := createOrderReq(t, router, buyerID, true, cartA)
	require.Equal(t, http.StatusCreated, rec.Code)
	var res orders.CheckoutResult
	decode(t, rec, &res)

	rec = doJSON(t, router, http.MethodGet, fmt.Sprintf("/orders/%s/status", res.OrderID), buyerID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Status orders.Status `json:"status"`
	}
	decode(t, rec, &body)
	assert.Equal(t, orders.StatusAwaitingPayment, body.Status)

	// same gate as detail: seller may poll, anyone else may not
	rec = doJSON(t, router, http.MethodGet, fmt.Sprintf("/orders/%s/status", res.OrderID), sellerID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, router, http.MethodGet, fmt.Sprintf("/orders/%s/status", res.OrderID), "stranger", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSalesListing(t *testing.T) {
	router, st := newServer(t)
	cartA := seedCart(t, st, "p-a", 1)

	rec := createOrderReq(t, router, buyerID, true, cartA)
	require.Equal(t, http.StatusCreated, rec.Code)

	// only the shop owner sees the shop's sales
	rec = doJSON(t, router, http.MethodGet, "/orders/sales/shop-1", buyerID, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/orders/sales/shop-1", sellerID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Sales []orders.SaleSummary `json:"sales"`
	}
	decode(t, rec, &body)
	require.Len(t, body.Sales, 1)
	assert.Equal(t, "Budi", body.Sales[0].Recipient)
}

func TestShippingStatusRejectsBackward(t *testing.T) {
	router, st := newServer(t)
	cartA := seedCart(t, st, "p-a", 1)

	rec := createOrderReq(t, router, buyerID, true, cartA)
	require.Equal(t, http.StatusCreated, rec.Code)
	var res orders.CheckoutResult
	decode(t, rec, &res)

	rec = doJSON(t, router, http.MethodPost, "/orders/"+res.OrderID+"/payment-decision", sellerID, map[string]any{"accepted": true})
	require.Equal(t, http.StatusOK, rec.Code)

	// skipping a step is invalid
	rec = doJSON(t, router, http.MethodPatch, "/orders/"+res.OrderID+"/shipping-status", sellerID, map[string]any{"status": "delivered"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// unknown status is a bad request
	rec = doJSON(t, router, http.MethodPatch, "/orders/"+res.OrderID+"/shipping-status", sellerID, map[string]any{"status": "teleported"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
