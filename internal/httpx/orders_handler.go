package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/finpro/toko-orders/internal/checkout"
	"github.com/finpro/toko-orders/internal/lifecycle"
	"github.com/finpro/toko-orders/internal/orders"
	"github.com/finpro/toko-orders/internal/redisx"
)

type OrdersHandler struct {
	Checkout  *checkout.Service
	Lifecycle *lifecycle.Service
	Orders    orders.OrderRepository
	Shops     orders.ShopRepository
	Redis     *redis.Client // optional status-cache fast path
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/orders", h.create)
	r.Get("/orders", h.listActive)
	r.Get("/orders/history", h.listHistory)
	r.Get("/orders/sales/{shopID}", h.listSales)
	r.Get("/orders/{id}", h.detail)
	r.Get("/orders/{id}/status", h.status)
	r.Post("/orders/{id}/cancel-request", h.cancelRequest)
	r.Post("/orders/{id}/cancel-approve", h.cancelApprove)
	r.Post("/orders/{id}/cancel-deny", h.cancelDeny)
	r.Post("/orders/{id}/payment-decision", h.paymentDecision)
	r.Patch("/orders/{id}/shipping-status", h.shippingStatus)
}

// create: multipart form, karena proof of payment ikut di body.
func (h *OrdersHandler) create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid form data"})
		return
	}
	form := r.MultipartForm
	cartIDs := form.Value["cart_ids[]"]
	if len(cartIDs) == 0 {
		cartIDs = form.Value["cart_ids"]
	}

	in := checkout.CreateOrderInput{
		ExternalID: r.FormValue("external_id"),
		UserID:     UserID(r.Context()),
		ShopID:     r.FormValue("shop_id"),
		CartIDs:    cartIDs,
		Recipient:  r.FormValue("recipient"),
		Telephone:  r.FormValue("telephone"),
		Address:    r.FormValue("address"),
		Note:       r.FormValue("note"),
	}

	file, header, err := r.FormFile("proof_payment")
	if err == nil {
		defer file.Close()
		in.Proof = &checkout.Proof{Filename: header.Filename, Size: header.Size, Content: file}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	res, err := h.Checkout.CreateOrder(ctx, in)
	if err != nil {
		writeError(w, err)
		return
	}
	code := http.StatusCreated
	if res.Existed {
		code = http.StatusOK
	}
	writeJSON(w, code, res)
}

func (h *OrdersHandler) listActive(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.Orders.ListActiveByUser)
}

func (h *OrdersHandler) listHistory(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.Orders.ListHistoryByUser)
}

func (h *OrdersHandler) list(w http.ResponseWriter, r *http.Request,
	fn func(context.Context, string) ([]orders.OrderSummary, error)) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	out, err := fn(ctx, UserID(ctx))
	if err != nil {
		writeError(w, err)
		return
	}
	if out == nil {
		out = []orders.OrderSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": out})
}

func (h *OrdersHandler) listSales(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	shopID := chi.URLParam(r, "shopID")
	sh, err := h.Shops.Get(ctx, shopID)
	if err != nil {
		writeError(w, err)
		return
	}
	if sh.UserID != UserID(ctx) {
		writeError(w, orders.ErrForbidden)
		return
	}
	out, err := h.Orders.ListByShop(ctx, shopID)
	if err != nil {
		writeError(w, err)
		return
	}
	if out == nil {
		out = []orders.SaleSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sales": out})
}

func (h *OrdersHandler) detail(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	d, err := h.Orders.Detail(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if !h.mayView(ctx, d.Order) {
		writeError(w, orders.ErrForbidden)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// mayView: detail hanya untuk buyer atau pemilik toko order itu.
func (h *OrdersHandler) mayView(ctx context.Context, o orders.Order) bool {
	uid := UserID(ctx)
	if o.UserID == uid {
		return true
	}
	sh, err := h.Shops.Get(ctx, o.ShopID)
	return err == nil && sh.UserID == uid
}

// status: poll endpoint. Akses sama ketatnya dengan detail: hanya buyer atau
// pemilik toko, jadi order tetap di-load dulu baru cache yang menjawab.
func (h *OrdersHandler) status(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	orderID := chi.URLParam(r, "id")
	o, err := h.Orders.Get(ctx, orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !h.mayView(ctx, o) {
		writeError(w, orders.ErrForbidden)
		return
	}

	if h.Redis != nil {
		key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
		if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
			writeJSON(w, http.StatusOK, json.RawMessage(s))
			return
		}
	}

	body := map[string]any{"status": o.StatusShipping, "cancel_by": o.CancelBy}
	if h.Redis != nil {
		key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
		if b, err := json.Marshal(body); err == nil {
			_ = h.Redis.Set(ctx, key, b, redisx.TTLStatusCache).Err()
		}
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *OrdersHandler) cancelRequest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	party, err := h.Lifecycle.RequestCancel(ctx, chi.URLParam(r, "id"), UserID(ctx))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "cancellation requested", "cancel_by": party})
}

func (h *OrdersHandler) cancelApprove(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Lifecycle.ApproveCancel(ctx, chi.URLParam(r, "id"), UserID(ctx)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "order cancelled"})
}

func (h *OrdersHandler) cancelDeny(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Lifecycle.DenyCancel(ctx, chi.URLParam(r, "id"), UserID(ctx)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "cancellation denied"})
}

func (h *OrdersHandler) paymentDecision(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Accepted bool `json:"accepted"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Lifecycle.AcceptPayment(ctx, chi.URLParam(r, "id"), UserID(ctx), req.Accepted); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "payment decision recorded"})
}

func (h *OrdersHandler) shippingStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status orders.Status `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !req.Status.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Lifecycle.AdvanceShipping(ctx, chi.URLParam(r, "id"), UserID(ctx), req.Status); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "shipping status updated"})
}
