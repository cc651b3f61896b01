package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/finpro/toko-orders/internal/cart"
)

type CartHandler struct {
	Svc *cart.Service
}

func (h *CartHandler) Register(r chi.Router) {
	r.Get("/cart", h.view)
	r.Post("/cart", h.add)
	r.Patch("/cart/{cartItemID}", h.update)
	r.Delete("/cart/{cartItemID}", h.remove)
}

func (h *CartHandler) view(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	view, err := h.Svc.View(ctx, UserID(ctx))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *CartHandler) add(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductID string `json:"product_id"`
		Qty       int    `json:"qty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProductID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.Qty == 0 {
		req.Qty = 1
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	item, err := h.Svc.AddItem(ctx, UserID(ctx), req.ProductID, req.Qty)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":       item.ID,
		"quantity": item.Quantity,
	})
}

func (h *CartHandler) update(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Qty int `json:"qty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Svc.UpdateQuantity(ctx, UserID(ctx), chi.URLParam(r, "cartItemID"), req.Qty); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "cart updated"})
}

func (h *CartHandler) remove(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Svc.RemoveItem(ctx, UserID(ctx), chi.URLParam(r, "cartItemID")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "cart item removed"})
}
