package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/finpro/toko-orders/internal/orders"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the domain error taxonomy onto HTTP statuses. Everything
// here is recoverable by the caller; only unknown errors become a 500.
func writeError(w http.ResponseWriter, err error) {
	var stockErr *orders.InsufficientStockError
	if errors.As(err, &stockErr) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":      stockErr.Error(),
			"product_id": stockErr.ProductID,
			"required":   stockErr.Required,
			"available":  stockErr.Available,
		})
		return
	}

	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, orders.ErrValidation),
		errors.Is(err, orders.ErrEmptySelection),
		errors.Is(err, orders.ErrPaymentProofMissing),
		errors.Is(err, orders.ErrInvalidProof):
		code = http.StatusBadRequest
	case errors.Is(err, orders.ErrForbidden):
		code = http.StatusForbidden
	case errors.Is(err, orders.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, orders.ErrOutOfStock),
		errors.Is(err, orders.ErrInsufficientStock),
		errors.Is(err, orders.ErrInvalidTransition),
		errors.Is(err, orders.ErrConflict):
		code = http.StatusConflict
	}
	msg := err.Error()
	if code == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeJSON(w, code, map[string]string{"error": msg})
}
