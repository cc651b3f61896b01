package orders

import (
	"errors"
	"fmt"
)

// Semua error di sini recoverable-by-caller; handler yang memetakan ke HTTP.
var (
	ErrNotFound            = errors.New("not found")
	ErrValidation          = errors.New("invalid input")
	ErrOutOfStock          = errors.New("product out of stock")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrEmptySelection      = errors.New("no cart items selected")
	ErrPaymentProofMissing = errors.New("proof of payment is required")
	ErrInvalidProof        = errors.New("invalid proof of payment")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrForbidden           = errors.New("forbidden")
	ErrConflict            = errors.New("order was modified concurrently")
)

// InsufficientStockError names the product that sank a checkout.
type InsufficientStockError struct {
	ProductID string
	Required  int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: need %d, have %d",
		e.ProductID, e.Required, e.Available)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }
