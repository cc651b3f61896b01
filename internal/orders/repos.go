package orders

import "context"

// Repository interfaces. Mutations that must be all-or-nothing are shaped as
// one method so an implementation can run them in a single transaction.

type ProductRepository interface {
	Get(ctx context.Context, id string) (Product, error)
}

type ShopRepository interface {
	Get(ctx context.Context, id string) (Shop, error)
}

type CartRepository interface {
	// AddItem increments the (user, product) row by qty, creating it when
	// absent. Never duplicates the pair.
	AddItem(ctx context.Context, userID, productID, shopID string, qty int) (CartItem, error)
	Get(ctx context.Context, id string) (CartItem, error)
	SetQuantity(ctx context.Context, id string, qty int) error
	// Delete is a no-op success when the row does not exist.
	Delete(ctx context.Context, id string) error
	ListByUser(ctx context.Context, userID string) ([]CartLine, error)
}

// CheckoutInput carries the already-validated materialization request.
// ProofPayment is the stored asset URL, not raw bytes.
type CheckoutInput struct {
	ExternalID   string
	UserID       string
	ShopID       string
	CartIDs      []string
	Recipient    string
	Telephone    string
	Address      string
	Note         string
	ProofPayment string
	DeliveryFee  int64
}

type CheckoutResult struct {
	OrderID    string `json:"order_id"`
	TotalPrice int64  `json:"total_price"`
	Existed    bool   `json:"idempotent"`
}

type OrderRepository interface {
	// Checkout materializes the selected cart rows into an order in one
	// atomic step: verify selection + stock, snapshot prices, decrement
	// stock, insert order+items, delete the consumed cart rows. Any failure
	// leaves cart and stock untouched. A repeated ExternalID returns the
	// existing order with Existed=true.
	Checkout(ctx context.Context, in CheckoutInput) (CheckoutResult, error)

	Get(ctx context.Context, id string) (Order, error)
	Detail(ctx context.Context, id string) (OrderDetail, error)
	ListActiveByUser(ctx context.Context, userID string) ([]OrderSummary, error)
	ListHistoryByUser(ctx context.Context, userID string) ([]OrderSummary, error)
	ListByShop(ctx context.Context, shopID string) ([]SaleSummary, error)

	// ApplyTransition writes ch.To (plus cancel_by / prior_status) only if
	// the row still holds ch.From, and restores the order items' quantities
	// to product stock in the same transaction when ch.Restock is set.
	// A lost race yields ErrConflict.
	ApplyTransition(ctx context.Context, orderID string, ch Change) error
}
