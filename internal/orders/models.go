package orders

import "time"

// Harga dalam rupiah utuh (int64), bukan float.

type Product struct {
	ID        string
	ShopID    string
	Name      string
	Category  string
	Price     int64
	Stock     int
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Shop struct {
	ID        string
	UserID    string // pemilik toko = seller party
	Name      string
	Telephone string
}

// CartItem is one (user, product) row; adds increment quantity in place,
// the pair is never duplicated.
type CartItem struct {
	ID        string
	UserID    string
	ProductID string
	ShopID    string
	Quantity  int
	CreatedAt time.Time
}

type Order struct {
	ID             string
	ExternalID     string
	UserID         string
	ShopID         string
	Recipient      string
	Telephone      string
	Address        string
	Note           string
	TotalPrice     int64
	ProofPayment   string
	StatusShipping Status
	CancelBy       *Party
	PriorStatus    *Status // status to restore when a cancel request is denied
	CreatedAt      time.Time
}

// OrderItem snapshots the unit price at order-creation time. It is never
// recomputed from the live product price.
type OrderItem struct {
	ID        string
	OrderID   string
	ProductID string
	Quantity  int
	Price     int64
}

func (i OrderItem) SubTotal() int64 { return i.Price * int64(i.Quantity) }

// ---- read models ----

// CartLine is a cart row joined with its product and shop, for the view.
type CartLine struct {
	CartItem
	ProductName  string
	ProductPrice int64
	ProductStock int
	ShopName     string
}

type CartViewItem struct {
	ID           string `json:"id"`
	ProductID    string `json:"product_id"`
	Name         string `json:"name"`
	Price        int64  `json:"price"`
	Quantity     int    `json:"quantity"`
	ProductStock int    `json:"product_stock"`
}

type ShopCart struct {
	ShopID   string         `json:"shop_id"`
	ShopName string         `json:"shop_name"`
	Items    []CartViewItem `json:"cart_items"`
	SubTotal int64          `json:"sub_total"`
}

// CartView is recomputed on every query, never cached.
type CartView struct {
	Shops []ShopCart `json:"shops"`
	Total int64      `json:"total"`
}

type OrderSummary struct {
	ID             string    `json:"order_id"`
	ShopID         string    `json:"shop_id"`
	ShopName       string    `json:"shop_name"`
	ShopTelephone  string    `json:"shop_phone"`
	CreatedAt      time.Time `json:"created_at"`
	TotalPrice     int64     `json:"total_price"`
	StatusShipping Status    `json:"status_shipping"`
	ProductCount   int       `json:"product_count"`
}

type SaleSummary struct {
	ID             string    `json:"order_id"`
	ShopID         string    `json:"shop_id"`
	Recipient      string    `json:"recipient"`
	Telephone      string    `json:"telephone"`
	CreatedAt      time.Time `json:"created_at"`
	TotalPrice     int64     `json:"total_price"`
	StatusShipping Status    `json:"status_shipping"`
	ProductCount   int       `json:"product_count"`
}

type OrderItemDetail struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	Price     int64  `json:"price"`
	SubTotal  int64  `json:"sub_total"`
}

type OrderDetail struct {
	Order         Order             `json:"order"`
	ShopName      string            `json:"shop_name"`
	ShopTelephone string            `json:"shop_phone"`
	Items         []OrderItemDetail `json:"order_items"`
}
