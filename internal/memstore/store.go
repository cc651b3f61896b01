// Package memstore holds mutex-guarded in-memory implementations of the
// repository interfaces, used by service and handler tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/finpro/toko-orders/internal/orders"
)

type Store struct {
	mu        sync.Mutex
	products  map[string]*orders.Product
	shops     map[string]*orders.Shop
	cartItems map[string]*orders.CartItem
	orders    map[string]*orders.Order
	items     map[string][]orders.OrderItem // by order id
	byExtID   map[string]string             // external_id -> order id
}

func New() *Store {
	return &Store{
		products:  map[string]*orders.Product{},
		shops:     map[string]*orders.Shop{},
		cartItems: map[string]*orders.CartItem{},
		orders:    map[string]*orders.Order{},
		items:     map[string][]orders.OrderItem{},
		byExtID:   map[string]string{},
	}
}

// ---- seeding helpers ----

func (s *Store) PutShop(sh orders.Shop) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shops[sh.ID] = &sh
}

func (s *Store) PutProduct(p orders.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = &p
}

func (s *Store) StockOf(productID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.products[productID]; ok {
		return p.Stock
	}
	return -1
}

// ---- ProductRepository / ShopRepository ----

func (s *Store) Products() orders.ProductRepository { return (*productRepo)(s) }
func (s *Store) Shops() orders.ShopRepository       { return (*shopRepo)(s) }
func (s *Store) Carts() orders.CartRepository       { return (*cartRepo)(s) }
func (s *Store) Orders() orders.OrderRepository     { return (*orderRepo)(s) }

type productRepo Store

func (r *productRepo) Get(_ context.Context, id string) (orders.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return orders.Product{}, orders.ErrNotFound
	}
	return *p, nil
}

type shopRepo Store

func (r *shopRepo) Get(_ context.Context, id string) (orders.Shop, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sh, ok := r.shops[id]
	if !ok {
		return orders.Shop{}, orders.ErrNotFound
	}
	return *sh, nil
}

// ---- CartRepository ----

type cartRepo Store

func (r *cartRepo) AddItem(_ context.Context, userID, productID, shopID string, qty int) (orders.CartItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, it := range r.cartItems {
		if it.UserID == userID && it.ProductID == productID {
			it.Quantity += qty
			return *it, nil
		}
	}
	it := &orders.CartItem{
		ID:        uuid.NewString(),
		UserID:    userID,
		ProductID: productID,
		ShopID:    shopID,
		Quantity:  qty,
		CreatedAt: time.Now(),
	}
	r.cartItems[it.ID] = it
	return *it, nil
}

func (r *cartRepo) Get(_ context.Context, id string) (orders.CartItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.cartItems[id]
	if !ok {
		return orders.CartItem{}, orders.ErrNotFound
	}
	return *it, nil
}

func (r *cartRepo) SetQuantity(_ context.Context, id string, qty int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.cartItems[id]
	if !ok {
		return orders.ErrNotFound
	}
	it.Quantity = qty
	return nil
}

func (r *cartRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cartItems, id)
	return nil
}

func (r *cartRepo) ListByUser(_ context.Context, userID string) ([]orders.CartLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []orders.CartLine
	for _, it := range r.cartItems {
		if it.UserID != userID {
			continue
		}
		l := orders.CartLine{CartItem: *it}
		if p, ok := r.products[it.ProductID]; ok {
			l.ProductName = p.Name
			l.ProductPrice = p.Price
			l.ProductStock = p.Stock
		}
		if sh, ok := r.shops[it.ShopID]; ok {
			l.ShopName = sh.Name
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ShopName != out[j].ShopName {
			return out[i].ShopName < out[j].ShopName
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// ---- OrderRepository ----

type orderRepo Store

func (r *orderRepo) Checkout(_ context.Context, in orders.CheckoutInput) (orders.CheckoutResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byExtID[in.ExternalID]; ok {
		return orders.CheckoutResult{OrderID: id, TotalPrice: r.orders[id].TotalPrice, Existed: true}, nil
	}

	var lines []*orders.CartItem
	for _, cid := range in.CartIDs {
		it, ok := r.cartItems[cid]
		if !ok || it.UserID != in.UserID {
			continue
		}
		lines = append(lines, it)
	}
	if len(lines) == 0 {
		return orders.CheckoutResult{}, orders.ErrEmptySelection
	}
	shopID := lines[0].ShopID
	for _, l := range lines {
		if l.ShopID != shopID {
			return orders.CheckoutResult{}, orders.ErrEmptySelection
		}
	}
	if in.ShopID != "" && in.ShopID != shopID {
		return orders.CheckoutResult{}, orders.ErrValidation
	}

	// stock check first so a failure leaves everything untouched
	for _, l := range lines {
		p, ok := r.products[l.ProductID]
		if !ok {
			return orders.CheckoutResult{}, orders.ErrNotFound
		}
		if p.Stock < l.Quantity {
			return orders.CheckoutResult{}, &orders.InsufficientStockError{
				ProductID: l.ProductID, Required: l.Quantity, Available: p.Stock,
			}
		}
	}

	orderID := uuid.NewString()
	var total int64
	var items []orders.OrderItem
	for _, l := range lines {
		p := r.products[l.ProductID]
		p.Stock -= l.Quantity
		items = append(items, orders.OrderItem{
			ID:        uuid.NewString(),
			OrderID:   orderID,
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			Price:     p.Price,
		})
		total += p.Price * int64(l.Quantity)
		delete(r.cartItems, l.ID)
	}
	total += in.DeliveryFee

	o := &orders.Order{
		ID:             orderID,
		ExternalID:     in.ExternalID,
		UserID:         in.UserID,
		ShopID:         shopID,
		Recipient:      in.Recipient,
		Telephone:      in.Telephone,
		Address:        in.Address,
		Note:           in.Note,
		TotalPrice:     total,
		ProofPayment:   in.ProofPayment,
		StatusShipping: orders.StatusAwaitingPayment,
		CreatedAt:      time.Now(),
	}
	r.orders[orderID] = o
	r.items[orderID] = items
	r.byExtID[in.ExternalID] = orderID
	return orders.CheckoutResult{OrderID: orderID, TotalPrice: total}, nil
}

func (r *orderRepo) Get(_ context.Context, id string) (orders.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return orders.Order{}, orders.ErrNotFound
	}
	return *o, nil
}

func (r *orderRepo) Detail(_ context.Context, id string) (orders.OrderDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return orders.OrderDetail{}, orders.ErrNotFound
	}
	d := orders.OrderDetail{Order: *o}
	if sh, ok := r.shops[o.ShopID]; ok {
		d.ShopName = sh.Name
		d.ShopTelephone = sh.Telephone
	}
	for _, it := range r.items[id] {
		name := ""
		if p, ok := r.products[it.ProductID]; ok {
			name = p.Name
		}
		d.Items = append(d.Items, orders.OrderItemDetail{
			ProductID: it.ProductID,
			Name:      name,
			Quantity:  it.Quantity,
			Price:     it.Price,
			SubTotal:  it.SubTotal(),
		})
	}
	return d, nil
}

func (r *orderRepo) ListActiveByUser(_ context.Context, userID string) ([]orders.OrderSummary, error) {
	return r.listByUser(userID, false)
}

func (r *orderRepo) ListHistoryByUser(_ context.Context, userID string) ([]orders.OrderSummary, error) {
	return r.listByUser(userID, true)
}

func (r *orderRepo) listByUser(userID string, terminal bool) ([]orders.OrderSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []orders.OrderSummary
	for _, o := range r.orders {
		if o.UserID != userID || o.StatusShipping.Terminal() != terminal {
			continue
		}
		s := orders.OrderSummary{
			ID:             o.ID,
			ShopID:         o.ShopID,
			CreatedAt:      o.CreatedAt,
			TotalPrice:     o.TotalPrice,
			StatusShipping: o.StatusShipping,
			ProductCount:   len(r.items[o.ID]),
		}
		if sh, ok := r.shops[o.ShopID]; ok {
			s.ShopName = sh.Name
			s.ShopTelephone = sh.Telephone
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *orderRepo) ListByShop(_ context.Context, shopID string) ([]orders.SaleSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []orders.SaleSummary
	for _, o := range r.orders {
		if o.ShopID != shopID {
			continue
		}
		out = append(out, orders.SaleSummary{
			ID:             o.ID,
			ShopID:         o.ShopID,
			Recipient:      o.Recipient,
			Telephone:      o.Telephone,
			CreatedAt:      o.CreatedAt,
			TotalPrice:     o.TotalPrice,
			StatusShipping: o.StatusShipping,
			ProductCount:   len(r.items[o.ID]),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *orderRepo) ApplyTransition(_ context.Context, orderID string, ch orders.Change) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok {
		return orders.ErrNotFound
	}
	if o.StatusShipping != ch.From {
		return orders.ErrConflict
	}
	o.StatusShipping = ch.To
	o.CancelBy = ch.CancelBy
	o.PriorStatus = ch.PriorStatus
	if ch.Restock {
		for _, it := range r.items[orderID] {
			if p, ok := r.products[it.ProductID]; ok {
				p.Stock += it.Quantity
			}
		}
	}
	return nil
}
