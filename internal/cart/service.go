// Package cart owns per-user cart contents: one row per (user, product),
// grouped per shop at read time.
package cart

import (
	"context"
	"fmt"

	"github.com/finpro/toko-orders/internal/orders"
)

type Service struct {
	Carts    orders.CartRepository
	Products orders.ProductRepository
	Shops    orders.ShopRepository
}

// AddItem adds qty of a product to the user's cart, incrementing the
// existing row for the pair when there is one.
func (s *Service) AddItem(ctx context.Context, userID, productID string, qty int) (orders.CartItem, error) {
	if qty < 1 {
		return orders.CartItem{}, fmt.Errorf("%w: qty must be >= 1", orders.ErrValidation)
	}
	p, err := s.Products.Get(ctx, productID)
	if err != nil {
		return orders.CartItem{}, err
	}
	if p.Stock == 0 {
		return orders.CartItem{}, orders.ErrOutOfStock
	}
	// penjual tidak boleh beli dari tokonya sendiri
	if sh, err := s.Shops.Get(ctx, p.ShopID); err == nil && sh.UserID == userID {
		return orders.CartItem{}, fmt.Errorf("%w: cannot add your own product to cart", orders.ErrValidation)
	}
	return s.Carts.AddItem(ctx, userID, productID, p.ShopID, qty)
}

// UpdateQuantity sets the row's quantity; qty < 1 removes the row. Live
// stock is not re-checked here, checkout re-validates at commit time.
func (s *Service) UpdateQuantity(ctx context.Context, userID, cartItemID string, qty int) error {
	it, err := s.Carts.Get(ctx, cartItemID)
	if err != nil {
		return err
	}
	if it.UserID != userID {
		return orders.ErrForbidden
	}
	if qty < 1 {
		return s.Carts.Delete(ctx, cartItemID)
	}
	return s.Carts.SetQuantity(ctx, cartItemID, qty)
}

// RemoveItem is idempotent: removing an id that no longer exists succeeds.
func (s *Service) RemoveItem(ctx context.Context, userID, cartItemID string) error {
	it, err := s.Carts.Get(ctx, cartItemID)
	if err != nil {
		if err == orders.ErrNotFound {
			return nil
		}
		return err
	}
	if it.UserID != userID {
		return orders.ErrForbidden
	}
	return s.Carts.Delete(ctx, cartItemID)
}

// View groups the user's cart by shop with per-shop subtotals and a grand
// total. Recomputed on every call, never cached.
func (s *Service) View(ctx context.Context, userID string) (orders.CartView, error) {
	lines, err := s.Carts.ListByUser(ctx, userID)
	if err != nil {
		return orders.CartView{}, err
	}
	var view orders.CartView
	idx := map[string]int{} // shop id -> position in view.Shops
	for _, l := range lines {
		i, ok := idx[l.ShopID]
		if !ok {
			i = len(view.Shops)
			idx[l.ShopID] = i
			view.Shops = append(view.Shops, orders.ShopCart{ShopID: l.ShopID, ShopName: l.ShopName})
		}
		sub := l.ProductPrice * int64(l.Quantity)
		view.Shops[i].Items = append(view.Shops[i].Items, orders.CartViewItem{
			ID:           l.ID,
			ProductID:    l.ProductID,
			Name:         l.ProductName,
			Price:        l.ProductPrice,
			Quantity:     l.Quantity,
			ProductStock: l.ProductStock,
		})
		view.Shops[i].SubTotal += sub
		view.Total += sub
	}
	return view, nil
}
