package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/finpro/toko-orders/internal/orders"
)

type CartRepo struct{ DB *pgxpool.Pool }

var _ orders.CartRepository = (*CartRepo)(nil)

// AddItem: upsert per (user_id, product_id) — increment in place, tidak
// pernah bikin baris kembar.
func (r *CartRepo) AddItem(ctx context.Context, userID, productID, shopID string, qty int) (orders.CartItem, error) {
	var it orders.CartItem
	err := r.DB.QueryRow(ctx, `
		INSERT INTO cart_items (id, user_id, product_id, shop_id, quantity)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
		RETURNING id, user_id, product_id, shop_id, quantity, created_at
	`, uuid.NewString(), userID, productID, shopID, qty).
		Scan(&it.ID, &it.UserID, &it.ProductID, &it.ShopID, &it.Quantity, &it.CreatedAt)
	if err != nil {
		return orders.CartItem{}, err
	}
	return it, nil
}

func (r *CartRepo) Get(ctx context.Context, id string) (orders.CartItem, error) {
	var it orders.CartItem
	err := r.DB.QueryRow(ctx, `
		SELECT id, user_id, product_id, shop_id, quantity, created_at
		FROM cart_items WHERE id = $1
	`, id).Scan(&it.ID, &it.UserID, &it.ProductID, &it.ShopID, &it.Quantity, &it.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.CartItem{}, orders.ErrNotFound
	}
	if err != nil {
		return orders.CartItem{}, err
	}
	return it, nil
}

func (r *CartRepo) SetQuantity(ctx context.Context, id string, qty int) error {
	ct, err := r.DB.Exec(ctx, `UPDATE cart_items SET quantity = $2 WHERE id = $1`, id, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return orders.ErrNotFound
	}
	return nil
}

// Delete is idempotent: a missing row is a success.
func (r *CartRepo) Delete(ctx context.Context, id string) error {
	_, err := r.DB.Exec(ctx, `DELETE FROM cart_items WHERE id = $1`, id)
	return err
}

func (r *CartRepo) ListByUser(ctx context.Context, userID string) ([]orders.CartLine, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT c.id, c.user_id, c.product_id, c.shop_id, c.quantity, c.created_at,
		       p.name, p.price, p.stock, s.shop_name
		FROM cart_items c
		JOIN products p ON p.id = c.product_id
		JOIN shops s ON s.id = c.shop_id
		WHERE c.user_id = $1
		ORDER BY s.shop_name, c.created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []orders.CartLine
	for rows.Next() {
		var l orders.CartLine
		if err := rows.Scan(&l.ID, &l.UserID, &l.ProductID, &l.ShopID, &l.Quantity, &l.CreatedAt,
			&l.ProductName, &l.ProductPrice, &l.ProductStock, &l.ShopName); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
