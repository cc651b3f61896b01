package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/finpro/toko-orders/internal/orders"
)

type ProductRepo struct{ DB *pgxpool.Pool }

var _ orders.ProductRepository = (*ProductRepo)(nil)

func (r *ProductRepo) Get(ctx context.Context, id string) (orders.Product, error) {
	var p orders.Product
	err := r.DB.QueryRow(ctx, `
		SELECT id, shop_id, name, category, price, stock, created_at, updated_at
		FROM products WHERE id = $1
	`, id).Scan(&p.ID, &p.ShopID, &p.Name, &p.Category, &p.Price, &p.Stock, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.Product{}, orders.ErrNotFound
	}
	if err != nil {
		return orders.Product{}, err
	}
	return p, nil
}

type ShopRepo struct{ DB *pgxpool.Pool }

var _ orders.ShopRepository = (*ShopRepo)(nil)

func (r *ShopRepo) Get(ctx context.Context, id string) (orders.Shop, error) {
	var s orders.Shop
	err := r.DB.QueryRow(ctx, `
		SELECT id, user_id, shop_name, shop_telephone FROM shops WHERE id = $1
	`, id).Scan(&s.ID, &s.UserID, &s.Name, &s.Telephone)
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.Shop{}, orders.ErrNotFound
	}
	if err != nil {
		return orders.Shop{}, err
	}
	return s, nil
}
