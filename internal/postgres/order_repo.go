package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/finpro/toko-orders/internal/orders"
)

type OrderRepo struct{ DB *pgxpool.Pool }

var _ orders.OrderRepository = (*OrderRepo)(nil)

// Checkout: satu transaksi untuk seluruh materialisasi order.
// Lock stok per baris produk (FOR UPDATE) -> cek & kurangi -> snapshot harga
// ke order_items -> hapus cart rows. Gagal di mana pun = rollback total.
// Idempotent via external_id.
func (r *OrderRepo) Checkout(ctx context.Context, in orders.CheckoutInput) (orders.CheckoutResult, error) {
	// cek existing by external_id
	var res orders.CheckoutResult
	row := r.DB.QueryRow(ctx, `SELECT id, total_price FROM orders WHERE external_id = $1`, in.ExternalID)
	if err := row.Scan(&res.OrderID, &res.TotalPrice); err == nil {
		res.Existed = true
		return res, nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return orders.CheckoutResult{}, err
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return orders.CheckoutResult{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// ambil cart rows milik buyer saja
	rows, err := tx.Query(ctx, `
		SELECT id, product_id, shop_id, quantity
		FROM cart_items
		WHERE id = ANY($1) AND user_id = $2
		FOR UPDATE
	`, in.CartIDs, in.UserID)
	if err != nil {
		return orders.CheckoutResult{}, err
	}
	type line struct {
		id, productID, shopID string
		qty                   int
	}
	var lines []line
	for rows.Next() {
		var l line
		if err := rows.Scan(&l.id, &l.productID, &l.shopID, &l.qty); err != nil {
			rows.Close()
			return orders.CheckoutResult{}, err
		}
		lines = append(lines, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return orders.CheckoutResult{}, err
	}

	if len(lines) == 0 {
		return orders.CheckoutResult{}, orders.ErrEmptySelection
	}
	shopID := lines[0].shopID
	for _, l := range lines {
		if l.shopID != shopID {
			// satu order = satu toko
			return orders.CheckoutResult{}, orders.ErrEmptySelection
		}
	}
	if in.ShopID != "" && in.ShopID != shopID {
		return orders.CheckoutResult{}, orders.ErrValidation
	}

	// cek stok live + kurangi, snapshot harga saat ini
	type priced struct {
		productID string
		qty       int
		price     int64
	}
	var items []priced
	var total int64
	for _, l := range lines {
		var price int64
		var stock int
		if err := tx.QueryRow(ctx, `SELECT price, stock FROM products WHERE id = $1 FOR UPDATE`, l.productID).
			Scan(&price, &stock); err != nil {
			return orders.CheckoutResult{}, err
		}
		if stock < l.qty {
			return orders.CheckoutResult{}, &orders.InsufficientStockError{
				ProductID: l.productID, Required: l.qty, Available: stock,
			}
		}
		if _, err := tx.Exec(ctx, `
			UPDATE products SET stock = stock - $2, updated_at = now() WHERE id = $1
		`, l.productID, l.qty); err != nil {
			return orders.CheckoutResult{}, err
		}
		items = append(items, priced{productID: l.productID, qty: l.qty, price: price})
		total += price * int64(l.qty)
	}
	total += in.DeliveryFee

	orderID := uuid.NewString()
	if _, err := tx.Exec(ctx, `
		INSERT INTO orders (id, external_id, user_id, shop_id, recipient, telephone,
		                    address, note, total_price, proof_payment, status_shipping)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, orderID, in.ExternalID, in.UserID, shopID, in.Recipient, in.Telephone,
		in.Address, in.Note, total, in.ProofPayment, string(orders.StatusAwaitingPayment)); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// balapan idempotency: submit kembar lolos pre-check barengan
			_ = tx.Rollback(ctx)
			row := r.DB.QueryRow(ctx, `SELECT id, total_price FROM orders WHERE external_id = $1`, in.ExternalID)
			if scanErr := row.Scan(&res.OrderID, &res.TotalPrice); scanErr == nil {
				res.Existed = true
				return res, nil
			}
		}
		return orders.CheckoutResult{}, err
	}

	for _, it := range items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items (id, order_id, product_id, quantity, price)
			VALUES ($1, $2, $3, $4, $5)
		`, uuid.NewString(), orderID, it.productID, it.qty, it.price); err != nil {
			return orders.CheckoutResult{}, err
		}
	}

	// cart rows yang terpakai dihapus di transaksi yang sama
	if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE id = ANY($1)`, in.CartIDs); err != nil {
		return orders.CheckoutResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return orders.CheckoutResult{}, err
	}
	return orders.CheckoutResult{OrderID: orderID, TotalPrice: total}, nil
}

func (r *OrderRepo) Get(ctx context.Context, id string) (orders.Order, error) {
	return scanOrder(r.DB.QueryRow(ctx, `
		SELECT id, external_id, user_id, shop_id, recipient, telephone, address, note,
		       total_price, proof_payment, status_shipping, cancel_by, prior_status, created_at
		FROM orders WHERE id = $1
	`, id))
}

func scanOrder(row pgx.Row) (orders.Order, error) {
	var o orders.Order
	var cancelBy, prior *string
	err := row.Scan(&o.ID, &o.ExternalID, &o.UserID, &o.ShopID, &o.Recipient, &o.Telephone,
		&o.Address, &o.Note, &o.TotalPrice, &o.ProofPayment, &o.StatusShipping,
		&cancelBy, &prior, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.Order{}, orders.ErrNotFound
	}
	if err != nil {
		return orders.Order{}, err
	}
	if cancelBy != nil {
		p := orders.Party(*cancelBy)
		o.CancelBy = &p
	}
	if prior != nil {
		s := orders.Status(*prior)
		o.PriorStatus = &s
	}
	return o, nil
}

func (r *OrderRepo) Detail(ctx context.Context, id string) (orders.OrderDetail, error) {
	o, err := r.Get(ctx, id)
	if err != nil {
		return orders.OrderDetail{}, err
	}
	var d orders.OrderDetail
	d.Order = o
	if err := r.DB.QueryRow(ctx, `SELECT shop_name, shop_telephone FROM shops WHERE id = $1`, o.ShopID).
		Scan(&d.ShopName, &d.ShopTelephone); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return orders.OrderDetail{}, err
	}

	rows, err := r.DB.Query(ctx, `
		SELECT oi.product_id, p.name, oi.quantity, oi.price
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = $1
	`, id)
	if err != nil {
		return orders.OrderDetail{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var it orders.OrderItemDetail
		if err := rows.Scan(&it.ProductID, &it.Name, &it.Quantity, &it.Price); err != nil {
			return orders.OrderDetail{}, err
		}
		it.SubTotal = it.Price * int64(it.Quantity)
		d.Items = append(d.Items, it)
	}
	return d, rows.Err()
}

const summarySelect = `
	SELECT o.id, o.shop_id, s.shop_name, s.shop_telephone, o.created_at,
	       o.total_price, o.status_shipping, COUNT(oi.id) AS product_count
	FROM orders o
	JOIN shops s ON s.id = o.shop_id
	JOIN order_items oi ON oi.order_id = o.id
`

func (r *OrderRepo) ListActiveByUser(ctx context.Context, userID string) ([]orders.OrderSummary, error) {
	return r.listByUser(ctx, userID, `NOT IN ('delivered', 'cancelled')`)
}

func (r *OrderRepo) ListHistoryByUser(ctx context.Context, userID string) ([]orders.OrderSummary, error) {
	return r.listByUser(ctx, userID, `IN ('delivered', 'cancelled')`)
}

func (r *OrderRepo) listByUser(ctx context.Context, userID, statusCond string) ([]orders.OrderSummary, error) {
	rows, err := r.DB.Query(ctx, summarySelect+`
		WHERE o.user_id = $1 AND o.status_shipping `+statusCond+`
		GROUP BY o.id, s.shop_name, s.shop_telephone
		ORDER BY o.created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []orders.OrderSummary
	for rows.Next() {
		var s orders.OrderSummary
		if err := rows.Scan(&s.ID, &s.ShopID, &s.ShopName, &s.ShopTelephone, &s.CreatedAt,
			&s.TotalPrice, &s.StatusShipping, &s.ProductCount); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *OrderRepo) ListByShop(ctx context.Context, shopID string) ([]orders.SaleSummary, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT o.id, o.shop_id, o.recipient, o.telephone, o.created_at,
		       o.total_price, o.status_shipping, COUNT(oi.id) AS product_count
		FROM orders o
		JOIN order_items oi ON oi.order_id = o.id
		WHERE o.shop_id = $1
		GROUP BY o.id
		ORDER BY o.created_at DESC
	`, shopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []orders.SaleSummary
	for rows.Next() {
		var s orders.SaleSummary
		if err := rows.Scan(&s.ID, &s.ShopID, &s.Recipient, &s.Telephone, &s.CreatedAt,
			&s.TotalPrice, &s.StatusShipping, &s.ProductCount); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ApplyTransition: compare-and-set di status_shipping; writer kedua yang
// kalah balapan dapat ErrConflict. Restock (kalau ada) ikut transaksi yang
// sama dan bersifat aditif sesuai quantity di order_items.
func (r *OrderRepo) ApplyTransition(ctx context.Context, orderID string, ch orders.Change) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var cancelBy, prior *string
	if ch.CancelBy != nil {
		v := string(*ch.CancelBy)
		cancelBy = &v
	}
	if ch.PriorStatus != nil {
		v := string(*ch.PriorStatus)
		prior = &v
	}
	ct, err := tx.Exec(ctx, `
		UPDATE orders
		SET status_shipping = $2, cancel_by = $3, prior_status = $4
		WHERE id = $1 AND status_shipping = $5
	`, orderID, string(ch.To), cancelBy, prior, string(ch.From))
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		var one int
		if err := tx.QueryRow(ctx, `SELECT 1 FROM orders WHERE id = $1`, orderID).Scan(&one); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return orders.ErrNotFound
			}
			return err
		}
		return orders.ErrConflict
	}

	if ch.Restock {
		if _, err := tx.Exec(ctx, `
			UPDATE products p
			SET stock = p.stock + oi.quantity, updated_at = now()
			FROM order_items oi
			WHERE oi.order_id = $1 AND p.id = oi.product_id
		`, orderID); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}
