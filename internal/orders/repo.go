package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

// Get mengembalikan order lengkap dengan items-nya (selalu eager; caller
// tidak perlu fetch terpisah).
func (r *Repo) Get(ctx context.Context, id string) (Order, error) {
	var o Order
	err := r.DB.QueryRow(ctx, `
		SELECT id, date_created, status FROM orders WHERE id=$1`, id,
	).Scan(&o.ID, &o.DateCreated, &o.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, err
	}

	o.Items, err = r.itemsFor(ctx, id)
	if err != nil {
		return Order{}, err
	}
	return o, nil
}

func (r *Repo) itemsFor(ctx context.Context, orderID string) ([]OrderItem, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, order_id, product_id, quantity
		FROM order_items WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []OrderItem{}
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *Repo) List(ctx context.Context) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, date_created, status FROM orders ORDER BY date_created`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Order{}
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.DateCreated, &o.Status); err != nil {
			return nil, err
		}
		o.Items = []OrderItem{}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(out) == 0 {
		return out, nil
	}

	// items diambil sekali lalu dikelompokkan, hindari N+1
	itemRows, err := r.DB.Query(ctx, `
		SELECT id, order_id, product_id, quantity
		FROM order_items ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer itemRows.Close()

	byOrder := make(map[string][]OrderItem, len(out))
	for itemRows.Next() {
		var it OrderItem
		if err := itemRows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity); err != nil {
			return nil, err
		}
		byOrder[it.OrderID] = append(byOrder[it.OrderID], it)
	}
	if err := itemRows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if items, ok := byOrder[out[i].ID]; ok {
			out[i].Items = items
		}
	}
	return out, nil
}

func (r *Repo) UpdateStatus(ctx context.Context, id, status string) (Order, error) {
	ct, err := r.DB.Exec(ctx, `UPDATE orders SET status=$2 WHERE id=$1`, id, status)
	if err != nil {
		return Order{}, err
	}
	if ct.RowsAffected() == 0 {
		return Order{}, ErrNotFound
	}
	return r.Get(ctx, id)
}

// Delete menghapus order; items ikut terhapus via FK cascade. Stok product
// TIDAK dikembalikan.
func (r *Repo) Delete(ctx context.Context, id string) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM orders WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// insert helpers tx-scoped: hanya dipakai Service.Create supaya header dan
// items tidak pernah commit terpisah.

func insertHeader(ctx context.Context, tx pgx.Tx, status string) (string, time.Time, error) {
	id := uuid.NewString()
	var created time.Time
	err := tx.QueryRow(ctx, `
		INSERT INTO orders(id, status) VALUES ($1, $2)
		RETURNING date_created`, id, status,
	).Scan(&created)
	if err != nil {
		return "", time.Time{}, err
	}
	return id, created, nil
}

func insertItem(ctx context.Context, tx pgx.Tx, orderID, productID string, qty int) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO order_items(id, order_id, product_id, quantity)
		VALUES ($1, $2, $3, $4)`,
		uuid.NewString(), orderID, productID, qty,
	)
	return err
}
