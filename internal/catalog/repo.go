package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("product not found")

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) Create(ctx context.Context, in NewProduct) (Product, error) {
	p := Product{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Available:   in.Available,
	}
	_, err := r.DB.Exec(ctx, `
		INSERT INTO products(id, name, description, price, available)
		VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.Name, p.Description, p.Price, p.Available,
	)
	if err != nil {
		return Product{}, err
	}
	return p, nil
}

func (r *Repo) Get(ctx context.Context, id string) (Product, error) {
	var p Product
	err := r.DB.QueryRow(ctx, `
		SELECT id, name, description, price, available
		FROM products WHERE id=$1`, id,
	).Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Available)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	if err != nil {
		return Product{}, err
	}
	return p, nil
}

func (r *Repo) List(ctx context.Context) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, name, description, price, available
		FROM products ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Product{}
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Available); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Update: partial update di dalam satu tx (lock row dulu biar tidak balapan
// dengan decrement stok dari order creation).
func (r *Repo) Update(ctx context.Context, id string, patch ProductPatch) (Product, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Product{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	p, err := GetForUpdate(ctx, tx, id)
	if err != nil {
		return Product{}, err
	}
	patch.Apply(&p)

	_, err = tx.Exec(ctx, `
		UPDATE products SET name=$2, description=$3, price=$4, available=$5
		WHERE id=$1`,
		p.ID, p.Name, p.Description, p.Price, p.Available,
	)
	if err != nil {
		return Product{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Product{}, err
	}
	return p, nil
}

func (r *Repo) Delete(ctx context.Context, id string) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM products WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetForUpdate: baca product sambil pegang row lock, dipakai di dalam
// transaksi order creation.
func GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (Product, error) {
	var p Product
	err := tx.QueryRow(ctx, `
		SELECT id, name, description, price, available
		FROM products WHERE id=$1 FOR UPDATE`, id,
	).Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Available)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	if err != nil {
		return Product{}, err
	}
	return p, nil
}

func Decrement(ctx context.Context, tx pgx.Tx, id string, qty int) error {
	ct, err := tx.Exec(ctx, `UPDATE products SET available = available - $2 WHERE id=$1`, id, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}
