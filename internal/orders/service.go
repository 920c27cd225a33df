package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-inventory-orders/internal/catalog"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Service mengorkestrasi pembuatan order: header + items + pengurangan stok
// dalam SATU transaksi. Gagal di item manapun = rollback semua.
type Service struct {
	DB     *pgxpool.Pool
	Orders *Repo
}

// Create memproses items sesuai urutan dari caller. Row product di-lock
// (FOR UPDATE) sebelum dicek, jadi dua request yang balapan di product yang
// sama diserialisasi oleh database.
func (s *Service) Create(ctx context.Context, status string, items []ItemInput) (Order, error) {
	if len(items) == 0 {
		return Order{}, ErrEmptyOrder
	}
	for _, it := range items {
		if it.Quantity <= 0 {
			return Order{}, ErrInvalidQuantity
		}
	}

	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	orderID, _, err := insertHeader(ctx, tx, status)
	if err != nil {
		return Order{}, fmt.Errorf("insert order header: %w", err)
	}

	for _, it := range items {
		p, err := catalog.GetForUpdate(ctx, tx, it.ProductID)
		if errors.Is(err, catalog.ErrNotFound) {
			return Order{}, &ProductNotFoundError{ProductID: it.ProductID}
		}
		if err != nil {
			return Order{}, fmt.Errorf("lock product %s: %w", it.ProductID, err)
		}
		if p.Available < it.Quantity {
			return Order{}, &InsufficientStockError{
				ProductID: it.ProductID,
				Requested: it.Quantity,
				Available: p.Available,
			}
		}
		if err := catalog.Decrement(ctx, tx, it.ProductID, it.Quantity); err != nil {
			return Order{}, fmt.Errorf("decrement product %s: %w", it.ProductID, err)
		}
		if err := insertItem(ctx, tx, orderID, it.ProductID, it.Quantity); err != nil {
			return Order{}, fmt.Errorf("insert order item: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Order{}, err
	}
	return s.Orders.Get(ctx, orderID)
}
