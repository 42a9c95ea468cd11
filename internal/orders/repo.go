package orders

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore keeps orders in the orders table. Ids come from the BIGSERIAL column.
type PgStore struct{ DB *pgxpool.Pool }

func (r *PgStore) Create(ctx context.Context, o *Order) (int64, error) {
	err := r.DB.QueryRow(ctx, `
		INSERT INTO orders(sku, product_id, quantity)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		o.SKU, o.ProductRef, o.Quantity,
	).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return 0, err
	}
	return o.ID, nil
}

func (r *PgStore) Get(ctx context.Context, id int64) (*Order, error) {
	var o Order
	err := r.DB.QueryRow(ctx, `
		SELECT id, sku, product_id, quantity, created_at
		FROM orders WHERE id=$1`, id,
	).Scan(&o.ID, &o.SKU, &o.ProductRef, &o.Quantity, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}
