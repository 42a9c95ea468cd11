package inventory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// PgStore keeps the ledger in stock_levels.
type PgStore struct{ DB *pgxpool.Pool }

func (r *PgStore) List(ctx context.Context) ([]StockLevel, error) {
	rows, err := r.DB.Query(ctx, `SELECT sku, available FROM stock_levels ORDER BY sku`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []StockLevel{}
	for rows.Next() {
		var s StockLevel
		if err := rows.Scan(&s.SKU, &s.Available); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *PgStore) Get(ctx context.Context, sku string) (StockLevel, error) {
	s := StockLevel{SKU: sku}
	err := r.DB.QueryRow(ctx, `SELECT available FROM stock_levels WHERE sku=$1`, sku).Scan(&s.Available)
	if errors.Is(err, pgx.ErrNoRows) {
		return StockLevel{}, ErrStockNotFound
	}
	return s, err
}

func (r *PgStore) Create(ctx context.Context, s StockLevel) error {
	if s.Available < 0 {
		return ErrInvalidQuantity
	}
	_, err := r.DB.Exec(ctx, `INSERT INTO stock_levels(sku, available) VALUES ($1, $2)`, s.SKU, s.Available)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrStockExists
	}
	return err
}

func (r *PgStore) Set(ctx context.Context, sku string, available int) error {
	if available < 0 {
		return ErrInvalidQuantity
	}
	ct, err := r.DB.Exec(ctx, `UPDATE stock_levels SET available=$2, updated_at=now() WHERE sku=$1`, sku, available)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrStockNotFound
	}
	return nil
}

// DecrementIfAvailable locks the row (FOR UPDATE) so concurrent decrements of
// one SKU serialize and never drive it negative.
func (r *PgStore) DecrementIfAvailable(ctx context.Context, sku string, qty int) (int, error) {
	if qty <= 0 {
		return 0, ErrInvalidQuantity
	}
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var available int
	err = tx.QueryRow(ctx, `SELECT available FROM stock_levels WHERE sku=$1 FOR UPDATE`, sku).Scan(&available)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrStockNotFound
	}
	if err != nil {
		return 0, err
	}
	if available < qty {
		return available, ErrInsufficientStock
	}

	if _, err := tx.Exec(ctx, `UPDATE stock_levels SET available = available - $2, updated_at=now() WHERE sku=$1`, sku, qty); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return available - qty, nil
}
