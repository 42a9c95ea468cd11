package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var ordersSchema = []string{
	`CREATE TABLE IF NOT EXISTS orders (
		id         BIGSERIAL PRIMARY KEY,
		sku        TEXT        NOT NULL,
		product_id INTEGER     NOT NULL DEFAULT 0,
		quantity   INTEGER     NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS orders_sku_idx ON orders (sku)`,
}

var inventorySchema = []string{
	`CREATE TABLE IF NOT EXISTS stock_levels (
		sku        TEXT PRIMARY KEY,
		available  INTEGER     NOT NULL CHECK (available >= 0),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// SeedStock is loaded into an empty ledger.
var SeedStock = map[string]int{"SKU-1": 10, "SKU-2": 0, "SKU-3": 25}

func MigrateOrders(ctx context.Context, db *pgxpool.Pool, log *zap.Logger) error {
	return apply(ctx, db, log, "orders", ordersSchema)
}

// MigrateInventory creates the ledger table and seeds it when empty.
func MigrateInventory(ctx context.Context, db *pgxpool.Pool, log *zap.Logger) error {
	if err := apply(ctx, db, log, "inventory", inventorySchema); err != nil {
		return err
	}
	var n int
	if err := db.QueryRow(ctx, `SELECT COUNT(*) FROM stock_levels`).Scan(&n); err != nil {
		return fmt.Errorf("count stock levels: %w", err)
	}
	if n > 0 {
		return nil
	}
	for sku, qty := range SeedStock {
		if _, err := db.Exec(ctx, `
			INSERT INTO stock_levels(sku, available) VALUES ($1, $2)
			ON CONFLICT (sku) DO NOTHING`, sku, qty); err != nil {
			return fmt.Errorf("seed %s: %w", sku, err)
		}
	}
	log.Info("seeded stock ledger", zap.Int("skus", len(SeedStock)))
	return nil
}

func apply(ctx context.Context, db *pgxpool.Pool, log *zap.Logger, name string, stmts []string) error {
	for i, stmt := range stmts {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %s step %d: %w", name, i, err)
		}
	}
	log.Debug("schema up to date", zap.String("schema", name), zap.Int("steps", len(stmts)))
	return nil
}
