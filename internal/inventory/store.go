package inventory

import (
	"context"
	"errors"
)

var (
	ErrStockNotFound     = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrStockExists       = errors.New("product already exists")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
)

type StockLevel struct {
	SKU       string `json:"sku"`
	Available int    `json:"available"`
}

// StockStore is the ledger. DecrementIfAvailable is atomic per SKU: it either
// removes qty units or leaves the level untouched.
type StockStore interface {
	List(ctx context.Context) ([]StockLevel, error)
	Get(ctx context.Context, sku string) (StockLevel, error)
	Create(ctx context.Context, s StockLevel) error
	Set(ctx context.Context, sku string, available int) error
	// DecrementIfAvailable returns the remaining units. When stock is short it
	// returns the current level with ErrInsufficientStock.
	DecrementIfAvailable(ctx context.Context, sku string, qty int) (int, error)
}
