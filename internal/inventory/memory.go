package inventory

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is a process-local ledger.
type MemoryStore struct {
	mu     sync.Mutex
	levels map[string]int
}

func NewMemoryStore(seed map[string]int) *MemoryStore {
	levels := make(map[string]int, len(seed))
	for sku, n := range seed {
		levels[sku] = n
	}
	return &MemoryStore{levels: levels}
}

func (m *MemoryStore) List(context.Context) ([]StockLevel, error) {
	m.mu.Lock()
	out := make([]StockLevel, 0, len(m.levels))
	for sku, n := range m.levels {
		out = append(out, StockLevel{SKU: sku, Available: n})
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out, nil
}

func (m *MemoryStore) Get(_ context.Context, sku string) (StockLevel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.levels[sku]
	if !ok {
		return StockLevel{}, ErrStockNotFound
	}
	return StockLevel{SKU: sku, Available: n}, nil
}

func (m *MemoryStore) Create(_ context.Context, s StockLevel) error {
	if s.Available < 0 {
		return ErrInvalidQuantity
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.levels[s.SKU]; ok {
		return ErrStockExists
	}
	m.levels[s.SKU] = s.Available
	return nil
}

func (m *MemoryStore) Set(_ context.Context, sku string, available int) error {
	if available < 0 {
		return ErrInvalidQuantity
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.levels[sku]; !ok {
		return ErrStockNotFound
	}
	m.levels[sku] = available
	return nil
}

func (m *MemoryStore) DecrementIfAvailable(_ context.Context, sku string, qty int) (int, error) {
	if qty <= 0 {
		return 0, ErrInvalidQuantity
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.levels[sku]
	if !ok {
		return 0, ErrStockNotFound
	}
	if n < qty {
		return n, ErrInsufficientStock
	}
	m.levels[sku] = n - qty
	return n - qty, nil
}
