package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/ariefcatur/resilient-orders/internal/orders"
	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

type cachedOrder struct {
	ID         int64     `json:"id"`
	SKU        string    `json:"sku"`
	ProductRef int       `json:"product_id"`
	Quantity   int       `json:"quantity"`
	CreatedAt  time.Time `json:"created_at"`
}

// OrderCache is a read-through cache in front of the order store.
type OrderCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewOrderCache(rdb *redis.Client) *OrderCache {
	return &OrderCache{rdb: rdb, ttl: TTLOrderCache}
}

// Get reports a miss as (nil, false, nil).
func (c *OrderCache) Get(ctx context.Context, id int64) (*orders.Order, bool, error) {
	b, err := c.rdb.Get(ctx, OrderKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var co cachedOrder
	if err := json.Unmarshal(b, &co); err != nil {
		return nil, false, err
	}
	return &orders.Order{ID: co.ID, SKU: co.SKU, ProductRef: co.ProductRef, Quantity: co.Quantity, CreatedAt: co.CreatedAt}, true, nil
}

func (c *OrderCache) Set(ctx context.Context, o *orders.Order) error {
	b, err := json.Marshal(cachedOrder{ID: o.ID, SKU: o.SKU, ProductRef: o.ProductRef, Quantity: o.Quantity, CreatedAt: o.CreatedAt})
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, OrderKey(o.ID), b, c.ttl).Err()
}
