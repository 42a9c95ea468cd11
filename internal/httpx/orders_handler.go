package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ariefcatur/resilient-orders/internal/orders"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type OrderPlacer interface {
	Place(ctx context.Context, req orders.PlaceOrderRequest) (orders.Result, error)
	Lookup(ctx context.Context, id int64) (*orders.Order, error)
}

// StockLookup answers read-only availability queries. It must not share the
// placement breaker.
type StockLookup interface {
	LookupStock(ctx context.Context, sku string) (int, error)
}

// OrderCache reports a miss as (nil, false, nil).
type OrderCache interface {
	Get(ctx context.Context, id int64) (*orders.Order, bool, error)
	Set(ctx context.Context, o *orders.Order) error
}

// OrdersHandler serves the order service API. Cache may be nil.
type OrdersHandler struct {
	Placer    OrderPlacer
	Inventory StockLookup
	Cache     OrderCache
	Log       *zap.Logger
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/orders", h.createOrder)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/inventory/{sku}", h.getInventory)
}

type createOrderResp struct {
	Status    string `json:"status"`
	Available int    `json:"available"`
	OrderID   int64  `json:"orderId,omitempty"`
}

type orderResp struct {
	ID        int64     `json:"id"`
	SKU       string    `json:"sku"`
	ProductID int       `json:"productId"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"createdAt"`
}

// statusClientClosedRequest is recorded when the caller went away first.
const statusClientClosedRequest = 499

type stockResp struct {
	SKU       string `json:"sku"`
	Available int    `json:"available"`
	InStock   bool   `json:"inStock"`
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req orders.PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json"})
		return
	}

	res, err := h.Placer.Place(r.Context(), req)
	if err == nil {
		writeJSON(w, http.StatusOK, createOrderResp{Status: "Order confirmed", Available: res.Available, OrderID: res.OrderID})
		return
	}

	var (
		ise *orders.InsufficientStockError
		pe  *orders.PersistenceError
	)
	switch {
	case errors.As(err, &ise):
		writeJSON(w, http.StatusBadRequest, createOrderResp{Status: "Out of stock", Available: ise.Available})
	case errors.Is(err, orders.ErrInvalidRequest):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "sku is required"})
	case errors.As(err, &pe):
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Failed to save order"})
	case r.Context().Err() != nil:
		// On deadline the timeout middleware answers 504.
		if errors.Is(r.Context().Err(), context.Canceled) {
			w.WriteHeader(statusClientClosedRequest)
		}
	case writeInventoryError(w, err):
	default:
		h.Log.Error("order placement failed", zap.String("state", string(res.State)), zap.Error(err))
		writeJSON(w, http.StatusBadGateway, errorBody{Error: "Inventory service unavailable"})
	}
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid order id"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if h.Cache != nil {
		o, ok, err := h.Cache.Get(ctx, id)
		if err != nil {
			h.Log.Warn("order cache read failed", zap.Int64("order_id", id), zap.Error(err))
		}
		if ok {
			writeJSON(w, http.StatusOK, toOrderResp(o))
			return
		}
	}

	o, err := h.Placer.Lookup(ctx, id)
	if errors.Is(err, orders.ErrOrderNotFound) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "order not found"})
		return
	}
	if err != nil {
		h.Log.Error("order lookup failed", zap.Int64("order_id", id), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "order lookup failed"})
		return
	}
	if h.Cache != nil {
		if err := h.Cache.Set(ctx, o); err != nil {
			h.Log.Warn("order cache write failed", zap.Int64("order_id", id), zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, toOrderResp(o))
}

func (h *OrdersHandler) getInventory(w http.ResponseWriter, r *http.Request) {
	sku := chi.URLParam(r, "sku")
	available, err := h.Inventory.LookupStock(r.Context(), sku)
	switch {
	case errors.Is(err, orders.ErrNotConfigured):
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Inventory service URL not configured"})
	case err != nil && r.Context().Err() != nil:
		if errors.Is(r.Context().Err(), context.Canceled) {
			w.WriteHeader(statusClientClosedRequest)
		}
	case err != nil:
		h.Log.Error("inventory lookup failed", zap.String("sku", sku), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Failed to retrieve inventory"})
	default:
		writeJSON(w, http.StatusOK, stockResp{SKU: sku, Available: available, InStock: available > 0})
	}
}

func toOrderResp(o *orders.Order) orderResp {
	return orderResp{ID: o.ID, SKU: o.SKU, ProductID: o.ProductRef, Quantity: o.Quantity, CreatedAt: o.CreatedAt}
}
