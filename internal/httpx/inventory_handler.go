package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ariefcatur/resilient-orders/internal/inventory"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// InventoryHandler serves the stock ledger REST API.
type InventoryHandler struct {
	Store inventory.StockStore
	Log   *zap.Logger
}

func (h *InventoryHandler) Register(r chi.Router) {
	r.Route("/api/inventory", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/{sku}", h.get)
		r.Put("/{sku}", h.set)
		r.Post("/{sku}/reduce", h.reduce)
	})
}

type quantityReq struct {
	Quantity int `json:"quantity"`
}

type reduceResp struct {
	SKU       string `json:"sku"`
	Available int    `json:"available"`
	Reduced   int    `json:"reduced"`
}

type insufficientResp struct {
	Error     string `json:"error"`
	Available int    `json:"available"`
	Requested int    `json:"requested"`
}

type notFoundResp struct {
	Error string `json:"error"`
	SKU   string `json:"sku"`
}

func (h *InventoryHandler) list(w http.ResponseWriter, r *http.Request) {
	levels, err := h.Store.List(r.Context())
	if err != nil {
		h.storeFailed(w, "list", err)
		return
	}
	writeJSON(w, http.StatusOK, levels)
}

func (h *InventoryHandler) get(w http.ResponseWriter, r *http.Request) {
	sku := chi.URLParam(r, "sku")
	lvl, err := h.Store.Get(r.Context(), sku)
	if errors.Is(err, inventory.ErrStockNotFound) {
		writeJSON(w, http.StatusNotFound, notFoundResp{Error: "Product not found", SKU: sku})
		return
	}
	if err != nil {
		h.storeFailed(w, "get", err)
		return
	}
	writeJSON(w, http.StatusOK, lvl)
}

func (h *InventoryHandler) create(w http.ResponseWriter, r *http.Request) {
	var lvl inventory.StockLevel
	if err := json.NewDecoder(r.Body).Decode(&lvl); err != nil || strings.TrimSpace(lvl.SKU) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "sku and available are required"})
		return
	}
	err := h.Store.Create(r.Context(), lvl)
	switch {
	case errors.Is(err, inventory.ErrStockExists):
		writeJSON(w, http.StatusConflict, errorBody{Error: "Product already exists"})
	case errors.Is(err, inventory.ErrInvalidQuantity):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Available must not be negative"})
	case err != nil:
		h.storeFailed(w, "create", err)
	default:
		w.Header().Set("Location", "/api/inventory/"+lvl.SKU)
		writeJSON(w, http.StatusCreated, lvl)
	}
}

func (h *InventoryHandler) set(w http.ResponseWriter, r *http.Request) {
	sku := chi.URLParam(r, "sku")
	var req quantityReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json"})
		return
	}
	err := h.Store.Set(r.Context(), sku, req.Quantity)
	switch {
	case errors.Is(err, inventory.ErrStockNotFound):
		writeJSON(w, http.StatusNotFound, notFoundResp{Error: "Product not found", SKU: sku})
	case errors.Is(err, inventory.ErrInvalidQuantity):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Quantity must not be negative"})
	case err != nil:
		h.storeFailed(w, "set", err)
	default:
		writeJSON(w, http.StatusOK, inventory.StockLevel{SKU: sku, Available: req.Quantity})
	}
}

func (h *InventoryHandler) reduce(w http.ResponseWriter, r *http.Request) {
	sku := chi.URLParam(r, "sku")
	var req quantityReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json"})
		return
	}
	remaining, err := h.Store.DecrementIfAvailable(r.Context(), sku, req.Quantity)
	switch {
	case errors.Is(err, inventory.ErrStockNotFound):
		writeJSON(w, http.StatusNotFound, notFoundResp{Error: "Product not found", SKU: sku})
	case errors.Is(err, inventory.ErrInsufficientStock):
		writeJSON(w, http.StatusBadRequest, insufficientResp{Error: "Insufficient stock", Available: remaining, Requested: req.Quantity})
	case errors.Is(err, inventory.ErrInvalidQuantity):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Quantity must be positive"})
	case err != nil:
		h.storeFailed(w, "reduce", err)
	default:
		h.Log.Info("stock reduced", zap.String("sku", sku), zap.Int("reduced", req.Quantity), zap.Int("available", remaining))
		writeJSON(w, http.StatusOK, reduceResp{SKU: sku, Available: remaining, Reduced: req.Quantity})
	}
}

func (h *InventoryHandler) storeFailed(w http.ResponseWriter, op string, err error) {
	h.Log.Error("stock store failed", zap.String("op", op), zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: "inventory store unavailable"})
}
