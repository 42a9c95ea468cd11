package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ariefcatur/resilient-orders/internal/orders"
	"github.com/ariefcatur/resilient-orders/internal/resilience"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error  string `json:"error"`
	Status int    `json:"status,omitempty"`
}

// writeInventoryError answers for a failed inventory call and reports whether
// err was one.
func writeInventoryError(w http.ResponseWriter, err error) bool {
	var de *orders.DownstreamError
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "Inventory service temporarily unavailable (circuit open)"})
	case errors.Is(err, orders.ErrNotConfigured):
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Inventory service URL not configured"})
	case errors.As(err, &de):
		msg := "Inventory service unavailable"
		if de.Op == "reduce" {
			msg = "Failed to reduce inventory"
		}
		writeJSON(w, http.StatusBadGateway, errorBody{Error: msg, Status: de.Status})
	default:
		return false
	}
	return true
}
