package httpx

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ariefcatur/resilient-orders/internal/inventory"
	"github.com/ariefcatur/resilient-orders/internal/postgres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newLedgerServer(t *testing.T) (*httptest.Server, *inventory.MemoryStore) {
	t.Helper()
	store := inventory.NewMemoryStore(postgres.SeedStock)
	r := NewRouter(zap.NewNop())
	(&InventoryHandler{Store: store, Log: zap.NewNop()}).Register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, store
}

func do(t *testing.T, method, url, body string) (int, string) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var sb strings.Builder
	_, err = io.Copy(&sb, resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, sb.String()
}

func TestInventoryHandler_Ledger(t *testing.T) {
	srv, _ := newLedgerServer(t)
	base := srv.URL + "/api/inventory"

	tests := []struct {
		name, method, path, body string
		wantCode                 int
		wantBody                 string
	}{
		{"list", http.MethodGet, "", "", 200, `[{"sku":"SKU-1","available":10},{"sku":"SKU-2","available":0},{"sku":"SKU-3","available":25}]`},
		{"get", http.MethodGet, "/SKU-1", "", 200, `{"sku":"SKU-1","available":10}`},
		{"get missing", http.MethodGet, "/SKU-404", "", 404, `{"error":"Product not found","sku":"SKU-404"}`},
		{"create", http.MethodPost, "", `{"sku":"SKU-4","available":3}`, 201, `{"sku":"SKU-4","available":3}`},
		{"create duplicate", http.MethodPost, "", `{"sku":"SKU-4","available":3}`, 409, `{"error":"Product already exists"}`},
		{"create invalid", http.MethodPost, "", `{"available":3}`, 400, `{"error":"sku and available are required"}`},
		{"set", http.MethodPut, "/SKU-4", `{"quantity":9}`, 200, `{"sku":"SKU-4","available":9}`},
		{"set missing", http.MethodPut, "/SKU-404", `{"quantity":9}`, 404, `{"error":"Product not found","sku":"SKU-404"}`},
		{"reduce", http.MethodPost, "/SKU-1/reduce", `{"quantity":3}`, 200, `{"sku":"SKU-1","available":7,"reduced":3}`},
		{"reduce short", http.MethodPost, "/SKU-1/reduce", `{"quantity":8}`, 400, `{"error":"Insufficient stock","available":7,"requested":8}`},
		{"reduce missing", http.MethodPost, "/SKU-404/reduce", `{"quantity":1}`, 404, `{"error":"Product not found","sku":"SKU-404"}`},
		{"reduce zero", http.MethodPost, "/SKU-1/reduce", `{"quantity":0}`, 400, `{"error":"Quantity must be positive"}`},
	}
	// Cases share one ledger and run in order.
	for _, tt := range tests {
		code, body := do(t, tt.method, base+tt.path, tt.body)
		assert.Equal(t, tt.wantCode, code, tt.name)
		assert.JSONEq(t, tt.wantBody, body, tt.name)
	}
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	srv, _ := newLedgerServer(t)

	code, body := do(t, http.MethodGet, srv.URL+"/healthz", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body)

	code, body = do(t, http.MethodGet, srv.URL+"/metrics", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "orders_http_request_duration_seconds")
}

func TestRouter_RequestTimeout(t *testing.T) {
	r := NewRouter(zap.NewNop(), WithRequestTimeout(20*time.Millisecond))
	r.Get("/slow", func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	code, _ := do(t, http.MethodGet, srv.URL+"/slow", "")

	assert.Equal(t, http.StatusGatewayTimeout, code)
}
