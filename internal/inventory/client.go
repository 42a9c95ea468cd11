package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ariefcatur/resilient-orders/internal/orders"
	"github.com/ariefcatur/resilient-orders/internal/resilience"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const maxBody = 1 << 20

// DefaultAttemptTimeout bounds a single HTTP exchange with the ledger.
const DefaultAttemptTimeout = 10 * time.Second

type ClientOptions struct {
	Retries   int
	BaseDelay time.Duration
	// Breaker is shared by the check and reduce calls.
	Breaker    *resilience.Breaker
	Listener   resilience.Listener
	HTTPClient *http.Client
	Tracer     trace.Tracer
	// Sleep overrides the backoff timer; tests only.
	Sleep func(context.Context, time.Duration) error
}

// Client talks to the inventory ledger over REST. An empty base URL yields a
// client whose every call fails with orders.ErrNotConfigured.
type Client struct {
	baseURL string
	http    *http.Client
	tracer  trace.Tracer
	check   resilience.Policy
	reduce  resilience.Policy
}

func NewClient(baseURL string, opt ClientOptions) *Client {
	hc := opt.HTTPClient
	if hc == nil {
		hc = &http.Client{
			Timeout: DefaultAttemptTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
			},
		}
	}
	tracer := opt.Tracer
	if tracer == nil {
		tracer = otel.Tracer("resilient-orders/inventory")
	}
	policy := func(name string) resilience.Policy {
		return resilience.Policy{
			Name:      name,
			Retries:   opt.Retries,
			BaseDelay: opt.BaseDelay,
			Breaker:   opt.Breaker,
			Listener:  opt.Listener,
			Sleep:     opt.Sleep,
		}
	}
	return &Client{
		baseURL: baseURL,
		http:    hc,
		tracer:  tracer,
		check:   policy("inventory.check"),
		reduce:  policy("inventory.reduce"),
	}
}

type response struct {
	status int
	body   []byte
}

func unsuccessful(r response) bool { return r.status < 200 || r.status > 299 }

// PlacementBudget is the worst case for one check followed by one reduce,
// retries and backoff included.
func (c *Client) PlacementBudget() time.Duration {
	per := c.http.Timeout
	if per <= 0 {
		per = DefaultAttemptTimeout
	}
	return c.check.Budget(per) + c.reduce.Budget(per)
}

func (c *Client) CheckAvailability(ctx context.Context, sku string) (int, error) {
	if c.baseURL == "" {
		return 0, orders.ErrNotConfigured
	}
	u := c.baseURL + "/api/inventory/" + url.PathEscape(sku)
	res, err := resilience.Do(ctx, c.check, func(ctx context.Context) (response, error) {
		return c.send(ctx, http.MethodGet, u, nil)
	}, unsuccessful)
	if err != nil {
		return 0, downstreamErr("check", res.status, err)
	}
	if unsuccessful(res) {
		return 0, &orders.DownstreamError{Op: "check", Status: res.status}
	}
	available, err := decodeAvailable(res.body)
	if err != nil {
		return 0, &orders.DownstreamError{Op: "check", Status: res.status, Err: err}
	}
	return available, nil
}

// LookupStock reads the ledger once, outside the retry policy and the breaker,
// so read traffic can never open the circuit that guards placement. An unknown
// SKU reads as zero.
func (c *Client) LookupStock(ctx context.Context, sku string) (int, error) {
	if c.baseURL == "" {
		return 0, orders.ErrNotConfigured
	}
	res, err := c.send(ctx, http.MethodGet, c.baseURL+"/api/inventory/"+url.PathEscape(sku), nil)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return 0, err
		}
		return 0, &orders.DownstreamError{Op: "lookup", Err: err}
	}
	if res.status == http.StatusNotFound {
		return 0, nil
	}
	if unsuccessful(res) {
		return 0, &orders.DownstreamError{Op: "lookup", Status: res.status}
	}
	available, err := decodeAvailable(res.body)
	if err != nil {
		return 0, &orders.DownstreamError{Op: "lookup", Status: res.status, Err: err}
	}
	return available, nil
}

// ReduceStock asks the ledger to decrement sku. A non-2xx answer, including the
// ledger's own insufficient-stock rejection, is reported in the outcome rather
// than as an error.
func (c *Client) ReduceStock(ctx context.Context, sku string, qty int) (orders.ReduceOutcome, error) {
	if c.baseURL == "" {
		return orders.ReduceOutcome{}, orders.ErrNotConfigured
	}
	body, err := json.Marshal(map[string]int{"quantity": qty})
	if err != nil {
		return orders.ReduceOutcome{}, err
	}
	u := c.baseURL + "/api/inventory/" + url.PathEscape(sku) + "/reduce"
	res, err := resilience.Do(ctx, c.reduce, func(ctx context.Context) (response, error) {
		return c.send(ctx, http.MethodPost, u, body)
	}, unsuccessful)
	if err != nil {
		return orders.ReduceOutcome{StatusCode: res.status}, downstreamErr("reduce", res.status, err)
	}
	return orders.ReduceOutcome{Success: !unsuccessful(res), StatusCode: res.status}, nil
}

// downstreamErr keeps circuit-open and cancellation recognisable and wraps
// everything else as a downstream failure.
func downstreamErr(op string, status int, err error) error {
	if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, context.Canceled) {
		return err
	}
	return &orders.DownstreamError{Op: op, Status: status, Err: err}
}

func (c *Client) send(ctx context.Context, method, u string, body []byte) (response, error) {
	ctx, span := c.tracer.Start(ctx, "inventory "+method, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("http.url", u),
	)

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		span.RecordError(err)
		return response{}, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return response{}, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return response{status: resp.StatusCode}, err
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if unsuccessful(response{status: resp.StatusCode}) {
		span.SetStatus(codes.Error, resp.Status)
	}
	return response{status: resp.StatusCode, body: b}, nil
}

// decodeAvailable reads the available quantity from a generic JSON object,
// accepting either "Available" or "available". A missing key means 0.
func decodeAvailable(b []byte) (int, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return 0, fmt.Errorf("decode stock level: %w", err)
	}
	raw, ok := m["Available"]
	if !ok {
		raw, ok = m["available"]
	}
	if !ok {
		return 0, nil
	}
	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, fmt.Errorf("decode available: %w", err)
	}
	return n, nil
}
