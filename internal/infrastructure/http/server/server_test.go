package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/yuzvak/flashsale-engine/internal/application/ports"
	"github.com/yuzvak/flashsale-engine/internal/application/use_cases"
	"github.com/yuzvak/flashsale-engine/internal/config"
	"github.com/yuzvak/flashsale-engine/internal/infrastructure/analytics"
	"github.com/yuzvak/flashsale-engine/internal/infrastructure/catalog"
	"github.com/yuzvak/flashsale-engine/internal/infrastructure/http/handlers"
	"github.com/yuzvak/flashsale-engine/internal/infrastructure/http/middleware"
	"github.com/yuzvak/flashsale-engine/internal/infrastructure/persistence/memory"
	"github.com/yuzvak/flashsale-engine/internal/pkg/clock"
	"github.com/yuzvak/flashsale-engine/internal/pkg/logger"
)

var now = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

type envelope struct {
	Status    string            `json:"status"`
	Code      string            `json:"code"`
	Retryable bool              `json:"retryable"`
	Errors    map[string]string `json:"errors"`
	Data      json.RawMessage   `json:"data"`
}

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()

	store := memory.NewStore(100_000)
	clk := clock.NewMockClock(now)
	log := logger.NewNop()
	sink := analytics.NewLogSink(log)
	productCatalog := catalog.NewStaticCatalog(ports.CatalogProduct{
		ID:    "sku-tv",
		Name:  "Television",
		Price: decimal.NewFromInt(500),
	})

	purchase := use_cases.NewPurchaseUseCase(use_cases.PurchaseDependencies{
		Sales:     store,
		Stock:     store,
		Quota:     store,
		Receipts:  memory.NewReceiptStore(1000),
		Locker:    memory.NewLocker(clk),
		Metrics:   store,
		Analytics: sink,
		Clock:     clk,
		Tracer:    noop.NewTracerProvider().Tracer("test"),
		Logger:    log,
	}, 5*time.Second, 3)

	srv := NewServer(config.ServerConfig{
		Host:           "127.0.0.1",
		Port:           0,
		RequestTimeout: config.Duration{Duration: 5 * time.Second},
	}, Handlers{
		Health:    handlers.NewHealthHandler(nil, nil, log),
		Sale:      handlers.NewSaleHandler(use_cases.NewSaleAdminUseCase(store, store, productCatalog, clk, log), log),
		Purchase:  handlers.NewPurchaseHandler(purchase, log),
		Analytics: handlers.NewAnalyticsHandler(use_cases.NewAnalyticsUseCase(store, store, sink, clk, log), log),
	}, log)

	return srv.Handler()
}

func do(t *testing.T, h http.Handler, method, path string, body any, headers ...string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func createSale(t *testing.T, h http.Handler, stock, maxPerUser int) handlers.SaleResponse {
	t.Helper()

	rec, env := do(t, h, http.MethodPost, "/flash-sales", map[string]any{
		"title":      "Midnight TVs",
		"start_date": now.Add(-time.Hour).Format(time.RFC3339),
		"end_date":   now.Add(time.Hour).Format(time.RFC3339),
		"products": []map[string]any{{
			"product_id":            "sku-tv",
			"sale_price":            "300",
			"stock_quantity":        stock,
			"max_quantity_per_user": maxPerUser,
		}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var sale handlers.SaleResponse
	require.NoError(t, json.Unmarshal(env.Data, &sale))
	return sale
}

func purchasePath(sale handlers.SaleResponse) string {
	return fmt.Sprintf("/flash-sales/%s/products/%s/purchase", sale.ID, sale.Products[0].ID)
}

func TestServer_SaleLifecycle(t *testing.T) {
	h := newTestHandler(t)

	sale := createSale(t, h, 3, 2)
	assert.Equal(t, "active", string(sale.State))
	assert.Equal(t, "Television", sale.Products[0].Name)
	assert.Equal(t, "40", sale.Products[0].DiscountPercentage.String())

	rec, env := do(t, h, http.MethodGet, "/flash-sales/"+sale.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", env.Status)

	rec, env = do(t, h, http.MethodGet, "/flash-sales?status=active", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list handlers.SaleListResponse
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Equal(t, 1, list.Total)

	rec, _ = do(t, h, http.MethodPatch, "/flash-sales/"+sale.ID+"/toggle", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = do(t, h, http.MethodPost, purchasePath(sale), map[string]any{"buyer_id": "alice", "quantity": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "SaleNotActive", env.Code)
}

func TestServer_Purchase(t *testing.T) {
	h := newTestHandler(t)
	sale := createSale(t, h, 3, 2)

	rec, env := do(t, h, http.MethodPost, purchasePath(sale), map[string]any{"buyer_id": "alice", "quantity": 2})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))

	var receipt struct {
		Units          int    `json:"units"`
		RemainingStock int    `json:"remaining_stock"`
		TotalPrice     string `json:"total_price"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &receipt))
	assert.Equal(t, 2, receipt.Units)
	assert.Equal(t, 1, receipt.RemainingStock)
	assert.Equal(t, "600", receipt.TotalPrice)

	rec, env = do(t, h, http.MethodPost, purchasePath(sale), map[string]any{"buyer_id": "alice", "quantity": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "PerUserLimitExceeded", env.Code)

	rec, env = do(t, h, http.MethodPost, purchasePath(sale), map[string]any{"buyer_id": "bob", "quantity": 2})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "OutOfStock", env.Code)

	rec, env = do(t, h, http.MethodPost, purchasePath(sale), map[string]any{"buyer_id": "bob", "quantity": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "InvalidQuantity", env.Code)

	rec, env = do(t, h, http.MethodGet,
		fmt.Sprintf("/flash-sales/%s/products/%s/buyers/alice", sale.ID, sale.Products[0].ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var claim use_cases.BuyerClaim
	require.NoError(t, json.Unmarshal(env.Data, &claim))
	assert.Equal(t, 2, claim.UnitsClaimed)
	assert.Zero(t, claim.RemainingAllowance)
}

func TestServer_IdempotencyKeyHeader(t *testing.T) {
	h := newTestHandler(t)
	sale := createSale(t, h, 10, 5)
	body := map[string]any{"buyer_id": "alice", "quantity": 2}

	first, firstEnv := do(t, h, http.MethodPost, purchasePath(sale), body, handlers.IdempotencyKeyHeader, "order-1")
	require.Equal(t, http.StatusOK, first.Code)
	second, secondEnv := do(t, h, http.MethodPost, purchasePath(sale), body, handlers.IdempotencyKeyHeader, "order-1")
	require.Equal(t, http.StatusOK, second.Code)
	assert.JSONEq(t, string(firstEnv.Data), string(secondEnv.Data))

	rec, env := do(t, h, http.MethodGet, "/flash-sales/"+sale.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var current handlers.SaleResponse
	require.NoError(t, json.Unmarshal(env.Data, &current))
	assert.Equal(t, 2, current.SoldQuantity)
}

func TestServer_Validation(t *testing.T) {
	h := newTestHandler(t)

	rec, env := do(t, h, http.MethodPost, "/flash-sales", map[string]any{"title": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "ValidationFailed", env.Code)
	assert.Contains(t, env.Errors, "title")

	sale := createSale(t, h, 3, 2)
	rec, env = do(t, h, http.MethodPost, purchasePath(sale), map[string]any{"quantity": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, env.Errors, "buyer_id")

	rec, env = do(t, h, http.MethodPost, purchasePath(sale), map[string]any{"buyer_id": "alice", "quantity": 3_000_000_000})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "ValidationFailed", env.Code)
	assert.Contains(t, env.Errors, "quantity")

	rec, env = do(t, h, http.MethodPost, purchasePath(sale), map[string]any{"buyer_id": "alice", "unknown": true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "ValidationFailed", env.Code)
}

func TestServer_NotFound(t *testing.T) {
	h := newTestHandler(t)

	rec, env := do(t, h, http.MethodGet, "/flash-sales/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NotFound", env.Code)

	rec, env = do(t, h, http.MethodPost, "/flash-sales/missing/products/p1/purchase", map[string]any{"buyer_id": "alice", "quantity": 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NotFound", env.Code)
}

func TestServer_AnalyticsAndViews(t *testing.T) {
	h := newTestHandler(t)
	sale := createSale(t, h, 3, 2)

	rec, _ := do(t, h, http.MethodPost, "/flash-sales/"+sale.ID+"/view", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec, _ = do(t, h, http.MethodPost, purchasePath(sale), map[string]any{"buyer_id": "alice", "quantity": 1})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env := do(t, h, http.MethodGet, "/flash-sales/analytics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var report use_cases.AnalyticsReport
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.Equal(t, int64(1), report.TotalViews)
	assert.Equal(t, int64(1), report.TotalSales)
	assert.Equal(t, 1.0, report.ConversionRate)
}

func TestServer_DeleteSale(t *testing.T) {
	h := newTestHandler(t)
	sale := createSale(t, h, 3, 2)

	rec, _ := do(t, h, http.MethodPost, purchasePath(sale), map[string]any{"buyer_id": "alice", "quantity": 1})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env := do(t, h, http.MethodDelete, "/flash-sales/"+sale.ID, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "SaleHasSales", env.Code)

	fresh := createSale(t, h, 3, 2)
	rec, _ = do(t, h, http.MethodDelete, "/flash-sales/"+fresh.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestServer_HealthAndRequestID(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(middleware.RequestIDHeader, "trace-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "trace-123", rec.Header().Get(middleware.RequestIDHeader))
	assert.Contains(t, rec.Body.String(), `"database":"DISABLED"`)
}
