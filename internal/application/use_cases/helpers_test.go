package use_cases

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/yuzvak/flashsale-engine/internal/application/ports"
	"github.com/yuzvak/flashsale-engine/internal/domain/analytics"
	"github.com/yuzvak/flashsale-engine/internal/domain/sale"
	"github.com/yuzvak/flashsale-engine/internal/infrastructure/catalog"
	"github.com/yuzvak/flashsale-engine/internal/infrastructure/persistence/memory"
	"github.com/yuzvak/flashsale-engine/internal/pkg/clock"
	"github.com/yuzvak/flashsale-engine/internal/pkg/logger"
)

var testStart = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

type captureSink struct {
	mu     sync.Mutex
	events []analytics.Event
}

func (s *captureSink) Publish(ctx context.Context, events ...analytics.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	return nil
}

func (s *captureSink) Close() error { return nil }

// flakyReceipts fails the first failures calls to SaveReceipt.
type flakyReceipts struct {
	*memory.ReceiptStore
	mu       sync.Mutex
	failures int
	saves    int
}

func (f *flakyReceipts) SaveReceipt(ctx context.Context, key sale.IdempotencyKey, receipt *sale.Receipt) error {
	f.mu.Lock()
	f.saves++
	fail := f.saves <= f.failures
	f.mu.Unlock()
	if fail {
		return errors.New("receipt table unavailable")
	}
	return f.ReceiptStore.SaveReceipt(ctx, key, receipt)
}

func (s *captureSink) count(eventType analytics.EventType) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

type testEnv struct {
	store     *memory.Store
	clock     *clock.MockClock
	sink      *captureSink
	catalog   *catalog.StaticCatalog
	purchase  *PurchaseUseCase
	admin     *SaleAdminUseCase
	analytics *AnalyticsUseCase
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithReceipts(t, memory.NewReceiptStore(10_000))
}

func newTestEnvWithReceipts(t *testing.T, receipts ports.ReceiptStore) *testEnv {
	t.Helper()

	store := memory.NewStore(100_000)
	clk := clock.NewMockClock(testStart)
	sink := &captureSink{}
	log := logger.NewNop()
	productCatalog := catalog.NewStaticCatalog(ports.CatalogProduct{
		ID:    "sku-tv",
		Name:  "Television",
		Price: decimal.NewFromInt(500),
	})

	purchase := NewPurchaseUseCase(PurchaseDependencies{
		Sales:     store,
		Stock:     store,
		Quota:     store,
		Receipts:  receipts,
		Locker:    memory.NewLocker(clk),
		Metrics:   store,
		Analytics: sink,
		Clock:     clk,
		Tracer:    noop.NewTracerProvider().Tracer("test"),
		Logger:    log,
	}, 5*time.Second, 3)

	return &testEnv{
		store:     store,
		clock:     clk,
		sink:      sink,
		catalog:   productCatalog,
		purchase:  purchase,
		admin:     NewSaleAdminUseCase(store, store, productCatalog, clk, log),
		analytics: NewAnalyticsUseCase(store, store, sink, clk, log),
	}
}

// activeSale creates a sale running from one hour ago to one hour ahead with
// a single product.
func (e *testEnv) activeSale(t *testing.T, stock, maxPerUser int) (saleID, productID string) {
	t.Helper()

	view, err := e.admin.CreateSale(context.Background(), CreateSaleInput{
		Title:     "Flash sale",
		StartDate: testStart.Add(-time.Hour),
		EndDate:   testStart.Add(time.Hour),
		Products: []ProductInput{{
			ProductID:          "sku-tv",
			SalePrice:          decimal.NewFromInt(300),
			StockQuantity:      stock,
			MaxQuantityPerUser: maxPerUser,
		}},
	})
	require.NoError(t, err)
	return view.Sale.ID, view.Sale.Products[0].ID
}
