package sale

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainErrors "github.com/yuzvak/flashsale-engine/internal/domain/errors"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestProduct(t *testing.T, id string, stock, maxPerUser int) *Product {
	t.Helper()
	p, err := NewProduct(id, "sku-"+id, "Product "+id, decimal.NewFromInt(100), decimal.NewFromInt(60), stock, maxPerUser, t0)
	require.NoError(t, err)
	return p
}

func newTestSale(t *testing.T, start, end time.Time, products ...*Product) *FlashSale {
	t.Helper()
	if len(products) == 0 {
		products = []*Product{newTestProduct(t, "p1", 10, 2)}
	}
	s, err := NewFlashSale("s1", "Spring sale", "", start, end, false, products, t0)
	require.NoError(t, err)
	return s
}

func TestNewFlashSale(t *testing.T) {
	t.Run("rejects inverted window", func(t *testing.T) {
		_, err := NewFlashSale("s1", "x", "", t0, t0, false, []*Product{newTestProduct(t, "p1", 1, 1)}, t0)
		assert.ErrorIs(t, err, domainErrors.ErrInvalidSale)
	})

	t.Run("rejects blank title", func(t *testing.T) {
		_, err := NewFlashSale("s1", "   ", "", t0, t0.Add(time.Hour), false, []*Product{newTestProduct(t, "p1", 1, 1)}, t0)
		assert.ErrorIs(t, err, domainErrors.ErrInvalidSale)
	})

	t.Run("rejects duplicate catalog product", func(t *testing.T) {
		a := newTestProduct(t, "p1", 1, 1)
		b := newTestProduct(t, "p2", 1, 1)
		b.ProductID = a.ProductID
		_, err := NewFlashSale("s1", "x", "", t0, t0.Add(time.Hour), false, []*Product{a, b}, t0)
		assert.ErrorIs(t, err, domainErrors.ErrInvalidSale)
	})

	t.Run("requires products", func(t *testing.T) {
		_, err := NewFlashSale("s1", "x", "", t0, t0.Add(time.Hour), false, nil, t0)
		assert.ErrorIs(t, err, domainErrors.ErrInvalidSale)
	})

	t.Run("assigns sale id and positions", func(t *testing.T) {
		s := newTestSale(t, t0, t0.Add(time.Hour), newTestProduct(t, "p1", 1, 1), newTestProduct(t, "p2", 1, 1))
		assert.True(t, s.IsActive)
		for i, p := range s.Products {
			assert.Equal(t, "s1", p.FlashSaleID)
			assert.Equal(t, i, p.Position)
		}
	})
}

func TestNewProduct(t *testing.T) {
	tests := []struct {
		name       string
		original   int64
		salePrice  int64
		stock      int
		maxPerUser int
	}{
		{"zero sale price", 100, 0, 1, 1},
		{"sale price not discounted", 100, 100, 1, 1},
		{"negative stock", 100, 50, -1, 1},
		{"zero per-user cap", 100, 50, 1, 0},
		{"stock beyond column range", 100, 50, MaxUnits + 1, 1},
		{"per-user cap beyond column range", 100, 50, 1, MaxUnits + 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewProduct("p1", "sku", "n", decimal.NewFromInt(tc.original), decimal.NewFromInt(tc.salePrice), tc.stock, tc.maxPerUser, t0)
			assert.ErrorIs(t, err, domainErrors.ErrInvalidSale)
		})
	}

	t.Run("discount percentage", func(t *testing.T) {
		p, err := NewProduct("p1", "sku", "n", decimal.NewFromInt(300), decimal.NewFromInt(200), 0, 1, t0)
		require.NoError(t, err)
		assert.Equal(t, "33.33", p.DiscountPercentage().String())
		assert.True(t, p.IsSoldOut())
	})
}

func TestNextSoldQuantity(t *testing.T) {
	next, err := NextSoldQuantity(3, 5, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, next)

	_, err = NextSoldQuantity(4, 5, 2)
	assert.ErrorIs(t, err, domainErrors.ErrOutOfStock)

	_, err = NextSoldQuantity(0, 5, 0)
	assert.ErrorIs(t, err, domainErrors.ErrInvalidQuantity)

	next, err = NextSoldQuantity(1, 3, math.MaxInt)
	assert.ErrorIs(t, err, domainErrors.ErrOutOfStock)
	assert.Equal(t, 1, next)
}

func TestIsCurrentlyActive(t *testing.T) {
	s := newTestSale(t, t0, t0.Add(time.Hour))

	assert.False(t, IsCurrentlyActive(s, t0.Add(-time.Nanosecond)))
	assert.True(t, IsCurrentlyActive(s, t0), "start is inclusive")
	assert.True(t, IsCurrentlyActive(s, t0.Add(59*time.Minute)))
	assert.False(t, IsCurrentlyActive(s, t0.Add(time.Hour)), "end is exclusive")

	s.IsActive = false
	assert.False(t, IsCurrentlyActive(s, t0))

	s.IsActive, s.Draft = true, true
	assert.False(t, IsCurrentlyActive(s, t0))

	assert.False(t, IsCurrentlyActive(nil, t0))
}

func TestState(t *testing.T) {
	s := newTestSale(t, t0, t0.Add(time.Hour))

	assert.Equal(t, StateScheduled, s.State(t0.Add(-time.Minute)))
	assert.Equal(t, StateActive, s.State(t0))
	assert.Equal(t, StateEnded, s.State(t0.Add(time.Hour)))

	s.Toggle(t0)
	assert.Equal(t, StateDisabled, s.State(t0), "disabled overrides the schedule")
	s.Toggle(t0)
	assert.Equal(t, StateActive, s.State(t0))

	s.Draft = true
	assert.Equal(t, StateDraft, s.State(t0))

	_, ok := ParseState("bogus")
	assert.False(t, ok)
}

func TestPublish(t *testing.T) {
	s, err := NewFlashSale("s1", "x", "", t0, t0.Add(time.Hour), true, []*Product{newTestProduct(t, "p1", 1, 1)}, t0)
	require.NoError(t, err)

	require.NoError(t, s.Publish(t0.Add(-time.Minute)))
	assert.Equal(t, StateScheduled, s.State(t0.Add(-time.Minute)))

	assert.ErrorIs(t, s.Publish(t0), domainErrors.ErrInvalidTransition, "already published")

	late, err := NewFlashSale("s2", "x", "", t0, t0.Add(time.Hour), true, []*Product{newTestProduct(t, "p1", 1, 1)}, t0)
	require.NoError(t, err)
	assert.ErrorIs(t, late.Publish(t0.Add(2*time.Hour)), domainErrors.ErrInvalidTransition)
}

func TestReschedule(t *testing.T) {
	t.Run("active sale cannot move", func(t *testing.T) {
		s := newTestSale(t, t0, t0.Add(time.Hour))
		err := s.Reschedule(t0.Add(time.Hour), t0.Add(2*time.Hour), t0.Add(time.Minute))
		assert.ErrorIs(t, err, domainErrors.ErrSaleFrozen)
	})

	t.Run("ended sale becomes scheduled and keeps sold counts", func(t *testing.T) {
		s := newTestSale(t, t0, t0.Add(time.Hour))
		s.Products[0].SoldQuantity = 3
		now := t0.Add(2 * time.Hour)

		require.NoError(t, s.Reschedule(now.Add(time.Hour), now.Add(2*time.Hour), now))
		assert.Equal(t, StateScheduled, s.State(now))
		assert.Equal(t, 3, s.SoldQuantity())
	})

	t.Run("end must be in the future", func(t *testing.T) {
		s := newTestSale(t, t0, t0.Add(time.Hour))
		now := t0.Add(3 * time.Hour)
		err := s.Reschedule(t0.Add(time.Hour), t0.Add(2*time.Hour), now)
		assert.ErrorIs(t, err, domainErrors.ErrInvalidSale)
	})

	t.Run("unchanged window is a no-op even while active", func(t *testing.T) {
		s := newTestSale(t, t0, t0.Add(time.Hour))
		assert.NoError(t, s.Reschedule(t0, t0.Add(time.Hour), t0.Add(time.Minute)))
	})
}

func TestProductEdits(t *testing.T) {
	terms := ProductTerms{
		OriginalPrice:      decimal.NewFromInt(100),
		SalePrice:          decimal.NewFromInt(40),
		StockQuantity:      20,
		MaxQuantityPerUser: 3,
	}

	t.Run("scheduled sale accepts new terms", func(t *testing.T) {
		s := newTestSale(t, t0, t0.Add(time.Hour))
		require.NoError(t, s.UpdateProductTerms("p1", terms, t0.Add(-time.Minute)))
		assert.Equal(t, 20, s.Products[0].StockQuantity)
		assert.True(t, s.Products[0].SalePrice.Equal(decimal.NewFromInt(40)))
	})

	t.Run("active sale is frozen", func(t *testing.T) {
		s := newTestSale(t, t0, t0.Add(time.Hour))
		assert.ErrorIs(t, s.UpdateProductTerms("p1", terms, t0), domainErrors.ErrSaleFrozen)
		assert.ErrorIs(t, s.ReplaceProducts([]*Product{newTestProduct(t, "p9", 1, 1)}, t0), domainErrors.ErrSaleFrozen)
	})

	t.Run("disabled active sale is still frozen", func(t *testing.T) {
		s := newTestSale(t, t0, t0.Add(time.Hour))
		s.Toggle(t0)
		assert.ErrorIs(t, s.UpdateProductTerms("p1", terms, t0), domainErrors.ErrSaleFrozen)
	})

	t.Run("stock cannot drop below sold", func(t *testing.T) {
		s := newTestSale(t, t0, t0.Add(time.Hour))
		s.Products[0].SoldQuantity = 5
		low := terms
		low.StockQuantity = 4
		assert.ErrorIs(t, s.UpdateProductTerms("p1", low, t0.Add(-time.Minute)), domainErrors.ErrInvalidSale)
	})

	t.Run("replace refused once sold", func(t *testing.T) {
		s := newTestSale(t, t0, t0.Add(time.Hour))
		s.Products[0].SoldQuantity = 1
		err := s.ReplaceProducts([]*Product{newTestProduct(t, "p9", 1, 1)}, t0.Add(-time.Minute))
		assert.ErrorIs(t, err, domainErrors.ErrSaleHasSales)
	})

	t.Run("details editable in every state", func(t *testing.T) {
		s := newTestSale(t, t0, t0.Add(time.Hour))
		require.NoError(t, s.UpdateDetails("  New title ", "desc", t0))
		assert.Equal(t, "New title", s.Title)
		assert.ErrorIs(t, s.UpdateDetails("", "desc", t0), domainErrors.ErrInvalidSale)
	})
}

func TestPurchaseService(t *testing.T) {
	svc := NewPurchaseService()
	s := newTestSale(t, t0, t0.Add(time.Hour))
	p := s.Products[0]

	assert.NoError(t, svc.ValidatePurchase(s, p, 1, t0))
	assert.ErrorIs(t, svc.ValidatePurchase(s, p, 1, t0.Add(-time.Second)), domainErrors.ErrSaleNotActive)
	assert.ErrorIs(t, svc.ValidatePurchase(s, p, 0, t0.Add(-time.Second)), domainErrors.ErrSaleNotActive, "window is checked before quantity")
	assert.ErrorIs(t, svc.ValidatePurchase(s, p, 0, t0), domainErrors.ErrInvalidQuantity)

	other := newTestProduct(t, "p2", 1, 1)
	other.FlashSaleID = "another"
	assert.ErrorIs(t, svc.ValidatePurchase(s, other, 1, t0), domainErrors.ErrProductNotFound)

	key := IdempotencyKey{BuyerID: "alice", FlashSaleProductID: p.ID, Key: "k1"}
	receipt := svc.BuildReceipt("r1", key, s, p, 2, 7, t0)
	assert.Equal(t, "alice", receipt.BuyerID)
	assert.Equal(t, 3, receipt.RemainingStock)
	assert.True(t, receipt.TotalPrice.Equal(decimal.NewFromInt(120)))
	assert.Equal(t, "alice:p1:k1", key.String())
}

func TestListFilterMatches(t *testing.T) {
	s := newTestSale(t, t0, t0.Add(time.Hour))

	assert.True(t, ListFilter{Search: "SPRING", Now: t0}.Matches(s))
	assert.False(t, ListFilter{Search: "winter", Now: t0}.Matches(s))
	assert.True(t, ListFilter{State: StateActive, Now: t0}.Matches(s))
	assert.False(t, ListFilter{State: StateEnded, Now: t0}.Matches(s))

	assert.Equal(t, 0.0, MetricsSnapshot{}.ConversionRate())
	assert.Equal(t, 0.25, MetricsSnapshot{TotalViews: 4, TotalSales: 1}.ConversionRate())
}
