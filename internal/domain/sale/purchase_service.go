package sale

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	domainErrors "github.com/yuzvak/flashsale-engine/internal/domain/errors"
)

type PurchaseService struct{}

func NewPurchaseService() *PurchaseService {
	return &PurchaseService{}
}

// ValidatePurchase runs the stateless checks of a purchase attempt in the
// order the engine reports them: window first, then quantity.
func (s *PurchaseService) ValidatePurchase(sale *FlashSale, product *Product, units int, now time.Time) error {
	if sale == nil || product == nil {
		return errors.New("sale and product cannot be nil")
	}

	if !product.BelongsToSale(sale.ID) {
		return domainErrors.ErrProductNotFound
	}

	if sale.State(now) != StateActive || !IsCurrentlyActive(sale, now) {
		return domainErrors.ErrSaleNotActive
	}

	if units < 1 {
		return domainErrors.ErrInvalidQuantity
	}

	return nil
}

func (s *PurchaseService) BuildReceipt(id string, key IdempotencyKey, sale *FlashSale, product *Product, units, newSoldTotal int, now time.Time) *Receipt {
	remaining := product.StockQuantity - newSoldTotal
	if remaining < 0 {
		remaining = 0
	}

	return &Receipt{
		ID:                 id,
		IdempotencyKey:     key.Key,
		BuyerID:            key.BuyerID,
		FlashSaleID:        sale.ID,
		FlashSaleProductID: product.ID,
		Units:              units,
		UnitPrice:          product.SalePrice,
		TotalPrice:         product.SalePrice.Mul(decimal.NewFromInt(int64(units))),
		RemainingStock:     remaining,
		PurchasedAt:        now,
	}
}
