package ports

import (
	"context"

	"github.com/yuzvak/flashsale-engine/internal/domain/sale"
)

type SaleRepository interface {
	ListSales(ctx context.Context, filter sale.ListFilter) ([]*sale.FlashSale, int, error)
	GetSaleByID(ctx context.Context, id string) (*sale.FlashSale, error)
	CreateSale(ctx context.Context, s *sale.FlashSale) error
	// UpdateSale persists metadata, flags and product terms. It never writes
	// sold quantities; those belong to the StockLedger.
	UpdateSale(ctx context.Context, s *sale.FlashSale) error
	// DeleteSale removes a sale only while none of its products has sold a unit.
	DeleteSale(ctx context.Context, id string) error
}
