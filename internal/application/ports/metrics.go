package ports

import (
	"context"

	"github.com/yuzvak/flashsale-engine/internal/domain/sale"
)

type MetricsAggregator interface {
	RecordView(ctx context.Context, flashSaleID string) error
	RecordSale(ctx context.Context, flashSaleID string, units int) error
	Snapshot(ctx context.Context, flashSaleID string) (sale.MetricsSnapshot, error)
}
