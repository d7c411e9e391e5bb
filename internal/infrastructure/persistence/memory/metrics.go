package memory

import (
	"context"

	domainErrors "github.com/yuzvak/flashsale-engine/internal/domain/errors"
	"github.com/yuzvak/flashsale-engine/internal/domain/sale"
)

func (s *Store) RecordView(ctx context.Context, flashSaleID string) error {
	if !s.exists(flashSaleID) {
		return domainErrors.ErrSaleNotFound
	}
	counter(&s.views, flashSaleID).Add(1)
	return nil
}

func (s *Store) RecordSale(ctx context.Context, flashSaleID string, units int) error {
	if !s.exists(flashSaleID) {
		return domainErrors.ErrSaleNotFound
	}
	counter(&s.totals, flashSaleID).Add(int64(units))
	return nil
}

func (s *Store) Snapshot(ctx context.Context, flashSaleID string) (sale.MetricsSnapshot, error) {
	if !s.exists(flashSaleID) {
		return sale.MetricsSnapshot{}, domainErrors.ErrSaleNotFound
	}

	return sale.MetricsSnapshot{
		FlashSaleID: flashSaleID,
		TotalViews:  counter(&s.views, flashSaleID).Load(),
		TotalSales:  counter(&s.totals, flashSaleID).Load(),
	}, nil
}

func (s *Store) exists(flashSaleID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sales[flashSaleID]
	return ok
}
