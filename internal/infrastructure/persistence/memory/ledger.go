package memory

import (
	"context"
	"fmt"
	"sync/atomic"

	domainErrors "github.com/yuzvak/flashsale-engine/internal/domain/errors"
	"github.com/yuzvak/flashsale-engine/internal/domain/sale"
	"github.com/yuzvak/flashsale-engine/internal/domain/user"
)

func (s *Store) slot(flashSaleProductID string) (*productSlot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	slot, ok := s.products[flashSaleProductID]
	if !ok {
		return nil, domainErrors.ErrProductNotFound
	}
	return slot, nil
}

func (s *Store) TryReserve(ctx context.Context, flashSaleProductID string, units int) (int, error) {
	slot, err := s.slot(flashSaleProductID)
	if err != nil {
		return 0, err
	}

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		sold := slot.sold.Load()
		next, err := sale.NextSoldQuantity(int(sold), int(slot.stock.Load()), units)
		if err != nil {
			return int(sold), err
		}

		if slot.sold.CompareAndSwap(sold, int64(next)) {
			return next, nil
		}
	}

	return 0, fmt.Errorf("%w: stock of %s", domainErrors.ErrConcurrencyConflict, flashSaleProductID)
}

func (s *Store) SoldQuantity(ctx context.Context, flashSaleProductID string) (int, error) {
	slot, err := s.slot(flashSaleProductID)
	if err != nil {
		return 0, err
	}
	return int(slot.sold.Load()), nil
}

func (s *Store) TryClaim(ctx context.Context, buyerID, flashSaleProductID string, units, maxPerUser int) (int, error) {
	claimed := s.claim(buyerID, flashSaleProductID)

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		current := claimed.Load()
		reservation := user.Reservation{
			BuyerID:            buyerID,
			FlashSaleProductID: flashSaleProductID,
			UnitsClaimed:       int(current),
		}

		next, err := reservation.Claim(units, maxPerUser)
		if err != nil {
			return int(current), err
		}

		if claimed.CompareAndSwap(current, int64(next)) {
			return next, nil
		}
	}

	return 0, fmt.Errorf("%w: quota of %s on %s", domainErrors.ErrConcurrencyConflict, buyerID, flashSaleProductID)
}

func (s *Store) Unclaim(ctx context.Context, buyerID, flashSaleProductID string, units int) (int, error) {
	claimed := s.claim(buyerID, flashSaleProductID)

	for {
		current := claimed.Load()
		reservation := user.Reservation{UnitsClaimed: int(current)}
		next := reservation.Release(units)

		if claimed.CompareAndSwap(current, int64(next)) {
			return next, nil
		}
	}
}

func (s *Store) Claimed(ctx context.Context, buyerID, flashSaleProductID string) (int, error) {
	return int(s.claim(buyerID, flashSaleProductID).Load()), nil
}

func (s *Store) claim(buyerID, flashSaleProductID string) *atomic.Int64 {
	return counter(&s.claims, buyerID+":"+flashSaleProductID)
}
