package ports

import "context"

// StockLedger owns sold quantities. TryReserve is all-or-nothing and returns
// the new sold total.
type StockLedger interface {
	TryReserve(ctx context.Context, flashSaleProductID string, units int) (int, error)
	SoldQuantity(ctx context.Context, flashSaleProductID string) (int, error)
}

// QuotaTracker owns per-buyer claimed units. Unclaim is the compensating
// action for a claim whose stock reservation failed.
type QuotaTracker interface {
	TryClaim(ctx context.Context, buyerID, flashSaleProductID string, units, maxPerUser int) (int, error)
	Unclaim(ctx context.Context, buyerID, flashSaleProductID string, units int) (int, error)
	Claimed(ctx context.Context, buyerID, flashSaleProductID string) (int, error)
}
