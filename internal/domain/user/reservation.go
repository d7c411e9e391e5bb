package user

import (
	"fmt"
	"time"

	domainErrors "github.com/yuzvak/flashsale-engine/internal/domain/errors"
)

// Reservation is the running count of units one buyer holds on one flash sale
// product.
type Reservation struct {
	BuyerID            string
	FlashSaleProductID string
	UnitsClaimed       int
	Version            int64
	LastUpdatedAt      time.Time
}

func NewReservation(buyerID, flashSaleProductID string) *Reservation {
	return &Reservation{
		BuyerID:            buyerID,
		FlashSaleProductID: flashSaleProductID,
	}
}

func (r *Reservation) CanClaim(units, maxPerUser int) bool {
	return units >= 1 && units <= maxPerUser-r.UnitsClaimed
}

// Claim returns the total the reservation would hold after claiming units, or
// ErrPerUserLimitExceeded. The receiver is not modified.
func (r *Reservation) Claim(units, maxPerUser int) (int, error) {
	if units < 1 {
		return r.UnitsClaimed, domainErrors.ErrInvalidQuantity
	}

	if !r.CanClaim(units, maxPerUser) {
		return r.UnitsClaimed, fmt.Errorf("%w: holds %d of %d, requested %d",
			domainErrors.ErrPerUserLimitExceeded, r.UnitsClaimed, maxPerUser, units)
	}

	return r.UnitsClaimed + units, nil
}

// Release returns the total after giving units back, floored at zero.
func (r *Reservation) Release(units int) int {
	next := r.UnitsClaimed - units
	if next < 0 {
		return 0
	}
	return next
}
