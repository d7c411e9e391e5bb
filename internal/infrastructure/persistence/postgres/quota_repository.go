package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	domainErrors "github.com/yuzvak/flashsale-engine/internal/domain/errors"
	"github.com/yuzvak/flashsale-engine/internal/domain/user"
	"github.com/yuzvak/flashsale-engine/internal/infrastructure/monitoring"
)

// QuotaRepository tracks units claimed per (buyer, product) in
// purchase_reservations using the same version CAS as the stock ledger.
type QuotaRepository struct {
	db         *sql.DB
	maxRetries int
}

func NewQuotaRepository(conn *Connection, maxRetries int) *QuotaRepository {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &QuotaRepository{db: conn.GetDB(), maxRetries: maxRetries}
}

func (r *QuotaRepository) TryClaim(ctx context.Context, buyerID, flashSaleProductID string, units, maxPerUser int) (int, error) {
	for attempt := 0; attempt < r.maxRetries; attempt++ {
		reservation, err := r.load(ctx, buyerID, flashSaleProductID)
		if err != nil {
			return 0, err
		}

		next, err := reservation.Claim(units, maxPerUser)
		if err != nil {
			return reservation.UnitsClaimed, err
		}

		var res sql.Result
		if reservation.Version == 0 {
			res, err = monitoring.InstrumentExec(ctx, r.db, "INSERT", "purchase_reservations", `
				INSERT INTO purchase_reservations (buyer_id, flash_sale_product_id, units_claimed, version, last_updated_at)
				VALUES ($1, $2, $3, 1, NOW())
				ON CONFLICT (buyer_id, flash_sale_product_id) DO NOTHING`,
				buyerID, flashSaleProductID, next,
			)
		} else {
			res, err = monitoring.InstrumentExec(ctx, r.db, "UPDATE", "purchase_reservations", `
				UPDATE purchase_reservations
				SET units_claimed = $1, version = version + 1, last_updated_at = NOW()
				WHERE buyer_id = $2 AND flash_sale_product_id = $3 AND version = $4`,
				next, buyerID, flashSaleProductID, reservation.Version,
			)
		}
		if err != nil {
			return 0, mapConstraintError(err)
		}

		if n, err := res.RowsAffected(); err != nil {
			return 0, err
		} else if n == 1 {
			return next, nil
		}

		monitoring.RecordCASRetry("quota")
	}

	return 0, fmt.Errorf("%w: quota of %s on %s", domainErrors.ErrConcurrencyConflict, buyerID, flashSaleProductID)
}

// Unclaim is not bounded by maxRetries; it runs until the decrement lands or
// ctx ends.
func (r *QuotaRepository) Unclaim(ctx context.Context, buyerID, flashSaleProductID string, units int) (int, error) {
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		reservation, err := r.load(ctx, buyerID, flashSaleProductID)
		if err != nil {
			return 0, err
		}
		if reservation.Version == 0 {
			return 0, nil
		}

		next := reservation.Release(units)
		res, err := monitoring.InstrumentExec(ctx, r.db, "UPDATE", "purchase_reservations", `
			UPDATE purchase_reservations
			SET units_claimed = $1, version = version + 1, last_updated_at = NOW()
			WHERE buyer_id = $2 AND flash_sale_product_id = $3 AND version = $4`,
			next, buyerID, flashSaleProductID, reservation.Version,
		)
		if err != nil {
			return 0, err
		}

		if n, err := res.RowsAffected(); err != nil {
			return 0, err
		} else if n == 1 {
			return next, nil
		}

		monitoring.RecordCASRetry("quota")
	}
}

func (r *QuotaRepository) Claimed(ctx context.Context, buyerID, flashSaleProductID string) (int, error) {
	reservation, err := r.load(ctx, buyerID, flashSaleProductID)
	if err != nil {
		return 0, err
	}
	return reservation.UnitsClaimed, nil
}

// load returns a zero-version reservation when the buyer has no row yet.
func (r *QuotaRepository) load(ctx context.Context, buyerID, flashSaleProductID string) (*user.Reservation, error) {
	reservation := user.NewReservation(buyerID, flashSaleProductID)

	err := monitoring.InstrumentQueryRow(ctx, r.db, "SELECT", "purchase_reservations", `
		SELECT units_claimed, version, last_updated_at
		FROM purchase_reservations
		WHERE buyer_id = $1 AND flash_sale_product_id = $2`,
		buyerID, flashSaleProductID,
	).Scan(&reservation.UnitsClaimed, &reservation.Version, &reservation.LastUpdatedAt)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	return reservation, nil
}
