package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	domainErrors "github.com/yuzvak/flashsale-engine/internal/domain/errors"
	"github.com/yuzvak/flashsale-engine/internal/domain/sale"
	"github.com/yuzvak/flashsale-engine/internal/infrastructure/monitoring"
)

// StockLedger reserves units with optimistic compare-and-swap on the product
// version column. It is the only writer of sold_quantity.
type StockLedger struct {
	db         *sql.DB
	maxRetries int
}

func NewStockLedger(conn *Connection, maxRetries int) *StockLedger {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &StockLedger{db: conn.GetDB(), maxRetries: maxRetries}
}

func (l *StockLedger) TryReserve(ctx context.Context, flashSaleProductID string, units int) (int, error) {
	for attempt := 0; attempt < l.maxRetries; attempt++ {
		var sold, stock int
		var version int64

		err := monitoring.InstrumentQueryRow(ctx, l.db, "SELECT", "flash_sale_products", `
			SELECT sold_quantity, stock_quantity, version
			FROM flash_sale_products
			WHERE id = $1`, flashSaleProductID,
		).Scan(&sold, &stock, &version)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return 0, domainErrors.ErrProductNotFound
			}
			return 0, err
		}

		next, err := sale.NextSoldQuantity(sold, stock, units)
		if err != nil {
			return sold, err
		}

		res, err := monitoring.InstrumentExec(ctx, l.db, "UPDATE", "flash_sale_products", `
			UPDATE flash_sale_products
			SET sold_quantity = $1, version = version + 1, updated_at = NOW()
			WHERE id = $2 AND version = $3`,
			next, flashSaleProductID, version,
		)
		if err != nil {
			return 0, err
		}

		if n, err := res.RowsAffected(); err != nil {
			return 0, err
		} else if n == 1 {
			return next, nil
		}

		monitoring.RecordCASRetry("stock")
	}

	return 0, fmt.Errorf("%w: stock of %s", domainErrors.ErrConcurrencyConflict, flashSaleProductID)
}

func (l *StockLedger) SoldQuantity(ctx context.Context, flashSaleProductID string) (int, error) {
	var sold int
	err := monitoring.InstrumentQueryRow(ctx, l.db, "SELECT", "flash_sale_products",
		"SELECT sold_quantity FROM flash_sale_products WHERE id = $1", flashSaleProductID,
	).Scan(&sold)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domainErrors.ErrProductNotFound
	}
	return sold, err
}
