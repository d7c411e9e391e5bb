package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	domainErrors "github.com/yuzvak/flashsale-engine/internal/domain/errors"
	"github.com/yuzvak/flashsale-engine/internal/domain/sale"
	"github.com/yuzvak/flashsale-engine/internal/infrastructure/monitoring"
)

// MetricsRepository keeps total_views and total_sales on flash_sales.
type MetricsRepository struct {
	db *sql.DB
}

func NewMetricsRepository(conn *Connection) *MetricsRepository {
	return &MetricsRepository{db: conn.GetDB()}
}

func (r *MetricsRepository) RecordView(ctx context.Context, flashSaleID string) error {
	return r.AddViews(ctx, flashSaleID, 1)
}

func (r *MetricsRepository) AddViews(ctx context.Context, flashSaleID string, views int64) error {
	return r.increment(ctx, "total_views", flashSaleID, views)
}

func (r *MetricsRepository) RecordSale(ctx context.Context, flashSaleID string, units int) error {
	return r.increment(ctx, "total_sales", flashSaleID, int64(units))
}

func (r *MetricsRepository) increment(ctx context.Context, column, flashSaleID string, delta int64) error {
	res, err := monitoring.InstrumentExec(ctx, r.db, "UPDATE", "flash_sales",
		"UPDATE flash_sales SET "+column+" = "+column+" + $2 WHERE id = $1", flashSaleID, delta)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domainErrors.ErrSaleNotFound
	}
	return nil
}

func (r *MetricsRepository) Snapshot(ctx context.Context, flashSaleID string) (sale.MetricsSnapshot, error) {
	snapshot := sale.MetricsSnapshot{FlashSaleID: flashSaleID}
	err := monitoring.InstrumentQueryRow(ctx, r.db, "SELECT", "flash_sales",
		"SELECT total_views, total_sales FROM flash_sales WHERE id = $1", flashSaleID,
	).Scan(&snapshot.TotalViews, &snapshot.TotalSales)
	if errors.Is(err, sql.ErrNoRows) {
		return snapshot, domainErrors.ErrSaleNotFound
	}
	return snapshot, err
}

// ReconcileEndedSales resets total_sales to the sum of sold quantities for
// sales that ended before the cutoff. Sales still open are skipped because a
// purchase between its stock reservation and its RecordSale would be counted
// twice.
func (r *MetricsRepository) ReconcileEndedSales(ctx context.Context, endedBefore time.Time) (int64, error) {
	res, err := monitoring.InstrumentExec(ctx, r.db, "UPDATE", "flash_sales", `
		UPDATE flash_sales fs
		SET total_sales = agg.sold
		FROM (
			SELECT flash_sale_id, COALESCE(SUM(sold_quantity), 0) AS sold
			FROM flash_sale_products
			GROUP BY flash_sale_id
		) agg
		WHERE agg.flash_sale_id = fs.id
			AND fs.end_date < $1
			AND fs.total_sales <> agg.sold`, endedBefore)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
