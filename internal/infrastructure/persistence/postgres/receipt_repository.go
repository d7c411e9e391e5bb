package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/yuzvak/flashsale-engine/internal/domain/sale"
	"github.com/yuzvak/flashsale-engine/internal/infrastructure/monitoring"
)

// ReceiptRepository is the durable idempotency record. The first receipt
// stored under a key wins.
type ReceiptRepository struct {
	db *sql.DB
}

func NewReceiptRepository(conn *Connection) *ReceiptRepository {
	return &ReceiptRepository{db: conn.GetDB()}
}

func (r *ReceiptRepository) GetReceipt(ctx context.Context, key sale.IdempotencyKey) (*sale.Receipt, error) {
	var rc sale.Receipt
	err := monitoring.InstrumentQueryRow(ctx, r.db, "SELECT", "purchase_receipts", `
		SELECT id, idempotency_key, buyer_id, flash_sale_id, flash_sale_product_id,
			units, unit_price, total_price, remaining_stock, purchased_at
		FROM purchase_receipts
		WHERE scope_key = $1`, key.String(),
	).Scan(
		&rc.ID, &rc.IdempotencyKey, &rc.BuyerID, &rc.FlashSaleID, &rc.FlashSaleProductID,
		&rc.Units, &rc.UnitPrice, &rc.TotalPrice, &rc.RemainingStock, &rc.PurchasedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	rc.PurchasedAt = rc.PurchasedAt.UTC()
	return &rc, nil
}

func (r *ReceiptRepository) SaveReceipt(ctx context.Context, key sale.IdempotencyKey, rc *sale.Receipt) error {
	_, err := monitoring.InstrumentExec(ctx, r.db, "INSERT", "purchase_receipts", `
		INSERT INTO purchase_receipts (scope_key, id, idempotency_key, buyer_id, flash_sale_id,
			flash_sale_product_id, units, unit_price, total_price, remaining_stock, purchased_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (scope_key) DO NOTHING`,
		key.String(), rc.ID, rc.IdempotencyKey, rc.BuyerID, rc.FlashSaleID,
		rc.FlashSaleProductID, rc.Units, rc.UnitPrice, rc.TotalPrice, rc.RemainingStock, rc.PurchasedAt,
	)
	return err
}
