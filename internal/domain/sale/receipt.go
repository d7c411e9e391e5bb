package sale

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Receipt struct {
	ID                 string          `json:"id"`
	IdempotencyKey     string          `json:"idempotency_key,omitempty"`
	BuyerID            string          `json:"buyer_id"`
	FlashSaleID        string          `json:"flash_sale_id"`
	FlashSaleProductID string          `json:"flash_sale_product_id"`
	Units              int             `json:"units"`
	UnitPrice          decimal.Decimal `json:"unit_price"`
	TotalPrice         decimal.Decimal `json:"total_price"`
	RemainingStock     int             `json:"remaining_stock"`
	PurchasedAt        time.Time       `json:"purchased_at"`
}

// IdempotencyKey scopes a client token to one buyer and one sale product, so
// two buyers reusing the same token never see each other's receipts.
type IdempotencyKey struct {
	BuyerID            string
	FlashSaleProductID string
	Key                string
}

func (k IdempotencyKey) IsZero() bool {
	return k.Key == ""
}

func (k IdempotencyKey) String() string {
	return fmt.Sprintf("%s:%s:%s", k.BuyerID, k.FlashSaleProductID, k.Key)
}
