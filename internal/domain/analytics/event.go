package analytics

import (
	"time"

	"github.com/shopspring/decimal"
)

type EventType string

const (
	EventPurchaseCommitted EventType = "purchase.committed"
	EventSaleViewed        EventType = "sale.viewed"
)

// Event is what the engine emits to the analytics sink.
type Event struct {
	ID                 string          `json:"id"`
	Type               EventType       `json:"type"`
	FlashSaleID        string          `json:"flash_sale_id"`
	FlashSaleProductID string          `json:"flash_sale_product_id,omitempty"`
	BuyerID            string          `json:"buyer_id,omitempty"`
	ReceiptID          string          `json:"receipt_id,omitempty"`
	Units              int             `json:"units,omitempty"`
	Amount             decimal.Decimal `json:"amount"`
	OccurredAt         time.Time       `json:"occurred_at"`
}

// PartitionKey keeps all events of one sale on the same partition.
func (e Event) PartitionKey() []byte {
	return []byte(e.FlashSaleID)
}
