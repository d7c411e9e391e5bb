package ports

import (
	"context"
	"time"

	"github.com/yuzvak/flashsale-engine/internal/domain/sale"
)

type ReceiptStore interface {
	// GetReceipt returns nil, nil when no receipt exists for key.
	GetReceipt(ctx context.Context, key sale.IdempotencyKey) (*sale.Receipt, error)
	SaveReceipt(ctx context.Context, key sale.IdempotencyKey, receipt *sale.Receipt) error
}

type Locker interface {
	DistributedLock(ctx context.Context, key string, expiration time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error
}
