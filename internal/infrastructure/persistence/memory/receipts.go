package memory

import (
	"context"
	"sync"
	"time"

	"github.com/yuzvak/flashsale-engine/internal/domain/sale"
	"github.com/yuzvak/flashsale-engine/internal/pkg/bloom"
	"github.com/yuzvak/flashsale-engine/internal/pkg/clock"
)

type ReceiptStore struct {
	mu       sync.RWMutex
	receipts map[string]*sale.Receipt
	seen     *bloom.Filter
}

func NewReceiptStore(expectedReceipts uint64) *ReceiptStore {
	return &ReceiptStore{
		receipts: make(map[string]*sale.Receipt),
		seen:     bloom.NewFilterWithExpectedItems(expectedReceipts, 0.01),
	}
}

func (r *ReceiptStore) GetReceipt(ctx context.Context, key sale.IdempotencyKey) (*sale.Receipt, error) {
	if !r.seen.Contains(key.String()) {
		return nil, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	receipt, ok := r.receipts[key.String()]
	if !ok {
		return nil, nil
	}
	cp := *receipt
	return &cp, nil
}

// SaveReceipt keeps the first receipt stored under a key.
func (r *ReceiptStore) SaveReceipt(ctx context.Context, key sale.IdempotencyKey, receipt *sale.Receipt) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.receipts[key.String()]; exists {
		return nil
	}

	cp := *receipt
	r.receipts[key.String()] = &cp
	r.seen.Add(key.String())
	return nil
}

// Locker is a process-local stand-in for the Redis lock, with the same
// expiry semantics.
type Locker struct {
	mu    sync.Mutex
	locks map[string]time.Time
	clock clock.Clock
}

func NewLocker(clk clock.Clock) *Locker {
	return &Locker{
		locks: make(map[string]time.Time),
		clock: clk,
	}
}

func (l *Locker) DistributedLock(ctx context.Context, key string, expiration time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if expiresAt, held := l.locks[key]; held && now.Before(expiresAt) {
		return false, nil
	}

	l.locks[key] = now.Add(expiration)
	return true, nil
}

func (l *Locker) ReleaseLock(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.locks, key)
	return nil
}
