package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainErrors "github.com/yuzvak/flashsale-engine/internal/domain/errors"
	"github.com/yuzvak/flashsale-engine/internal/domain/sale"
	"github.com/yuzvak/flashsale-engine/internal/pkg/logger"
)

func newTestConnection(t *testing.T) (*miniredis.Miniredis, *Connection) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return mr, NewConnectionFromClient(client)
}

func TestLocker(t *testing.T) {
	ctx := context.Background()
	mr, conn := newTestConnection(t)
	a := NewLocker(conn)
	b := NewLocker(conn)

	ok, err := a.DistributedLock(ctx, "purchase:k1", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.DistributedLock(ctx, "purchase:k1", time.Second)
	require.NoError(t, err)
	assert.False(t, ok, "second instance is refused")

	t.Run("release after expiry leaves the new holder alone", func(t *testing.T) {
		mr.FastForward(2 * time.Second)

		ok, err := b.DistributedLock(ctx, "purchase:k1", time.Second)
		require.NoError(t, err)
		require.True(t, ok)

		require.NoError(t, a.ReleaseLock(ctx, "purchase:k1"))
		assert.True(t, mr.Exists("lock:purchase:k1"))

		require.NoError(t, b.ReleaseLock(ctx, "purchase:k1"))
		assert.False(t, mr.Exists("lock:purchase:k1"))
	})

	t.Run("releasing an unknown key is a no-op", func(t *testing.T) {
		assert.NoError(t, a.ReleaseLock(ctx, "never-locked"))
	})
}

type fakeReceiptStore struct {
	receipts map[string]*sale.Receipt
	gets     int
}

func (f *fakeReceiptStore) GetReceipt(ctx context.Context, key sale.IdempotencyKey) (*sale.Receipt, error) {
	f.gets++
	return f.receipts[key.String()], nil
}

func (f *fakeReceiptStore) SaveReceipt(ctx context.Context, key sale.IdempotencyKey, receipt *sale.Receipt) error {
	if _, ok := f.receipts[key.String()]; !ok {
		f.receipts[key.String()] = receipt
	}
	return nil
}

func TestReceiptCache(t *testing.T) {
	ctx := context.Background()
	mr, conn := newTestConnection(t)
	durable := &fakeReceiptStore{receipts: map[string]*sale.Receipt{}}
	cache := NewReceiptCache(conn, durable, time.Hour, 100, logger.NewNop())
	key := sale.IdempotencyKey{BuyerID: "alice", FlashSaleProductID: "p1", Key: "k1"}

	got, err := cache.GetReceipt(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, cache.SaveReceipt(ctx, key, &sale.Receipt{ID: "r1", Units: 2}))
	assert.True(t, mr.Exists("receipt:"+key.String()))

	durable.gets = 0
	got, err = cache.GetReceipt(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "r1", got.ID)
	assert.Zero(t, durable.gets, "served from cache")

	t.Run("wiped redis falls back to the durable store", func(t *testing.T) {
		mr.FlushAll()

		got, err := cache.GetReceipt(ctx, key)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "r1", got.ID)
		assert.True(t, mr.Exists("receipt:"+key.String()), "cache refilled")
	})
}

type fakeAggregator struct {
	views map[string]int64
	sales map[string]int64
}

func (f *fakeAggregator) RecordView(ctx context.Context, id string) error {
	f.views[id]++
	return nil
}

func (f *fakeAggregator) RecordSale(ctx context.Context, id string, units int) error {
	if _, ok := f.sales[id]; !ok {
		return domainErrors.ErrSaleNotFound
	}
	f.sales[id] += int64(units)
	return nil
}

func (f *fakeAggregator) Snapshot(ctx context.Context, id string) (sale.MetricsSnapshot, error) {
	if _, ok := f.sales[id]; !ok {
		return sale.MetricsSnapshot{}, domainErrors.ErrSaleNotFound
	}
	return sale.MetricsSnapshot{FlashSaleID: id, TotalViews: f.views[id], TotalSales: f.sales[id]}, nil
}

func TestBufferedMetrics(t *testing.T) {
	ctx := context.Background()
	_, conn := newTestConnection(t)
	store := &fakeAggregator{views: map[string]int64{"s1": 10}, sales: map[string]int64{"s1": 0}}
	metrics := NewBufferedMetrics(conn, store)

	for i := 0; i < 3; i++ {
		require.NoError(t, metrics.RecordView(ctx, "s1"))
	}
	require.NoError(t, metrics.RecordSale(ctx, "s1", 2))

	snapshot, err := metrics.Snapshot(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(13), snapshot.TotalViews, "persisted plus pending")
	assert.Equal(t, int64(2), snapshot.TotalSales)

	drained, err := metrics.DrainViews(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"s1": 3}, drained)

	drained, err = metrics.DrainViews(ctx)
	require.NoError(t, err)
	assert.Empty(t, drained)

	require.NoError(t, metrics.RestoreViews(ctx, "s1", 3))
	drained, err = metrics.DrainViews(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), drained["s1"])

	_, err = metrics.Snapshot(ctx, "missing")
	assert.ErrorIs(t, err, domainErrors.ErrSaleNotFound)
}
