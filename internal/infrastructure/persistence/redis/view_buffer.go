package redis

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/yuzvak/flashsale-engine/internal/application/ports"
	"github.com/yuzvak/flashsale-engine/internal/domain/sale"
)

const dirtyViewsKey = "views:dirty"

const drainViewsLuaScript = `
	local n = tonumber(redis.call('GET', KEYS[1]) or '0')
	redis.call('DEL', KEYS[1])
	redis.call('SREM', KEYS[2], ARGV[1])
	return n
`

// BufferedMetrics counts views in Redis and leaves sales to the durable
// aggregator. Snapshots add the views not yet flushed.
type BufferedMetrics struct {
	client      *redis.Client
	store       ports.MetricsAggregator
	drainScript *redis.Script
}

func NewBufferedMetrics(conn *Connection, store ports.MetricsAggregator) *BufferedMetrics {
	return &BufferedMetrics{
		client:      conn.GetClient(),
		store:       store,
		drainScript: redis.NewScript(drainViewsLuaScript),
	}
}

func (b *BufferedMetrics) RecordView(ctx context.Context, flashSaleID string) error {
	pipe := b.client.Pipeline()
	pipe.Incr(ctx, viewsKey(flashSaleID))
	pipe.SAdd(ctx, dirtyViewsKey, flashSaleID)
	_, err := pipe.Exec(ctx)
	return err
}

func (b *BufferedMetrics) RecordSale(ctx context.Context, flashSaleID string, units int) error {
	return b.store.RecordSale(ctx, flashSaleID, units)
}

func (b *BufferedMetrics) Snapshot(ctx context.Context, flashSaleID string) (sale.MetricsSnapshot, error) {
	snapshot, err := b.store.Snapshot(ctx, flashSaleID)
	if err != nil {
		return snapshot, err
	}

	pending, err := b.client.Get(ctx, viewsKey(flashSaleID)).Int64()
	if err != nil && err != redis.Nil {
		return snapshot, err
	}

	snapshot.TotalViews += pending
	return snapshot, nil
}

// DrainViews atomically takes the pending count of every dirty sale.
func (b *BufferedMetrics) DrainViews(ctx context.Context) (map[string]int64, error) {
	ids, err := b.client.SMembers(ctx, dirtyViewsKey).Result()
	if err != nil {
		return nil, err
	}

	drained := make(map[string]int64, len(ids))
	for _, id := range ids {
		n, err := b.drainScript.Run(ctx, b.client, []string{viewsKey(id), dirtyViewsKey}, id).Int64()
		if err != nil {
			return drained, err
		}
		if n > 0 {
			drained[id] = n
		}
	}
	return drained, nil
}

// RestoreViews puts back a count that could not be flushed.
func (b *BufferedMetrics) RestoreViews(ctx context.Context, flashSaleID string, views int64) error {
	pipe := b.client.Pipeline()
	pipe.IncrBy(ctx, viewsKey(flashSaleID), views)
	pipe.SAdd(ctx, dirtyViewsKey, flashSaleID)
	_, err := pipe.Exec(ctx)
	return err
}

func viewsKey(flashSaleID string) string {
	return "views:" + flashSaleID
}
