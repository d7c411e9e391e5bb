package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yuzvak/flashsale-engine/internal/application/ports"
	"github.com/yuzvak/flashsale-engine/internal/domain/sale"
	"github.com/yuzvak/flashsale-engine/internal/infrastructure/bloom"
	"github.com/yuzvak/flashsale-engine/internal/infrastructure/monitoring"
	"github.com/yuzvak/flashsale-engine/internal/pkg/logger"
)

const receiptBloomKey = "bloom:idempotency_keys"

// ReceiptCache fronts the durable receipt store. The bloom filter only decides
// whether the cache is worth reading; a miss always falls through to the
// durable store.
type ReceiptCache struct {
	client *redis.Client
	seen   *bloom.RedisBloomFilter
	next   ports.ReceiptStore
	ttl    time.Duration
	log    *logger.Logger
}

func NewReceiptCache(conn *Connection, next ports.ReceiptStore, ttl time.Duration, expectedReceipts uint64, log *logger.Logger) *ReceiptCache {
	client := conn.GetClient()
	return &ReceiptCache{
		client: client,
		seen:   bloom.NewRedisBloomFilterWithExpectedItems(client, receiptBloomKey, expectedReceipts, 0.01),
		next:   next,
		ttl:    ttl,
		log:    log,
	}
}

func (c *ReceiptCache) GetReceipt(ctx context.Context, key sale.IdempotencyKey) (*sale.Receipt, error) {
	seen, err := c.seen.Contains(ctx, key.String())
	if err != nil {
		c.log.Warn("Bloom filter lookup failed", "error", err)
	} else {
		monitoring.RecordBloomLookup("idempotency_keys", seen)
	}

	if seen {
		if receipt, err := c.cached(ctx, key); err != nil {
			c.log.Warn("Receipt cache read failed", "error", err, "key", key.String())
		} else if receipt != nil {
			return receipt, nil
		}
	}

	receipt, err := c.next.GetReceipt(ctx, key)
	if err != nil || receipt == nil {
		return receipt, err
	}

	c.remember(ctx, key, receipt)
	return receipt, nil
}

func (c *ReceiptCache) SaveReceipt(ctx context.Context, key sale.IdempotencyKey, receipt *sale.Receipt) error {
	if err := c.next.SaveReceipt(ctx, key, receipt); err != nil {
		return err
	}

	c.remember(ctx, key, receipt)
	return nil
}

func (c *ReceiptCache) cached(ctx context.Context, key sale.IdempotencyKey) (*sale.Receipt, error) {
	payload, err := c.client.Get(ctx, receiptKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var receipt sale.Receipt
	if err := json.Unmarshal(payload, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (c *ReceiptCache) remember(ctx context.Context, key sale.IdempotencyKey, receipt *sale.Receipt) {
	payload, err := json.Marshal(receipt)
	if err != nil {
		c.log.Error("Failed to encode receipt", "error", err, "receipt_id", receipt.ID)
		return
	}

	if err := c.client.SetNX(ctx, receiptKey(key), payload, c.ttl).Err(); err != nil {
		c.log.Warn("Failed to cache receipt", "error", err, "receipt_id", receipt.ID)
		return
	}

	if err := c.seen.Add(ctx, key.String()); err != nil {
		c.log.Warn("Failed to add key to bloom filter", "error", err)
	}
}

func receiptKey(key sale.IdempotencyKey) string {
	return "receipt:" + key.String()
}
