package bloom

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/yuzvak/flashsale-engine/internal/pkg/bloom"
)

// RedisBloomFilter stores the bitset in a Redis string so every instance
// shares it. Bit positions come from pkg/bloom, so it agrees with the
// in-process filter.
type RedisBloomFilter struct {
	client *redis.Client
	key    string
	m      uint64
	k      uint64
}

func NewRedisBloomFilter(client *redis.Client, key string, m, k uint64) *RedisBloomFilter {
	return &RedisBloomFilter{
		client: client,
		key:    key,
		m:      m,
		k:      k,
	}
}

func NewRedisBloomFilterWithExpectedItems(client *redis.Client, key string, expectedItems uint64, falsePositiveProb float64) *RedisBloomFilter {
	m, k := bloom.OptimalParameters(expectedItems, falsePositiveProb)
	return NewRedisBloomFilter(client, key, m, k)
}

func (bf *RedisBloomFilter) Add(ctx context.Context, element string) error {
	pipe := bf.client.Pipeline()
	for _, pos := range bloom.Positions(element, bf.m, bf.k) {
		pipe.SetBit(ctx, bf.key, int64(pos), 1)
	}

	_, err := pipe.Exec(ctx)
	return err
}

func (bf *RedisBloomFilter) Contains(ctx context.Context, element string) (bool, error) {
	positions := bloom.Positions(element, bf.m, bf.k)

	pipe := bf.client.Pipeline()
	cmds := make([]*redis.IntCmd, len(positions))
	for i, pos := range positions {
		cmds[i] = pipe.GetBit(ctx, bf.key, int64(pos))
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}

	for _, cmd := range cmds {
		if cmd.Val() == 0 {
			return false, nil
		}
	}
	return true, nil
}

func (bf *RedisBloomFilter) Clear(ctx context.Context) error {
	return bf.client.Del(ctx, bf.key).Err()
}
