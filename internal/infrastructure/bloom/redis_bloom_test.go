package bloom

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuzvak/flashsale-engine/internal/pkg/bloom"
)

func TestRedisBloomFilter(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	bf := NewRedisBloomFilterWithExpectedItems(client, "bloom:test", 200, 0.01)

	for i := 0; i < 200; i++ {
		require.NoError(t, bf.Add(ctx, fmt.Sprintf("key-%d", i)))
	}

	for i := 0; i < 200; i++ {
		ok, err := bf.Contains(ctx, fmt.Sprintf("key-%d", i))
		require.NoError(t, err)
		assert.True(t, ok)
	}

	t.Run("agrees with the in-process filter", func(t *testing.T) {
		m, k := bloom.OptimalParameters(200, 0.01)
		local := bloom.NewFilter(m, k)
		for i := 0; i < 200; i++ {
			local.Add(fmt.Sprintf("key-%d", i))
		}

		for i := 0; i < 500; i++ {
			candidate := fmt.Sprintf("candidate-%d", i)
			remote, err := bf.Contains(ctx, candidate)
			require.NoError(t, err)
			assert.Equal(t, local.Contains(candidate), remote, candidate)
		}
	})

	require.NoError(t, bf.Clear(ctx))
	ok, err := bf.Contains(ctx, "key-1")
	require.NoError(t, err)
	assert.False(t, ok)
}
