package redis

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/yuzvak/flashsale-engine/internal/config"
	"github.com/yuzvak/flashsale-engine/internal/infrastructure/monitoring"
)

type Connection struct {
	client *redis.Client
}

func NewConnection(ctx context.Context, cfg config.RedisConfig) (*Connection, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return &Connection{
		client: monitoring.InstrumentRedisClient(client),
	}, nil
}

func NewConnectionFromClient(client *redis.Client) *Connection {
	return &Connection{client: client}
}

func (c *Connection) Close() error {
	return c.client.Close()
}

func (c *Connection) GetClient() *redis.Client {
	return c.client
}
