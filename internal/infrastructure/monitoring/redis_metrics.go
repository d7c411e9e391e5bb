package monitoring

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisHook times every command and labels it with the key namespace
// ("lock", "receipt", "views", "bloom") so hot paths can be told apart.
type RedisHook struct{}

func (RedisHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmd)
		observeRedis(cmd.Name(), keyspace(cmd), start, err)
		return err
	}
}

func (RedisHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmds)

		space := "none"
		if len(cmds) > 0 {
			space = keyspace(cmds[0])
		}
		observeRedis("pipeline", space, start, err)
		return err
	}
}

func (RedisHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		start := time.Now()
		conn, err := next(ctx, network, addr)
		observeRedis("dial", "none", start, err)
		return conn, err
	}
}

func InstrumentRedisClient(client *redis.Client) *redis.Client {
	client.AddHook(RedisHook{})
	return client
}

func observeRedis(command, space string, start time.Time, err error) {
	RedisCommandDuration.WithLabelValues(command, space).Observe(time.Since(start).Seconds())
	if err != nil && !errors.Is(err, redis.Nil) {
		RedisCommandErrorsTotal.WithLabelValues(command, space).Inc()
	}
}

// keyspace returns the prefix of the first key argument. EVALSHA and EVAL
// carry the script before the key count, so their key sits at index 3.
func keyspace(cmd redis.Cmder) string {
	args := cmd.Args()
	idx := 1
	switch strings.ToLower(cmd.Name()) {
	case "eval", "evalsha":
		idx = 3
	}
	if len(args) <= idx {
		return "none"
	}

	key, ok := args[idx].(string)
	if !ok {
		return "none"
	}
	if prefix, _, found := strings.Cut(key, ":"); found {
		return prefix
	}
	return "other"
}
