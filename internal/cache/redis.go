package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisTTL = 24 * time.Hour

// redisSetScript writes a hash field only while the circle's generation
// still matches the one the caller read.
//
// KEYS[1] = generation key, KEYS[2] = totals hash
// ARGV[1] = expected generation, ARGV[2] = field, ARGV[3] = value, ARGV[4] = ttl seconds
var redisSetScript = redis.NewScript(`
local gen = redis.call("GET", KEYS[1]) or "0"
if gen ~= ARGV[1] then
	return 0
end
redis.call("HSET", KEYS[2], ARGV[2], ARGV[3])
redis.call("EXPIRE", KEYS[2], tonumber(ARGV[4]))
return 1
`)

// Redis is a Cache shared between processes. Each circle is one hash whose
// fields are window keys plus a generation counter. Both keys share a hash
// tag so the script stays on one cluster slot.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis connects to the Redis server at addr.
func NewRedis(addr, password string, db int) *Redis {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Redis{client: rdb, prefix: "frisfocus:"}
}

func (r *Redis) key(circleID int64) string {
	return fmt.Sprintf("%s{%d}:totals", r.prefix, circleID)
}

func (r *Redis) genKey(circleID int64) string {
	return fmt.Sprintf("%s{%d}:gen", r.prefix, circleID)
}

// Ping checks the connection.
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (r *Redis) Get(ctx context.Context, circleID int64, key string) ([]byte, bool, error) {
	v, err := r.client.HGet(ctx, r.key(circleID), key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis hget: %w", err)
	}
	return v, true, nil
}

func (r *Redis) Generation(ctx context.Context, circleID int64) (uint64, error) {
	gen, err := r.client.Get(ctx, r.genKey(circleID)).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get generation: %w", err)
	}
	return gen, nil
}

func (r *Redis) Set(ctx context.Context, circleID int64, gen uint64, key string, value []byte) error {
	keys := []string{r.genKey(circleID), r.key(circleID)}
	err := redisSetScript.Run(ctx, r.client, keys,
		strconv.FormatUint(gen, 10), key, value, int64(redisTTL/time.Second)).Err()
	if err != nil {
		return fmt.Errorf("redis conditional hset: %w", err)
	}
	return nil
}

func (r *Redis) Invalidate(ctx context.Context, circleID int64) error {
	pipe := r.client.TxPipeline()
	pipe.Incr(ctx, r.genKey(circleID))
	pipe.Del(ctx, r.key(circleID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis invalidate: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}
