package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultRedisPrefix = "arcana:rl:"

// takeScript mirrors advance(). KEYS[1] is a hash with the window start (s,
// unix ms) and count (c). ARGV: now ms, window ms, limit.
var takeScript = redis.NewScript(`
local state = redis.call('HMGET', KEYS[1], 's', 'c')
local start = tonumber(state[1])
local count = tonumber(state[2])
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

if start == nil or count == nil or now - start >= window then
	redis.call('HSET', KEYS[1], 's', ARGV[1], 'c', 1)
	redis.call('PEXPIRE', KEYS[1], window)
	return {ARGV[1], 1, 1}
end

if count < limit then
	count = redis.call('HINCRBY', KEYS[1], 'c', 1)
	return {state[1], count, 1}
end

return {state[1], count, 0}
`)

// RedisStore shares windows between instances. Each Take is one script
// call, so concurrent requests on the same key are serialized by Redis.
type RedisStore struct {
	client redis.Scripter
	prefix string
}

func NewRedisStore(client redis.Scripter, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Take(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (Window, error) {
	vals, err := takeScript.Run(ctx, s.client, []string{s.prefix + key},
		now.UnixMilli(), window.Milliseconds(), limit,
	).Slice()
	if err != nil {
		return Window{}, fmt.Errorf("ratelimit: redis take: %w", err)
	}
	if len(vals) != 3 {
		return Window{}, fmt.Errorf("ratelimit: unexpected script reply %v", vals)
	}

	start, err := toInt64(vals[0])
	if err != nil {
		return Window{}, err
	}
	count, err := toInt64(vals[1])
	if err != nil {
		return Window{}, err
	}
	allowed, err := toInt64(vals[2])
	if err != nil {
		return Window{}, err
	}

	return Window{
		Start:   time.UnixMilli(start).UTC(),
		Count:   int(count),
		Allowed: allowed == 1,
	}, nil
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case string:
		out, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("ratelimit: bad script value %q: %w", n, err)
		}
		return out, nil
	default:
		return 0, fmt.Errorf("ratelimit: unexpected script value %T", v)
	}
}
