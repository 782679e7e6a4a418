package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Compare-and-swap on a single key. ARGV[1] is the expected current value
// ("" means the key must be absent), ARGV[2] the replacement, ARGV[3] the
// TTL in milliseconds (0 = persist). Returns 1 when the swap won.
const casScript = `
local current = redis.call("GET", KEYS[1])
if ARGV[1] == "" then
  if current then
    return 0
  end
else
  if not current or current ~= ARGV[1] then
    return 0
  end
end
if tonumber(ARGV[3]) > 0 then
  redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
else
  redis.call("SET", KEYS[1], ARGV[2])
end
return 1
`

var casLua = redis.NewScript(casScript)

// RedisStore implements [AtomicStore] on a go-redis client. All keys are
// namespaced under a configurable prefix so several tokenward deployments
// can share one Redis.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisStore creates a [RedisStore]. An empty prefix defaults to "tw".
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "tw"
	}
	return &RedisStore{redis: client, prefix: prefix}
}

func (s *RedisStore) key(key string) string {
	return s.prefix + ":" + key
}

// Get returns the value at key, or [ErrNotFound] when absent.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.redis.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return data, nil
}

// Put stores value at key with the given TTL (0 = no expiry).
func (s *RedisStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.redis.Set(ctx, s.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Has reports whether key exists and has not expired.
func (s *RedisStore) Has(ctx context.Context, key string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n > 0, nil
}

// Forget removes key. Removing an absent key is not an error.
func (s *RedisStore) Forget(ctx context.Context, key string) error {
	if err := s.redis.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// CompareAndSwap atomically replaces the value at key when it still equals
// expected (nil expected = create-if-absent). The swap and TTL refresh run
// as one Lua script so concurrent publishers get exactly one winner.
func (s *RedisStore) CompareAndSwap(ctx context.Context, key string, expected, next []byte, ttl time.Duration) (bool, error) {
	res, err := casLua.Run(
		ctx,
		s.redis,
		[]string{s.key(key)},
		string(expected),
		string(next),
		ttl.Milliseconds(),
	).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	code, ok := res.(int64)
	if !ok {
		return false, fmt.Errorf("%w: invalid cas script response", ErrUnavailable)
	}
	return code == 1, nil
}
