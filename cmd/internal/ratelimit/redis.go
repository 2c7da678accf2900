package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// DefaultRedisPrefix namespaces rate-limit keys.
const DefaultRedisPrefix = "chatbot:rl"

// INCR and the first-hit PEXPIRE run as one atomic unit.
var incrementScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// RedisStore keeps counters in Redis so that every instance shares them.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore wraps an existing client. An empty prefix uses DefaultRedisPrefix.
func NewRedisStore(client redis.UniversalClient, prefix string) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("ratelimit: nil redis client")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}, nil
}

func (s *RedisStore) key(client string, idx int64) string {
	return s.prefix + ":" + client + ":" + strconv.FormatInt(idx, 10)
}

// Increment implements Store.
func (s *RedisStore) Increment(ctx context.Context, key string, window time.Duration, now time.Time) (Counter, error) {
	const op = "ratelimit.RedisStore.Increment"

	idx, resetAt := windowBounds(window, now)

	ttl := window.Milliseconds()
	if ttl <= 0 {
		ttl = 1
	}

	n, err := incrementScript.Run(ctx, s.client, []string{s.key(key, idx)}, ttl).Int64()
	if err != nil {
		return Counter{}, fmt.Errorf("%s: %w", op, err)
	}
	return Counter{Count: n, ResetAt: resetAt}, nil
}

var _ Store = (*RedisStore)(nil)
