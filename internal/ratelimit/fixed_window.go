// Package ratelimit provides the Redis-backed fixed-window counters that
// throttle the expensive chat and transcript endpoints.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrWithExpiry counts atomically and starts the window's expiry on the
// first hit.
var incrWithExpiry = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// FixedWindow counts requests per key in fixed wall-clock windows. All API
// instances sharing the Redis client see the same counters, so the limit
// holds across replicas.
type FixedWindow struct {
	client *redis.Client
	prefix string
	limit  int
	window time.Duration
}

// NewFixedWindow builds a limiter on an existing Redis client.
func NewFixedWindow(client *redis.Client, prefix string, limit int, window time.Duration) (*FixedWindow, error) {
	if client == nil {
		return nil, errors.New("ratelimit: redis client is required")
	}
	if limit <= 0 || window <= 0 {
		return nil, errors.New("ratelimit: limit and window must be positive")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return nil, errors.New("ratelimit: key prefix is required")
	}
	return &FixedWindow{client: client, prefix: prefix, limit: limit, window: window}, nil
}

// Window returns the window length, for Retry-After headers.
func (l *FixedWindow) Window() time.Duration {
	return l.window
}

// Allow reports whether key still has quota in the current window. Redis
// failures count as a denial so an outage cannot lift the limit.
func (l *FixedWindow) Allow(ctx context.Context, key string) bool {
	key = strings.TrimSpace(key)
	if key == "" {
		key = "unknown"
	}
	windowMs := l.window.Milliseconds()
	slot := time.Now().UnixMilli() / windowMs
	redisKey := fmt.Sprintf("%s:%s:%d", l.prefix, key, slot)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	n, err := incrWithExpiry.Run(ctx, l.client, []string{redisKey}, windowMs).Int64()
	if err != nil {
		return false
	}
	return n <= int64(l.limit)
}
