// Package ratelimit throttles repeated attempts (logins, reset requests)
// per key across every instance sharing the same Redis
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Fixed window counter. The window starts with the first attempt.
const attemptsLua = `
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])

local count = redis.call("INCR", key)
if count == 1 then
  redis.call("PEXPIRE", key, window)
end

local ttl = redis.call("PTTL", key)
if ttl < 0 then
  redis.call("PEXPIRE", key, window)
  ttl = window
end

if count > limit then
  return {0, ttl}
end

return {1, 0}
`

type AttemptLimiter struct {
	rdb    *redis.Client
	prefix string
	limit  int
	window time.Duration
	script *redis.Script
}

func NewAttemptLimiter(rdb *redis.Client, prefix string, limit int, window time.Duration) *AttemptLimiter {
	if prefix == "" {
		prefix = "cardio:attempts"
	}

	return &AttemptLimiter{
		rdb:    rdb,
		prefix: prefix,
		limit:  limit,
		window: window,
		script: redis.NewScript(attemptsLua),
	}
}

// Allow records an attempt for key. When the limit is exceeded it returns
// false and how long until the window resets.
func (l *AttemptLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	if l == nil || l.limit <= 0 {
		return true, 0, nil
	}

	res, err := l.script.Run(ctx, l.rdb, []string{l.key(key)}, l.limit, l.window.Milliseconds()).Result()
	if err != nil {
		return false, 0, fmt.Errorf("ratelimit eval: %w", err)
	}

	values, ok := res.([]any)
	if !ok || len(values) < 2 {
		return false, 0, fmt.Errorf("ratelimit invalid result")
	}

	allowed := toInt64(values[0]) == 1
	wait := time.Duration(toInt64(values[1])) * time.Millisecond

	return allowed, wait, nil
}

// Reset forgets every attempt for key, used after a successful login
func (l *AttemptLimiter) Reset(ctx context.Context, key string) error {
	if l == nil {
		return nil
	}

	return l.rdb.Del(ctx, l.key(key)).Err()
}

func (l *AttemptLimiter) key(k string) string {
	return l.prefix + ":" + k
}

func toInt64(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		if parsed, err := strconv.ParseInt(t, 10, 64); err == nil {
			return parsed
		}
	}

	return 0
}
