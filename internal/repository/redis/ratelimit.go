package redis

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// tokenBucket refills tokens continuously and takes one per request.
// KEYS[1] bucket hash; ARGV capacity, refill per ms, now in ms.
// Returns {allowed, tokens left} with tokens as a string to keep the fraction.
var tokenBucket = redis.NewScript(`
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local state = redis.call('HMGET', KEYS[1], 'tokens', 'ts')
local tokens = tonumber(state[1])
local ts = tonumber(state[2])
if tokens == nil or ts == nil then
	tokens = capacity
	ts = now
end
if now > ts then
	tokens = math.min(capacity, tokens + (now - ts) * rate)
	ts = now
end

local allowed = 0
if tokens >= 1 then
	tokens = tokens - 1
	allowed = 1
end

redis.call('HSET', KEYS[1], 'tokens', tostring(tokens), 'ts', tostring(ts))
redis.call('PEXPIRE', KEYS[1], math.ceil((capacity - tokens) / rate) + 1000)
return {allowed, tostring(tokens)}
`)

// RateLimiter is a token bucket per key. It holds requestsPerMinute + burst
// tokens and refills at requestsPerMinute per minute.
type RateLimiter struct {
	client   *Client
	capacity int
	perMs    float64
	now      func() time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(client *Client, requestsPerMinute, burst int) *RateLimiter {
	requestsPerMinute = max(requestsPerMinute, 1)
	return &RateLimiter{
		client:   client,
		capacity: requestsPerMinute + max(burst, 0),
		perMs:    float64(requestsPerMinute) / float64(time.Minute.Milliseconds()),
		now:      time.Now,
	}
}

// Limit returns the bucket capacity
func (r *RateLimiter) Limit() int {
	return r.capacity
}

// Allow takes one token for key. The reset time is when the next request
// will be admitted if this one was denied, otherwise when the bucket is full.
func (r *RateLimiter) Allow(ctx context.Context, key string) (bool, int, time.Time, error) {
	now := r.now()
	res, err := tokenBucket.Run(ctx, r.client.rdb, []string{r.client.key("ratelimit", key)},
		r.capacity, strconv.FormatFloat(r.perMs, 'g', -1, 64), now.UnixMilli(),
	).Slice()
	if err != nil {
		return false, 0, time.Time{}, fmt.Errorf("failed to execute rate limit check: %w", err)
	}
	if len(res) != 2 {
		return false, 0, time.Time{}, fmt.Errorf("unexpected rate limit reply: %v", res)
	}

	allowed, _ := res[0].(int64)
	left, _ := res[1].(string)
	tokens, err := strconv.ParseFloat(left, 64)
	if err != nil {
		return false, 0, time.Time{}, fmt.Errorf("invalid token count %q: %w", left, err)
	}

	wait := float64(r.capacity) - tokens
	if allowed == 0 {
		wait = 1 - tokens
	}
	reset := now.Add(time.Duration(math.Ceil(wait/r.perMs)) * time.Millisecond)

	return allowed == 1, int(math.Floor(tokens)), reset, nil
}

// Reset refills the bucket for key
func (r *RateLimiter) Reset(ctx context.Context, key string) error {
	return r.client.rdb.Del(ctx, r.client.key("ratelimit", key)).Err()
}
