package ratelimit

import (
	"context"
	"errors"
	"math"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const tokenBucketScript = `
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])

local nowData = redis.call("TIME")
local now = (nowData[1] * 1000) + math.floor(nowData[2] / 1000)

local data = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(data[1])
local ts = tonumber(data[2])

if tokens == nil then
  tokens = burst
  ts = now
else
  local delta = now - ts
  if delta < 0 then
    delta = 0
  end
  local refill = (delta / 1000) * rate
  tokens = math.min(burst, tokens + refill)
  ts = now
end

local allowed = 0
if tokens >= 1 then
  allowed = 1
  tokens = tokens - 1
end

redis.call("HMSET", KEYS[1], "tokens", tokens, "ts", ts)
redis.call("PEXPIRE", KEYS[1], ttl)

-- Lua numbers are truncated to integers on return; tokens is sent as a string.
return {allowed, tostring(tokens), ts}
`

// Limit is a refill rate in tokens per second and a bucket capacity.
type Limit struct {
	Rate  float64
	Burst int
}

func (l Limit) valid() bool {
	return l.Rate > 0 && l.Burst > 0
}

// ttl keeps idle buckets around for twice the time a full refill takes.
func (l Limit) ttl() time.Duration {
	if !l.valid() {
		return time.Second
	}
	seconds := math.Ceil((float64(l.Burst) / l.Rate) * 2)
	if seconds < 1 {
		seconds = 1
	}
	return time.Duration(seconds) * time.Second
}

// TokenBucket is a redis token bucket shared by every API replica. Keys are
// namespaced under bucketKeyPrefix.
type TokenBucket struct {
	client *redis.Client
	script *redis.Script
}

const bucketKeyPrefix = "drivebridge:"

type RateLimitResult struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

var (
	errBucketUnconfigured = errors.New("rate limiter not configured")
	errBucketKey          = errors.New("rate limiter key is empty")
	errBucketLimit        = errors.New("rate limiter rate and burst must be positive")
	errBucketReply        = errors.New("invalid rate limit script response")
)

func NewTokenBucket(client *redis.Client) *TokenBucket {
	if client == nil {
		return nil
	}
	return &TokenBucket{
		client: client,
		script: redis.NewScript(tokenBucketScript),
	}
}

func (t *TokenBucket) Allow(ctx context.Context, key string, limit Limit) (*RateLimitResult, error) {
	denied := &RateLimitResult{Allowed: false}
	switch {
	case t == nil || t.client == nil:
		return denied, errBucketUnconfigured
	case key == "":
		return denied, errBucketKey
	case !limit.valid():
		return denied, errBucketLimit
	}

	reply, err := t.script.Run(ctx, t.client, []string{bucketKeyPrefix + key},
		limit.Rate, limit.Burst, limit.ttl().Milliseconds()).Slice()
	if err != nil {
		return denied, err
	}
	return decisionFromReply(reply, limit)
}

// decisionFromReply turns the script's {allowed, tokens, ts} reply into a result.
func decisionFromReply(reply []interface{}, limit Limit) (*RateLimitResult, error) {
	if len(reply) < 3 {
		return &RateLimitResult{Allowed: false}, errBucketReply
	}

	allowed := toInt64(reply[0]) == 1
	remaining := toFloat64(reply[1])
	ts := toInt64(reply[2])

	var retryAfter time.Duration
	if !allowed {
		if needed := 1.0 - remaining; needed > 0 {
			retryAfter = time.Duration(needed / limit.Rate * float64(time.Second))
		}
	}

	return &RateLimitResult{
		Allowed:    allowed,
		Limit:      limit.Burst,
		Remaining:  int(remaining),
		ResetTime:  time.UnixMilli(ts).Add(retryAfter),
		RetryAfter: retryAfter,
	}, nil
}

func toInt64(v interface{}) int64 {
	switch val := v.(type) {
	case int64:
		return val
	case int:
		return int64(val)
	case float64:
		return int64(val)
	case string:
		parsed, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}

func toFloat64(v interface{}) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int64:
		return float64(val)
	case string:
		parsed, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}
