package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrLoginThrottled     = errors.New("too many login attempts")
	ErrLimiterUnavailable = errors.New("login limiter unavailable")
)

// attemptLua admits an attempt only while every counter is below the limit,
// then counts it against all of them. Throttled attempts are not counted.
var attemptLua = redis.NewScript(`
local limit = tonumber(ARGV[1])
for _, key in ipairs(KEYS) do
  if tonumber(redis.call('GET', key) or '0') >= limit then
    return 0
  end
end
for _, key in ipairs(KEYS) do
  if redis.call('INCR', key) == 1 then
    redis.call('PEXPIRE', key, ARGV[2])
  end
end
return 1
`)

// succeededLua clears the email counter and gives the attempt back to the IP.
var succeededLua = redis.NewScript(`
redis.call('DEL', KEYS[1])
if KEYS[2] and redis.call('EXISTS', KEYS[2]) == 1 then
  if redis.call('DECR', KEYS[2]) <= 0 then
    redis.call('DEL', KEYS[2])
  end
end
return 1
`)

// LoginLimiterConfig bounds login attempts per email and per client IP.
type LoginLimiterConfig struct {
	MaxAttempts int
	Cooldown    time.Duration
}

// LoginLimiter counts login attempts in Redis. A nil *LoginLimiter admits
// everything.
type LoginLimiter struct {
	redis       redis.UniversalClient
	maxAttempts int
	cooldown    time.Duration
}

func NewLoginLimiter(client redis.UniversalClient, cfg LoginLimiterConfig) *LoginLimiter {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 15 * time.Minute
	}
	return &LoginLimiter{redis: client, maxAttempts: cfg.MaxAttempts, cooldown: cfg.Cooldown}
}

// Attempt reserves one login attempt for email and ip, returning
// ErrLoginThrottled once either counter reached the limit. The check and the
// increment run as one script, so concurrent attempts cannot overshoot. A
// reserved attempt stays counted as a failure unless Succeeded is called.
func (l *LoginLimiter) Attempt(ctx context.Context, email, ip string) error {
	if l == nil || l.redis == nil {
		return nil
	}
	ok, err := attemptLua.Run(ctx, l.redis, l.keys(email, ip), l.maxAttempts, l.cooldown.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLimiterUnavailable, err)
	}
	if ok == 0 {
		return ErrLoginThrottled
	}
	return nil
}

// Succeeded clears the email counter and refunds the attempt reserved for ip.
func (l *LoginLimiter) Succeeded(ctx context.Context, email, ip string) error {
	if l == nil || l.redis == nil {
		return nil
	}
	if err := succeededLua.Run(ctx, l.redis, l.keys(email, ip)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrLimiterUnavailable, err)
	}
	return nil
}

func (l *LoginLimiter) keys(email, ip string) []string {
	keys := []string{emailKey(email)}
	if ip != "" {
		keys = append(keys, "login:ip:"+ip)
	}
	return keys
}

func emailKey(email string) string {
	return "login:email:" + strings.ToLower(strings.TrimSpace(email))
}
