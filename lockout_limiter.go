package adfsmfa

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

var errLockoutRedisUnavailable = errors.New("lockout redis unavailable")

// lockoutLimiter counts consecutive terminal locks per identity in Redis.
// Once the threshold is reached, fresh attempts are refused until the
// cooldown key expires. A successful attempt resets the counter.
type lockoutLimiter struct {
	redis  *redis.Client
	config LockoutConfig
}

func newLockoutLimiter(redisClient *redis.Client, cfg LockoutConfig) *lockoutLimiter {
	if !cfg.Enabled || redisClient == nil {
		return nil
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "aml"
	}
	return &lockoutLimiter{redis: redisClient, config: cfg}
}

func (l *lockoutLimiter) key(identity string) string {
	return l.config.KeyPrefix + ":" + identity
}

// Check refuses classification for an identity whose lockout counter has
// reached the threshold. Redis failures fail closed.
func (l *lockoutLimiter) Check(ctx context.Context, identity string) error {
	if l == nil {
		return nil
	}
	count, err := l.redis.Get(ctx, l.key(identity)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", errLockoutRedisUnavailable, err)
	}
	if count >= int64(l.config.Threshold) {
		return ErrIdentityLocked
	}
	return nil
}

// RecordLock increments the counter and refreshes the cooldown.
func (l *lockoutLimiter) RecordLock(ctx context.Context, identity string) error {
	if l == nil {
		return nil
	}
	key := l.key(identity)
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", errLockoutRedisUnavailable, err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.config.Cooldown).Err(); err != nil {
			return fmt.Errorf("%w: %v", errLockoutRedisUnavailable, err)
		}
	}
	return nil
}

// Reset clears the counter after a successful attempt.
func (l *lockoutLimiter) Reset(ctx context.Context, identity string) error {
	if l == nil {
		return nil
	}
	if err := l.redis.Del(ctx, l.key(identity)).Err(); err != nil {
		return fmt.Errorf("%w: %v", errLockoutRedisUnavailable, err)
	}
	return nil
}
