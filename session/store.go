package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrContextNotFound means no context is stored under the attempt ID,
// typically because its TTL elapsed.
var ErrContextNotFound = errors.New("session context not found")

// ErrRedisUnavailable wraps transport failures against the backing Redis.
var ErrRedisUnavailable = errors.New("redis unavailable")

const defaultKeyPrefix = "amx"

// Store persists attempt contexts in Redis for hosts that round-trip only
// the attempt ID through their own session cookie. The engine itself never
// reads the store; all state still flows through the [Context] value.
type Store struct {
	redis  *redis.Client
	prefix string
}

// NewStore returns a Store using prefix for its Redis key namespace.
// An empty prefix selects the default "amx".
func NewStore(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &Store{redis: client, prefix: prefix}
}

func (s *Store) key(attemptID string) string {
	return s.prefix + ":" + attemptID
}

// Save writes c under its attempt ID with the given TTL.
func (s *Store) Save(ctx context.Context, c *Context, ttl time.Duration) error {
	if s == nil || s.redis == nil {
		return ErrRedisUnavailable
	}
	if c == nil || c.AttemptID == "" {
		return errors.New("context has no attempt id")
	}
	encoded, err := Encode(c)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	if err := s.redis.Set(ctx, s.key(c.AttemptID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Load reads and decodes the context saved under attemptID.
func (s *Store) Load(ctx context.Context, attemptID string) (*Context, error) {
	if s == nil || s.redis == nil {
		return nil, ErrRedisUnavailable
	}
	data, err := s.redis.Get(ctx, s.key(attemptID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrContextNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return Decode(data)
}

// Delete removes the context saved under attemptID. Deleting an absent
// context is not an error.
func (s *Store) Delete(ctx context.Context, attemptID string) error {
	if s == nil || s.redis == nil {
		return ErrRedisUnavailable
	}
	if err := s.redis.Del(ctx, s.key(attemptID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
