package adfsmfa

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, threshold int) (*lockoutLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	l := newLockoutLimiter(client, LockoutConfig{
		Enabled:   true,
		Threshold: threshold,
		Cooldown:  time.Minute,
		KeyPrefix: "aml",
	})
	if l == nil {
		t.Fatal("limiter not constructed")
	}
	return l, mr
}

func TestLimiterNilReceiver(t *testing.T) {
	var l *lockoutLimiter
	ctx := context.Background()
	if err := l.Check(ctx, "alice"); err != nil {
		t.Fatalf("nil Check: %v", err)
	}
	if err := l.RecordLock(ctx, "alice"); err != nil {
		t.Fatalf("nil RecordLock: %v", err)
	}
	if err := l.Reset(ctx, "alice"); err != nil {
		t.Fatalf("nil Reset: %v", err)
	}
}

func TestLimiterDisabledConstruction(t *testing.T) {
	if l := newLockoutLimiter(nil, LockoutConfig{Enabled: true}); l != nil {
		t.Fatal("limiter built without redis")
	}
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	if l := newLockoutLimiter(client, LockoutConfig{}); l != nil {
		t.Fatal("limiter built while disabled")
	}
}

func TestLimiterThreshold(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLimiter(t, 2)

	if err := l.Check(ctx, "alice"); err != nil {
		t.Fatalf("fresh identity refused: %v", err)
	}
	if err := l.RecordLock(ctx, "alice"); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := l.Check(ctx, "alice"); err != nil {
		t.Fatalf("below threshold refused: %v", err)
	}
	if err := l.RecordLock(ctx, "alice"); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := l.Check(ctx, "alice"); !errors.Is(err, ErrIdentityLocked) {
		t.Fatalf("at threshold err = %v, want lockout active", err)
	}

	// Identities are independent.
	if err := l.Check(ctx, "bob"); err != nil {
		t.Fatalf("unrelated identity refused: %v", err)
	}

	if err := l.Reset(ctx, "alice"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if err := l.Check(ctx, "alice"); err != nil {
		t.Fatalf("post-reset refused: %v", err)
	}
}

func TestLimiterCooldownExpiry(t *testing.T) {
	ctx := context.Background()
	l, mr := newTestLimiter(t, 1)

	if err := l.RecordLock(ctx, "alice"); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := l.Check(ctx, "alice"); !errors.Is(err, ErrIdentityLocked) {
		t.Fatalf("err = %v, want lockout active", err)
	}

	mr.FastForward(2 * time.Minute)
	if err := l.Check(ctx, "alice"); err != nil {
		t.Fatalf("after cooldown refused: %v", err)
	}
}

// Redis failures fail closed: the caller treats any error as locked.
func TestLimiterRedisUnavailable(t *testing.T) {
	ctx := context.Background()
	l, mr := newTestLimiter(t, 2)
	mr.Close()

	if err := l.Check(ctx, "alice"); !errors.Is(err, errLockoutRedisUnavailable) {
		t.Fatalf("err = %v, want redis unavailable", err)
	}
	if err := l.RecordLock(ctx, "alice"); !errors.Is(err, errLockoutRedisUnavailable) {
		t.Fatalf("record err = %v, want redis unavailable", err)
	}
}
