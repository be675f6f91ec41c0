package ratelimit

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisLimiter(t *testing.T, max int, window time.Duration) (*RedisLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisLimiter(client, max, window), mr
}

func TestRedisAllowUnderLimit(t *testing.T) {
	l, _ := newTestRedisLimiter(t, 3, time.Minute)

	for i := 0; i < 3; i++ {
		if !l.Allow("1.2.3.4") {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
	}
	if l.Allow("1.2.3.4") {
		t.Fatal("4th attempt should be denied")
	}
}

func TestRedisKeysIndependent(t *testing.T) {
	l, _ := newTestRedisLimiter(t, 1, time.Minute)

	if !l.Allow("1.1.1.1") {
		t.Fatal("first key should be allowed")
	}
	if !l.Allow("2.2.2.2") {
		t.Fatal("second key should be allowed")
	}
	if l.Allow("1.1.1.1") {
		t.Fatal("first key should now be denied")
	}
}

func TestRedisWindowExpiry(t *testing.T) {
	l, mr := newTestRedisLimiter(t, 1, time.Minute)

	l.Allow("1.2.3.4")
	if l.Allow("1.2.3.4") {
		t.Fatal("should be denied within the window")
	}

	mr.FastForward(2 * time.Minute)

	if !l.Allow("1.2.3.4") {
		t.Fatal("should be allowed after the window expires")
	}
}

func TestRedisUnreachableAllows(t *testing.T) {
	l, mr := newTestRedisLimiter(t, 1, time.Minute)
	mr.Close()

	// Degraded rate limiting must not reject traffic.
	if !l.Allow("1.2.3.4") {
		t.Fatal("expected attempt to be allowed when Redis is down")
	}
}
