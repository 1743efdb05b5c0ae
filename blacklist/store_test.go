package blacklist

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	clocktesting "k8s.io/utils/clock/testing"
)

func newBlacklistTest(t *testing.T) (*Store, *clocktesting.FakeClock, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	clk := clocktesting.NewFakeClock(time.Now())
	return NewStore(rdb, "abl", clk), clk, mr
}

func TestAddContainsUntilExpiry(t *testing.T) {
	s, clk, _ := newBlacklistTest(t)
	ctx := context.Background()

	added, err := s.Add(ctx, Entry{TokenID: "jti-1", ExpiresAt: clk.Now().Add(10 * time.Minute), Reason: "logout", PrincipalID: 3, IP: "1.1.1.1"})
	if err != nil || !added {
		t.Fatalf("add = %v, %v", added, err)
	}
	again, err := s.Add(ctx, Entry{TokenID: "jti-1", ExpiresAt: clk.Now().Add(time.Hour), Reason: "other"})
	if err != nil || again {
		t.Fatalf("re-add must be a no-op, got %v %v", again, err)
	}

	if ok, err := s.Contains(ctx, "jti-1"); err != nil || !ok {
		t.Fatalf("contains = %v, %v", ok, err)
	}
	e, err := s.Get(ctx, "jti-1")
	if err != nil || e.Reason != "logout" || e.PrincipalID != 3 {
		t.Fatalf("get = %+v, %v", e, err)
	}
	if ok, _ := s.Contains(ctx, "jti-2"); ok {
		t.Fatal("unknown id must not be blacklisted")
	}

	clk.Step(10 * time.Minute)
	if ok, _ := s.Contains(ctx, "jti-1"); ok {
		t.Fatal("entry must lapse at token expiry")
	}
	if _, err := s.Get(ctx, "jti-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAddSkipsExpiredTokens(t *testing.T) {
	s, clk, mr := newBlacklistTest(t)
	added, err := s.Add(context.Background(), Entry{TokenID: "old", ExpiresAt: clk.Now().Add(-time.Second)})
	if err != nil || added {
		t.Fatalf("add = %v, %v", added, err)
	}
	if mr.Exists("abl:j:old") {
		t.Fatal("expired entry must not be stored")
	}
	if _, err := s.Add(context.Background(), Entry{ExpiresAt: clk.Now().Add(time.Minute)}); err == nil {
		t.Fatal("empty id must be rejected")
	}
}

func TestSweepExpired(t *testing.T) {
	s, clk, mr := newBlacklistTest(t)
	s.sweepBatch = 3
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		_, _ = s.Add(ctx, Entry{TokenID: "short-" + string(rune('a'+i)), ExpiresAt: clk.Now().Add(time.Minute)})
	}
	_, _ = s.Add(ctx, Entry{TokenID: "long", ExpiresAt: clk.Now().Add(time.Hour)})

	if n, _ := s.SweepExpired(ctx); n != 0 {
		t.Fatalf("premature sweep removed %d", n)
	}
	clk.Step(2 * time.Minute)
	n, err := s.SweepExpired(ctx)
	if err != nil || n != 7 {
		t.Fatalf("sweep = %d, %v", n, err)
	}
	if n, _ := s.SweepExpired(ctx); n != 0 {
		t.Fatalf("repeat sweep removed %d", n)
	}
	if !mr.Exists("abl:j:long") {
		t.Fatal("unexpired entry must survive")
	}
	if ok, _ := s.Contains(ctx, "long"); !ok {
		t.Fatal("unexpired entry must still block")
	}
}

func TestContainsReportsRedisFailure(t *testing.T) {
	s, _, mr := newBlacklistTest(t)
	mr.Close()
	if _, err := s.Contains(context.Background(), "x"); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
