package refresh

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/redis/go-redis/v9"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/MrEthical07/authcore/internal"
)

func newRefreshStoreTest(t *testing.T) (*Store, *clocktesting.FakeClock, *miniredis.Miniredis) {
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
	return NewStore(rdb, "arf", time.Hour, clk), clk, mr
}

func newToken(t *testing.T) string {
	t.Helper()
	tok, err := internal.NewOpaqueToken()
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	return tok
}

func insert(t *testing.T, s *Store, clk *clocktesting.FakeClock, pid int64, max int) string {
	t.Helper()
	tok := newToken(t)
	now := clk.Now()
	if _, err := s.Insert(context.Background(), tok, Record{
		PrincipalID: pid,
		IssuedAt:    now,
		ExpiresAt:   now.Add(7 * 24 * time.Hour),
		AuthType:    1,
		CreatedByIP: "10.0.0.1",
		UserAgent:   "test",
		SessionID:   "sess-" + tok[:6],
	}, max, "10.0.0.1"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	clk.Step(time.Millisecond)
	return tok
}

func TestInsertLookupStoresOnlyHash(t *testing.T) {
	s, clk, mr := newRefreshStoreTest(t)
	tok := insert(t, s, clk, 1, 5)

	rec, err := s.Lookup(context.Background(), tok)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if rec.PrincipalID != 1 || rec.UserAgent != "test" || rec.AuthType != 1 || !rec.IsActive(clk.Now()) {
		t.Fatalf("unexpected record: %+v", rec)
	}
	for _, k := range mr.Keys() {
		if k == "arf:t:"+tok {
			t.Fatal("plaintext token must not be used as a key")
		}
		if mr.Type(k) == "hash" {
			fields, _ := mr.HKeys(k)
			for _, f := range fields {
				if mr.HGet(k, f) == tok {
					t.Fatal("plaintext token persisted")
				}
			}
		}
	}

	if _, err := s.Lookup(context.Background(), newToken(t)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.Lookup(context.Background(), "garbage"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for malformed token, got %v", err)
	}
}

func TestInsertEvictsExactlyOldestAtLimit(t *testing.T) {
	s, clk, _ := newRefreshStoreTest(t)
	ctx := context.Background()

	var toks []string
	for i := 0; i < 5; i++ {
		toks = append(toks, insert(t, s, clk, 9, 5))
	}
	if n, _ := s.CountActive(ctx, 9); n != 5 {
		t.Fatalf("active = %d, want 5", n)
	}

	newTok := newToken(t)
	now := clk.Now()
	evicted, err := s.Insert(ctx, newTok, Record{PrincipalID: 9, IssuedAt: now, ExpiresAt: now.Add(time.Hour)}, 5, "1.2.3.4")
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	want := []Evicted{{Hash: Hash(toks[0]), SessionID: "sess-" + toks[0][:6]}}
	if diff := cmp.Diff(want, evicted); diff != "" {
		t.Fatalf("evicted (-want +got):\n%s", diff)
	}

	oldest, _ := s.Lookup(ctx, toks[0])
	if oldest.IsActive(clk.Now()) || oldest.RevokeReason != ReasonEvicted || oldest.RevokedByIP != "1.2.3.4" {
		t.Fatalf("oldest not evicted: %+v", oldest)
	}
	active, _ := s.ListActive(ctx, 9)
	if len(active) != 5 {
		t.Fatalf("active = %d, want 5", len(active))
	}
	if active[0].Hash != Hash(toks[1]) || active[4].Hash != Hash(newTok) {
		t.Fatal("ListActive must be ordered oldest first")
	}
}

func TestInsertShrinksToLoweredLimit(t *testing.T) {
	s, clk, _ := newRefreshStoreTest(t)
	for i := 0; i < 4; i++ {
		insert(t, s, clk, 3, 0)
	}
	insert(t, s, clk, 3, 2)
	if n, _ := s.CountActive(context.Background(), 3); n != 2 {
		t.Fatalf("active = %d, want 2", n)
	}
}

func TestRevokeIsExactlyOnce(t *testing.T) {
	s, clk, _ := newRefreshStoreTest(t)
	tok := insert(t, s, clk, 2, 5)

	const workers = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		inactive  int
		start     = make(chan struct{})
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := s.Revoke(context.Background(), tok, Revocation{Reason: ReasonRotated, ReplacedBy: "next"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrInactive):
				inactive++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if successes != 1 || inactive != workers-1 {
		t.Fatalf("successes=%d inactive=%d", successes, inactive)
	}
	rec, _ := s.Lookup(context.Background(), tok)
	if rec.ReplacedBy != "next" || rec.RevokeReason != ReasonRotated || rec.RevokedAt == nil {
		t.Fatalf("unexpected revoked record: %+v", rec)
	}
}

func TestRevokeExpiredAndMissing(t *testing.T) {
	s, clk, _ := newRefreshStoreTest(t)
	ctx := context.Background()
	tok := insert(t, s, clk, 4, 5)

	clk.Step(8 * 24 * time.Hour)
	rec, err := s.Revoke(ctx, tok, Revocation{Reason: ReasonRevoked})
	if !errors.Is(err, ErrInactive) || rec.PrincipalID != 4 {
		t.Fatalf("expected ErrInactive with record, got %+v %v", rec, err)
	}
	if rec.RevokedAt != nil {
		t.Fatal("expired record must not be marked revoked")
	}
	if _, err := s.Revoke(ctx, newToken(t), Revocation{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRevokeAllAndOldest(t *testing.T) {
	s, clk, _ := newRefreshStoreTest(t)
	ctx := context.Background()
	first := insert(t, s, clk, 5, 0)
	insert(t, s, clk, 5, 0)
	insert(t, s, clk, 5, 0)
	other := insert(t, s, clk, 6, 0)

	ok, err := s.RevokeOldestActive(ctx, 5, Revocation{Reason: ReasonEvicted})
	if err != nil || !ok {
		t.Fatalf("revoke oldest: %v %v", ok, err)
	}
	if rec, _ := s.Lookup(ctx, first); rec.RevokedAt == nil {
		t.Fatal("oldest should be revoked")
	}

	n, err := s.RevokeAll(ctx, 5, Revocation{Reason: ReasonLogoutAll, IP: "9.9.9.9"})
	if err != nil || n != 2 {
		t.Fatalf("revoke all = %d, %v", n, err)
	}
	if c, _ := s.CountActive(ctx, 5); c != 0 {
		t.Fatalf("active after revoke all = %d", c)
	}
	if c, _ := s.CountActive(ctx, 6); c != 1 {
		t.Fatal("other principal must be untouched")
	}
	if rec, _ := s.Lookup(ctx, other); !rec.IsActive(clk.Now()) {
		t.Fatal("other principal token must stay active")
	}

	if ok, _ := s.RevokeOldestActive(ctx, 5, Revocation{}); ok {
		t.Fatal("nothing left to revoke")
	}
	if n, _ := s.RevokeAll(ctx, 404, Revocation{}); n != 0 {
		t.Fatalf("revoke all on unknown principal = %d", n)
	}
}

func TestSweepExpiredHonorsRetentionAndIsIdempotent(t *testing.T) {
	s, clk, mr := newRefreshStoreTest(t)
	ctx := context.Background()
	s.sweepBatch = 2

	now := clk.Now()
	var short []string
	for i := 0; i < 5; i++ {
		tok := newToken(t)
		short = append(short, tok)
		if _, err := s.Insert(ctx, tok, Record{PrincipalID: 1, IssuedAt: now, ExpiresAt: now.Add(time.Minute)}, 0, ""); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	long := insert(t, s, clk, 1, 0)

	clk.Step(2 * time.Minute)
	if n, err := s.SweepExpired(ctx); err != nil || n != 0 {
		t.Fatalf("within retention swept %d, %v", n, err)
	}

	clk.Step(time.Hour)
	n, err := s.SweepExpired(ctx)
	if err != nil || n != 5 {
		t.Fatalf("swept %d, %v; want 5", n, err)
	}
	if n, _ := s.SweepExpired(ctx); n != 0 {
		t.Fatalf("second sweep removed %d", n)
	}
	for _, tok := range short {
		if _, err := s.Lookup(ctx, tok); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected swept record gone, got %v", err)
		}
	}
	if _, err := s.Lookup(ctx, long); err != nil {
		t.Fatalf("long-lived record must survive: %v", err)
	}
	members, _ := mr.ZMembers("arf:p:1")
	if len(members) != 1 {
		t.Fatalf("principal index should hold 1 member, has %d", len(members))
	}
}

func TestStoreReportsRedisFailure(t *testing.T) {
	s, clk, mr := newRefreshStoreTest(t)
	tok := insert(t, s, clk, 1, 5)
	mr.Close()

	if _, err := s.Lookup(context.Background(), tok); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
	if _, err := s.SweepExpired(context.Background()); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
