package authcore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/MrEthical07/authcore/permission"
	"github.com/MrEthical07/authcore/principal"
)

func newAuditedEngine(t *testing.T, sink AuditSink) (*Engine, *principal.MemoryStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	fc := clocktesting.NewFakeClock(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	store := principal.NewMemoryStore(fc)
	e, err := New().
		WithConfig(testConfig()).
		WithRedis(rdb).
		WithPrincipalStore(store).
		WithClock(fc).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return e, store
}

func nextEvent(t *testing.T, sink *ChannelSink) AuditEvent {
	t.Helper()
	select {
	case ev := <-sink.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for audit event")
		return AuditEvent{}
	}
}

func TestAuditLoginEvents(t *testing.T) {
	sink := NewChannelSink(16)
	e, _ := newAuditedEngine(t, sink)
	defer e.Close()
	ctx := context.Background()
	rc := RequestContext{IP: "192.0.2.7", UserAgent: "audit-test"}

	if _, err := e.Login(ctx, "ghost", "whatever", rc); err == nil {
		t.Fatal("expected login failure")
	}
	ev := nextEvent(t, sink)
	if ev.Type != auditEventLoginFailure || ev.Success || ev.Error != string(auditErrInvalidCredentials) {
		t.Fatalf("unexpected failure event: %+v", ev)
	}
	if ev.IP != "192.0.2.7" || ev.Metadata["identifier"] != "ghost" {
		t.Fatalf("missing request context: %+v", ev)
	}

	resp, err := e.Register(ctx, RegisterRequest{Username: "alice", Email: "alice@example.com", Secret: "s3cret-pass"}, rc)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	ev = nextEvent(t, sink)
	if ev.Type != auditEventRegister || !ev.Success || ev.PrincipalID != resp.Principal.ID || ev.SessionID != resp.SessionID {
		t.Fatalf("unexpected register event: %+v", ev)
	}
	if !ev.Timestamp.Equal(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)) {
		t.Fatalf("timestamp = %v", ev.Timestamp)
	}
}

func TestAuditAdminEvents(t *testing.T) {
	sink := NewChannelSink(16)
	e, store := newAuditedEngine(t, sink)
	defer e.Close()
	ctx := context.Background()

	p, err := store.Create(ctx, principal.Principal{Username: "bob", Email: "bob@example.com", Active: true, AuthType: principal.AuthPassword})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := e.ChangePermissions(ctx, p.ID, permission.UserManager, RequestContext{}); err != nil {
		t.Fatalf("change permissions: %v", err)
	}
	ev := nextEvent(t, sink)
	if ev.Type != auditEventPermissionChange || ev.Metadata["token_version"] != "1" {
		t.Fatalf("unexpected event: %+v", ev)
	}

	if err := e.SetActive(ctx, p.ID, false, RequestContext{}); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	ev = nextEvent(t, sink)
	if ev.Type != auditEventStatusChange || ev.Metadata["active"] != "false" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestAuditDisabledEmitsNothing(t *testing.T) {
	env := newTestEnv(t, nil)
	if env.engine.audit != nil {
		t.Fatal("audit dispatcher must be nil when disabled")
	}
	if _, err := env.engine.Login(context.Background(), "ghost", "x", rc); err == nil {
		t.Fatal("expected failure")
	}
	if env.engine.AuditDropped() != 0 {
		t.Fatal("unexpected drops")
	}
}
