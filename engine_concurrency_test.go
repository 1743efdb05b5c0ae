package authcore

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/MrEthical07/authcore/permission"
)

func TestRefreshConcurrencySingleWinner(t *testing.T) {
	env := newTestEnv(t, nil)
	p := env.seed(t, "alice", "correct-horse", permission.BasicUser)
	ctx := context.Background()

	resp, err := env.engine.Login(ctx, "alice", "correct-horse", rc)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	const n = 16
	start := make(chan struct{})
	results := make(chan error, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			<-start
			_, err := env.engine.Refresh(ctx, resp.RefreshToken, rc)
			results <- err
		}()
	}
	close(start)
	wg.Wait()
	close(results)

	success, inactive := 0, 0
	for err := range results {
		switch {
		case err == nil:
			success++
		case errors.Is(err, ErrTokenInactive):
			inactive++
		default:
			t.Fatalf("unexpected refresh error: %v", err)
		}
	}
	if success != 1 || inactive != n-1 {
		t.Fatalf("success=%d inactive=%d", success, inactive)
	}

	active, err := env.engine.refresh.CountActive(ctx, p.ID)
	if err != nil || active != 1 {
		t.Fatalf("CountActive = %d, %v", active, err)
	}
}

func TestConcurrentLoginsRespectLimit(t *testing.T) {
	env := newTestEnv(t, func(c *Config) {
		c.Refresh.MaxActivePerPrincipal = 2
		c.Security.EnableLoginThrottle = false
	})
	p := env.seed(t, "alice", "correct-horse", permission.BasicUser)
	ctx := context.Background()

	const n = 8
	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			<-start
			if _, err := env.engine.Login(ctx, "alice", "correct-horse", rc); err != nil {
				t.Errorf("login: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	active, err := env.engine.refresh.CountActive(ctx, p.ID)
	if err != nil || active != 2 {
		t.Fatalf("CountActive = %d, %v", active, err)
	}
}

func TestRevokeAllRacingRefreshCannotOutliveBump(t *testing.T) {
	env := newTestEnv(t, nil)
	p := env.seed(t, "alice", "correct-horse", permission.BasicUser)
	ctx := context.Background()

	resp, err := env.engine.Login(ctx, "alice", "correct-horse", rc)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	start := make(chan struct{})
	var refreshed *AuthResponse
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		<-start
		refreshed, _ = env.engine.Refresh(ctx, resp.RefreshToken, rc)
	}()
	go func() {
		defer wg.Done()
		<-start
		if _, err := env.engine.RevokeAll(ctx, p.ID, "", rc); err != nil {
			t.Errorf("revoke all: %v", err)
		}
	}()
	close(start)
	wg.Wait()

	if refreshed == nil {
		return
	}
	res, err := env.engine.Validate(ctx, refreshed.AccessToken)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	cur, _ := env.store.GetByID(ctx, p.ID)
	if res.TokenVersion < cur.TokenVersion && res.Reason != ReasonTokenVersionMismatch {
		t.Fatalf("pre-bump token accepted: %+v", res)
	}
}
