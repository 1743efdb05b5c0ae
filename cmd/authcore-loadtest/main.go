// Command authcore-loadtest seeds principals, logs each in once and then
// measures Validate and Refresh throughput against a live engine.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/permission"
	"github.com/MrEthical07/authcore/principal"
)

const seedSecret = "load-test-secret"

// pairState holds the current token pair of one principal. Refresh rotates
// the refresh token, so each pair is used by one worker at a time.
type pairState struct {
	mu      sync.Mutex
	access  string
	refresh string
}

func main() {
	var (
		principals  = pflag.Int("principals", 2000, "number of principals to seed and log in")
		concurrency = pflag.Int("concurrency", 64, "number of concurrent workers")
		ops         = pflag.Int("ops", 50000, "operations per phase (validate, refresh)")
		redisAddr   = pflag.String("redis-addr", "", "redis address; if empty, AUTH_REDIS_ADDR env or miniredis is used")
	)
	pflag.Parse()

	if *principals <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "principals, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("AUTH_REDIS_ADDR")
	}
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		defer mr.Close()
		addr = mr.Addr()
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		fmt.Printf("using redis at %s\n", addr)
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()

	cfg := authcore.DefaultConfig()
	cfg.Token.SigningKey = []byte("authcore-loadtest-signing-key-0123456789")
	cfg.Security.EnableLoginThrottle = false
	cfg.Security.EnableIPThrottle = false
	cfg.Audit.Enabled = false

	store := principal.NewMemoryStore(nil)
	engine, err := authcore.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithPrincipalStore(store).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	states, err := seed(ctx, engine, store, *principals)
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
		os.Exit(1)
	}

	validateStats := runPhase(*ops, *concurrency, func(r *rand.Rand) error {
		st := states[r.Intn(len(states))]
		st.mu.Lock()
		access := st.access
		st.mu.Unlock()
		res, err := engine.Validate(ctx, access)
		if err == nil && !res.IsValid {
			err = fmt.Errorf("invalid: %s", res.Reason)
		}
		return err
	})
	refreshStats := runPhase(*ops, *concurrency, func(r *rand.Rand) error {
		st := states[r.Intn(len(states))]
		st.mu.Lock()
		defer st.mu.Unlock()
		resp, err := engine.Refresh(ctx, st.refresh, authcore.RequestContext{IP: "127.0.0.1"})
		if err != nil {
			return err
		}
		st.access, st.refresh = resp.AccessToken, resp.RefreshToken
		return nil
	})

	fmt.Println("---- results ----")
	printStats("validate", validateStats)
	printStats("refresh", refreshStats)

	snap := engine.MetricsSnapshot()
	fmt.Printf("refresh_success=%d store_failures=%d\n",
		snap.Counters[authcore.MetricRefreshSuccess], snap.Counters[authcore.MetricStoreFailure])
}

func seed(ctx context.Context, engine *authcore.Engine, store *principal.MemoryStore, n int) ([]*pairState, error) {
	hasher, err := password.NewArgon2(password.DefaultArgon2Config())
	if err != nil {
		return nil, err
	}
	hash, err := hasher.Hash(seedSecret)
	if err != nil {
		return nil, err
	}

	fmt.Printf("seeding %d principals...\n", n)
	start := time.Now()
	states := make([]*pairState, n)
	for i := range states {
		p, err := store.Create(ctx, principal.Principal{
			Username:     fmt.Sprintf("load-%d", i),
			Email:        fmt.Sprintf("load-%d@example.com", i),
			PasswordHash: hash,
			Permissions:  permission.BasicUser,
			Active:       true,
			AuthType:     principal.AuthPassword,
		})
		if err != nil {
			return nil, err
		}
		resp, err := engine.Login(ctx, p.Username, seedSecret, authcore.RequestContext{IP: "127.0.0.1"})
		if err != nil {
			return nil, fmt.Errorf("login %s: %w", p.Username, err)
		}
		states[i] = &pairState{access: resp.AccessToken, refresh: resp.RefreshToken}
	}
	fmt.Printf("seeded in %s\n", time.Since(start).Round(time.Millisecond))
	return states, nil
}

func runPhase(ops, concurrency int, op func(r *rand.Rand) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				if int(atomic.AddInt64(&cursor, 1)) > ops {
					return
				}
				t0 := time.Now()
				err := op(r)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	switch {
	case len(samples) == 0:
		return 0
	case p <= 0:
		return samples[0]
	case p >= 100:
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name, s.ops, s.failures,
		s.total.Round(time.Millisecond), s.opsPerS,
		s.p50.Round(time.Microsecond), s.p95.Round(time.Microsecond), s.p99.Round(time.Microsecond),
	)
}
