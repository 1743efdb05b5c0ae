package blacklist

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"k8s.io/utils/clock"
)

var (
	// ErrNotFound is returned by Get for unknown or expired entries.
	ErrNotFound = errors.New("blacklist entry not found")
	// ErrRedisUnavailable wraps backing-store failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)

// Entry blocks one access token, identified by its jti, until ExpiresAt.
type Entry struct {
	TokenID     string
	ExpiresAt   time.Time
	Reason      string
	PrincipalID int64
	IP          string
	CreatedAt   time.Time
}

// KEYS: entry, expiry index
// ARGV: expires_ms, token id, then field/value pairs
const addScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
local fields = {}
for j = 3, #ARGV do
  fields[#fields + 1] = ARGV[j]
end
redis.call("HSET", KEYS[1], unpack(fields))
redis.call("PEXPIREAT", KEYS[1], ARGV[1])
redis.call("ZADD", KEYS[2], ARGV[1], ARGV[2])
return 1
`

// KEYS: expiry index
// ARGV: now_ms, batch, entry_prefix
const sweepScript = `
local ids = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1], "LIMIT", 0, tonumber(ARGV[2]))
for _, id in ipairs(ids) do
  redis.call("DEL", ARGV[3] .. id)
  redis.call("ZREM", KEYS[1], id)
end
return #ids
`

var (
	addLua   = redis.NewScript(addScript)
	sweepLua = redis.NewScript(sweepScript)
)

// Store is a Redis-backed access token blacklist. Entry keys carry a Redis
// expiry equal to the token expiry; the expiry index lets SweepExpired purge
// anything Redis has not yet evicted.
type Store struct {
	redis      redis.UniversalClient
	prefix     string
	clock      clock.PassiveClock
	sweepBatch int
}

// NewStore creates a [Store] under the key prefix.
func NewStore(rdb redis.UniversalClient, prefix string, clk clock.PassiveClock) *Store {
	if prefix == "" {
		prefix = "abl"
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Store{redis: rdb, prefix: prefix, clock: clk, sweepBatch: 500}
}

func (s *Store) entryPrefix() string { return s.prefix + ":j:" }
func (s *Store) entryKey(id string) string { return s.entryPrefix() + id }
func (s *Store) expiryKey() string { return s.prefix + ":exp" }

// Add blacklists e.TokenID until e.ExpiresAt. Re-adding an existing id is a
// no-op, and entries that are already expired are not stored. It reports
// whether a new entry was written.
func (s *Store) Add(ctx context.Context, e Entry) (bool, error) {
	if e.TokenID == "" {
		return false, errors.New("blacklist: empty token id")
	}
	now := s.clock.Now()
	if !now.Before(e.ExpiresAt) {
		return false, nil
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}

	exp := strconv.FormatInt(e.ExpiresAt.UnixMilli(), 10)
	n, err := addLua.Run(ctx, s.redis, []string{s.entryKey(e.TokenID), s.expiryKey()},
		exp, e.TokenID,
		"expires_at", exp,
		"reason", e.Reason,
		"principal_id", strconv.FormatInt(e.PrincipalID, 10),
		"ip", e.IP,
		"created_at", strconv.FormatInt(e.CreatedAt.UnixMilli(), 10),
	).Int()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n == 1, nil
}

// Contains reports whether tokenID is blacklisted and the entry has not
// expired.
func (s *Store) Contains(ctx context.Context, tokenID string) (bool, error) {
	if tokenID == "" {
		return false, nil
	}
	v, err := s.redis.HGet(ctx, s.entryKey(tokenID), "expires_at").Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		// A corrupt entry still blocks the token.
		return true, nil
	}
	return s.clock.Now().UnixMilli() < ms, nil
}

// Get returns the unexpired entry for tokenID.
func (s *Store) Get(ctx context.Context, tokenID string) (Entry, error) {
	m, err := s.redis.HGetAll(ctx, s.entryKey(tokenID)).Result()
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(m) == 0 {
		return Entry{}, ErrNotFound
	}
	exp, _ := strconv.ParseInt(m["expires_at"], 10, 64)
	created, _ := strconv.ParseInt(m["created_at"], 10, 64)
	pid, _ := strconv.ParseInt(m["principal_id"], 10, 64)
	e := Entry{
		TokenID:     tokenID,
		ExpiresAt:   time.UnixMilli(exp),
		Reason:      m["reason"],
		PrincipalID: pid,
		IP:          m["ip"],
		CreatedAt:   time.UnixMilli(created),
	}
	if !s.clock.Now().Before(e.ExpiresAt) {
		return Entry{}, ErrNotFound
	}
	return e, nil
}

// SweepExpired deletes entries whose expiry has passed. It is safe to
// repeat.
func (s *Store) SweepExpired(ctx context.Context) (int, error) {
	now := strconv.FormatInt(s.clock.Now().UnixMilli(), 10)
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := sweepLua.Run(ctx, s.redis, []string{s.expiryKey()}, now, s.sweepBatch, s.entryPrefix()).Int()
		if err != nil {
			return total, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		total += n
		if n < s.sweepBatch {
			return total, nil
		}
	}
}
