package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"k8s.io/utils/clock"
)

// KEYS: session, last-seen index
// ARGV: now_ms, session id
const touchScript = `
if redis.call("HGET", KEYS[1], "active") ~= "1" then
  return 0
end
redis.call("HSET", KEYS[1], "last_access_at", ARGV[1])
redis.call("ZADD", KEYS[2], ARGV[1], ARGV[2])
return 1
`

// KEYS: session
const deactivateScript = `
if redis.call("HGET", KEYS[1], "active") ~= "1" then
  return 0
end
redis.call("HSET", KEYS[1], "active", "0")
return 1
`

// KEYS: principal index
// ARGV: session prefix
const deactivateAllScript = `
local n = 0
for _, id in ipairs(redis.call("SMEMBERS", KEYS[1])) do
  local key = ARGV[1] .. id
  local active = redis.call("HGET", key, "active")
  if not active then
    redis.call("SREM", KEYS[1], id)
  elseif active == "1" then
    redis.call("HSET", key, "active", "0")
    n = n + 1
  end
end
return n
`

// KEYS: last-seen index
// ARGV: cutoff_ms, batch, session prefix, principal index prefix
const sweepScript = `
local ids = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", "(" .. ARGV[1], "LIMIT", 0, tonumber(ARGV[2]))
for _, id in ipairs(ids) do
  local key = ARGV[3] .. id
  local pid = redis.call("HGET", key, "principal_id")
  if pid then
    redis.call("SREM", ARGV[4] .. pid, id)
  end
  redis.call("DEL", key)
  redis.call("ZREM", KEYS[1], id)
end
return #ids
`

var (
	touchLua         = redis.NewScript(touchScript)
	deactivateLua    = redis.NewScript(deactivateScript)
	deactivateAllLua = redis.NewScript(deactivateAllScript)
	sweepLua         = redis.NewScript(sweepScript)
)

// Store is a Redis-backed session tracker.
//
// Key layout under prefix P:
//
//	P:s:<id>    session hash
//	P:p:<pid>   set of the principal's session ids
//	P:seen      last-access index, scored by milliseconds
type Store struct {
	redis      redis.UniversalClient
	prefix     string
	clock      clock.PassiveClock
	sweepBatch int
}

// NewStore creates a session [Store] under the key prefix.
func NewStore(rdb redis.UniversalClient, prefix string, clk clock.PassiveClock) *Store {
	if prefix == "" {
		prefix = "ass"
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Store{redis: rdb, prefix: prefix, clock: clk, sweepBatch: 500}
}

func (s *Store) sessionPrefix() string { return s.prefix + ":s:" }
func (s *Store) key(id string) string { return s.sessionPrefix() + id }
func (s *Store) principalPrefix() string { return s.prefix + ":p:" }
func (s *Store) principalKey(pid int64) string {
	return s.principalPrefix() + strconv.FormatInt(pid, 10)
}
func (s *Store) seenKey() string { return s.prefix + ":seen" }

// Create persists rec as an active session. CreatedAt and LastAccessAt
// default to now.
//
//	Performance: 1 MULTI/EXEC (HSET + SADD + ZADD).
func (s *Store) Create(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		return errors.New("session: empty id")
	}
	now := s.clock.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.LastAccessAt.IsZero() {
		rec.LastAccessAt = rec.CreatedAt
	}
	rec.Active = true

	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.key(rec.ID), rec.fields()...)
		pipe.SAdd(ctx, s.principalKey(rec.PrincipalID), rec.ID)
		pipe.ZAdd(ctx, s.seenKey(), redis.Z{Score: float64(rec.LastAccessAt.UnixMilli()), Member: rec.ID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Get returns the session regardless of its active flag.
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	m, err := s.redis.HGetAll(ctx, s.key(id)).Result()
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return recordFromHash(id, m)
}

// Touch refreshes LastAccessAt of an active session. It reports false for
// unknown or inactive sessions.
func (s *Store) Touch(ctx context.Context, id string) (bool, error) {
	n, err := touchLua.Run(ctx, s.redis, []string{s.key(id), s.seenKey()},
		strconv.FormatInt(s.clock.Now().UnixMilli(), 10), id,
	).Int()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n == 1, nil
}

// Deactivate marks one session inactive. It reports whether the session
// was active.
func (s *Store) Deactivate(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, nil
	}
	n, err := deactivateLua.Run(ctx, s.redis, []string{s.key(id)}).Int()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n == 1, nil
}

// DeactivateAll marks every active session of the principal inactive in one
// atomic step and returns how many changed.
func (s *Store) DeactivateAll(ctx context.Context, principalID int64) (int, error) {
	n, err := deactivateAllLua.Run(ctx, s.redis, []string{s.principalKey(principalID)}, s.sessionPrefix()).Int()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n, nil
}

// ListActive returns the principal's active sessions, oldest first.
func (s *Store) ListActive(ctx context.Context, principalID int64) ([]Record, error) {
	ids, err := s.redis.SMembers(ctx, s.principalKey(principalID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(ids) == 0 {
		return []Record{}, nil
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, s.key(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	out := make([]Record, 0, len(ids))
	for i, cmd := range cmds {
		rec, err := recordFromHash(ids[i], cmd.Val())
		if err != nil || !rec.Active {
			continue
		}
		out = append(out, rec)
	}
	slices.SortStableFunc(out, func(a, b Record) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

// ActiveCount returns the number of active sessions of the principal.
func (s *Store) ActiveCount(ctx context.Context, principalID int64) (int, error) {
	recs, err := s.ListActive(ctx, principalID)
	return len(recs), err
}

// SweepInactive deletes sessions, active or not, whose last access is older
// than threshold. It is safe to repeat.
func (s *Store) SweepInactive(ctx context.Context, threshold time.Duration) (int, error) {
	cutoff := strconv.FormatInt(s.clock.Now().Add(-threshold).UnixMilli(), 10)
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := sweepLua.Run(ctx, s.redis, []string{s.seenKey()},
			cutoff, s.sweepBatch, s.sessionPrefix(), s.principalPrefix(),
		).Int()
		if err != nil {
			return total, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		total += n
		if n < s.sweepBatch {
			return total, nil
		}
	}
}
