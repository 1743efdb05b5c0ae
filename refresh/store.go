package refresh

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"k8s.io/utils/clock"

	"github.com/MrEthical07/authcore/internal"
)

const defaultSweepBatch = 500

// Store is a Redis-backed refresh token store. Every state transition runs
// as a single Lua script so that rotation and eviction are atomic.
//
// Key layout under prefix P:
//
//	P:t:<hash>  record hash
//	P:p:<id>    per-principal index, scored by issue time
//	P:exp       expiry index, member "<id>:<hash>", scored by expiry
type Store struct {
	redis      redis.UniversalClient
	prefix     string
	retention  time.Duration
	clock      clock.PassiveClock
	sweepBatch int
}

// NewStore creates a [Store]. Records are kept for retention past their
// expiry before a sweep may delete them.
func NewStore(rdb redis.UniversalClient, prefix string, retention time.Duration, clk clock.PassiveClock) *Store {
	if prefix == "" {
		prefix = "arf"
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	if retention < 0 {
		retention = 0
	}
	return &Store{redis: rdb, prefix: prefix, retention: retention, clock: clk, sweepBatch: defaultSweepBatch}
}

// Hash returns the storage key component for a token value.
func Hash(token string) string {
	return internal.HashToken(token)
}

func (s *Store) recordPrefix() string { return s.prefix + ":t:" }
func (s *Store) recordKey(h string) string { return s.recordPrefix() + h }
func (s *Store) indexPrefix() string { return s.prefix + ":p:" }
func (s *Store) indexKey(id int64) string { return s.indexPrefix() + strconv.FormatInt(id, 10) }
func (s *Store) expiryKey() string { return s.prefix + ":exp" }

// Insert stores rec for token, first revoking the oldest active records of
// the principal until fewer than maxActive remain. maxActive <= 0 disables
// eviction. Evicted records are returned oldest first.
func (s *Store) Insert(ctx context.Context, token string, rec Record, maxActive int, evictingIP string) ([]Evicted, error) {
	h := Hash(token)
	now := s.clock.Now()
	args := []any{
		h,
		rec.IssuedAt.UnixMilli(),
		rec.ExpiresAt.UnixMilli(),
		now.UnixMilli(),
		maxActive,
		s.recordPrefix(),
		rec.ExpiresAt.Add(s.retention).UnixMilli(),
		strconv.FormatInt(rec.PrincipalID, 10) + ":" + h,
		evictingIP,
	}
	args = append(args, rec.fields()...)

	raw, err := insertLua.Run(ctx, s.redis, []string{s.recordKey(h), s.indexKey(rec.PrincipalID), s.expiryKey()}, args...).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	vals, ok := raw.([]interface{})
	if !ok || len(vals) == 0 {
		return nil, errors.New("refresh: unexpected insert script result")
	}
	status, _ := vals[0].(int64)
	if status == insertStatusCollision {
		return nil, errors.New("refresh: token hash collision")
	}
	if status != insertStatusInserted {
		return nil, fmt.Errorf("refresh: unexpected insert status %d", status)
	}

	pairs := vals[1:]
	evicted := make([]Evicted, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		h, _ := pairs[i].(string)
		sid, _ := pairs[i+1].(string)
		evicted = append(evicted, Evicted{Hash: h, SessionID: sid})
	}
	return evicted, nil
}

// Lookup returns the record for token regardless of its state.
func (s *Store) Lookup(ctx context.Context, token string) (Record, error) {
	if internal.CheckOpaqueToken(token) != nil {
		return Record{}, ErrNotFound
	}
	return s.get(ctx, Hash(token))
}

func (s *Store) get(ctx context.Context, h string) (Record, error) {
	m, err := s.redis.HGetAll(ctx, s.recordKey(h)).Result()
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return recordFromHash(h, m)
}

// Revoke transitions the record for token from active to revoked. Exactly
// one concurrent caller succeeds; the others observe ErrInactive. The
// returned record reflects the stored state after the call, and is populated
// for ErrInactive too.
func (s *Store) Revoke(ctx context.Context, token string, rv Revocation) (Record, error) {
	if internal.CheckOpaqueToken(token) != nil {
		return Record{}, ErrNotFound
	}
	h := Hash(token)
	raw, err := revokeLua.Run(ctx, s.redis, []string{s.recordKey(h)},
		s.clock.Now().UnixMilli(), rv.IP, rv.ReplacedBy, rv.Reason,
	).Result()
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	vals, ok := raw.([]interface{})
	if !ok || len(vals) == 0 {
		return Record{}, errors.New("refresh: unexpected revoke script result")
	}
	status, _ := vals[0].(int64)
	if status == revokeStatusNotFound {
		return Record{}, ErrNotFound
	}

	rec, err := recordFromHash(h, pairsToMap(vals[1:]))
	if err != nil {
		return Record{}, err
	}
	switch status {
	case revokeStatusRevoked:
		return rec, nil
	case revokeStatusAlreadyRevoked, revokeStatusExpired:
		return rec, ErrInactive
	default:
		return Record{}, fmt.Errorf("refresh: unexpected revoke status %d", status)
	}
}

// RevokeAll revokes every active record of the principal and returns how
// many transitioned.
func (s *Store) RevokeAll(ctx context.Context, principalID int64, rv Revocation) (int, error) {
	revoked, err := s.revokeActive(ctx, principalID, rv, 0)
	return len(revoked), err
}

// RevokeOldestActive revokes the principal's oldest active record. It
// reports false when none was active.
func (s *Store) RevokeOldestActive(ctx context.Context, principalID int64, rv Revocation) (bool, error) {
	revoked, err := s.revokeActive(ctx, principalID, rv, 1)
	return len(revoked) == 1, err
}

func (s *Store) revokeActive(ctx context.Context, principalID int64, rv Revocation, limit int) ([]interface{}, error) {
	raw, err := revokeActiveLua.Run(ctx, s.redis, []string{s.indexKey(principalID)},
		s.clock.Now().UnixMilli(), rv.IP, rv.Reason, s.recordPrefix(), limit,
	).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	vals, _ := raw.([]interface{})
	return vals, nil
}

// ListActive returns the principal's active records, oldest first.
func (s *Store) ListActive(ctx context.Context, principalID int64) ([]Record, error) {
	hashes, err := s.redis.ZRange(ctx, s.indexKey(principalID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(hashes) == 0 {
		return []Record{}, nil
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(hashes))
	for i, h := range hashes {
		cmds[i] = pipe.HGetAll(ctx, s.recordKey(h))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	now := s.clock.Now()
	out := make([]Record, 0, len(hashes))
	for i, cmd := range cmds {
		rec, err := recordFromHash(hashes[i], cmd.Val())
		if err != nil {
			continue
		}
		if rec.IsActive(now) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// CountActive returns the number of active records for the principal.
func (s *Store) CountActive(ctx context.Context, principalID int64) (int, error) {
	recs, err := s.ListActive(ctx, principalID)
	return len(recs), err
}

// SweepExpired deletes records whose expiry plus retention has passed. It
// runs in batches and is safe to repeat.
func (s *Store) SweepExpired(ctx context.Context) (int, error) {
	cutoff := s.clock.Now().Add(-s.retention).UnixMilli()
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := sweepLua.Run(ctx, s.redis, []string{s.expiryKey()},
			cutoff, s.sweepBatch, s.recordPrefix(), s.indexPrefix(),
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

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
