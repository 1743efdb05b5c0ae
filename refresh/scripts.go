package refresh

import "github.com/redis/go-redis/v9"

// All scripts treat a record as active iff revoked_at is unset and
// expires_at > now. Index members whose record hash has disappeared are
// pruned on sight.

const (
	insertStatusInserted  int64 = 1
	insertStatusCollision int64 = -1
)

// KEYS: record, principal index, expiry index
// Returns {status, evicted_hash, evicted_session_id, ...}.
// ARGV: hash, issued_ms, expires_ms, now_ms, max_active, record_prefix,
// key_expiry_ms, expiry_member, evicting_ip, then field/value pairs
const insertScript = `
local rec_key, idx_key, exp_key = KEYS[1], KEYS[2], KEYS[3]
local hash = ARGV[1]
local now = tonumber(ARGV[4])
local max_active = tonumber(ARGV[5])
local rec_prefix = ARGV[6]
local exp_member = ARGV[8]
local evict_ip = ARGV[9]

if redis.call("EXISTS", rec_key) == 1 then
  return {-1}
end

local active = {}
for _, m in ipairs(redis.call("ZRANGE", idx_key, 0, -1)) do
  local f = redis.call("HMGET", rec_prefix .. m, "revoked_at", "expires_at")
  if not f[2] then
    redis.call("ZREM", idx_key, m)
  elseif not f[1] and tonumber(f[2]) > now then
    table.insert(active, m)
  end
end

local out = {1}
if max_active > 0 then
  local i = 1
  while #active - (i - 1) >= max_active do
    local victim = rec_prefix .. active[i]
    redis.call("HSET", victim, "revoked_at", ARGV[4], "revoked_by_ip", evict_ip, "revoke_reason", "evicted")
    table.insert(out, active[i])
    table.insert(out, redis.call("HGET", victim, "session_id") or "")
    i = i + 1
  end
end

local fields = {}
for j = 10, #ARGV do
  fields[#fields + 1] = ARGV[j]
end
redis.call("HSET", rec_key, unpack(fields))
redis.call("PEXPIREAT", rec_key, ARGV[7])
redis.call("ZADD", idx_key, ARGV[2], hash)
redis.call("ZADD", exp_key, ARGV[3], exp_member)
return out
`

const (
	revokeStatusNotFound       int64 = 0
	revokeStatusRevoked        int64 = 1
	revokeStatusAlreadyRevoked int64 = 2
	revokeStatusExpired        int64 = 3
)

// KEYS: record
// ARGV: now_ms, ip, replaced_by, reason
const revokeScript = `
local f = redis.call("HMGET", KEYS[1], "revoked_at", "expires_at")
if not f[2] then
  return {0}
end
local status = 1
if f[1] then
  status = 2
elseif tonumber(f[2]) <= tonumber(ARGV[1]) then
  status = 3
else
  redis.call("HSET", KEYS[1], "revoked_at", ARGV[1], "revoked_by_ip", ARGV[2], "replaced_by", ARGV[3], "revoke_reason", ARGV[4])
end
local out = {status}
for _, v in ipairs(redis.call("HGETALL", KEYS[1])) do
  table.insert(out, v)
end
return out
`

// KEYS: principal index
// ARGV: now_ms, ip, reason, record_prefix, limit (0 = all)
const revokeActiveScript = `
local now = tonumber(ARGV[1])
local limit = tonumber(ARGV[5])
local out = {}
for _, m in ipairs(redis.call("ZRANGE", KEYS[1], 0, -1)) do
  local key = ARGV[4] .. m
  local f = redis.call("HMGET", key, "revoked_at", "expires_at")
  if not f[2] then
    redis.call("ZREM", KEYS[1], m)
  elseif not f[1] and tonumber(f[2]) > now then
    redis.call("HSET", key, "revoked_at", ARGV[1], "revoked_by_ip", ARGV[2], "revoke_reason", ARGV[3])
    table.insert(out, m)
    if limit > 0 and #out >= limit then
      break
    end
  end
end
return out
`

// KEYS: expiry index
// ARGV: cutoff_ms, batch, record_prefix, index_prefix
const sweepScript = `
local members = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1], "LIMIT", 0, tonumber(ARGV[2]))
for _, m in ipairs(members) do
  local pid, hash = string.match(m, "^(%-?%d+):(%x+)$")
  if hash then
    redis.call("DEL", ARGV[3] .. hash)
    redis.call("ZREM", ARGV[4] .. pid, hash)
  end
  redis.call("ZREM", KEYS[1], m)
end
return #members
`

var (
	insertLua       = redis.NewScript(insertScript)
	revokeLua       = redis.NewScript(revokeScript)
	revokeActiveLua = redis.NewScript(revokeActiveScript)
	sweepLua        = redis.NewScript(sweepScript)
)
