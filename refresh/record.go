package refresh

import (
	"errors"
	"strconv"
	"time"
)

var (
	// ErrNotFound is returned when no record matches a token value.
	ErrNotFound = errors.New("refresh token not found")
	// ErrInactive is returned when the record is revoked or expired.
	ErrInactive = errors.New("refresh token inactive")
	// ErrRedisUnavailable wraps backing-store failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)

// Revocation reasons written by authcore.
const (
	ReasonRotated   = "rotated"
	ReasonEvicted   = "evicted"
	ReasonRevoked   = "revoke"
	ReasonLogout    = "logout"
	ReasonLogoutAll = "logout_all"
)

// Evicted identifies a record revoked by the per-principal limit.
type Evicted struct {
	Hash      string
	SessionID string
}

// Record is one persisted refresh token. The token value itself is never
// stored; Hash is its sha256.
type Record struct {
	Hash         string
	PrincipalID  int64
	IssuedAt     time.Time
	ExpiresAt    time.Time
	RevokedAt    *time.Time
	RevokedByIP  string
	ReplacedBy   string
	RevokeReason string
	AuthType     uint8
	CreatedByIP  string
	UserAgent    string
	DeviceInfo   string
	SessionID    string
}

// IsActive reports whether the record is unrevoked and unexpired at now.
func (r Record) IsActive(now time.Time) bool {
	return r.RevokedAt == nil && now.Before(r.ExpiresAt)
}

// IsExpired reports whether the record's lifetime has passed at now.
func (r Record) IsExpired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// Revocation describes who revoked a record and why.
type Revocation struct {
	IP         string
	ReplacedBy string
	Reason     string
}

func (r Record) fields() []any {
	return []any{
		"principal_id", strconv.FormatInt(r.PrincipalID, 10),
		"issued_at", strconv.FormatInt(r.IssuedAt.UnixMilli(), 10),
		"expires_at", strconv.FormatInt(r.ExpiresAt.UnixMilli(), 10),
		"auth_type", strconv.Itoa(int(r.AuthType)),
		"created_ip", r.CreatedByIP,
		"user_agent", r.UserAgent,
		"device_info", r.DeviceInfo,
		"session_id", r.SessionID,
	}
}

func recordFromHash(hash string, m map[string]string) (Record, error) {
	if len(m) == 0 {
		return Record{}, ErrNotFound
	}
	pid, err := strconv.ParseInt(m["principal_id"], 10, 64)
	if err != nil {
		return Record{}, errors.New("refresh record corrupt: principal_id")
	}
	issued, err := strconv.ParseInt(m["issued_at"], 10, 64)
	if err != nil {
		return Record{}, errors.New("refresh record corrupt: issued_at")
	}
	expires, err := strconv.ParseInt(m["expires_at"], 10, 64)
	if err != nil {
		return Record{}, errors.New("refresh record corrupt: expires_at")
	}
	at, _ := strconv.Atoi(m["auth_type"])

	rec := Record{
		Hash:         hash,
		PrincipalID:  pid,
		IssuedAt:     time.UnixMilli(issued),
		ExpiresAt:    time.UnixMilli(expires),
		RevokedByIP:  m["revoked_by_ip"],
		ReplacedBy:   m["replaced_by"],
		RevokeReason: m["revoke_reason"],
		AuthType:     uint8(at),
		CreatedByIP:  m["created_ip"],
		UserAgent:    m["user_agent"],
		DeviceInfo:   m["device_info"],
		SessionID:    m["session_id"],
	}
	if v := m["revoked_at"]; v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Record{}, errors.New("refresh record corrupt: revoked_at")
		}
		t := time.UnixMilli(ms)
		rec.RevokedAt = &t
	}
	return rec, nil
}

// pairsToMap converts a flat HGETALL reply returned from Lua.
func pairsToMap(vals []interface{}) map[string]string {
	m := make(map[string]string, len(vals)/2)
	for i := 0; i+1 < len(vals); i += 2 {
		k, _ := vals[i].(string)
		v, _ := vals[i+1].(string)
		m[k] = v
	}
	return m
}
