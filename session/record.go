package session

import (
	"errors"
	"strconv"
	"time"
)

var (
	// ErrNotFound is returned when a session id is unknown.
	ErrNotFound = errors.New("session not found")
	// ErrRedisUnavailable wraps backing-store failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)

// Record is one login session.
type Record struct {
	ID           string
	PrincipalID  int64
	IP           string
	UserAgent    string
	DeviceInfo   string
	AuthType     uint8
	CreatedAt    time.Time
	LastAccessAt time.Time
	Active       bool
}

func (r Record) fields() []any {
	active := "0"
	if r.Active {
		active = "1"
	}
	return []any{
		"principal_id", strconv.FormatInt(r.PrincipalID, 10),
		"ip", r.IP,
		"user_agent", r.UserAgent,
		"device_info", r.DeviceInfo,
		"auth_type", strconv.Itoa(int(r.AuthType)),
		"created_at", strconv.FormatInt(r.CreatedAt.UnixMilli(), 10),
		"last_access_at", strconv.FormatInt(r.LastAccessAt.UnixMilli(), 10),
		"active", active,
	}
}

func recordFromHash(id string, m map[string]string) (Record, error) {
	if len(m) == 0 {
		return Record{}, ErrNotFound
	}
	pid, err := strconv.ParseInt(m["principal_id"], 10, 64)
	if err != nil {
		return Record{}, errors.New("session record corrupt")
	}
	created, _ := strconv.ParseInt(m["created_at"], 10, 64)
	last, _ := strconv.ParseInt(m["last_access_at"], 10, 64)
	at, _ := strconv.Atoi(m["auth_type"])
	return Record{
		ID:           id,
		PrincipalID:  pid,
		IP:           m["ip"],
		UserAgent:    m["user_agent"],
		DeviceInfo:   m["device_info"],
		AuthType:     uint8(at),
		CreatedAt:    time.UnixMilli(created),
		LastAccessAt: time.UnixMilli(last),
		Active:       m["active"] == "1",
	}, nil
}
