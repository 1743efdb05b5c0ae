package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/principal"
	"github.com/MrEthical07/authcore/refresh"
	"github.com/MrEthical07/authcore/session"
)

// IssueDeps captures token issuance dependencies shared by every flow that
// ends in a fresh token pair.
type IssueDeps struct {
	Tokens     Tokens
	Refresh    RefreshStore
	Sessions   SessionStore
	Principals PrincipalStore

	RefreshTTL       time.Duration
	MaxRefreshTokens int
	NewSessionID     func(time.Time) (string, error)
	Now              func() time.Time
	Warn             func(string, ...any)
}

// Issued is the outcome of a successful issuance.
type Issued struct {
	Principal        principal.Principal
	AccessToken      string
	Claims           *jwt.AccessClaims
	RefreshToken     string
	RefreshExpiresAt time.Time
	SessionID        string
	Evicted          []refresh.Evicted
	// SessionsEnded counts sessions this flow moved from active to inactive.
	SessionsEnded int
}

// AuthResult is returned by flows that authenticate and issue tokens.
type AuthResult struct {
	Failure FailureKind
	Err     error
	// Detail is a client-safe explanation for some failures.
	Detail      string
	Issued      Issued
	Provisioned bool
}

func fail(kind FailureKind, err error) AuthResult {
	return AuthResult{Failure: kind, Err: err}
}

// RunIssue mints a token pair for p. A non-empty refreshToken is used as the
// refresh value instead of generating one, which lets rotation commit to the
// successor before it is stored.
//
// Steps: refresh value, session id, access token snapshot, refresh insert
// with eviction, session create, best-effort deactivation of evicted
// sessions, best-effort last-login stamp.
func RunIssue(ctx context.Context, p principal.Principal, refreshToken string, req Request, deps IssueDeps) AuthResult {
	if deps.Tokens == nil || deps.Refresh == nil || deps.Sessions == nil || deps.NewSessionID == nil {
		return fail(FailureNotReady, nil)
	}
	now := nowOr(deps.Now)()
	warn := warnOrNop(deps.Warn)

	if refreshToken == "" {
		var err error
		refreshToken, err = deps.Tokens.IssueRefreshToken()
		if err != nil {
			return fail(FailureIssue, err)
		}
	}

	sid, err := deps.NewSessionID(now)
	if err != nil {
		return fail(FailureIssue, err)
	}

	access, claims, err := deps.Tokens.IssueAccess(jwt.Subject{
		PrincipalID:  p.ID,
		Name:         p.Username,
		Permissions:  p.Permissions.Raw(),
		TokenVersion: p.TokenVersion,
		AuthType:     uint8(p.AuthType),
		SessionID:    sid,
	})
	if err != nil {
		return fail(FailureIssue, err)
	}

	rec := refresh.Record{
		PrincipalID: p.ID,
		IssuedAt:    now,
		ExpiresAt:   now.Add(deps.RefreshTTL),
		AuthType:    uint8(p.AuthType),
		CreatedByIP: req.IP,
		UserAgent:   req.UserAgent,
		DeviceInfo:  req.DeviceInfo,
		SessionID:   sid,
	}
	evicted, err := deps.Refresh.Insert(ctx, refreshToken, rec, deps.MaxRefreshTokens, req.IP)
	if err != nil {
		return fail(FailureStore, err)
	}

	err = deps.Sessions.Create(ctx, session.Record{
		ID:           sid,
		PrincipalID:  p.ID,
		IP:           req.IP,
		UserAgent:    req.UserAgent,
		DeviceInfo:   req.DeviceInfo,
		AuthType:     uint8(p.AuthType),
		CreatedAt:    now,
		LastAccessAt: now,
	})
	if err != nil {
		// Retire the refresh token so no pair exists without its session.
		if _, rerr := deps.Refresh.Revoke(ctx, refreshToken, refresh.Revocation{IP: req.IP, Reason: refresh.ReasonRevoked}); rerr != nil {
			warn("authcore: orphan refresh token revoke failed", "principal_id", p.ID, "error", rerr)
		}
		return fail(FailureStore, err)
	}

	ended := 0
	for _, ev := range evicted {
		if ev.SessionID == "" {
			continue
		}
		ok, err := deps.Sessions.Deactivate(ctx, ev.SessionID)
		if err != nil {
			warn("authcore: evicted session deactivate failed", "principal_id", p.ID, "error", err)
			continue
		}
		if ok {
			ended++
		}
	}

	if deps.Principals != nil {
		if err := deps.Principals.RecordLogin(ctx, p.ID, now); err != nil {
			warn("authcore: last login update failed", "principal_id", p.ID, "error", err)
		} else {
			at := now
			p.LastLoginAt = &at
		}
	}

	return AuthResult{Issued: Issued{
		Principal:        p,
		AccessToken:      access,
		Claims:           claims,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: rec.ExpiresAt,
		SessionID:        sid,
		Evicted:          evicted,
		SessionsEnded:    ended,
	}}
}
