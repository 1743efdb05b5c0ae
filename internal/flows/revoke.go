package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/authcore/principal"
	"github.com/MrEthical07/authcore/refresh"
)

// RevokeDeps captures single and bulk revocation dependencies.
type RevokeDeps struct {
	Tokens     Tokens
	Refresh    RefreshStore
	Blacklist  BlacklistStore
	Sessions   SessionStore
	Principals PrincipalStore
}

// RevokeResult reports a single-token revocation.
type RevokeResult struct {
	Failure FailureKind
	Err     error

	Record          refresh.Record
	AlreadyInactive bool
	Blacklisted     bool
}

// RunRevoke retires one refresh token, its session and the presented access
// token. Revoking an already inactive token succeeds. Other outstanding
// access tokens of the principal stay valid until they expire or a bulk
// revoke bumps the token version.
func RunRevoke(ctx context.Context, refreshToken, reason string, req Request, deps RevokeDeps) RevokeResult {
	if deps.Refresh == nil || deps.Tokens == nil {
		return RevokeResult{Failure: FailureNotReady}
	}
	if reason == "" {
		reason = refresh.ReasonRevoked
	}

	rec, err := deps.Refresh.Lookup(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, refresh.ErrNotFound) {
			return RevokeResult{Failure: FailureTokenNotFound, Err: err}
		}
		return RevokeResult{Failure: FailureStore, Err: err}
	}

	res := RevokeResult{Record: rec}
	revoked, err := deps.Refresh.Revoke(ctx, refreshToken, refresh.Revocation{IP: req.IP, Reason: reason})
	switch {
	case err == nil:
		res.Record = revoked
	case errors.Is(err, refresh.ErrInactive):
		res.Record = revoked
		res.AlreadyInactive = true
	case errors.Is(err, refresh.ErrNotFound):
		return RevokeResult{Failure: FailureTokenNotFound, Err: err}
	default:
		return RevokeResult{Failure: FailureStore, Err: err}
	}

	if deps.Sessions != nil && rec.SessionID != "" {
		if _, err := deps.Sessions.Deactivate(ctx, rec.SessionID); err != nil {
			res.Failure, res.Err = FailureStore, err
			return res
		}
	}
	if deps.Blacklist != nil {
		added, err := blacklistBearer(ctx, deps.Tokens, deps.Blacklist, req.BearerToken, reason, rec.PrincipalID, req.IP)
		if err != nil {
			res.Failure, res.Err = FailureStore, err
			return res
		}
		res.Blacklisted = added
	}
	return res
}

// RevokeAllResult reports a bulk revocation.
type RevokeAllResult struct {
	Failure FailureKind
	Err     error

	RevokedTokens       int
	DeactivatedSessions int
	TokenVersion        int64
	Blacklisted         bool
}

// RunRevokeAll retires every refresh token, the presented access token,
// every outstanding access token (through the token version bump) and every
// session of the principal. The bump follows the refresh revocation so a
// racing rotation can only mint tokens that carry the old version.
func RunRevokeAll(ctx context.Context, principalID int64, reason string, req Request, deps RevokeDeps) RevokeAllResult {
	if deps.Refresh == nil || deps.Principals == nil || deps.Tokens == nil {
		return RevokeAllResult{Failure: FailureNotReady}
	}
	if reason == "" {
		reason = refresh.ReasonLogoutAll
	}

	var res RevokeAllResult
	n, err := deps.Refresh.RevokeAll(ctx, principalID, refresh.Revocation{IP: req.IP, Reason: reason})
	if err != nil {
		return RevokeAllResult{Failure: FailureStore, Err: err}
	}
	res.RevokedTokens = n

	if deps.Blacklist != nil {
		added, err := blacklistBearer(ctx, deps.Tokens, deps.Blacklist, req.BearerToken, reason, principalID, req.IP)
		if err != nil {
			res.Failure, res.Err = FailureStore, err
			return res
		}
		res.Blacklisted = added
	}

	version, err := deps.Principals.IncrementTokenVersion(ctx, principalID)
	if err != nil {
		if errors.Is(err, principal.ErrNotFound) {
			res.Failure, res.Err = FailurePrincipalNotFound, err
		} else {
			res.Failure, res.Err = FailureStore, err
		}
		return res
	}
	res.TokenVersion = version

	if deps.Sessions != nil {
		d, err := deps.Sessions.DeactivateAll(ctx, principalID)
		if err != nil {
			res.Failure, res.Err = FailureStore, err
			return res
		}
		res.DeactivatedSessions = d
	}
	return res
}
