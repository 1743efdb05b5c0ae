package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/authcore/principal"
	"github.com/MrEthical07/authcore/refresh"
)

// RefreshDeps captures rotation dependencies.
type RefreshDeps struct {
	Tokens     Tokens
	Refresh    RefreshStore
	Blacklist  BlacklistStore
	Sessions   SessionStore
	Principals PrincipalStore
	Warn       func(string, ...any)
}

// RunRefresh rotates refreshToken. The conditional revoke is the
// linearization point: of N concurrent callers presenting the same value
// exactly one proceeds to issuance, and the presented value is never active
// afterwards whatever the outcome.
func RunRefresh(ctx context.Context, refreshToken string, req Request, deps RefreshDeps, issue IssueDeps) AuthResult {
	if deps.Tokens == nil || deps.Refresh == nil || deps.Principals == nil {
		return fail(FailureNotReady, nil)
	}
	now := nowOr(issue.Now)()
	warn := warnOrNop(deps.Warn)

	rec, err := deps.Refresh.Lookup(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, refresh.ErrNotFound) {
			return fail(FailureTokenNotFound, err)
		}
		return fail(FailureStore, err)
	}
	if !rec.IsActive(now) {
		return fail(FailureTokenInactive, refresh.ErrInactive)
	}

	p, err := deps.Principals.GetByID(ctx, rec.PrincipalID)
	missing := errors.Is(err, principal.ErrNotFound)
	if err != nil && !missing {
		return fail(FailureStore, err)
	}

	successor, err := deps.Tokens.IssueRefreshToken()
	if err != nil {
		return fail(FailureIssue, err)
	}

	_, err = deps.Refresh.Revoke(ctx, refreshToken, refresh.Revocation{
		IP:         req.IP,
		ReplacedBy: refresh.Hash(successor),
		Reason:     refresh.ReasonRotated,
	})
	switch {
	case errors.Is(err, refresh.ErrInactive):
		return fail(FailureTokenInactive, err)
	case errors.Is(err, refresh.ErrNotFound):
		return fail(FailureTokenNotFound, err)
	case err != nil:
		return fail(FailureStore, err)
	}

	if missing || !p.Active {
		return fail(FailureAccountInactive, nil)
	}

	ended := false
	if deps.Sessions != nil && rec.SessionID != "" {
		ok, err := deps.Sessions.Deactivate(ctx, rec.SessionID)
		if err != nil {
			warn("authcore: session deactivate failed", "principal_id", p.ID, "error", err)
		}
		ended = ok
	}
	if deps.Blacklist != nil {
		if _, err := blacklistBearer(ctx, deps.Tokens, deps.Blacklist, req.BearerToken, refresh.ReasonRotated, p.ID, req.IP); err != nil {
			warn("authcore: access token blacklist failed", "principal_id", p.ID, "error", err)
		}
	}

	res := RunIssue(ctx, p, successor, req, issue)
	if ended {
		res.Issued.SessionsEnded++
	}
	return res
}
