package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/principal"
)

// Validation reasons.
const (
	ReasonValid                = ""
	ReasonInvalid              = "invalid"
	ReasonExpired              = "expired"
	ReasonBlacklisted          = "blacklisted"
	ReasonPrincipalNotFound    = "principal_not_found"
	ReasonPrincipalInactive    = "principal_inactive"
	ReasonTokenVersionMismatch = "token_version_mismatch"
)

// ValidateDeps captures access-token validation dependencies. Sessions is
// optional; when set, a valid token touches the session it was issued for.
type ValidateDeps struct {
	Tokens     Tokens
	Blacklist  BlacklistStore
	Principals PrincipalStore
	Sessions   SessionStore
	Warn       func(string, ...any)
}

// ValidateResult carries either a verdict or a store failure. Failure is
// only set for backing-store errors; a rejected token is Valid=false with a
// Reason.
type ValidateResult struct {
	Failure FailureKind
	Err     error

	Valid     bool
	Reason    string
	Claims    *jwt.AccessClaims
	Principal principal.Principal
	ExpiresAt time.Time
}

// RunValidate checks, in order: signature and claims, blacklist, principal
// existence and status, token version. The first failing check decides the
// reason. Only a valid token refreshes its session's last access.
func RunValidate(ctx context.Context, accessToken string, deps ValidateDeps) ValidateResult {
	if deps.Tokens == nil || deps.Blacklist == nil || deps.Principals == nil {
		return ValidateResult{Failure: FailureNotReady}
	}

	claims, err := deps.Tokens.ParseAccess(accessToken)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ValidateResult{Reason: ReasonExpired, Err: err}
		}
		return ValidateResult{Reason: ReasonInvalid, Err: err}
	}
	res := ValidateResult{Claims: claims}
	if claims.ExpiresAt != nil {
		res.ExpiresAt = claims.ExpiresAt.Time
	}

	pid, err := claims.PrincipalID()
	if err != nil {
		res.Reason = ReasonInvalid
		return res
	}

	listed, err := deps.Blacklist.Contains(ctx, claims.ID)
	if err != nil {
		return ValidateResult{Failure: FailureStore, Err: err}
	}
	if listed {
		res.Reason = ReasonBlacklisted
		return res
	}

	p, err := deps.Principals.GetByID(ctx, pid)
	if err != nil {
		if errors.Is(err, principal.ErrNotFound) {
			res.Reason = ReasonPrincipalNotFound
			return res
		}
		return ValidateResult{Failure: FailureStore, Err: err}
	}
	res.Principal = p
	if !p.Active {
		res.Reason = ReasonPrincipalInactive
		return res
	}
	if p.TokenVersion != claims.TokenVersion {
		res.Reason = ReasonTokenVersionMismatch
		return res
	}

	res.Valid = true
	if deps.Sessions != nil && claims.SessionID != "" {
		if _, err := deps.Sessions.Touch(ctx, claims.SessionID); err != nil {
			warnOrNop(deps.Warn)("authcore: session touch failed", "principal_id", pid, "error", err)
		}
	}
	return res
}
