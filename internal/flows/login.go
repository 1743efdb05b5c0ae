package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/authcore/credential"
	"github.com/MrEthical07/authcore/internal/rate"
)

// LoginDeps captures password and external login dependencies.
type LoginDeps struct {
	Verifier CredentialVerifier
	// Throttle is optional.
	Throttle LoginThrottle
	Warn     func(string, ...any)
}

// RunLogin executes throttle check, credential verification and issuance.
func RunLogin(ctx context.Context, username, secret string, req Request, deps LoginDeps, issue IssueDeps) AuthResult {
	if deps.Verifier == nil {
		return fail(FailureNotReady, nil)
	}
	warn := warnOrNop(deps.Warn)

	if deps.Throttle != nil {
		if err := deps.Throttle.CheckLogin(ctx, username, req.IP); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				return fail(FailureRateLimited, err)
			}
			return fail(FailureStore, err)
		}
	}

	p, err := deps.Verifier.Verify(ctx, username, secret)
	if err != nil {
		kind := verifyFailure(err)
		if kind == FailureInvalidCredentials && deps.Throttle != nil && username != "" {
			if terr := deps.Throttle.IncrementLogin(ctx, username, req.IP); terr != nil {
				warn("authcore: login throttle increment failed", "error", terr)
			}
		}
		return fail(kind, err)
	}

	if deps.Throttle != nil {
		if err := deps.Throttle.ResetLogin(ctx, username); err != nil {
			warn("authcore: login throttle reset failed", "error", err)
		}
	}
	return RunIssue(ctx, p, "", req, issue)
}

// RunLoginExternal resolves (or provisions) the asserted identity and issues
// tokens for it. Provisioned reports the insert side effect.
func RunLoginExternal(ctx context.Context, identity, domain string, req Request, deps LoginDeps, issue IssueDeps) AuthResult {
	if deps.Verifier == nil {
		return fail(FailureNotReady, nil)
	}
	p, created, err := deps.Verifier.ResolveOrProvision(ctx, identity, domain)
	if err != nil {
		return fail(verifyFailure(err), err)
	}
	res := RunIssue(ctx, p, "", req, issue)
	res.Provisioned = created
	return res
}

func verifyFailure(err error) FailureKind {
	switch {
	case errors.Is(err, credential.ErrInvalidCredentials):
		return FailureInvalidCredentials
	case errors.Is(err, credential.ErrAccountInactive):
		return FailureAccountInactive
	case errors.Is(err, credential.ErrWrongAuthType):
		return FailureWrongAuthType
	case errors.Is(err, credential.ErrMalformedIdentity):
		return FailureMalformedIdentity
	case errors.Is(err, credential.ErrDuplicateIdentity):
		return FailureDuplicateIdentity
	default:
		return FailureStore
	}
}
