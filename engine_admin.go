package authcore

import (
	"context"
	"errors"
	"strconv"

	"github.com/MrEthical07/authcore/internal/flows"
	"github.com/MrEthical07/authcore/permission"
	"github.com/MrEthical07/authcore/principal"
	"github.com/MrEthical07/authcore/refresh"
)

// ReasonDeactivated is recorded on refresh tokens retired by
// [Engine.SetActive].
const ReasonDeactivated = "deactivated"

// ChangePermissions replaces the principal's permission mask and bumps its
// token version so access tokens carrying the old snapshot stop validating.
func (e *Engine) ChangePermissions(ctx context.Context, principalID int64, mask permission.Mask, rc RequestContext) (int64, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	before, err := e.principals.GetByID(ctx, principalID)
	if err != nil {
		return 0, e.principalError(err)
	}
	if err := e.principals.UpdatePermissions(ctx, principalID, mask); err != nil {
		return 0, e.principalError(err)
	}
	version, err := e.principals.IncrementTokenVersion(ctx, principalID)
	if err != nil {
		return 0, e.principalError(err)
	}

	e.metricInc(MetricPermissionChange)
	e.emitAudit(ctx, auditEventPermissionChange, true, principalID, "", rc, nil, func() map[string]string {
		return map[string]string{
			"from":          strconv.FormatUint(before.Permissions.Raw(), 10),
			"to":            strconv.FormatUint(mask.Raw(), 10),
			"token_version": strconv.FormatInt(version, 10),
		}
	})
	return version, nil
}

// SetActive activates or deactivates a principal. Deactivation also retires
// every refresh token and session and bumps the token version.
func (e *Engine) SetActive(ctx context.Context, principalID int64, active bool, rc RequestContext) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if err := e.principals.SetActive(ctx, principalID, active); err != nil {
		return e.principalError(err)
	}

	if !active {
		e.metricInc(MetricPrincipalDeactivated)
		res := flows.RunRevokeAll(ctx, principalID, ReasonDeactivated, rc.flow(), e.deps.Revoke)
		if res.Failure != flows.FailureNone {
			err := e.mapFailure(res.Failure, res.Err, "")
			e.emitAudit(ctx, auditEventStatusChange, false, principalID, "", rc, err, nil)
			return err
		}
		e.metrics.Add(MetricSessionDeactivated, uint64(res.DeactivatedSessions))
	}

	e.emitAudit(ctx, auditEventStatusChange, true, principalID, "", rc, nil, func() map[string]string {
		return map[string]string{"active": strconv.FormatBool(active)}
	})
	return nil
}

// HasPermission reports whether mask holds capability. Callers usually
// pass ValidationResult.Permissions.
func (e *Engine) HasPermission(mask, capability permission.Mask) bool {
	return permission.Has(mask, capability)
}

// PermissionNames lists the primitive capabilities in mask.
func (e *Engine) PermissionNames(mask permission.Mask) []string {
	return permission.NamesOf(mask)
}

// ActiveSessionCount returns the number of active sessions of a principal.
func (e *Engine) ActiveSessionCount(ctx context.Context, principalID int64) (int, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	n, err := e.sessions.ActiveCount(ctx, principalID)
	if err != nil {
		return 0, e.storeError(err)
	}
	return n, nil
}

// ActiveSessions lists active sessions, oldest first. A zero authType lists
// every session.
func (e *Engine) ActiveSessions(ctx context.Context, principalID int64, authType principal.AuthType) ([]SessionInfo, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	recs, err := e.sessions.ListActive(ctx, principalID)
	if err != nil {
		return nil, e.storeError(err)
	}
	if authType == 0 {
		return recs, nil
	}
	out := recs[:0]
	for _, r := range recs {
		if principal.AuthType(r.AuthType) == authType {
			out = append(out, r)
		}
	}
	return out, nil
}

// ActiveRefreshTokens lists the principal's active refresh tokens by hash,
// oldest first. A zero authType lists every token.
func (e *Engine) ActiveRefreshTokens(ctx context.Context, principalID int64, authType principal.AuthType) ([]RefreshTokenInfo, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	recs, err := e.refresh.ListActive(ctx, principalID)
	if err != nil {
		return nil, e.storeError(err)
	}
	if authType == 0 {
		return recs, nil
	}
	out := make([]refresh.Record, 0, len(recs))
	for _, r := range recs {
		if principal.AuthType(r.AuthType) == authType {
			out = append(out, r)
		}
	}
	return out, nil
}

func (e *Engine) principalError(err error) error {
	if errors.Is(err, principal.ErrNotFound) {
		return ErrPrincipalNotFound
	}
	return e.storeError(err)
}
