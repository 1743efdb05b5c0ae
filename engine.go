package authcore

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/MrEthical07/authcore/blacklist"
	"github.com/MrEthical07/authcore/credential"
	"github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/internal/flows"
	"github.com/MrEthical07/authcore/internal/rate"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/permission"
	"github.com/MrEthical07/authcore/principal"
	"github.com/MrEthical07/authcore/refresh"
	"github.com/MrEthical07/authcore/session"
	"k8s.io/utils/clock"
)

// Engine orchestrates credential verification, token issuance, rotation,
// revocation and validation.
//
// Engine instances are configured through [Builder] and then treated as
// immutable.
type Engine struct {
	config     Config
	clock      clock.WithTicker
	logger     *slog.Logger
	principals principal.Store
	hasher     *password.Hasher
	verifier   *credential.Verifier
	tokens     *jwt.Manager
	refresh    *refresh.Store
	blacklist  *blacklist.Store
	sessions   *session.Store
	throttle   *rate.Limiter
	audit      *audit.Dispatcher
	metrics    *Metrics
	deps       flows.Deps
}

// Close flushes pending audit events. It does not close the Redis client or
// the principal store.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// AuditDropped returns how many audit events were discarded under
// backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return NewMetrics(MetricsConfig{}).Snapshot()
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() bool {
	return e != nil && e.tokens != nil && e.principals != nil
}

// Login verifies username and secret and issues a token pair.
//
// Unknown principals and wrong secrets both yield [ErrInvalidCredentials].
// [ErrLoginRateLimited] is returned once the throttle trips.
func (e *Engine) Login(ctx context.Context, username, secret string, rc RequestContext) (*AuthResponse, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	res := flows.RunLogin(ctx, username, secret, rc.flow(), e.deps.Login, e.deps.Issue)
	if res.Failure != flows.FailureNone {
		err := e.mapFailure(res.Failure, res.Err, res.Detail)
		switch res.Failure {
		case flows.FailureRateLimited:
			e.metricInc(MetricLoginRateLimited)
			e.emitAudit(ctx, auditEventLoginRateLimited, false, 0, "", rc, err, nil)
		default:
			e.metricInc(MetricLoginFailure)
			e.emitAudit(ctx, auditEventLoginFailure, false, 0, "", rc, err, func() map[string]string {
				return map[string]string{"identifier": username}
			})
		}
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.onIssued(ctx, res.Issued, rc)
	e.emitAudit(ctx, auditEventLoginSuccess, true, res.Issued.Principal.ID, res.Issued.SessionID, rc, nil, nil)
	return e.response(res), nil
}

// LoginExternal authenticates an identity asserted by an upstream
// authenticator (for example "CORP\jdoe"). A principal that does not exist
// yet is provisioned with the default grant; AuthResponse.Provisioned
// reports that side effect.
func (e *Engine) LoginExternal(ctx context.Context, identity, domain string, rc RequestContext) (*AuthResponse, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	res := flows.RunLoginExternal(ctx, identity, domain, rc.flow(), e.deps.Login, e.deps.Issue)
	if res.Failure != flows.FailureNone {
		err := e.mapFailure(res.Failure, res.Err, res.Detail)
		e.metricInc(MetricExternalLoginFailure)
		e.emitAudit(ctx, auditEventExternalLogin, false, 0, "", rc, err, nil)
		return nil, err
	}

	e.metricInc(MetricExternalLoginSuccess)
	if res.Provisioned {
		e.metricInc(MetricPrincipalProvisioned)
		e.emitAudit(ctx, auditEventPrincipalProvisioned, true, res.Issued.Principal.ID, "", rc, nil, func() map[string]string {
			return map[string]string{"domain": res.Issued.Principal.Domain}
		})
	}
	e.onIssued(ctx, res.Issued, rc)
	e.emitAudit(ctx, auditEventExternalLogin, true, res.Issued.Principal.ID, res.Issued.SessionID, rc, nil, nil)
	return e.response(res), nil
}

// Register creates an active password principal with the default grant and
// logs it in. Existing usernames or emails yield [ErrDuplicateIdentity].
func (e *Engine) Register(ctx context.Context, req RegisterRequest, rc RequestContext) (*AuthResponse, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	res := flows.RunRegister(ctx, flows.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Secret:   req.Secret,
	}, rc.flow(), e.deps.Register, e.deps.Issue)
	if res.Failure != flows.FailureNone {
		err := e.mapFailure(res.Failure, res.Err, res.Detail)
		if res.Failure == flows.FailureDuplicateIdentity {
			e.metricInc(MetricRegisterDuplicate)
		} else {
			e.metricInc(MetricRegisterFailure)
		}
		e.emitAudit(ctx, auditEventRegister, false, 0, "", rc, err, nil)
		return nil, err
	}

	e.metricInc(MetricRegisterSuccess)
	e.onIssued(ctx, res.Issued, rc)
	e.emitAudit(ctx, auditEventRegister, true, res.Issued.Principal.ID, res.Issued.SessionID, rc, nil, nil)
	return e.response(res), nil
}

// Refresh rotates refreshToken into a new pair. The presented token is
// retired whatever the outcome; concurrent presentations of one value yield
// exactly one success and [ErrTokenInactive] for the rest. rc.BearerToken,
// when readable, is blacklisted.
func (e *Engine) Refresh(ctx context.Context, refreshToken string, rc RequestContext) (*AuthResponse, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	res := flows.RunRefresh(ctx, refreshToken, rc.flow(), e.deps.Refresh, e.deps.Issue)
	if res.Failure != flows.FailureNone {
		err := e.mapFailure(res.Failure, res.Err, res.Detail)
		if res.Failure == flows.FailureTokenInactive {
			e.metricInc(MetricRefreshInactive)
		}
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshFailure, false, 0, "", rc, err, nil)
		return nil, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.onIssued(ctx, res.Issued, rc)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, res.Issued.Principal.ID, res.Issued.SessionID, rc, nil, nil)
	return e.response(res), nil
}

// Revoke retires refreshToken and its session and blacklists rc.BearerToken.
// Revoking an already inactive token succeeds. An empty reason records
// "revoke".
//
// Other access tokens of the principal stay valid until they expire; use
// [Engine.RevokeAll] to invalidate them.
func (e *Engine) Revoke(ctx context.Context, refreshToken, reason string, rc RequestContext) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	res := flows.RunRevoke(ctx, refreshToken, reason, rc.flow(), e.deps.Revoke)
	if res.Failure != flows.FailureNone {
		err := e.mapFailure(res.Failure, res.Err, "")
		e.emitAudit(ctx, auditEventRevoke, false, res.Record.PrincipalID, res.Record.SessionID, rc, err, nil)
		return err
	}

	e.metricInc(MetricRevoke)
	if !res.AlreadyInactive {
		e.metricInc(MetricSessionDeactivated)
	}
	if res.Blacklisted {
		e.metricInc(MetricAccessTokenBlacklisted)
	}
	e.emitAudit(ctx, auditEventRevoke, true, res.Record.PrincipalID, res.Record.SessionID, rc, nil, func() map[string]string {
		return map[string]string{
			"reason":           res.Record.RevokeReason,
			"already_inactive": strconv.FormatBool(res.AlreadyInactive),
		}
	})
	return nil
}

// Logout is [Engine.Revoke] with reason "logout".
func (e *Engine) Logout(ctx context.Context, refreshToken string, rc RequestContext) error {
	return e.Revoke(ctx, refreshToken, refresh.ReasonLogout, rc)
}

// RevokeAll retires every refresh token and session of the principal,
// blacklists rc.BearerToken and bumps the token version so every earlier
// access token fails validation.
func (e *Engine) RevokeAll(ctx context.Context, principalID int64, reason string, rc RequestContext) (RevokeAllResult, error) {
	if !e.ready() {
		return RevokeAllResult{}, ErrEngineNotReady
	}
	res := flows.RunRevokeAll(ctx, principalID, reason, rc.flow(), e.deps.Revoke)
	out := RevokeAllResult{
		RevokedTokens:       res.RevokedTokens,
		DeactivatedSessions: res.DeactivatedSessions,
		TokenVersion:        res.TokenVersion,
	}
	if res.Failure != flows.FailureNone {
		err := e.mapFailure(res.Failure, res.Err, "")
		e.emitAudit(ctx, auditEventRevokeAll, false, principalID, "", rc, err, nil)
		return out, err
	}

	e.metricInc(MetricRevokeAll)
	e.metrics.Add(MetricSessionDeactivated, uint64(res.DeactivatedSessions))
	if res.Blacklisted {
		e.metricInc(MetricAccessTokenBlacklisted)
	}
	e.emitAudit(ctx, auditEventRevokeAll, true, principalID, "", rc, nil, func() map[string]string {
		return map[string]string{
			"revoked_tokens": strconv.Itoa(res.RevokedTokens),
			"token_version":  strconv.FormatInt(res.TokenVersion, 10),
		}
	})
	return out, nil
}

// Validate checks accessToken. A rejected token is a result with IsValid
// false and a Reason, not an error; errors are reserved for store failures.
func (e *Engine) Validate(ctx context.Context, accessToken string) (*ValidationResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	start := e.clock.Now()
	res := flows.RunValidate(ctx, accessToken, e.deps.Validate)
	e.metrics.Observe(MetricValidateLatency, e.clock.Since(start))

	if res.Failure != flows.FailureNone {
		return nil, e.mapFailure(res.Failure, res.Err, "")
	}
	if !res.Valid {
		e.metricInc(MetricValidateRejected)
	} else {
		e.metricInc(MetricValidateSuccess)
	}

	out := &ValidationResult{
		IsValid:   res.Valid,
		Reason:    res.Reason,
		ExpiresAt: res.ExpiresAt,
	}
	if c := res.Claims; c != nil {
		out.PrincipalID, _ = c.PrincipalID()
		out.Name = c.Name
		out.Permissions = permission.Mask(c.Permissions)
		out.AuthType = principal.AuthType(c.AuthType)
		out.TokenVersion = c.TokenVersion
		out.TokenID = c.ID
		out.SessionID = c.SessionID
	}
	return out, nil
}

func (e *Engine) onIssued(ctx context.Context, is flows.Issued, rc RequestContext) {
	e.metricInc(MetricSessionCreated)
	if is.SessionsEnded > 0 {
		e.metrics.Add(MetricSessionDeactivated, uint64(is.SessionsEnded))
	}
	if n := len(is.Evicted); n > 0 {
		e.metrics.Add(MetricRefreshTokenEvicted, uint64(n))
		e.emitAudit(ctx, auditEventRefreshEviction, true, is.Principal.ID, is.SessionID, rc, nil, func() map[string]string {
			return map[string]string{"evicted": strconv.Itoa(n)}
		})
	}
}

func (e *Engine) response(res flows.AuthResult) *AuthResponse {
	is := res.Issued
	out := &AuthResponse{
		AccessToken:        is.AccessToken,
		RefreshToken:       is.RefreshToken,
		TokenType:          "Bearer",
		RefreshExpiresAt:   is.RefreshExpiresAt,
		SessionID:          is.SessionID,
		Principal:          summarize(is.Principal),
		AuthType:           is.Principal.AuthType,
		GrantedPermissions: is.Principal.Permissions,
		PermissionNames:    permission.NamesOf(is.Principal.Permissions),
		Provisioned:        res.Provisioned,
	}
	if is.Claims != nil && is.Claims.ExpiresAt != nil {
		out.ExpiresAt = is.Claims.ExpiresAt.Time
	}
	return out
}

// mapFailure converts a flow failure into a public sentinel. Store failures
// are logged with their cause and surface as ErrStoreUnavailable.
func (e *Engine) mapFailure(kind flows.FailureKind, cause error, detail string) error {
	switch kind {
	case flows.FailureNotReady:
		return ErrEngineNotReady
	case flows.FailureRateLimited:
		return ErrLoginRateLimited
	case flows.FailureInvalidCredentials:
		return ErrInvalidCredentials
	case flows.FailureAccountInactive:
		return ErrAccountInactive
	case flows.FailureWrongAuthType:
		return ErrWrongAuthType
	case flows.FailureMalformedIdentity:
		return ErrMalformedIdentity
	case flows.FailureDuplicateIdentity:
		if detail == "" {
			return ErrDuplicateIdentity
		}
		return fmt.Errorf("%w: %s", ErrDuplicateIdentity, detail)
	case flows.FailureInvalidInput:
		if detail == "" {
			return ErrInvalidRequest
		}
		return fmt.Errorf("%w: %s", ErrInvalidRequest, detail)
	case flows.FailureTokenNotFound:
		return ErrTokenNotFound
	case flows.FailureTokenInactive:
		return ErrTokenInactive
	case flows.FailurePrincipalNotFound:
		return ErrPrincipalNotFound
	case flows.FailureIssue:
		e.logger.Error("authcore: token issuance failed", "error", cause)
		return fmt.Errorf("authcore: token issuance: %w", cause)
	default:
		return e.storeError(cause)
	}
}

func (e *Engine) storeError(cause error) error {
	e.metricInc(MetricStoreFailure)
	e.logger.Error("authcore: store failure", "error", cause)
	if cause == nil {
		return ErrStoreUnavailable
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, cause)
}

// Ping checks the Redis connection shared by the token and session stores.
func (e *Engine) Ping(ctx context.Context) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if err := e.refresh.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
