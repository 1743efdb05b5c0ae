package authcore

import (
	"context"
	"errors"
)

const (
	auditEventLoginSuccess         = "login_success"
	auditEventLoginFailure         = "login_failure"
	auditEventLoginRateLimited     = "login_rate_limited"
	auditEventExternalLogin        = "external_login"
	auditEventPrincipalProvisioned = "principal_provisioned"
	auditEventRegister             = "register"
	auditEventRefreshSuccess       = "refresh_success"
	auditEventRefreshFailure       = "refresh_failure"
	auditEventRefreshEviction      = "refresh_eviction"
	auditEventRevoke               = "revoke"
	auditEventRevokeAll            = "revoke_all"
	auditEventPermissionChange     = "permission_change"
	auditEventStatusChange         = "status_change"
)

// AuditErrorCode is the stable error label written into audit events.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrAccountInactive    AuditErrorCode = "account_inactive"
	auditErrWrongAuthType      AuditErrorCode = "wrong_auth_type"
	auditErrMalformedIdentity  AuditErrorCode = "malformed_identity"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrTokenNotFound      AuditErrorCode = "token_not_found"
	auditErrTokenInactive      AuditErrorCode = "token_inactive"
	auditErrPrincipalNotFound  AuditErrorCode = "principal_not_found"
	auditErrInvalidRequest     AuditErrorCode = "invalid_request"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	principalID int64,
	sessionID string,
	rc RequestContext,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp:   e.clock.Now().UTC(),
		Type:        eventType,
		PrincipalID: principalID,
		SessionID:   sessionID,
		IP:          rc.IP,
		UserAgent:   rc.UserAgent,
		Success:     success,
		Metadata:    metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}
	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrAccountInactive):
		return auditErrAccountInactive
	case errors.Is(err, ErrWrongAuthType):
		return auditErrWrongAuthType
	case errors.Is(err, ErrMalformedIdentity):
		return auditErrMalformedIdentity
	case errors.Is(err, ErrDuplicateIdentity):
		return auditErrDuplicate
	case errors.Is(err, ErrLoginRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrTokenNotFound):
		return auditErrTokenNotFound
	case errors.Is(err, ErrTokenInactive):
		return auditErrTokenInactive
	case errors.Is(err, ErrPrincipalNotFound):
		return auditErrPrincipalNotFound
	case errors.Is(err, ErrInvalidRequest):
		return auditErrInvalidRequest
	case errors.Is(err, ErrStoreUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
