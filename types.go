package authcore

import (
	"time"

	"github.com/MrEthical07/authcore/internal/flows"
	"github.com/MrEthical07/authcore/permission"
	"github.com/MrEthical07/authcore/principal"
	"github.com/MrEthical07/authcore/refresh"
	"github.com/MrEthical07/authcore/session"
)

// RequestContext is the immutable caller context passed into every engine
// operation.
type RequestContext struct {
	IP          string
	UserAgent   string
	BearerToken string
	DeviceInfo  string
}

func (rc RequestContext) flow() flows.Request {
	return flows.Request{
		IP:          rc.IP,
		UserAgent:   rc.UserAgent,
		BearerToken: rc.BearerToken,
		DeviceInfo:  rc.DeviceInfo,
	}
}

// PrincipalSummary is the client-safe view of a principal.
type PrincipalSummary struct {
	ID          int64      `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	Domain      string     `json:"domain,omitempty"`
	Active      bool       `json:"active"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

func summarize(p principal.Principal) PrincipalSummary {
	return PrincipalSummary{
		ID:          p.ID,
		Username:    p.Username,
		Email:       p.Email,
		Domain:      p.Domain,
		Active:      p.Active,
		LastLoginAt: p.LastLoginAt,
	}
}

// AuthResponse is returned by every operation that issues a token pair.
type AuthResponse struct {
	AccessToken        string             `json:"access_token"`
	RefreshToken       string             `json:"refresh_token"`
	TokenType          string             `json:"token_type"`
	ExpiresAt          time.Time          `json:"expires_at"`
	RefreshExpiresAt   time.Time          `json:"refresh_expires_at"`
	SessionID          string             `json:"session_id"`
	Principal          PrincipalSummary   `json:"principal"`
	AuthType           principal.AuthType `json:"auth_type"`
	GrantedPermissions permission.Mask    `json:"granted_permissions"`
	PermissionNames    []string           `json:"permission_names"`
	// Provisioned is set when an external login created the principal.
	Provisioned bool `json:"provisioned,omitempty"`
}

// RegisterRequest is a self-service registration.
type RegisterRequest struct {
	Username string
	Email    string
	Secret   string
}

// Validation reasons reported by [Engine.Validate].
const (
	ReasonInvalid              = flows.ReasonInvalid
	ReasonExpired              = flows.ReasonExpired
	ReasonBlacklisted          = flows.ReasonBlacklisted
	ReasonPrincipalNotFound    = flows.ReasonPrincipalNotFound
	ReasonPrincipalInactive    = flows.ReasonPrincipalInactive
	ReasonTokenVersionMismatch = flows.ReasonTokenVersionMismatch
)

// ValidationResult is the verdict on an access token. Reason is empty when
// IsValid is true.
type ValidationResult struct {
	IsValid      bool
	Reason       string
	PrincipalID  int64
	Name         string
	Permissions  permission.Mask
	AuthType     principal.AuthType
	TokenVersion int64
	TokenID      string
	SessionID    string
	ExpiresAt    time.Time
}

// SessionInfo is a listed session.
type SessionInfo = session.Record

// RefreshTokenInfo is a listed refresh token. It never carries the token
// value.
type RefreshTokenInfo = refresh.Record

// RevokeAllResult summarizes a bulk revocation.
type RevokeAllResult struct {
	RevokedTokens       int
	DeactivatedSessions int
	TokenVersion        int64
}
