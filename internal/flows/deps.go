package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/authcore/blacklist"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/principal"
	"github.com/MrEthical07/authcore/refresh"
	"github.com/MrEthical07/authcore/session"
)

// Request is the caller context every flow receives explicitly.
type Request struct {
	IP          string
	UserAgent   string
	BearerToken string
	DeviceInfo  string
}

// FailureKind classifies flow failures for root-level error, metric and
// audit mapping.
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureNotReady
	FailureRateLimited
	FailureInvalidCredentials
	FailureAccountInactive
	FailureWrongAuthType
	FailureMalformedIdentity
	FailureDuplicateIdentity
	FailureInvalidInput
	FailureTokenNotFound
	FailureTokenInactive
	FailurePrincipalNotFound
	FailureIssue
	FailureStore
)

// Tokens is the access/refresh token codec.
type Tokens interface {
	IssueAccess(sub jwt.Subject) (string, *jwt.AccessClaims, error)
	IssueRefreshToken() (string, error)
	ParseAccess(token string) (*jwt.AccessClaims, error)
	ExtractID(token string) (string, bool)
	ExtractExpiry(token string) (time.Time, bool)
}

type RefreshStore interface {
	Insert(ctx context.Context, token string, rec refresh.Record, maxActive int, evictingIP string) ([]refresh.Evicted, error)
	Lookup(ctx context.Context, token string) (refresh.Record, error)
	Revoke(ctx context.Context, token string, rv refresh.Revocation) (refresh.Record, error)
	RevokeAll(ctx context.Context, principalID int64, rv refresh.Revocation) (int, error)
}

type BlacklistStore interface {
	Add(ctx context.Context, e blacklist.Entry) (bool, error)
	Contains(ctx context.Context, tokenID string) (bool, error)
}

type SessionStore interface {
	Create(ctx context.Context, rec session.Record) error
	Touch(ctx context.Context, id string) (bool, error)
	Deactivate(ctx context.Context, id string) (bool, error)
	DeactivateAll(ctx context.Context, principalID int64) (int, error)
}

type PrincipalStore interface {
	GetByID(ctx context.Context, id int64) (principal.Principal, error)
	GetByUsername(ctx context.Context, username string) (principal.Principal, error)
	GetByEmail(ctx context.Context, email string) (principal.Principal, error)
	Create(ctx context.Context, p principal.Principal) (principal.Principal, error)
	IncrementTokenVersion(ctx context.Context, id int64) (int64, error)
	RecordLogin(ctx context.Context, id int64, at time.Time) error
}

type CredentialVerifier interface {
	Verify(ctx context.Context, identifier, secret string) (principal.Principal, error)
	ResolveOrProvision(ctx context.Context, identity, domain string) (principal.Principal, bool, error)
}

type LoginThrottle interface {
	CheckLogin(ctx context.Context, username, ip string) error
	IncrementLogin(ctx context.Context, username, ip string) error
	ResetLogin(ctx context.Context, username string) error
}

// Deps groups flow dependency sets. The root engine builds this once and
// delegates each operation to the matching Run function.
type Deps struct {
	Issue    IssueDeps
	Login    LoginDeps
	Register RegisterDeps
	Refresh  RefreshDeps
	Revoke   RevokeDeps
	Validate ValidateDeps
}

func warnOrNop(w func(string, ...any)) func(string, ...any) {
	if w == nil {
		return func(string, ...any) {}
	}
	return w
}

func nowOr(now func() time.Time) func() time.Time {
	if now == nil {
		return time.Now
	}
	return now
}

// blacklistBearer adds the presented access token to the blacklist when its
// id and expiry can be read. Unreadable tokens are skipped.
func blacklistBearer(ctx context.Context, tokens Tokens, bl BlacklistStore, bearer, reason string, principalID int64, ip string) (bool, error) {
	if bearer == "" {
		return false, nil
	}
	id, ok := tokens.ExtractID(bearer)
	if !ok {
		return false, nil
	}
	exp, ok := tokens.ExtractExpiry(bearer)
	if !ok {
		return false, nil
	}
	return bl.Add(ctx, blacklist.Entry{
		TokenID:     id,
		ExpiresAt:   exp,
		Reason:      reason,
		PrincipalID: principalID,
		IP:          ip,
	})
}
