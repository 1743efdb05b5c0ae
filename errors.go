package authcore

import (
	"errors"

	"github.com/MrEthical07/authcore/credential"
)

var (
	// ErrInvalidCredentials covers unknown principals and wrong secrets alike.
	ErrInvalidCredentials = credential.ErrInvalidCredentials
	// ErrAccountInactive is returned for deactivated principals.
	ErrAccountInactive = credential.ErrAccountInactive
	// ErrWrongAuthType is returned when a principal may not use the login path.
	ErrWrongAuthType = credential.ErrWrongAuthType
	// ErrDuplicateIdentity is returned when a username, email or external
	// identity already exists.
	ErrDuplicateIdentity = credential.ErrDuplicateIdentity
	// ErrMalformedIdentity is returned for an unusable external identity.
	ErrMalformedIdentity = credential.ErrMalformedIdentity

	// ErrTokenNotFound is returned when a refresh token value is unknown.
	ErrTokenNotFound = errors.New("refresh token not found")
	// ErrTokenInactive is returned when a refresh token is revoked or expired.
	ErrTokenInactive = errors.New("refresh token inactive")
	// ErrPermissionDenied is returned by capability checks.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrPrincipalNotFound is returned by administration operations.
	ErrPrincipalNotFound = errors.New("principal not found")
	// ErrInvalidRequest is returned for malformed input such as an
	// out-of-range secret.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrLoginRateLimited is returned when the login throttle trips.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrStoreUnavailable wraps every backing-store failure.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrEngineNotReady is returned when the engine is nil or half-built.
	ErrEngineNotReady = errors.New("engine not initialized")
)
