package flows

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/permission"
	"github.com/MrEthical07/authcore/principal"
)

// RegisterInput is a self-service registration request.
type RegisterInput struct {
	Username string
	Email    string
	Secret   string
}

// RegisterDeps captures registration dependencies.
type RegisterDeps struct {
	Principals    PrincipalStore
	HashSecret    func(string) (string, error)
	DefaultGrant  permission.Mask
	DefaultDomain string
}

// RunRegister creates an active password principal with the default grant
// and issues its first token pair.
func RunRegister(ctx context.Context, in RegisterInput, req Request, deps RegisterDeps, issue IssueDeps) AuthResult {
	if deps.Principals == nil || deps.HashSecret == nil {
		return fail(FailureNotReady, nil)
	}
	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)
	if username == "" || email == "" {
		return AuthResult{Failure: FailureInvalidInput, Detail: "username and email are required"}
	}

	if _, err := deps.Principals.GetByUsername(ctx, username); err == nil {
		return AuthResult{Failure: FailureDuplicateIdentity, Err: principal.ErrDuplicateUsername, Detail: "username already exists"}
	} else if !errors.Is(err, principal.ErrNotFound) {
		return fail(FailureStore, err)
	}
	if _, err := deps.Principals.GetByEmail(ctx, email); err == nil {
		return AuthResult{Failure: FailureDuplicateIdentity, Err: principal.ErrDuplicateEmail, Detail: "email already exists"}
	} else if !errors.Is(err, principal.ErrNotFound) {
		return fail(FailureStore, err)
	}

	hash, err := deps.HashSecret(in.Secret)
	if err != nil {
		if errors.Is(err, password.ErrSecretTooShort) || errors.Is(err, password.ErrSecretTooLong) {
			return AuthResult{Failure: FailureInvalidInput, Err: err, Detail: err.Error()}
		}
		return fail(FailureIssue, err)
	}

	domain := deps.DefaultDomain
	if domain == "" {
		domain = "local"
	}
	p, err := deps.Principals.Create(ctx, principal.Principal{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Permissions:  deps.DefaultGrant,
		Active:       true,
		AuthType:     principal.AuthPassword,
		Domain:       domain,
	})
	if err != nil {
		switch {
		case errors.Is(err, principal.ErrDuplicateUsername):
			return AuthResult{Failure: FailureDuplicateIdentity, Err: err, Detail: "username already exists"}
		case errors.Is(err, principal.ErrDuplicateEmail):
			return AuthResult{Failure: FailureDuplicateIdentity, Err: err, Detail: "email already exists"}
		case errors.Is(err, principal.ErrDuplicate):
			return AuthResult{Failure: FailureDuplicateIdentity, Err: err, Detail: "account already exists"}
		}
		return fail(FailureStore, err)
	}

	return RunIssue(ctx, p, "", req, issue)
}
