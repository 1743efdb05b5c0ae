package credential

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/MrEthical07/authcore/permission"
	"github.com/MrEthical07/authcore/principal"
)

var (
	// ErrInvalidCredentials covers both unknown principals and wrong secrets.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountInactive is returned for a deactivated principal.
	ErrAccountInactive = errors.New("account inactive")
	// ErrWrongAuthType is returned when the principal may not use this login path.
	ErrWrongAuthType = errors.New("wrong authentication type")
	// ErrMalformedIdentity is returned for an empty or malformed asserted identity.
	ErrMalformedIdentity = errors.New("malformed external identity")
	// ErrDuplicateIdentity is returned when provisioning collides and the
	// colliding principal cannot be resolved.
	ErrDuplicateIdentity = errors.New("duplicate identity")
)

// Hasher verifies and produces secret hashes.
type Hasher interface {
	Hash(secret string) (string, error)
	Verify(secret, encoded string) (bool, error)
	NeedsUpgrade(encoded string) (bool, error)
}

// Config controls verifier behavior.
type Config struct {
	// DefaultGrant is the mask given to auto-provisioned principals.
	DefaultGrant permission.Mask
	// DefaultDomain is used when neither the caller nor the identity names one.
	DefaultDomain string
	// UpgradeOnLogin rehashes outdated hashes after a successful password check.
	UpgradeOnLogin bool
}

// Verifier checks secrets and externally asserted identities against the
// principal store.
type Verifier struct {
	store     principal.Store
	hasher    Hasher
	config    Config
	logger    *slog.Logger
	dummyHash string
}

// NewVerifier builds a [Verifier]. It hashes a throwaway secret once so that
// unknown principals cost the same as a wrong secret.
func NewVerifier(store principal.Store, hasher Hasher, cfg Config, logger *slog.Logger) (*Verifier, error) {
	if store == nil || hasher == nil {
		return nil, errors.New("credential: store and hasher are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DefaultDomain == "" {
		cfg.DefaultDomain = "local"
	}
	dummy, err := hasher.Hash("authcore-timing-equalizer")
	if err != nil {
		return nil, fmt.Errorf("credential: prepare dummy hash: %w", err)
	}
	return &Verifier{store: store, hasher: hasher, config: cfg, logger: logger, dummyHash: dummy}, nil
}

// Verify authenticates identifier (a username) with secret.
//
// The inactive check runs after the secret comparison so that an inactive
// account is only disclosed to a caller who knows the secret.
func (v *Verifier) Verify(ctx context.Context, identifier, secret string) (principal.Principal, error) {
	if identifier == "" || secret == "" {
		return principal.Principal{}, ErrInvalidCredentials
	}

	p, err := v.store.GetByUsername(ctx, identifier)
	if errors.Is(err, principal.ErrNotFound) {
		_, _ = v.hasher.Verify(secret, v.dummyHash)
		return principal.Principal{}, ErrInvalidCredentials
	}
	if err != nil {
		return principal.Principal{}, err
	}

	if !p.AuthType.AllowsPassword() {
		_, _ = v.hasher.Verify(secret, v.dummyHash)
		return principal.Principal{}, ErrWrongAuthType
	}

	if p.PasswordHash == "" {
		_, _ = v.hasher.Verify(secret, v.dummyHash)
		return principal.Principal{}, ErrInvalidCredentials
	}
	ok, err := v.hasher.Verify(secret, p.PasswordHash)
	if err != nil {
		v.logger.WarnContext(ctx, "authcore: stored hash unreadable", "principal_id", p.ID, "error", err)
		return principal.Principal{}, ErrInvalidCredentials
	}
	if !ok {
		return principal.Principal{}, ErrInvalidCredentials
	}

	if !p.Active {
		return principal.Principal{}, ErrAccountInactive
	}

	if v.config.UpgradeOnLogin {
		v.upgrade(ctx, p, secret)
	}
	return p, nil
}

func (v *Verifier) upgrade(ctx context.Context, p principal.Principal, secret string) {
	needs, err := v.hasher.NeedsUpgrade(p.PasswordHash)
	if err != nil || !needs {
		return
	}
	hash, err := v.hasher.Hash(secret)
	if err != nil {
		v.logger.WarnContext(ctx, "authcore: rehash failed", "principal_id", p.ID, "error", err)
		return
	}
	if err := v.store.UpdatePasswordHash(ctx, p.ID, hash); err != nil {
		v.logger.WarnContext(ctx, "authcore: persist upgraded hash failed", "principal_id", p.ID, "error", err)
	}
}

// ResolveOrProvision returns the principal bound to assertedIdentity, creating
// it on first sight. The returned bool reports whether a principal was
// inserted. domain may be empty; it then defaults to the DOMAIN\ prefix of the
// identity, or Config.DefaultDomain.
func (v *Verifier) ResolveOrProvision(ctx context.Context, assertedIdentity, domain string) (principal.Principal, bool, error) {
	identity := strings.TrimSpace(assertedIdentity)
	if err := checkIdentity(identity); err != nil {
		return principal.Principal{}, false, err
	}

	p, err := v.store.GetByExternalIdentity(ctx, identity)
	switch {
	case err == nil:
		if !p.Active {
			return principal.Principal{}, false, ErrAccountInactive
		}
		return p, false, nil
	case !errors.Is(err, principal.ErrNotFound):
		return principal.Principal{}, false, err
	}

	if domain == "" {
		domain = identityDomain(identity, v.config.DefaultDomain)
	}
	created, err := v.store.Create(ctx, principal.Principal{
		Username:         accountName(identity),
		Email:            strings.ReplaceAll(identity, `\`, "_") + "@" + domain,
		Permissions:      v.config.DefaultGrant,
		Active:           true,
		AuthType:         principal.AuthExternal,
		ExternalIdentity: identity,
		Domain:           domain,
	})
	if err == nil {
		v.logger.InfoContext(ctx, "authcore: provisioned external principal", "principal_id", created.ID, "domain", domain)
		return created, true, nil
	}
	if !errors.Is(err, principal.ErrDuplicate) {
		return principal.Principal{}, false, err
	}

	// Lost a first-login race, or the derived username/email is taken.
	p, lookupErr := v.store.GetByExternalIdentity(ctx, identity)
	if lookupErr == nil {
		if !p.Active {
			return principal.Principal{}, false, ErrAccountInactive
		}
		return p, false, nil
	}
	if errors.Is(lookupErr, principal.ErrNotFound) {
		return principal.Principal{}, false, fmt.Errorf("%w: %v", ErrDuplicateIdentity, err)
	}
	return principal.Principal{}, false, lookupErr
}

func checkIdentity(identity string) error {
	if identity == "" || strings.HasSuffix(identity, `\`) || strings.HasPrefix(identity, `\`) {
		return ErrMalformedIdentity
	}
	if len(identity) > 256 {
		return ErrMalformedIdentity
	}
	for _, r := range identity {
		if unicode.IsControl(r) || r == '@' || unicode.IsSpace(r) {
			return ErrMalformedIdentity
		}
	}
	return nil
}

// accountName is the segment after the last backslash.
func accountName(identity string) string {
	if i := strings.LastIndex(identity, `\`); i >= 0 {
		return identity[i+1:]
	}
	return identity
}

func identityDomain(identity, fallback string) string {
	if i := strings.Index(identity, `\`); i > 0 {
		return identity[:i]
	}
	return fallback
}
