package jwt

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/MrEthical07/authcore/internal"
)

var (
	// ErrTokenExpired is returned for a correctly signed token past its expiry.
	ErrTokenExpired = errors.New("jwt: token expired")
	// ErrTokenMalformed is returned when the token is not structurally a JWT.
	ErrTokenMalformed = errors.New("jwt: token malformed")
	// ErrTokenInvalid covers every other rejection (signature, issuer, audience, claims).
	ErrTokenInvalid = errors.New("jwt: token invalid")
)

// Config defines access-token issuance and verification parameters.
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	AccessTTL  time.Duration
	SigningKey []byte
	Issuer     string
	Audience   string
	Leeway     time.Duration

	// Now overrides the time source; nil means time.Now.
	Now func() time.Time
}

// MinSigningKeyBytes is the minimum HS256 key length accepted by NewManager.
const MinSigningKeyBytes = 32

// Manager signs and verifies HS256 access tokens. It never consults external state.
type Manager struct {
	config Config
	parser *jwt.Parser
}

// AccessClaims is the payload of an access token. Permissions, TokenVersion
// and AuthType are snapshots taken at issuance.
type AccessClaims struct {
	Name         string `json:"name,omitempty"`
	Permissions  uint64 `json:"permissions"`
	TokenVersion int64  `json:"token_version"`
	AuthType     uint8  `json:"auth_type"`
	SessionID    string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

// PrincipalID returns the numeric subject.
func (c *AccessClaims) PrincipalID() (int64, error) {
	return strconv.ParseInt(c.Subject, 10, 64)
}

// Subject carries the principal fields embedded into an access token.
type Subject struct {
	PrincipalID  int64
	Name         string
	Permissions  uint64
	TokenVersion int64
	AuthType     uint8
	SessionID    string
}

// NewManager validates cfg and returns a [Manager].
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if len(cfg.SigningKey) < MinSigningKeyBytes {
		return nil, fmt.Errorf("hs256 requires a signing key of at least %d bytes", MinSigningKeyBytes)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(cfg.Now),
	}
	if cfg.Leeway > 0 {
		options = append(options, jwt.WithLeeway(cfg.Leeway))
	}
	if cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		options = append(options, jwt.WithAudience(cfg.Audience))
	}

	return &Manager{config: cfg, parser: jwt.NewParser(options...)}, nil
}

// AccessTTL returns the configured access-token lifetime.
func (j *Manager) AccessTTL() time.Duration {
	return j.config.AccessTTL
}

// IssueAccess signs a new access token for sub with a fresh jti.
func (j *Manager) IssueAccess(sub Subject) (string, *AccessClaims, error) {
	now := j.config.Now()
	claims := &AccessClaims{
		Name:         sub.Name,
		Permissions:  sub.Permissions,
		TokenVersion: sub.TokenVersion,
		AuthType:     sub.AuthType,
		SessionID:    sub.SessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(sub.PrincipalID, 10),
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.config.AccessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    j.config.Issuer,
		},
	}
	if j.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{j.config.Audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.config.SigningKey)
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// IssueRefreshToken returns an opaque, non-decodable refresh token value.
func (j *Manager) IssueRefreshToken() (string, error) {
	return internal.NewOpaqueToken()
}

// ParseAccess verifies signature, algorithm, expiry, issued-at (present and
// not in the future), issuer, audience, and presence of sub and jti. Errors wrap [ErrTokenExpired],
// [ErrTokenMalformed] or [ErrTokenInvalid].
func (j *Manager) ParseAccess(tokenStr string) (*AccessClaims, error) {
	token, err := j.parser.ParseWithClaims(tokenStr, &AccessClaims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return j.config.SigningKey, nil
	})
	if err != nil {
		return nil, classify(err)
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.IssuedAt == nil {
		return nil, fmt.Errorf("%w: missing iat", ErrTokenInvalid)
	}
	if claims.ID == "" {
		return nil, fmt.Errorf("%w: missing jti", ErrTokenInvalid)
	}
	if _, err := claims.PrincipalID(); err != nil {
		return nil, fmt.Errorf("%w: invalid sub", ErrTokenInvalid)
	}
	return claims, nil
}

// ExtractID returns the jti of a structurally valid token without verifying
// it. It returns false for malformed input.
func (j *Manager) ExtractID(tokenStr string) (string, bool) {
	claims, ok := unverified(tokenStr)
	if !ok || claims.ID == "" {
		return "", false
	}
	return claims.ID, true
}

// ExtractExpiry returns the exp of a structurally valid token without
// verifying it. It returns false for malformed input or a missing exp.
func (j *Manager) ExtractExpiry(tokenStr string) (time.Time, bool) {
	claims, ok := unverified(tokenStr)
	if !ok || claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

func unverified(tokenStr string) (*AccessClaims, bool) {
	if strings.Count(tokenStr, ".") != 2 {
		return nil, false
	}
	claims := &AccessClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return nil, false
	}
	return claims, true
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	default:
		return fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
}
