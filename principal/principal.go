package principal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authcore/permission"
)

// AuthType says which login paths a principal may use.
type AuthType uint8

const (
	// AuthPassword principals log in with username and secret.
	AuthPassword AuthType = 1
	// AuthExternal principals are asserted by an external identity provider
	// and have no usable secret.
	AuthExternal AuthType = 2
	// AuthHybrid principals may use either path.
	AuthHybrid AuthType = 3
)

func (a AuthType) String() string {
	switch a {
	case AuthPassword:
		return "password"
	case AuthExternal:
		return "external"
	case AuthHybrid:
		return "hybrid"
	default:
		return fmt.Sprintf("AuthType(%d)", uint8(a))
	}
}

// Valid reports whether a is a defined auth type.
func (a AuthType) Valid() bool {
	return a >= AuthPassword && a <= AuthHybrid
}

// AllowsPassword reports whether password login is permitted.
func (a AuthType) AllowsPassword() bool {
	return a == AuthPassword || a == AuthHybrid
}

var (
	// ErrNotFound is returned when no principal matches a lookup.
	ErrNotFound = errors.New("principal: not found")
	// ErrDuplicate is returned when an insert collides with a unique field.
	ErrDuplicate = errors.New("principal: duplicate")

	ErrDuplicateUsername         = fmt.Errorf("%w: username already exists", ErrDuplicate)
	ErrDuplicateEmail            = fmt.Errorf("%w: email already exists", ErrDuplicate)
	ErrDuplicateExternalIdentity = fmt.Errorf("%w: external identity already exists", ErrDuplicate)
)

// Principal is an authenticatable account.
type Principal struct {
	ID               int64
	Username         string
	Email            string
	PasswordHash     string
	Permissions      permission.Mask
	Active           bool
	AuthType         AuthType
	TokenVersion     int64
	ExternalIdentity string
	Domain           string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	LastLoginAt      *time.Time
}

// Store persists principals. Username and email comparisons are exact and
// case-sensitive. Implementations return ErrNotFound and the ErrDuplicate
// family; any other error is a backing failure.
type Store interface {
	GetByID(ctx context.Context, id int64) (Principal, error)
	GetByUsername(ctx context.Context, username string) (Principal, error)
	GetByEmail(ctx context.Context, email string) (Principal, error)
	GetByExternalIdentity(ctx context.Context, identity string) (Principal, error)

	// Create inserts p and returns it with ID and timestamps assigned.
	Create(ctx context.Context, p Principal) (Principal, error)

	UpdatePasswordHash(ctx context.Context, id int64, hash string) error
	UpdatePermissions(ctx context.Context, id int64, mask permission.Mask) error
	SetActive(ctx context.Context, id int64, active bool) error
	// IncrementTokenVersion bumps and returns the new token version.
	IncrementTokenVersion(ctx context.Context, id int64) (int64, error)
	RecordLogin(ctx context.Context, id int64, at time.Time) error
}
