package authcore

import (
	"errors"
	"time"

	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/permission"
)

// Config holds every engine setting. Build it from [DefaultConfig] and
// override what you need; it is copied at [Builder.Build] and treated as
// immutable afterwards.
type Config struct {
	Token      TokenConfig
	Refresh    RefreshConfig
	Session    SessionConfig
	Blacklist  BlacklistConfig
	Password   PasswordConfig
	Credential CredentialConfig
	Security   SecurityConfig
	Cleanup    CleanupConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig controls access-token signing. Only HS256 is supported.
type TokenConfig struct {
	AccessTTL  time.Duration
	SigningKey []byte
	Issuer     string
	Audience   string
	Leeway     time.Duration
}

/*
====================================
REFRESH / SESSION / BLACKLIST CONFIG
====================================
*/

// RefreshConfig controls refresh token lifetime and the per-principal cap.
type RefreshConfig struct {
	TTL time.Duration
	// MaxActivePerPrincipal caps active refresh tokens; the oldest is
	// evicted on the next issuance. 0 disables the cap.
	MaxActivePerPrincipal int
	// Retention keeps expired records for inspection before the sweep
	// deletes them.
	Retention   time.Duration
	RedisPrefix string
}

type SessionConfig struct {
	RedisPrefix         string
	InactivityThreshold time.Duration
}

type BlacklistConfig struct {
	RedisPrefix string
}

/*
====================================
PASSWORD / CREDENTIAL CONFIG
====================================
*/

// PasswordConfig holds argon2id parameters for new hashes. BcryptCost is
// used only to verify legacy hashes.
type PasswordConfig struct {
	Memory         uint32 // in KiB
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	UpgradeOnLogin bool
	AcceptBcrypt   bool
}

// CredentialConfig controls defaults for newly created principals.
type CredentialConfig struct {
	DefaultGrant  permission.Mask
	DefaultDomain string
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig controls the Redis login throttle.
type SecurityConfig struct {
	EnableLoginThrottle bool
	EnableIPThrottle    bool
	MaxLoginAttempts    int
	LoginCooldown       time.Duration
	ThrottlePrefix      string
}

/*
====================================
CLEANUP / OBSERVABILITY CONFIG
====================================
*/

type CleanupConfig struct {
	Interval     time.Duration
	RunOnStartup bool
}

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns production defaults. SigningKey is left empty and
// must be supplied.
func DefaultConfig() Config {
	return Config{
		Token: TokenConfig{
			AccessTTL: 15 * time.Minute,
			Issuer:    "authcore",
			Audience:  "authcore",
		},
		Refresh: RefreshConfig{
			TTL:                   7 * 24 * time.Hour,
			MaxActivePerPrincipal: 5,
			Retention:             24 * time.Hour,
			RedisPrefix:           "arf",
		},
		Session: SessionConfig{
			RedisPrefix:         "ass",
			InactivityThreshold: 7 * 24 * time.Hour,
		},
		Blacklist: BlacklistConfig{
			RedisPrefix: "abl",
		},
		Password: PasswordConfig{
			Memory:         64 * 1024,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			UpgradeOnLogin: true,
			AcceptBcrypt:   true,
		},
		Credential: CredentialConfig{
			DefaultGrant:  permission.BasicUser,
			DefaultDomain: "local",
		},
		Security: SecurityConfig{
			EnableLoginThrottle: true,
			EnableIPThrottle:    true,
			MaxLoginAttempts:    5,
			LoginCooldown:       15 * time.Minute,
			ThrottlePrefix:      "alt",
		},
		Cleanup: CleanupConfig{
			Interval:     30 * time.Minute,
			RunOnStartup: true,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.SigningKey = cloneBytes(cfg.Token.SigningKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// Token
	if c.Token.AccessTTL <= 0 {
		return errors.New("Token AccessTTL must be > 0")
	}
	if len(c.Token.SigningKey) < jwt.MinSigningKeyBytes {
		return errors.New("Token SigningKey must be at least 32 bytes")
	}
	if c.Token.Leeway < 0 || c.Token.Leeway > time.Minute {
		return errors.New("Token Leeway must be between 0 and 1m")
	}

	// Refresh
	if c.Refresh.TTL <= 0 {
		return errors.New("Refresh TTL must be > 0")
	}
	if c.Refresh.TTL <= c.Token.AccessTTL {
		return errors.New("Refresh TTL must exceed Token AccessTTL")
	}
	if c.Refresh.MaxActivePerPrincipal < 0 {
		return errors.New("Refresh MaxActivePerPrincipal must be >= 0")
	}
	if c.Refresh.Retention < 0 {
		return errors.New("Refresh Retention must be >= 0")
	}

	// Session
	if c.Session.InactivityThreshold <= 0 {
		return errors.New("Session InactivityThreshold must be > 0")
	}
	if c.Refresh.RedisPrefix == c.Session.RedisPrefix ||
		c.Refresh.RedisPrefix == c.Blacklist.RedisPrefix ||
		c.Session.RedisPrefix == c.Blacklist.RedisPrefix {
		return errors.New("Redis prefixes must be distinct")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KiB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}

	// Security
	if c.Security.EnableLoginThrottle {
		if c.Security.MaxLoginAttempts <= 0 {
			return errors.New("Security MaxLoginAttempts must be > 0")
		}
		if c.Security.LoginCooldown <= 0 {
			return errors.New("Security LoginCooldown must be > 0")
		}
	}

	// Cleanup
	if c.Cleanup.Interval <= 0 {
		return errors.New("Cleanup Interval must be > 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}

	return nil
}

func (c *Config) argon2() password.Argon2Config {
	return password.Argon2Config{
		Memory:      c.Password.Memory,
		Time:        c.Password.Time,
		Parallelism: c.Password.Parallelism,
		SaltLength:  c.Password.SaltLength,
		KeyLength:   c.Password.KeyLength,
	}
}
