package authcore

import (
	"errors"
	"log/slog"

	"github.com/MrEthical07/authcore/blacklist"
	"github.com/MrEthical07/authcore/credential"
	"github.com/MrEthical07/authcore/internal"
	"github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/internal/flows"
	"github.com/MrEthical07/authcore/internal/rate"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/principal"
	"github.com/MrEthical07/authcore/refresh"
	"github.com/MrEthical07/authcore/session"
	"github.com/redis/go-redis/v9"
	"k8s.io/utils/clock"
)

// Builder assembles an [Engine]. A Builder is single-use.
type Builder struct {
	config     Config
	redis      redis.UniversalClient
	principals principal.Store
	clock      clock.WithTicker
	logger     *slog.Logger
	auditSink  AuditSink

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client shared by the refresh, blacklist and session
// stores and the login throttle.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithPrincipalStore(store principal.Store) *Builder {
	b.principals = store
	return b
}

// WithClock overrides the time source of the engine and every store.
func (b *Builder) WithClock(clk clock.WithTicker) *Builder {
	b.clock = clk
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets the audit destination and enables auditing.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	b.config.Audit.Enabled = true
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and wires every component.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.principals == nil {
		return nil, errors.New("principal store required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	clk := b.clock
	if clk == nil {
		clk = clock.RealClock{}
	}
	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	// -------- CREDENTIALS --------
	primary, err := password.NewArgon2(cfg.argon2())
	if err != nil {
		return nil, err
	}
	var legacy []password.Scheme
	if cfg.Password.AcceptBcrypt {
		bc, err := password.NewBcrypt(0)
		if err != nil {
			return nil, err
		}
		legacy = append(legacy, bc)
	}
	hasher, err := password.NewHasher(primary, legacy...)
	if err != nil {
		return nil, err
	}
	verifier, err := credential.NewVerifier(b.principals, hasher, credential.Config{
		DefaultGrant:   cfg.Credential.DefaultGrant,
		DefaultDomain:  cfg.Credential.DefaultDomain,
		UpgradeOnLogin: cfg.Password.UpgradeOnLogin,
	}, logger)
	if err != nil {
		return nil, err
	}

	// -------- TOKENS --------
	tokens, err := jwt.NewManager(jwt.Config{
		AccessTTL:  cfg.Token.AccessTTL,
		SigningKey: cloneBytes(cfg.Token.SigningKey),
		Issuer:     cfg.Token.Issuer,
		Audience:   cfg.Token.Audience,
		Leeway:     cfg.Token.Leeway,
		Now:        clk.Now,
	})
	if err != nil {
		return nil, err
	}

	// -------- STORES --------
	refreshStore := refresh.NewStore(b.redis, cfg.Refresh.RedisPrefix, cfg.Refresh.Retention, clk)
	blacklistStore := blacklist.NewStore(b.redis, cfg.Blacklist.RedisPrefix, clk)
	sessionStore := session.NewStore(b.redis, cfg.Session.RedisPrefix, clk)

	e := &Engine{
		config:     cfg,
		clock:      clk,
		logger:     logger,
		principals: b.principals,
		hasher:     hasher,
		verifier:   verifier,
		tokens:     tokens,
		refresh:    refreshStore,
		blacklist:  blacklistStore,
		sessions:   sessionStore,
		metrics:    NewMetrics(cfg.Metrics),
		audit: audit.NewDispatcher(audit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink),
	}
	if cfg.Security.EnableLoginThrottle {
		e.throttle = rate.New(b.redis, rate.Config{
			Prefix:           cfg.Security.ThrottlePrefix,
			EnableIPThrottle: cfg.Security.EnableIPThrottle,
			MaxLoginAttempts: cfg.Security.MaxLoginAttempts,
			LoginCooldown:    cfg.Security.LoginCooldown,
		})
	}
	e.deps = e.buildDeps()

	b.built = true
	return e, nil
}

func (e *Engine) buildDeps() flows.Deps {
	warn := func(msg string, args ...any) { e.logger.Warn(msg, args...) }

	d := flows.Deps{
		Issue: flows.IssueDeps{
			Tokens:           e.tokens,
			Refresh:          e.refresh,
			Sessions:         e.sessions,
			Principals:       e.principals,
			RefreshTTL:       e.config.Refresh.TTL,
			MaxRefreshTokens: e.config.Refresh.MaxActivePerPrincipal,
			NewSessionID:     internal.NewSessionID,
			Now:              e.clock.Now,
			Warn:             warn,
		},
		Login: flows.LoginDeps{
			Verifier: e.verifier,
			Warn:     warn,
		},
		Register: flows.RegisterDeps{
			Principals:    e.principals,
			HashSecret:    e.hasher.Hash,
			DefaultGrant:  e.config.Credential.DefaultGrant,
			DefaultDomain: e.config.Credential.DefaultDomain,
		},
		Refresh: flows.RefreshDeps{
			Tokens:     e.tokens,
			Refresh:    e.refresh,
			Blacklist:  e.blacklist,
			Sessions:   e.sessions,
			Principals: e.principals,
			Warn:       warn,
		},
		Revoke: flows.RevokeDeps{
			Tokens:     e.tokens,
			Refresh:    e.refresh,
			Blacklist:  e.blacklist,
			Sessions:   e.sessions,
			Principals: e.principals,
		},
		Validate: flows.ValidateDeps{
			Tokens:     e.tokens,
			Blacklist:  e.blacklist,
			Principals: e.principals,
			Sessions:   e.sessions,
			Warn:       warn,
		},
	}
	// A nil *rate.Limiter must not become a non-nil interface.
	if e.throttle != nil {
		d.Login.Throttle = e.throttle
	}
	return d
}
