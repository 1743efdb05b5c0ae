package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/unrolled/secure"

	"github.com/MrEthical07/authcore"
	authmw "github.com/MrEthical07/authcore/middleware"
	"github.com/MrEthical07/authcore/permission"
	"github.com/MrEthical07/authcore/principal"
)

// Service is the engine surface the HTTP layer drives. *authcore.Engine
// implements it.
type Service interface {
	Login(ctx context.Context, username, secret string, rc authcore.RequestContext) (*authcore.AuthResponse, error)
	LoginExternal(ctx context.Context, identity, domain string, rc authcore.RequestContext) (*authcore.AuthResponse, error)
	Register(ctx context.Context, req authcore.RegisterRequest, rc authcore.RequestContext) (*authcore.AuthResponse, error)
	Refresh(ctx context.Context, refreshToken string, rc authcore.RequestContext) (*authcore.AuthResponse, error)
	Revoke(ctx context.Context, refreshToken, reason string, rc authcore.RequestContext) error
	Logout(ctx context.Context, refreshToken string, rc authcore.RequestContext) error
	RevokeAll(ctx context.Context, principalID int64, reason string, rc authcore.RequestContext) (authcore.RevokeAllResult, error)
	Validate(ctx context.Context, accessToken string) (*authcore.ValidationResult, error)
	ChangePermissions(ctx context.Context, principalID int64, mask permission.Mask, rc authcore.RequestContext) (int64, error)
	SetActive(ctx context.Context, principalID int64, active bool, rc authcore.RequestContext) error
	ActiveSessions(ctx context.Context, principalID int64, authType principal.AuthType) ([]authcore.SessionInfo, error)
	Ping(ctx context.Context) error
}

// Config tunes the HTTP surface.
type Config struct {
	// AuthRateLimit requests per AuthRateWindow and client IP are admitted
	// on the login and register routes.
	AuthRateLimit  int
	AuthRateWindow time.Duration

	// ExternalIdentityHeader carries the identity asserted by the upstream
	// authenticator for /auth/login/external.
	ExternalIdentityHeader string

	// Production enables HTTPS redirects and HSTS.
	Production bool

	// MetricsHandler is mounted at /metrics when set.
	MetricsHandler http.Handler
}

func (c Config) withDefaults() Config {
	if c.AuthRateLimit <= 0 {
		c.AuthRateLimit = 20
	}
	if c.AuthRateWindow <= 0 {
		c.AuthRateWindow = time.Minute
	}
	if c.ExternalIdentityHeader == "" {
		c.ExternalIdentityHeader = "X-Remote-User"
	}
	return c
}

// Handler serves the authentication API.
type Handler struct {
	service   Service
	logger    *slog.Logger
	validator *validator.Validate
	cfg       Config
	now       func() time.Time
}

// NewHandler constructs a Handler. A nil logger uses slog.Default.
func NewHandler(service Service, logger *slog.Logger, cfg Config) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		service:   service,
		logger:    logger,
		validator: validator.New(validator.WithRequiredStructEnabled()),
		cfg:       cfg.withDefaults(),
		now:       time.Now,
	}
}

// Routes returns the router with the full middleware stack.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	secureMiddleware := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: "default-src 'none'",
		SSLRedirect:           h.cfg.Production,
		STSSeconds:            stsSeconds(h.cfg.Production),
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
		IsDevelopment:         !h.cfg.Production,
	})

	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(secureMiddleware.Handler)

	guard := authmw.GuardWith(h.service, problemWriter)
	require := func(c permission.Mask) func(http.Handler) http.Handler {
		return authmw.RequireCapabilityWith(c, problemWriter)
	}
	limited := httprate.Limit(h.cfg.AuthRateLimit, h.cfg.AuthRateWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			writeProblem(w, http.StatusTooManyRequests, "too many requests")
		}),
	)

	r.Get("/healthz", h.health)
	if h.cfg.MetricsHandler != nil {
		r.Handle("/metrics", h.cfg.MetricsHandler)
	}

	r.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(limited)
			r.Post("/login", h.login)
			r.Post("/login/external", h.loginExternal)
			r.Post("/register", h.register)
		})
		r.Post("/refresh", h.refresh)
		r.Post("/logout", h.logout)
		r.Group(func(r chi.Router) {
			r.Use(guard)
			r.Post("/revoke", h.revoke)
			r.Post("/logout-all", h.logoutAll)
			r.Get("/validate", h.validate)
			r.Get("/me", h.me)
		})
	})

	r.Route("/users/{id}", func(r chi.Router) {
		r.Use(guard)
		r.With(require(permission.ManagePermissions)).Put("/permissions", h.changePermissions)
		r.With(require(permission.UpdateUsers)).Put("/status", h.setStatus)
		r.With(require(permission.ViewUserDetails)).Get("/sessions", h.sessions)
	})

	return r
}

func stsSeconds(production bool) int64 {
	if production {
		return 31536000
	}
	return 0
}

func (h *Handler) requestContext(r *http.Request, deviceInfo string) authcore.RequestContext {
	bearer, _ := authmw.BearerToken(r.Header.Get("Authorization"))
	if deviceInfo == "" {
		deviceInfo = r.Header.Get("X-Device-Info")
	}
	return authcore.RequestContext{
		IP:          clientIP(r),
		UserAgent:   r.UserAgent(),
		BearerToken: bearer,
		DeviceInfo:  deviceInfo,
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (h *Handler) decodeValid(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeJSON(w, r, dst); err != nil {
		writeProblem(w, http.StatusBadRequest, "malformed request body")
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		writeProblem(w, http.StatusBadRequest, validationDetail(err))
		return false
	}
	return true
}

func validationDetail(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request"
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, strings.ToLower(fe.Field())+" failed "+fe.Tag())
	}
	return strings.Join(parts, "; ")
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeProblem(w, http.StatusBadRequest, "invalid principal id")
		return 0, false
	}
	return id, true
}

const (
	msgInvalidLogin   = "invalid username or password"
	msgInvalidRefresh = "invalid or expired refresh token"
)

// writeError maps engine errors to problem responses. Credential-related
// failures collapse into credentialMsg.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, credentialMsg string) {
	switch {
	case errors.Is(err, authcore.ErrInvalidCredentials),
		errors.Is(err, authcore.ErrWrongAuthType),
		errors.Is(err, authcore.ErrAccountInactive):
		writeProblem(w, http.StatusUnauthorized, credentialMsg)
	case errors.Is(err, authcore.ErrTokenInactive):
		writeProblem(w, http.StatusUnauthorized, credentialMsg)
	case errors.Is(err, authcore.ErrTokenNotFound):
		if credentialMsg == msgInvalidRefresh {
			writeProblem(w, http.StatusUnauthorized, credentialMsg)
			return
		}
		writeProblem(w, http.StatusNotFound, "refresh token not found")
	case errors.Is(err, authcore.ErrLoginRateLimited):
		writeProblem(w, http.StatusTooManyRequests, "too many login attempts")
	case errors.Is(err, authcore.ErrDuplicateIdentity):
		writeProblem(w, http.StatusConflict, detailAfter(err, authcore.ErrDuplicateIdentity))
	case errors.Is(err, authcore.ErrMalformedIdentity):
		writeProblem(w, http.StatusBadRequest, "malformed external identity")
	case errors.Is(err, authcore.ErrInvalidRequest):
		writeProblem(w, http.StatusBadRequest, detailAfter(err, authcore.ErrInvalidRequest))
	case errors.Is(err, authcore.ErrPrincipalNotFound):
		writeProblem(w, http.StatusNotFound, "principal not found")
	case errors.Is(err, authcore.ErrPermissionDenied):
		writeProblem(w, http.StatusForbidden, "insufficient permissions")
	case errors.Is(err, authcore.ErrStoreUnavailable), errors.Is(err, authcore.ErrEngineNotReady):
		h.logger.Error("authcore: request failed", "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "error", err)
		writeProblem(w, http.StatusServiceUnavailable, "")
	default:
		h.logger.Error("authcore: request failed", "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "error", err)
		writeProblem(w, http.StatusInternalServerError, "")
	}
}

// detailAfter strips the sentinel prefix from a wrapped error.
func detailAfter(err, sentinel error) string {
	msg := err.Error()
	if d := strings.TrimPrefix(msg, sentinel.Error()+": "); d != msg {
		return d
	}
	return sentinel.Error()
}

func errorsIsStore(err error) bool {
	return errors.Is(err, authcore.ErrStoreUnavailable) || errors.Is(err, authcore.ErrEngineNotReady)
}

func errorsIsNotFound(err error) bool {
	return errors.Is(err, authcore.ErrTokenNotFound)
}
