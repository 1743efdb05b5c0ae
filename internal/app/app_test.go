package app

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/authcore/principal"
)

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("AUTH_SIGNING_KEY", "0123456789abcdef0123456789abcdef")
	t.Setenv("AUTH_ACCESS_TTL", "5m")
	t.Setenv("AUTH_MAX_REFRESH_TOKENS", "3")
	t.Setenv("AUTH_ENV", "production")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "json", cfg.LogFormat)

	ec := cfg.EngineConfig()
	assert.Equal(t, 5*time.Minute, ec.Token.AccessTTL)
	assert.Equal(t, 3, ec.Refresh.MaxActivePerPrincipal)
	assert.Equal(t, 168*time.Hour, ec.Refresh.TTL)
	require.NoError(t, ec.Validate())
}

func TestLoadConfigRequiresKeyOutsideDevMode(t *testing.T) {
	t.Setenv("AUTH_SIGNING_KEY", "")
	t.Setenv("AUTH_DEV_INMEMORY", "false")
	_, err := LoadConfig()
	require.Error(t, err)

	t.Setenv("AUTH_DEV_INMEMORY", "true")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.DevInMemory)
}

func TestNewLoggerFormats(t *testing.T) {
	var buf bytes.Buffer
	NewLogger("json", &buf).Info("hello", "k", "v")
	assert.True(t, strings.HasPrefix(buf.String(), "{"), buf.String())

	buf.Reset()
	NewLogger("text", &buf).Info("hello")
	assert.Contains(t, buf.String(), "msg=hello")
}

func TestOpenDevModeServesRequests(t *testing.T) {
	t.Setenv("AUTH_DEV_INMEMORY", "true")
	cfg, err := LoadConfig()
	require.NoError(t, err)

	var logs bytes.Buffer
	a, err := Open(context.Background(), cfg, NewLogger("text", &logs))
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, a.Close()) })

	assert.IsType(t, &principal.MemoryStore{}, a.Principals())
	assert.Contains(t, logs.String(), "ephemeral signing key")

	h, err := a.Handler()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "authcore_")

	opt := a.AsynqRedis()
	assert.Equal(t, cfg.RedisAddr, opt.Addr)
}
