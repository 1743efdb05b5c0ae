package jwt

import (
	"errors"
	"strings"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time { return c.now }

func newTestManager(t *testing.T, clk *testClock) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		AccessTTL:  15 * time.Minute,
		SigningKey: testKey,
		Issuer:     "authcore",
		Audience:   "api",
		Now:        clk.Now,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestNewManagerRejectsBadConfig(t *testing.T) {
	cases := []Config{
		{AccessTTL: 0, SigningKey: testKey},
		{AccessTTL: time.Minute, SigningKey: []byte("short")},
		{AccessTTL: time.Minute, SigningKey: testKey, Leeway: time.Hour},
	}
	for i, cfg := range cases {
		if _, err := NewManager(cfg); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}

func TestIssueAndParseAccessRoundTrip(t *testing.T) {
	clk := &testClock{now: time.Now()}
	m := newTestManager(t, clk)

	token, issued, err := m.IssueAccess(Subject{PrincipalID: 42, Name: "alice", Permissions: 0xC0, TokenVersion: 3, AuthType: 1, SessionID: "01HSESSION"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := m.ParseAccess(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	id, _ := claims.PrincipalID()
	if id != 42 || claims.Name != "alice" || claims.Permissions != 0xC0 || claims.TokenVersion != 3 || claims.AuthType != 1 || claims.SessionID != "01HSESSION" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.ID == "" || claims.ID != issued.ID {
		t.Fatalf("jti mismatch: %q vs %q", claims.ID, issued.ID)
	}
	if got := claims.ExpiresAt.Sub(claims.IssuedAt.Time); got != 15*time.Minute {
		t.Fatalf("lifetime = %v", got)
	}

	other, _, _ := m.IssueAccess(Subject{PrincipalID: 42})
	if other == token {
		t.Fatal("tokens must carry unique ids")
	}
}

func TestParseAccessClassifiesExpiry(t *testing.T) {
	clk := &testClock{now: time.Now()}
	m := newTestManager(t, clk)

	token, _, err := m.IssueAccess(Subject{PrincipalID: 1})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	clk.now = clk.now.Add(16 * time.Minute)
	if _, err := m.ParseAccess(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}

	if _, err := m.ParseAccess("not-a-token"); !errors.Is(err, ErrTokenMalformed) {
		t.Fatalf("expected ErrTokenMalformed, got %v", err)
	}
}

func TestParseAccessRejectsTampering(t *testing.T) {
	clk := &testClock{now: time.Now()}
	m := newTestManager(t, clk)

	token, _, _ := m.IssueAccess(Subject{PrincipalID: 1})
	parts := strings.Split(token, ".")
	forged := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))
	if _, err := m.ParseAccess(forged); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for bad signature, got %v", err)
	}

	otherKey, _ := NewManager(Config{AccessTTL: time.Minute, SigningKey: []byte("ffffffffffffffffffffffffffffffff"), Issuer: "authcore", Audience: "api", Now: clk.Now})
	foreign, _, _ := otherKey.IssueAccess(Subject{PrincipalID: 1})
	if _, err := m.ParseAccess(foreign); err == nil {
		t.Fatal("expected foreign key to be rejected")
	}
}

func TestParseAccessRejectsWrongAlgorithmAndClaims(t *testing.T) {
	clk := &testClock{now: time.Now()}
	m := newTestManager(t, clk)

	base := gjwt.RegisteredClaims{
		Subject:   "1",
		ID:        "jti-1",
		Issuer:    "authcore",
		Audience:  gjwt.ClaimStrings{"api"},
		IssuedAt:  gjwt.NewNumericDate(clk.now),
		ExpiresAt: gjwt.NewNumericDate(clk.now.Add(time.Minute)),
	}

	none, _ := gjwt.NewWithClaims(gjwt.SigningMethodNone, AccessClaims{RegisteredClaims: base}).SignedString(gjwt.UnsafeAllowNoneSignatureType)
	if _, err := m.ParseAccess(none); err == nil {
		t.Fatal("expected alg=none to be rejected")
	}

	sign := func(rc gjwt.RegisteredClaims) string {
		s, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, AccessClaims{RegisteredClaims: rc}).SignedString(testKey)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return s
	}

	noJTI := base
	noJTI.ID = ""
	noSub := base
	noSub.Subject = "abc"
	wrongIss := base
	wrongIss.Issuer = "other"
	wrongAud := base
	wrongAud.Audience = gjwt.ClaimStrings{"other"}
	noExp := base
	noExp.ExpiresAt = nil
	noIAT := base
	noIAT.IssuedAt = nil
	futureIAT := base
	futureIAT.IssuedAt = gjwt.NewNumericDate(clk.now.Add(time.Hour))
	futureIAT.ExpiresAt = gjwt.NewNumericDate(clk.now.Add(2 * time.Hour))

	for name, rc := range map[string]gjwt.RegisteredClaims{
		"missing jti":  noJTI,
		"bad subject":  noSub,
		"wrong issuer": wrongIss,
		"wrong aud":    wrongAud,
		"missing exp":  noExp,
		"missing iat":  noIAT,
		"future iat":   futureIAT,
	} {
		if _, err := m.ParseAccess(sign(rc)); !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("%s: expected ErrTokenInvalid, got %v", name, err)
		}
	}
}

func TestExtractWorksOnRejectedTokensAndFailsClosed(t *testing.T) {
	clk := &testClock{now: time.Now()}
	m := newTestManager(t, clk)

	token, issued, _ := m.IssueAccess(Subject{PrincipalID: 7})
	clk.now = clk.now.Add(time.Hour)

	id, ok := m.ExtractID(token)
	if !ok || id != issued.ID {
		t.Fatalf("ExtractID = %q, %v", id, ok)
	}
	exp, ok := m.ExtractExpiry(token)
	if !ok || !exp.Equal(issued.ExpiresAt.Time) {
		t.Fatalf("ExtractExpiry = %v, %v", exp, ok)
	}

	for _, bad := range []string{"", "abc", "a.b", "a.b.c", "!!.??.##", "eyJhbGciOiJIUzI1NiJ9.e30"} {
		if _, ok := m.ExtractID(bad); ok {
			t.Fatalf("ExtractID(%q) should fail", bad)
		}
		if _, ok := m.ExtractExpiry(bad); ok {
			t.Fatalf("ExtractExpiry(%q) should fail", bad)
		}
	}
}

func TestIssueRefreshTokenIsOpaque(t *testing.T) {
	m := newTestManager(t, &testClock{now: time.Now()})
	a, err := m.IssueRefreshToken()
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	b, _ := m.IssueRefreshToken()
	if a == b || len(a) != 43 {
		t.Fatalf("unexpected refresh tokens %q %q", a, b)
	}
	if _, ok := m.ExtractID(a); ok {
		t.Fatal("refresh token must not decode as a JWT")
	}
	if _, err := m.ParseAccess(a); err == nil {
		t.Fatal("refresh token must not parse as access token")
	}
}

func FuzzExtractID(f *testing.F) {
	m, _ := NewManager(Config{AccessTTL: time.Minute, SigningKey: testKey})
	tok, _, _ := m.IssueAccess(Subject{PrincipalID: 1})
	f.Add(tok)
	f.Add("")
	f.Add("a.b.c")
	f.Add("eyJhbGciOiJub25lIn0.eyJqdGkiOiJ4In0.")
	f.Fuzz(func(t *testing.T, s string) {
		_, _ = m.ExtractID(s)
		_, _ = m.ExtractExpiry(s)
		_, _ = m.ParseAccess(s)
	})
}
