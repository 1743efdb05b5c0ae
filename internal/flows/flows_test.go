package flows

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/authcore/blacklist"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/principal"
	"github.com/MrEthical07/authcore/refresh"
	"github.com/MrEthical07/authcore/session"
	"github.com/google/go-cmp/cmp"
)

type recorder struct{ calls []string }

func (r *recorder) add(s string) { r.calls = append(r.calls, s) }

type fakeTokens struct {
	parse func(string) (*jwt.AccessClaims, error)
}

func (fakeTokens) IssueAccess(sub jwt.Subject) (string, *jwt.AccessClaims, error) {
	return "access", &jwt.AccessClaims{TokenVersion: sub.TokenVersion, SessionID: sub.SessionID}, nil
}
func (fakeTokens) IssueRefreshToken() (string, error) { return "successor", nil }
func (f fakeTokens) ParseAccess(tok string) (*jwt.AccessClaims, error) {
	return f.parse(tok)
}
func (fakeTokens) ExtractID(tok string) (string, bool) { return "jti-" + tok, tok != "" }
func (fakeTokens) ExtractExpiry(tok string) (time.Time, bool) {
	return time.Now().Add(time.Minute), tok != ""
}

type fakeRefresh struct {
	rec       *recorder
	record    refresh.Record
	revokeErr error
	evicted   []refresh.Evicted
}

func (f *fakeRefresh) Insert(context.Context, string, refresh.Record, int, string) ([]refresh.Evicted, error) {
	f.rec.add("refresh.insert")
	return f.evicted, nil
}
func (f *fakeRefresh) Lookup(context.Context, string) (refresh.Record, error) {
	return f.record, nil
}
func (f *fakeRefresh) Revoke(_ context.Context, _ string, rv refresh.Revocation) (refresh.Record, error) {
	f.rec.add("refresh.revoke:" + rv.Reason)
	return f.record, f.revokeErr
}
func (f *fakeRefresh) RevokeAll(context.Context, int64, refresh.Revocation) (int, error) {
	f.rec.add("refresh.revoke_all")
	return 2, nil
}

type fakeBlacklist struct {
	rec    *recorder
	listed bool
}

func (f *fakeBlacklist) Add(_ context.Context, e blacklist.Entry) (bool, error) {
	f.rec.add("blacklist.add:" + e.TokenID)
	return true, nil
}
func (f *fakeBlacklist) Contains(context.Context, string) (bool, error) { return f.listed, nil }

type fakeSessions struct {
	rec *recorder
	// inactive lists ids whose Deactivate reports no transition.
	inactive map[string]bool
}

func (f *fakeSessions) Create(context.Context, session.Record) error {
	f.rec.add("session.create")
	return nil
}
func (f *fakeSessions) Touch(_ context.Context, id string) (bool, error) {
	f.rec.add("session.touch:" + id)
	return true, nil
}
func (f *fakeSessions) Deactivate(_ context.Context, id string) (bool, error) {
	f.rec.add("session.deactivate:" + id)
	return !f.inactive[id], nil
}
func (f *fakeSessions) DeactivateAll(context.Context, int64) (int, error) {
	f.rec.add("session.deactivate_all")
	return 1, nil
}

type fakePrincipals struct {
	rec *recorder
	p   principal.Principal
	err error
}

func (f *fakePrincipals) GetByID(context.Context, int64) (principal.Principal, error) {
	return f.p, f.err
}
func (f *fakePrincipals) GetByUsername(context.Context, string) (principal.Principal, error) {
	return principal.Principal{}, principal.ErrNotFound
}
func (f *fakePrincipals) GetByEmail(context.Context, string) (principal.Principal, error) {
	return principal.Principal{}, principal.ErrNotFound
}
func (f *fakePrincipals) Create(_ context.Context, p principal.Principal) (principal.Principal, error) {
	p.ID = 1
	return p, nil
}
func (f *fakePrincipals) IncrementTokenVersion(context.Context, int64) (int64, error) {
	f.rec.add("principal.bump")
	return f.p.TokenVersion + 1, nil
}
func (f *fakePrincipals) RecordLogin(context.Context, int64, time.Time) error { return nil }

func TestRevokeAllOrdersVersionBumpAfterRefreshRevocation(t *testing.T) {
	rec := &recorder{}
	deps := RevokeDeps{
		Tokens:     fakeTokens{},
		Refresh:    &fakeRefresh{rec: rec},
		Blacklist:  &fakeBlacklist{rec: rec},
		Sessions:   &fakeSessions{rec: rec},
		Principals: &fakePrincipals{rec: rec, p: principal.Principal{TokenVersion: 4}},
	}
	res := RunRevokeAll(context.Background(), 7, "", Request{BearerToken: "b"}, deps)
	if res.Failure != FailureNone {
		t.Fatalf("failure %v: %v", res.Failure, res.Err)
	}
	want := []string{"refresh.revoke_all", "blacklist.add:jti-b", "principal.bump", "session.deactivate_all"}
	if diff := cmp.Diff(want, rec.calls); diff != "" {
		t.Fatalf("call order (-want +got):\n%s", diff)
	}
	if res.TokenVersion != 5 || res.RevokedTokens != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestRefreshRetiresTokenForInactivePrincipal(t *testing.T) {
	rec := &recorder{}
	rs := &fakeRefresh{rec: rec, record: refresh.Record{PrincipalID: 3, ExpiresAt: time.Now().Add(time.Hour), SessionID: "s"}}
	deps := RefreshDeps{
		Tokens:     fakeTokens{},
		Refresh:    rs,
		Blacklist:  &fakeBlacklist{rec: rec},
		Sessions:   &fakeSessions{rec: rec},
		Principals: &fakePrincipals{rec: rec, p: principal.Principal{ID: 3, Active: false}},
	}
	res := RunRefresh(context.Background(), "tok", Request{}, deps, IssueDeps{})
	if res.Failure != FailureAccountInactive {
		t.Fatalf("expected FailureAccountInactive, got %v", res.Failure)
	}
	if diff := cmp.Diff([]string{"refresh.revoke:rotated"}, rec.calls); diff != "" {
		t.Fatalf("calls (-want +got):\n%s", diff)
	}
}

func TestRefreshRaceLoserGetsInactive(t *testing.T) {
	rec := &recorder{}
	rs := &fakeRefresh{rec: rec, record: refresh.Record{PrincipalID: 3, ExpiresAt: time.Now().Add(time.Hour)}, revokeErr: refresh.ErrInactive}
	deps := RefreshDeps{
		Tokens:     fakeTokens{},
		Refresh:    rs,
		Principals: &fakePrincipals{rec: rec, p: principal.Principal{ID: 3, Active: true}},
	}
	res := RunRefresh(context.Background(), "tok", Request{}, deps, IssueDeps{})
	if res.Failure != FailureTokenInactive {
		t.Fatalf("expected FailureTokenInactive, got %v", res.Failure)
	}
}

func TestRefreshRotatesAndBlacklistsBearer(t *testing.T) {
	rec := &recorder{}
	rs := &fakeRefresh{rec: rec, record: refresh.Record{PrincipalID: 3, ExpiresAt: time.Now().Add(time.Hour), SessionID: "old"}}
	ps := &fakePrincipals{rec: rec, p: principal.Principal{ID: 3, Active: true}}
	sessions := &fakeSessions{rec: rec}
	deps := RefreshDeps{Tokens: fakeTokens{}, Refresh: rs, Blacklist: &fakeBlacklist{rec: rec}, Sessions: sessions, Principals: ps}
	issue := IssueDeps{
		Tokens:       fakeTokens{},
		Refresh:      rs,
		Sessions:     sessions,
		Principals:   ps,
		RefreshTTL:   time.Hour,
		NewSessionID: func(time.Time) (string, error) { return "new", nil },
	}

	res := RunRefresh(context.Background(), "tok", Request{BearerToken: "b"}, deps, issue)
	if res.Failure != FailureNone {
		t.Fatalf("failure %v: %v", res.Failure, res.Err)
	}
	if res.Issued.RefreshToken != "successor" || res.Issued.SessionID != "new" {
		t.Fatalf("unexpected issue %+v", res.Issued)
	}
	want := []string{"refresh.revoke:rotated", "session.deactivate:old", "blacklist.add:jti-b", "refresh.insert", "session.create"}
	if diff := cmp.Diff(want, rec.calls); diff != "" {
		t.Fatalf("calls (-want +got):\n%s", diff)
	}
	if res.Issued.SessionsEnded != 1 || res.Issued.Claims.SessionID != "new" {
		t.Fatalf("sessions ended = %d sid = %q", res.Issued.SessionsEnded, res.Issued.Claims.SessionID)
	}
}

func TestRefreshCountsOnlyRealSessionTransitions(t *testing.T) {
	rec := &recorder{}
	rs := &fakeRefresh{rec: rec, record: refresh.Record{PrincipalID: 3, ExpiresAt: time.Now().Add(time.Hour), SessionID: "gone"}}
	ps := &fakePrincipals{rec: rec, p: principal.Principal{ID: 3, Active: true}}
	sessions := &fakeSessions{rec: rec, inactive: map[string]bool{"gone": true}}
	deps := RefreshDeps{Tokens: fakeTokens{}, Refresh: rs, Sessions: sessions, Principals: ps}
	issue := IssueDeps{
		Tokens:       fakeTokens{},
		Refresh:      rs,
		Sessions:     sessions,
		Principals:   ps,
		RefreshTTL:   time.Hour,
		NewSessionID: func(time.Time) (string, error) { return "new", nil },
	}

	res := RunRefresh(context.Background(), "tok", Request{}, deps, issue)
	if res.Failure != FailureNone {
		t.Fatalf("failure %v: %v", res.Failure, res.Err)
	}
	if res.Issued.SessionsEnded != 0 {
		t.Fatalf("sessions ended = %d, want 0 for an already inactive session", res.Issued.SessionsEnded)
	}
}

func TestIssueDeactivatesEvictedSessions(t *testing.T) {
	rec := &recorder{}
	rs := &fakeRefresh{rec: rec, evicted: []refresh.Evicted{
		{Hash: "h1", SessionID: "s1"},
		{Hash: "h2"},
		{Hash: "h3", SessionID: "s3"},
	}}
	sessions := &fakeSessions{rec: rec, inactive: map[string]bool{"s3": true}}
	deps := IssueDeps{
		Tokens:       fakeTokens{},
		Refresh:      rs,
		Sessions:     sessions,
		RefreshTTL:   time.Hour,
		NewSessionID: func(time.Time) (string, error) { return "fresh", nil },
	}

	res := RunIssue(context.Background(), principal.Principal{ID: 5, Active: true}, "", Request{}, deps)
	if res.Failure != FailureNone {
		t.Fatalf("failure %v: %v", res.Failure, res.Err)
	}
	want := []string{"refresh.insert", "session.create", "session.deactivate:s1", "session.deactivate:s3"}
	if diff := cmp.Diff(want, rec.calls); diff != "" {
		t.Fatalf("calls (-want +got):\n%s", diff)
	}
	if res.Issued.SessionsEnded != 1 || len(res.Issued.Evicted) != 3 {
		t.Fatalf("sessions ended = %d evicted = %d", res.Issued.SessionsEnded, len(res.Issued.Evicted))
	}
}

func TestValidateReasonOrder(t *testing.T) {
	claims := &jwt.AccessClaims{TokenVersion: 1}
	claims.Subject = "9"
	claims.ID = "jti"
	ok := func(string) (*jwt.AccessClaims, error) { return claims, nil }

	cases := []struct {
		name   string
		parse  func(string) (*jwt.AccessClaims, error)
		listed bool
		p      principal.Principal
		perr   error
		reason string
	}{
		{"expired", func(string) (*jwt.AccessClaims, error) { return nil, jwt.ErrTokenExpired }, true, principal.Principal{}, nil, ReasonExpired},
		{"invalid", func(string) (*jwt.AccessClaims, error) { return nil, jwt.ErrTokenInvalid }, false, principal.Principal{}, nil, ReasonInvalid},
		{"blacklisted beats inactive", ok, true, principal.Principal{Active: false}, nil, ReasonBlacklisted},
		{"missing", ok, false, principal.Principal{}, principal.ErrNotFound, ReasonPrincipalNotFound},
		{"inactive", ok, false, principal.Principal{Active: false, TokenVersion: 2}, nil, ReasonPrincipalInactive},
		{"version", ok, false, principal.Principal{Active: true, TokenVersion: 2}, nil, ReasonTokenVersionMismatch},
		{"valid", ok, false, principal.Principal{Active: true, TokenVersion: 1}, nil, ReasonValid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := RunValidate(context.Background(), "tok", ValidateDeps{
				Tokens:     fakeTokens{parse: tc.parse},
				Blacklist:  &fakeBlacklist{rec: &recorder{}, listed: tc.listed},
				Principals: &fakePrincipals{rec: &recorder{}, p: tc.p, err: tc.perr},
			})
			if res.Failure != FailureNone {
				t.Fatalf("unexpected failure %v", res.Failure)
			}
			if res.Reason != tc.reason || res.Valid != (tc.reason == ReasonValid) {
				t.Fatalf("reason = %q valid = %v, want %q", res.Reason, res.Valid, tc.reason)
			}
		})
	}
}

func TestValidateStoreFailureIsError(t *testing.T) {
	claims := &jwt.AccessClaims{}
	claims.Subject = "1"
	res := RunValidate(context.Background(), "tok", ValidateDeps{
		Tokens:     fakeTokens{parse: func(string) (*jwt.AccessClaims, error) { return claims, nil }},
		Blacklist:  &fakeBlacklist{rec: &recorder{}},
		Principals: &fakePrincipals{rec: &recorder{}, err: errors.New("db down")},
	})
	if res.Failure != FailureStore {
		t.Fatalf("expected FailureStore, got %v", res.Failure)
	}
}

func TestValidateTouchesSessionOnlyWhenValid(t *testing.T) {
	claims := &jwt.AccessClaims{TokenVersion: 1, SessionID: "sess-1"}
	claims.Subject = "9"
	claims.ID = "jti"
	parse := func(string) (*jwt.AccessClaims, error) { return claims, nil }

	for _, tc := range []struct {
		name string
		p    principal.Principal
		want []string
	}{
		{"valid", principal.Principal{Active: true, TokenVersion: 1}, []string{"session.touch:sess-1"}},
		{"stale version", principal.Principal{Active: true, TokenVersion: 2}, nil},
	} {
		t.Run(tc.name, func(t *testing.T) {
			rec := &recorder{}
			RunValidate(context.Background(), "tok", ValidateDeps{
				Tokens:     fakeTokens{parse: parse},
				Blacklist:  &fakeBlacklist{rec: rec},
				Principals: &fakePrincipals{rec: rec, p: tc.p},
				Sessions:   &fakeSessions{rec: rec},
			})
			if diff := cmp.Diff(tc.want, rec.calls); diff != "" {
				t.Fatalf("calls (-want +got):\n%s", diff)
			}
		})
	}
}
