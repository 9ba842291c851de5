package session_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/jrsteele09/sadsa-portal/session"
	fakesessionrepo "github.com/jrsteele09/sadsa-portal/session/repofake"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

// unsignedToken builds a three segment token around payload; the signature is junk
func unsignedToken(t *testing.T, payload map[string]any) string {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	return header + "." + base64.RawURLEncoding.EncodeToString(body) + ".c2lnbmF0dXJl"
}

func userToken(t *testing.T, email, role string, exp time.Time) string {
	t.Helper()
	return unsignedToken(t, map[string]any{
		"sub":    email,
		"role":   role,
		"userId": 42,
		"nom":    "Alaoui",
		"prenom": "Samira",
		"exp":    exp.Unix(),
	})
}

// fakeAuthenticator answers with canned tokens and errors
type fakeAuthenticator struct {
	loginToken    string
	loginErr      error
	registerToken string
	registerErr   error
	changeErr     error

	lastBearer   string
	lastRegister session.RegisterRequest
	changeCalls  int
}

var _ session.Authenticator = (*fakeAuthenticator)(nil)

func (f *fakeAuthenticator) Login(_ context.Context, _, _ string) (string, error) {
	return f.loginToken, f.loginErr
}

func (f *fakeAuthenticator) Register(_ context.Context, req session.RegisterRequest) (string, error) {
	f.lastRegister = req
	return f.registerToken, f.registerErr
}

func (f *fakeAuthenticator) ChangePassword(_ context.Context, bearer, _, _ string) error {
	f.changeCalls++
	f.lastBearer = bearer
	return f.changeErr
}

type testFixture struct {
	repo  *fakesessionrepo.FakeSessionRepo
	auth  *fakeAuthenticator
	now   time.Time
	store *session.Store
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	f := &testFixture{
		repo: fakesessionrepo.NewFakeSessionRepo(),
		auth: &fakeAuthenticator{},
		now:  testNow,
	}
	store, err := session.NewStore(f.repo, f.auth, session.WithNowTime(func() time.Time { return f.now }))
	require.NoError(t, err)
	f.store = store
	return f
}

func (f *testFixture) empty() bool {
	return !f.repo.Has(session.ScopePersistent) && !f.repo.Has(session.ScopeEphemeral)
}
