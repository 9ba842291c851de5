package authapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jrsteele09/sadsa-portal/authapi"
	"github.com/jrsteele09/sadsa-portal/authapi/authstub"
	"github.com/jrsteele09/sadsa-portal/session"
	"github.com/jrsteele09/sadsa-portal/token"
	"github.com/jrsteele09/sadsa-portal/users"
	fakeuserrepo "github.com/jrsteele09/sadsa-portal/users/repofake"
	"github.com/stretchr/testify/require"
)

const (
	testEmail    = "antenne@ormvat.ma"
	testPassword = "Secret123"
)

type testFixture struct {
	users  *fakeuserrepo.FakeUserRepo
	stub   *authstub.Handler
	server *httptest.Server
	client *authapi.Client
}

func setupTestFixture(t *testing.T, options ...authstub.Option) *testFixture {
	t.Helper()

	f := &testFixture{users: fakeuserrepo.NewFakeUserRepo()}
	f.stub = authstub.New(f.users, token.NewCreator(token.NewHMACSigner("stub-secret"), time.Hour), options...)
	f.server = httptest.NewServer(f.stub)
	t.Cleanup(f.server.Close)

	client, err := authapi.New(f.server.URL + "/")
	require.NoError(t, err)
	f.client = client

	_, err = f.stub.Seed(users.User{
		Email:     testEmail,
		FirstName: "Samira",
		LastName:  "Alaoui",
		Role:      users.RoleAgentAntenne,
		Active:    true,
	}, testPassword)
	require.NoError(t, err)
	return f
}

func TestNew(t *testing.T) {
	_, err := authapi.New("not a url")
	require.Error(t, err)

	c, err := authapi.New(" http://localhost:8081/api/ ")
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8081/api", c.BaseURL())
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)

	t.Run("Success", func(t *testing.T) {
		raw, err := f.client.Login(ctx, "ANTENNE@ormvat.ma", testPassword)
		require.NoError(t, err)

		claims, err := token.Decode(raw)
		require.NoError(t, err)
		require.Equal(t, testEmail, claims.Email)
		require.Equal(t, users.RoleAgentAntenne, claims.Role)
		require.Equal(t, "Samira Alaoui", claims.DisplayName())

		stored, err := f.users.GetByEmail(testEmail)
		require.NoError(t, err)
		require.False(t, stored.LastLogin.IsZero())
	})

	t.Run("Wrong password", func(t *testing.T) {
		_, err := f.client.Login(ctx, testEmail, "Wrong123")
		require.ErrorIs(t, err, session.ErrInvalidCredentials)
	})

	t.Run("Unknown account", func(t *testing.T) {
		_, err := f.client.Login(ctx, "nobody@ormvat.ma", testPassword)
		require.ErrorIs(t, err, session.ErrInvalidCredentials)
	})

	t.Run("Inactive account", func(t *testing.T) {
		require.NoError(t, f.users.SetActive(testEmail, false))
		defer func() { require.NoError(t, f.users.SetActive(testEmail, true)) }()

		_, err := f.client.Login(ctx, testEmail, testPassword)
		require.ErrorIs(t, err, session.ErrAccountInactive)
	})
}

func TestStatusMapping(t *testing.T) {
	ctx := context.Background()

	respond := func(status int, body string) *authapi.Client {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(body))
		}))
		t.Cleanup(srv.Close)
		c, err := authapi.New(srv.URL)
		require.NoError(t, err)
		return c
	}

	t.Run("Server error keeps the backend message", func(t *testing.T) {
		_, err := respond(http.StatusInternalServerError, `{"message":"Base indisponible"}`).Login(ctx, testEmail, testPassword)
		require.ErrorIs(t, err, session.ErrServerError)
		require.Equal(t, "Base indisponible", session.UserMessage(err))
	})

	t.Run("Server error without body", func(t *testing.T) {
		_, err := respond(http.StatusBadGateway, "").Login(ctx, testEmail, testPassword)
		require.ErrorIs(t, err, session.ErrServerError)
		require.Equal(t, session.MsgConnection, session.UserMessage(err))
	})

	t.Run("Success without token", func(t *testing.T) {
		raw, err := respond(http.StatusOK, `{}`).Login(ctx, testEmail, testPassword)
		require.NoError(t, err)
		require.Empty(t, raw)
	})

	t.Run("Change password 401 is a wrong password", func(t *testing.T) {
		err := respond(http.StatusUnauthorized, "").ChangePassword(ctx, "tok", "a", "b")
		require.ErrorIs(t, err, session.ErrInvalidCredentials)
		require.Equal(t, session.MsgWrongPassword, session.UserMessage(err))
	})

	t.Run("Change password server error", func(t *testing.T) {
		err := respond(http.StatusInternalServerError, "").ChangePassword(ctx, "tok", "a", "b")
		require.ErrorIs(t, err, session.ErrServerError)
	})
}

func TestNetworkErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("Connection refused", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		c, err := authapi.New(url)
		require.NoError(t, err)
		_, err = c.Login(ctx, testEmail, testPassword)
		var netErr *session.NetworkError
		require.ErrorAs(t, err, &netErr)
	})

	t.Run("Timeout", func(t *testing.T) {
		block := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-block
		}))
		defer srv.Close()
		defer close(block)

		c, err := authapi.New(srv.URL, authapi.WithTimeout(50*time.Millisecond))
		require.NoError(t, err)
		_, err = c.Login(ctx, testEmail, testPassword)
		var netErr *session.NetworkError
		require.ErrorAs(t, err, &netErr)
	})
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	req := session.RegisterRequest{
		FamilyName:  "Bennani",
		GivenName:   "Youssef",
		Email:       "y.bennani@ormvat.ma",
		CNI:         "AB123456",
		DateOfBirth: "1990-04-01",
		Password:    "Secret123",
		Role:        users.RoleAgentGUC,
	}

	t.Run("Pending activation returns no token", func(t *testing.T) {
		f := setupTestFixture(t)
		raw, err := f.client.Register(ctx, req)
		require.NoError(t, err)
		require.Empty(t, raw)

		stored, err := f.users.GetByEmail(req.Email)
		require.NoError(t, err)
		require.False(t, stored.Active)
		require.Equal(t, 1990, stored.DateOfBirth.Year())

		_, err = f.client.Login(ctx, req.Email, req.Password)
		require.ErrorIs(t, err, session.ErrAccountInactive)
	})

	t.Run("Active on signup returns a token", func(t *testing.T) {
		f := setupTestFixture(t, authstub.WithActiveOnSignup(true))
		raw, err := f.client.Register(ctx, req)
		require.NoError(t, err)

		claims, err := token.Decode(raw)
		require.NoError(t, err)
		require.Equal(t, users.RoleAgentGUC, claims.Role)
	})

	t.Run("Duplicate email", func(t *testing.T) {
		f := setupTestFixture(t)
		dup := req
		dup.Email = testEmail
		_, err := f.client.Register(ctx, dup)
		require.ErrorIs(t, err, session.ErrServerError)
		require.Equal(t, "Un compte existe déjà avec cet email", session.UserMessage(err))
	})
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)

	raw, err := f.client.Login(ctx, testEmail, testPassword)
	require.NoError(t, err)

	t.Run("Wrong current password", func(t *testing.T) {
		err := f.client.ChangePassword(ctx, raw, "Nope1234", "Secret456")
		require.ErrorIs(t, err, session.ErrInvalidCredentials)
	})

	t.Run("Bad bearer", func(t *testing.T) {
		err := f.client.ChangePassword(ctx, "a.b.c", testPassword, "Secret456")
		require.ErrorIs(t, err, session.ErrInvalidCredentials)
	})

	t.Run("Success", func(t *testing.T) {
		require.NoError(t, f.client.ChangePassword(ctx, raw, testPassword, "Secret456"))

		_, err := f.client.Login(ctx, testEmail, testPassword)
		require.ErrorIs(t, err, session.ErrInvalidCredentials)
		_, err = f.client.Login(ctx, testEmail, "Secret456")
		require.NoError(t, err)
	})
}

func TestRequestBodies(t *testing.T) {
	var got map[string]string
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		got = nil
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c, err := authapi.New(srv.URL)
	require.NoError(t, err)

	require.NoError(t, c.ChangePassword(context.Background(), "raw-token", "Old12345", "New12345"))
	require.Equal(t, "Bearer raw-token", auth)
	require.Equal(t, map[string]string{"ancienMotDePasse": "Old12345", "nouveauMotDePasse": "New12345"}, got)

	_, err = c.Login(context.Background(), testEmail, testPassword)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"email": testEmail, "motDePasse": testPassword}, got)
	require.Empty(t, auth)
}
