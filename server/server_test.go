package server_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/jrsteele09/sadsa-portal/audit"
	"github.com/jrsteele09/sadsa-portal/authapi"
	"github.com/jrsteele09/sadsa-portal/authapi/authstub"
	"github.com/jrsteele09/sadsa-portal/internal/config"
	"github.com/jrsteele09/sadsa-portal/server"
	"github.com/jrsteele09/sadsa-portal/session"
	"github.com/jrsteele09/sadsa-portal/storage"
	"github.com/jrsteele09/sadsa-portal/token"
	"github.com/jrsteele09/sadsa-portal/users"
	fakeuserrepo "github.com/jrsteele09/sadsa-portal/users/repofake"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const (
	adminEmail    = "admin@sadsa.ma"
	agentEmail    = "antenne@sadsa.ma"
	inactiveEmail = "attente@sadsa.ma"
	password      = "Sadsa2025"
	allowedOrigin = "https://app.sadsa.ma"
)

type portalFixture struct {
	portal     *httptest.Server
	persistent *storage.MemoryBackend
	ephemeral  *storage.MemoryBackend
	journal    *audit.Journal
}

func setupPortal(t *testing.T) *portalFixture {
	t.Helper()
	t.Setenv("ENV", "TEST")
	t.Setenv("CORS_ALLOWED_ORIGINS", allowedOrigin)

	stub := authstub.New(fakeuserrepo.NewFakeUserRepo(), token.NewCreator(token.NewHMACSigner("test-secret"), 0),
		authstub.WithLogger(zerolog.Nop()))
	for _, u := range []users.User{
		{Email: adminEmail, FirstName: "Nadia", LastName: "Bennani", Role: users.RoleAdmin, Active: true},
		{Email: agentEmail, FirstName: "Omar", LastName: "Tazi", Role: users.RoleAgentAntenne, Active: true},
		{Email: inactiveEmail, FirstName: "Karim", LastName: "Idrissi", Role: users.RoleAgentGUC, Active: false},
	} {
		_, err := stub.Seed(u, password)
		require.NoError(t, err)
	}
	api := httptest.NewServer(stub)
	t.Cleanup(api.Close)

	client, err := authapi.New(api.URL)
	require.NoError(t, err)

	journal, err := audit.Open("file::memory:", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = journal.Close() })

	f := &portalFixture{
		persistent: storage.NewMemoryBackend(),
		ephemeral:  storage.NewMemoryBackend(),
		journal:    journal,
	}
	logger := zerolog.Nop()
	srv, err := server.New(config.New(), server.Dependencies{
		Auth:    client,
		Scopes:  storage.Scopes{Persistent: f.persistent, Ephemeral: f.ephemeral},
		Journal: journal,
		Logger:  &logger,
	})
	require.NoError(t, err)

	f.portal = httptest.NewServer(srv)
	t.Cleanup(f.portal.Close)
	return f
}

// browser returns a client with its own cookie jar that does not follow redirects
func (f *portalFixture) browser(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// restart simulates closing the browser: only the persistent device cookie survives
func (f *portalFixture) restart(t *testing.T, old *http.Client) *http.Client {
	t.Helper()
	u, err := url.Parse(f.portal.URL)
	require.NoError(t, err)

	next := f.browser(t)
	for _, c := range old.Jar.Cookies(u) {
		if c.Name == server.DeviceCookieName {
			next.Jar.SetCookies(u, []*http.Cookie{{Name: c.Name, Value: c.Value, Path: "/"}})
		}
	}
	return next
}

func (f *portalFixture) get(t *testing.T, c *http.Client, path string) *http.Response {
	t.Helper()
	resp, err := c.Get(f.portal.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (f *portalFixture) post(t *testing.T, c *http.Client, path string, form url.Values) *http.Response {
	t.Helper()
	resp, err := c.PostForm(f.portal.URL+path, form)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (f *portalFixture) login(t *testing.T, c *http.Client, email string, remember bool) *http.Response {
	t.Helper()
	form := url.Values{"email": {email}, "password": {password}}
	if remember {
		form.Set("remember", "on")
	}
	return f.post(t, c, server.RouteAuthLogin, form)
}

func (f *portalFixture) sessionState(t *testing.T, c *http.Client) server.SessionState {
	t.Helper()
	resp := f.get(t, c, server.RouteAPISession)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var state server.SessionState
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
	return state
}

func body(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func locationQuery(t *testing.T, resp *http.Response) (string, url.Values) {
	t.Helper()
	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	return loc.Path, loc.Query()
}

func TestUnauthenticatedPageRedirectsToLogin(t *testing.T) {
	f := setupPortal(t)
	c := f.browser(t)

	resp := f.get(t, c, server.RouteAdminDocumentsRequis)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/login?redirect=%2Fadmin%2Fdocuments-requis", resp.Header.Get("Location"))

	resp = f.get(t, c, "/")
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, server.RouteLogin, resp.Header.Get("Location"))

	resp = f.get(t, c, server.RouteLogin)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body(t, resp), `class="login-page landing"`)
}

func TestEncodedSlashInDossierIDIsGuarded(t *testing.T) {
	f := setupPortal(t)
	c := f.browser(t)

	resp := f.get(t, c, "/agent_guc/dossiers/x%2Fy")
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	path, query := locationQuery(t, resp)
	require.Equal(t, server.RouteLogin, path)
	require.Equal(t, "/agent_guc/dossiers/x%2Fy", query.Get("redirect"))

	f.login(t, c, "antenne@sadsa.ma", false)
	resp = f.get(t, c, "/agent_guc/dossiers/x%2Fy")
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/agent_antenne/dossiers", resp.Header.Get("Location"))
}

func TestLoginWithRememberSurvivesBrowserRestart(t *testing.T) {
	f := setupPortal(t)
	c := f.browser(t)

	resp := f.post(t, c, server.RouteAuthLogin, url.Values{
		"email":    {adminEmail},
		"password": {password},
		"remember": {"on"},
		"redirect": {server.RouteAdminJournal},
	})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, server.RouteAdminJournal, resp.Header.Get("Location"))
	require.Equal(t, 1, f.persistent.Len())
	require.Equal(t, 0, f.ephemeral.Len())

	state := f.sessionState(t, c)
	require.True(t, state.Authenticated)
	require.Equal(t, session.ScopePersistent, state.Scope)
	require.Equal(t, adminEmail, state.User.Email)
	require.Equal(t, users.RoleAdmin, state.User.Role)

	restarted := f.restart(t, c)
	resp = f.get(t, restarted, server.RouteAdminDocumentsRequis)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLoginWithoutRememberEndsWithBrowser(t *testing.T) {
	f := setupPortal(t)
	c := f.browser(t)

	resp := f.login(t, c, agentEmail, false)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, users.HomePath(users.RoleAgentAntenne), resp.Header.Get("Location"))
	require.Equal(t, 0, f.persistent.Len())
	require.Equal(t, 1, f.ephemeral.Len())
	require.Equal(t, session.ScopeEphemeral, f.sessionState(t, c).Scope)

	restarted := f.restart(t, c)
	resp = f.get(t, restarted, server.RouteDashboard)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/login?redirect=%2Fdashboard", resp.Header.Get("Location"))
}

func TestLoginFailures(t *testing.T) {
	tests := []struct {
		name     string
		form     url.Values
		errorMsg string
	}{
		{
			name:     "wrong password",
			form:     url.Values{"email": {adminEmail}, "password": {"Mauvais123"}},
			errorMsg: session.MsgInvalidCredentials,
		},
		{
			name:     "inactive account",
			form:     url.Values{"email": {inactiveEmail}, "password": {password}},
			errorMsg: session.MsgAccountInactive,
		},
		{
			name:     "invalid email",
			form:     url.Values{"email": {"pas-un-email"}, "password": {password}},
			errorMsg: "Adresse email invalide",
		},
		{
			name:     "missing password",
			form:     url.Values{"email": {adminEmail}},
			errorMsg: "Mot de passe est obligatoire",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupPortal(t)
			c := f.browser(t)

			tt.form.Set("redirect", server.RouteDashboard)
			resp := f.post(t, c, server.RouteAuthLogin, tt.form)
			require.Equal(t, http.StatusSeeOther, resp.StatusCode)

			path, query := locationQuery(t, resp)
			require.Equal(t, server.RouteLogin, path)
			require.Equal(t, tt.errorMsg, query.Get("error"))
			require.Equal(t, tt.form.Get("email"), query.Get("email"))
			require.Equal(t, server.RouteDashboard, query.Get("redirect"))
			require.Equal(t, 0, f.persistent.Len()+f.ephemeral.Len())
		})
	}
}

func TestLoginIgnoresForeignRedirects(t *testing.T) {
	for _, redirect := range []string{"//evil.example", "https://evil.example/x", "/login", "javascript:alert(1)", "/\\evil.example"} {
		t.Run(redirect, func(t *testing.T) {
			f := setupPortal(t)
			c := f.browser(t)

			resp := f.post(t, c, server.RouteAuthLogin, url.Values{
				"email":    {adminEmail},
				"password": {password},
				"redirect": {redirect},
			})
			require.Equal(t, http.StatusSeeOther, resp.StatusCode)
			require.Equal(t, users.HomePath(users.RoleAdmin), resp.Header.Get("Location"))
		})
	}
}

func TestGuardRedirectsSignedInUsers(t *testing.T) {
	f := setupPortal(t)
	c := f.browser(t)
	f.login(t, c, agentEmail, false)
	home := users.HomePath(users.RoleAgentAntenne)

	resp := f.get(t, c, server.RouteAdminDocumentsRequis)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode, "role mismatch")
	require.Equal(t, home, resp.Header.Get("Location"))

	resp = f.get(t, c, server.RouteLogin)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode, "guest only")
	require.Equal(t, home, resp.Header.Get("Location"))

	resp = f.get(t, c, home)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body(t, resp), "Omar Tazi")

	resp = f.get(t, c, home+"/D-2025-001")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body(t, resp), "Dossier D-2025-001")

	resp = f.get(t, c, server.RouteDashboard)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHTMXLoginUsesHXRedirect(t *testing.T) {
	f := setupPortal(t)
	c := f.browser(t)

	req, err := http.NewRequest(http.MethodPost, f.portal.URL+server.RouteAuthLogin,
		strings.NewReader(url.Values{"email": {adminEmail}, "password": {password}}.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("HX-Request", "true")

	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Equal(t, users.HomePath(users.RoleAdmin), resp.Header.Get("HX-Redirect"))
}

func TestLogoutClearsBothScopes(t *testing.T) {
	f := setupPortal(t)
	c := f.browser(t)
	f.login(t, c, adminEmail, true)
	require.True(t, f.sessionState(t, c).Authenticated)

	resp := f.post(t, c, server.RouteAuthLogout, nil)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	path, _ := locationQuery(t, resp)
	require.Equal(t, server.RouteLogin, path)
	require.Equal(t, 0, f.persistent.Len()+f.ephemeral.Len())

	state := f.sessionState(t, c)
	require.False(t, state.Authenticated)
	require.Nil(t, state.User)
	require.Equal(t, session.ScopeNone, state.Scope)

	// Logging out twice is fine
	resp = f.get(t, c, server.RouteAuthLogout)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
}

func TestSessionRefresh(t *testing.T) {
	f := setupPortal(t)
	c := f.browser(t)

	resp := f.post(t, c, server.RouteAPISessionRefresh, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	f.login(t, c, adminEmail, false)
	resp = f.post(t, c, server.RouteAPISessionRefresh, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var state server.SessionState
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
	require.True(t, state.Authenticated)
}

func TestRegister(t *testing.T) {
	f := setupPortal(t)
	c := f.browser(t)

	form := url.Values{
		"nom":           {"El Amrani"},
		"prenom":        {"Youssef"},
		"email":         {"youssef@sadsa.ma"},
		"cni":           {"ab123456"},
		"dateNaissance": {"1990-05-17"},
		"motDePasse":    {"Inscription1"},
	}
	resp := f.post(t, c, server.RouteAuthRegister, form)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	path, query := locationQuery(t, resp)
	require.Equal(t, server.RouteLogin, path)
	require.NotEmpty(t, query.Get("success"))
	require.Equal(t, "youssef@sadsa.ma", query.Get("email"))
	require.Equal(t, 0, f.persistent.Len()+f.ephemeral.Len())

	// Second attempt is rejected by the backend
	resp = f.post(t, c, server.RouteAuthRegister, form)
	path, query = locationQuery(t, resp)
	require.Equal(t, server.RouteRegister, path)
	require.NotEmpty(t, query.Get("error"))

	form.Set("dateNaissance", "17/05/1990")
	resp = f.post(t, c, server.RouteAuthRegister, form)
	path, query = locationQuery(t, resp)
	require.Equal(t, server.RouteRegister, path)
	require.Equal(t, "Date de naissance doit être au format AAAA-MM-JJ", query.Get("error"))

	form.Set("dateNaissance", "1990-05-17")
	form.Set("email", "nouveau@sadsa.ma")
	form.Set("motDePasse", "inscription2025")
	resp = f.post(t, c, server.RouteAuthRegister, form)
	path, query = locationQuery(t, resp)
	require.Equal(t, server.RouteRegister, path)
	require.Equal(t, session.MsgWeakPassword, query.Get("error"))
	require.Equal(t, "nouveau@sadsa.ma", query.Get("email"))
}

func TestChangePassword(t *testing.T) {
	f := setupPortal(t)
	c := f.browser(t)

	resp := f.post(t, c, server.RouteAuthChangePassword, url.Values{})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/login?redirect=%2Fprofile%2Fchange-password", resp.Header.Get("Location"))

	f.login(t, c, agentEmail, false)

	resp = f.post(t, c, server.RouteAuthChangePassword, url.Values{
		"oldPassword":     {"Mauvais123"},
		"newPassword":     {"Nouveau2025"},
		"confirmPassword": {"Nouveau2025"},
	})
	_, query := locationQuery(t, resp)
	require.Equal(t, session.MsgWrongPassword, query.Get("error"))

	resp = f.post(t, c, server.RouteAuthChangePassword, url.Values{
		"oldPassword":     {password},
		"newPassword":     {"Nouveau2025"},
		"confirmPassword": {"Autre2025"},
	})
	_, query = locationQuery(t, resp)
	require.Equal(t, "Les mots de passe ne correspondent pas", query.Get("error"))

	resp = f.post(t, c, server.RouteAuthChangePassword, url.Values{
		"oldPassword":     {password},
		"newPassword":     {"Nouveau2025"},
		"confirmPassword": {"Nouveau2025"},
	})
	path, query := locationQuery(t, resp)
	require.Equal(t, server.RouteChangePassword, path)
	require.NotEmpty(t, query.Get("success"))
	require.True(t, f.sessionState(t, c).Authenticated, "session is kept")

	f.post(t, c, server.RouteAuthLogout, nil)
	resp = f.post(t, c, server.RouteAuthLogin, url.Values{"email": {agentEmail}, "password": {"Nouveau2025"}})
	require.Equal(t, users.HomePath(users.RoleAgentAntenne), resp.Header.Get("Location"))
}

func TestJournalRecordsPortalEvents(t *testing.T) {
	f := setupPortal(t)
	c := f.browser(t)
	f.login(t, c, adminEmail, true)

	resp := f.get(t, c, server.RouteAdminJournal)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := body(t, resp)
	require.Contains(t, page, adminEmail)
	require.Contains(t, page, string(session.EventLogin))

	events, err := f.journal.List(t.Context(), audit.Filter{Email: adminEmail, Kind: session.EventLogin})
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "portal", events[0].Client)
	require.Equal(t, string(session.ScopePersistent), events[0].Scope)
}

func TestNotFoundPage(t *testing.T) {
	f := setupPortal(t)
	c := f.browser(t)

	resp := f.get(t, c, "/nulle-part")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Contains(t, body(t, resp), "Page introuvable")
}

func TestStaticAndCORS(t *testing.T) {
	f := setupPortal(t)
	c := f.browser(t)

	resp := f.get(t, c, "/static/css/portal.css")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Type"), "text/css")
	require.NotEmpty(t, resp.Header.Get("Cache-Control"))

	resp = f.get(t, c, "/static/css/missing.css")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	req, err := http.NewRequest(http.MethodOptions, f.portal.URL+server.RouteAPISession, nil)
	require.NoError(t, err)
	req.Header.Set("Origin", allowedOrigin)
	pre, err := c.Do(req)
	require.NoError(t, err)
	defer pre.Body.Close()
	require.Equal(t, http.StatusOK, pre.StatusCode)
	require.Equal(t, allowedOrigin, pre.Header.Get("Access-Control-Allow-Origin"))
	require.Equal(t, "true", pre.Header.Get("Access-Control-Allow-Credentials"))

	req.Header.Set("Origin", "https://evil.example")
	pre, err = c.Do(req)
	require.NoError(t, err)
	defer pre.Body.Close()
	require.Empty(t, pre.Header.Get("Access-Control-Allow-Origin"))
}
