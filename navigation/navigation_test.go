package navigation_test

import (
	"context"
	"net/url"
	"strings"
	"testing"

	"github.com/jrsteele09/sadsa-portal/navigation"
	"github.com/jrsteele09/sadsa-portal/token"
	"github.com/jrsteele09/sadsa-portal/users"
	"github.com/stretchr/testify/require"
)

// fakeSessions is a fixed session state
type fakeSessions struct {
	user *token.Claims
}

func (f fakeSessions) IsAuthenticated(context.Context) bool { return f.user != nil }

func (f fakeSessions) CurrentUser(context.Context) (*token.Claims, bool) {
	return f.user, f.user != nil
}

func as(role users.RoleType) fakeSessions {
	return fakeSessions{user: &token.Claims{Email: "agent@ormvat.ma", Role: role}}
}

var anonymous = fakeSessions{}

func evaluate(sessions navigation.SessionReader, path string) navigation.Decision {
	guard := navigation.NewGuard(navigation.DefaultRoutes(), sessions)
	to, _ := url.Parse(path)
	return guard.Evaluate(context.Background(), navigation.TargetFromURL(to), navigation.Target{Path: "/"})
}

func TestUnauthenticatedIsSentToLogin(t *testing.T) {
	d := evaluate(anonymous, "/admin/documents-requis")
	require.False(t, d.Allowed)
	require.Equal(t, navigation.ReasonUnauthenticated, d.Reason)
	require.Equal(t, "/login?redirect=%2Fadmin%2Fdocuments-requis", d.Location())

	loc, err := url.Parse(d.Location())
	require.NoError(t, err)
	require.Equal(t, "/login", loc.Path)
	require.Equal(t, "/admin/documents-requis", loc.Query().Get("redirect"))

	t.Run("Query string is preserved", func(t *testing.T) {
		d := evaluate(anonymous, "/agent_guc/dossiers/12?tab=pieces")
		loc, err := url.Parse(d.Location())
		require.NoError(t, err)
		require.Equal(t, "/agent_guc/dossiers/12?tab=pieces", loc.Query().Get("redirect"))
	})

	t.Run("Every protected route", func(t *testing.T) {
		for _, route := range navigation.DefaultRoutes().Routes() {
			if !route.RequiresAuth {
				continue
			}
			path := strings.ReplaceAll(route.Path, "{id}", "7")
			d := evaluate(anonymous, path)
			require.False(t, d.Allowed, path)
			require.True(t, strings.HasPrefix(d.Location(), "/login?redirect="), path)
		}
	})
}

func TestRoleMismatchGoesToOwnHome(t *testing.T) {
	tests := []struct {
		role users.RoleType
		path string
		want string
	}{
		{users.RoleAgentGUC, "/admin/documents-requis", "/agent_guc/dossiers"},
		{users.RoleAgentAntenne, "/agent_guc/dossiers/3", "/agent_antenne/dossiers"},
		{users.RoleAdmin, "/agent_commission/dossiers", "/admin/documents-requis"},
		{users.RoleServiceTechnique, "/admin/journal", "/dashboard"},
		{users.RoleNone, "/agent_antenne/dossiers", "/dashboard"},
	}
	for _, tt := range tests {
		t.Run(string(tt.role)+tt.path, func(t *testing.T) {
			d := evaluate(as(tt.role), tt.path)
			require.False(t, d.Allowed)
			require.Equal(t, navigation.ReasonRoleMismatch, d.Reason)
			require.Equal(t, tt.want, d.Location())
		})
	}
}

func TestMatchingRoleIsAllowed(t *testing.T) {
	require.True(t, evaluate(as(users.RoleAdmin), "/admin/documents-requis").Allowed)
	require.True(t, evaluate(as(users.RoleAgentGUC), "/agent_guc/dossiers/99").Allowed)
	require.True(t, evaluate(as(users.RoleAgentGUC), "/dashboard").Allowed)
	require.True(t, evaluate(as(users.RoleAgentGUC), "/profile/change-password").Allowed)
}

func TestGuestOnlyRedirectsAuthenticated(t *testing.T) {
	d := evaluate(as(users.RoleAdmin), "/login")
	require.False(t, d.Allowed)
	require.Equal(t, navigation.ReasonGuestOnly, d.Reason)
	require.Equal(t, "/admin/documents-requis", d.Location())

	d = evaluate(as(users.RoleCommissionAHAAF), "/register")
	require.Equal(t, "/dashboard", d.Location())

	require.True(t, evaluate(anonymous, "/login").Allowed)
	require.True(t, evaluate(anonymous, "/register").Allowed)
}

func TestPublicAndUnknownRoutesAreAllowed(t *testing.T) {
	for _, path := range []string{"/", "/nowhere", "/admin", "/agent_guc/dossiers/1/extra", ""} {
		require.True(t, evaluate(anonymous, path).Allowed, path)
		require.True(t, evaluate(as(users.RoleAdmin), path).Allowed, path)
	}
	require.Nil(t, evaluate(anonymous, "/nowhere").Route)
}

func TestCommissionTerrainSharesCommissionRoutes(t *testing.T) {
	d := evaluate(as(users.RoleAgentCommissionTerrain), "/agent_commission/dossiers")
	require.True(t, d.Allowed)

	d = evaluate(as(users.RoleAgentCommissionTerrain), "/agent_commission/dossiers/5")
	require.True(t, d.Allowed)

	d = evaluate(as(users.RoleAgentCommissionTerrain), "/agent_guc/dossiers/5")
	require.Equal(t, "/agent_commission/dossiers", d.Location())

	d = evaluate(as(users.RoleAgentCommissionTerrain), "/login")
	require.Equal(t, "/agent_commission/dossiers", d.Location())

	d = evaluate(as(users.RoleAgentCommission), "/agent_commission/dossiers/5")
	require.True(t, d.Allowed)
}

func TestEncodedSlashStaysInOneSegment(t *testing.T) {
	d := evaluate(anonymous, "/agent_guc/dossiers/x%2Fy")
	require.False(t, d.Allowed)
	require.Equal(t, navigation.ReasonUnauthenticated, d.Reason)
	require.Equal(t, "/login?redirect=%2Fagent_guc%2Fdossiers%2Fx%252Fy", d.Location())

	d = evaluate(as(users.RoleAgentAntenne), "/agent_guc/dossiers/x%2Fy")
	require.Equal(t, "/agent_antenne/dossiers", d.Location())

	require.True(t, evaluate(as(users.RoleAgentGUC), "/agent_guc/dossiers/x%2Fy").Allowed)

	m, ok := navigation.DefaultRoutes().MatchEscaped("/agent_guc/dossiers/x%2Fy")
	require.True(t, ok)
	require.Equal(t, "x/y", m.Params["id"])

	_, ok = navigation.DefaultRoutes().Match("/agent_guc/dossiers/x/y")
	require.False(t, ok)
}

func TestNilSessionReader(t *testing.T) {
	d := evaluate(nil, "/dashboard")
	require.False(t, d.Allowed)
	require.True(t, evaluate(nil, "/login").Allowed)
}

func TestLoadRoutes(t *testing.T) {
	table, err := navigation.LoadRoutes(strings.NewReader(`
routes:
  - path: /connexion
    name: login
    guestOnly: true
  - path: /secret
    requiredRole: admin
  - path: /bad
    requiredRole: WIZARD
    requiresAuth: true
  - path: ""
    name: empty
  - path: /files/{rest...}
    requiresAuth: true
  - path: /files/public
`))
	require.NoError(t, err)
	require.Len(t, table.Routes(), 5)

	secret, ok := table.Match("/secret/")
	require.True(t, ok)
	require.True(t, secret.Route.RequiresAuth, "a required role implies auth")
	require.Equal(t, users.RoleAdmin, secret.Route.RequiredRole)

	bad, ok := table.Match("/bad")
	require.True(t, ok, "an unknown role keeps the route")
	require.True(t, bad.Route.RequiresAuth)
	require.Equal(t, users.RoleNone, bad.Route.RequiredRole)

	m, ok := table.Match("/files/a/b.pdf")
	require.True(t, ok)
	require.Equal(t, "a/b.pdf", m.Params["rest"])

	m, ok = table.Match("/files/public")
	require.True(t, ok)
	require.False(t, m.Route.RequiresAuth, "literal segments win")

	guard := navigation.NewGuard(table, anonymous)
	d := guard.Evaluate(context.Background(), navigation.Target{Path: "/secret"}, navigation.Target{})
	require.Equal(t, "/connexion?redirect=%2Fsecret", d.Location())

	d = guard.Evaluate(context.Background(), navigation.Target{Path: "/bad"}, navigation.Target{})
	require.Equal(t, "/connexion?redirect=%2Fbad", d.Location())

	d = navigation.NewGuard(table, as(users.RoleAgentGUC)).Evaluate(context.Background(), navigation.Target{Path: "/bad"}, navigation.Target{})
	require.True(t, d.Allowed)

	_, err = navigation.LoadRoutes(strings.NewReader("routes: [oops"))
	require.Error(t, err)
}

func TestMatchParams(t *testing.T) {
	m, ok := navigation.DefaultRoutes().Match("/agent_antenne/dossiers/DS-2024-001")
	require.True(t, ok)
	require.Equal(t, "agent-antenne-dossier", m.Route.Name)
	require.Equal(t, "DS-2024-001", m.Params["id"])
}

func TestPresentation(t *testing.T) {
	guard := navigation.NewGuard(navigation.DefaultRoutes(), anonymous)

	login := guard.Presentation(navigation.Target{Path: "/login"})
	require.Equal(t, "login-page", login.BodyClass)
	require.Equal(t, "Connexion", login.Title)
	require.True(t, login.Landing)

	register := guard.Presentation(navigation.Target{Path: "/register"})
	require.Empty(t, register.BodyClass)
	require.True(t, register.Landing)

	missing := guard.Presentation(navigation.Target{Path: "/nope"})
	require.False(t, missing.Found)
	require.Empty(t, missing.BodyClass)
}
