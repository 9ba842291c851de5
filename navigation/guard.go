package navigation

import (
	"context"
	"net/url"

	"github.com/jrsteele09/sadsa-portal/token"
	"github.com/jrsteele09/sadsa-portal/users"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LoginPath is where unauthenticated visitors are sent when the table has no "login" route
const LoginPath = "/login"

// RedirectParam carries the originally requested path through the login page
const RedirectParam = "redirect"

// SessionReader is the part of the session store the guard consults
type SessionReader interface {
	IsAuthenticated(ctx context.Context) bool
	CurrentUser(ctx context.Context) (*token.Claims, bool)
}

// Target is one side of a navigation
type Target struct {
	Path    string
	RawPath string // escaped form of Path; empty means Path is used as is
	Query   url.Values
}

// TargetFromURL builds a Target from a request URL
func TargetFromURL(u *url.URL) Target {
	if u == nil {
		return Target{}
	}
	return Target{Path: u.Path, RawPath: u.EscapedPath(), Query: u.Query()}
}

// FullPath is the path plus encoded query, as a user would have typed it
func (t Target) FullPath() string {
	path := t.Path
	if t.RawPath != "" {
		path = t.RawPath
	}
	if len(t.Query) == 0 {
		return path
	}
	return path + "?" + t.Query.Encode()
}

// resolve matches the target the way the HTTP mux does, on escaped segments when known
func (t Target) resolve(routes *RouteTable) (Match, bool) {
	if t.RawPath != "" {
		return routes.MatchEscaped(t.RawPath)
	}
	return routes.Match(t.Path)
}

// Reason explains a redirect
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonUnauthenticated Reason = "unauthenticated"
	ReasonRoleMismatch    Reason = "role-mismatch"
	ReasonGuestOnly       Reason = "guest-only"
)

// Decision is the outcome of evaluating a navigation
type Decision struct {
	Allowed  bool
	Redirect Target // set when Allowed is false
	Reason   Reason
	Route    *Route // the route that was resolved, nil for unknown paths
}

// Location renders the redirect target; empty for allowed navigations
func (d Decision) Location() string {
	if d.Allowed {
		return ""
	}
	return d.Redirect.FullPath()
}

// Guard decides, for every navigation, whether it proceeds or is rewritten.
// It is stateless and never writes session storage.
type Guard struct {
	routes   *RouteTable
	sessions SessionReader
	logger   zerolog.Logger
}

type GuardOption func(*Guard)

func WithGuardLogger(logger zerolog.Logger) GuardOption {
	return func(g *Guard) {
		g.logger = logger
	}
}

func NewGuard(routes *RouteTable, sessions SessionReader, options ...GuardOption) *Guard {
	g := &Guard{
		routes:   routes,
		sessions: sessions,
		logger:   log.Logger,
	}
	for _, opt := range options {
		opt(g)
	}
	return g
}

// Routes is the table the guard resolves against
func (g *Guard) Routes() *RouteTable {
	return g.routes
}

// Evaluate applies the access policy of the route to.Path resolves to. from is informational.
func (g *Guard) Evaluate(ctx context.Context, to, from Target) Decision {
	match, ok := to.resolve(g.routes)
	if !ok {
		return Decision{Allowed: true}
	}
	route := match.Route

	authenticated := false
	var user *token.Claims
	if g.sessions != nil {
		authenticated = g.sessions.IsAuthenticated(ctx)
		if authenticated {
			user, _ = g.sessions.CurrentUser(ctx)
		}
	}

	var decision Decision
	switch {
	case route.RequiresAuth && !authenticated:
		decision = g.redirect(to, g.loginPath(), ReasonUnauthenticated)
		if !decision.Allowed {
			decision.Redirect.Query = url.Values{RedirectParam: {to.FullPath()}}
		}
	case route.RequiresAuth && !role(user).Satisfies(route.RequiredRole):
		decision = g.redirect(to, users.HomePath(role(user)), ReasonRoleMismatch)
	case route.GuestOnly && authenticated:
		decision = g.redirect(to, users.HomePath(role(user)), ReasonGuestOnly)
	default:
		decision = Decision{Allowed: true}
	}
	decision.Route = &route

	if !decision.Allowed {
		g.logger.Debug().
			Str("from", from.Path).
			Str("to", to.FullPath()).
			Str("reason", string(decision.Reason)).
			Str("location", decision.Location()).
			Msg("navigation redirected")
	}
	return decision
}

// redirect builds a redirect decision, allowing instead when it would point back at to
func (g *Guard) redirect(to Target, path string, reason Reason) Decision {
	if path == to.Path {
		return Decision{Allowed: true}
	}
	return Decision{Redirect: Target{Path: path}, Reason: reason}
}

func (g *Guard) loginPath() string {
	if r, ok := g.routes.Lookup("login"); ok {
		return r.Path
	}
	return LoginPath
}

func role(user *token.Claims) users.RoleType {
	if user == nil {
		return users.RoleNone
	}
	return user.Role
}
