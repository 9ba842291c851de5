package navigation

import (
	_ "embed"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/jrsteele09/sadsa-portal/users"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

//go:embed routes.yaml
var defaultRoutesYAML string

// Route describes a page and its access policy. Routes are immutable once loaded.
type Route struct {
	Path         string         `yaml:"path"`
	Name         string         `yaml:"name"`
	RequiresAuth bool           `yaml:"requiresAuth"`
	RequiredRole users.RoleType `yaml:"requiredRole"`
	GuestOnly    bool           `yaml:"guestOnly"`
	Title        string         `yaml:"title"`
	Landing      bool           `yaml:"landing"`
}

type routeFile struct {
	Routes []Route `yaml:"routes"`
}

type segment struct {
	literal  string
	param    string
	catchAll bool
}

type compiledRoute struct {
	route    Route
	segments []segment
	literals int
}

// RouteTable resolves request paths to routes
type RouteTable struct {
	routes []compiledRoute
	byName map[string]Route
}

// Match is a resolved route with its path parameters
type Match struct {
	Route  Route
	Params map[string]string
}

// DefaultRoutes returns the built in portal route table
func DefaultRoutes() *RouteTable {
	table, err := LoadRoutes(strings.NewReader(defaultRoutesYAML))
	if err != nil {
		panic("invalid embedded routes.yaml: " + err.Error())
	}
	return table
}

// LoadRoutes parses a YAML route table. Rows with an empty path are dropped with a warning.
// An unknown role is cleared, leaving the row's own requiresAuth in force.
func LoadRoutes(r io.Reader) (*RouteTable, error) {
	var file routeFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to parse route table: %w", err)
	}
	return NewRouteTable(file.Routes...), nil
}

// NewRouteTable compiles routes in declaration order
func NewRouteTable(routes ...Route) *RouteTable {
	t := &RouteTable{byName: make(map[string]Route)}
	for _, route := range routes {
		route.Path = strings.TrimSpace(route.Path)
		if route.Path == "" || !strings.HasPrefix(route.Path, "/") {
			log.Warn().Str("name", route.Name).Str("path", route.Path).Msg("skipping route with invalid path")
			continue
		}
		if route.RequiredRole != users.RoleNone {
			route.RequiredRole = users.ParseRole(string(route.RequiredRole))
			if route.RequiredRole.Known() {
				route.RequiresAuth = true
			} else {
				log.Warn().Str("path", route.Path).Str("role", string(route.RequiredRole)).Msg("ignoring unknown role on route")
				route.RequiredRole = users.RoleNone
			}
		}

		compiled := compiledRoute{route: route}
		for _, part := range splitPath(route.Path) {
			seg := segment{literal: part}
			if strings.HasPrefix(part, "{") && strings.HasSuffix(part, "}") {
				name := strings.TrimSuffix(strings.TrimPrefix(part, "{"), "}")
				seg = segment{param: strings.TrimSuffix(name, "..."), catchAll: strings.HasSuffix(name, "...")}
			} else {
				compiled.literals++
			}
			compiled.segments = append(compiled.segments, seg)
		}
		t.routes = append(t.routes, compiled)
		if route.Name != "" {
			if _, dup := t.byName[route.Name]; !dup {
				t.byName[route.Name] = route
			}
		}
	}
	return t
}

// Match resolves a decoded path. Literal segments beat parameters; among equals the first declared wins.
func (t *RouteTable) Match(path string) (Match, bool) {
	return t.match(splitPath(path))
}

// MatchEscaped resolves a path in its escaped form, as http.ServeMux sees it, so an
// encoded "/" stays inside its segment.
func (t *RouteTable) MatchEscaped(escapedPath string) (Match, bool) {
	parts := splitPath(escapedPath)
	for i, p := range parts {
		if unescaped, err := url.PathUnescape(p); err == nil {
			parts[i] = unescaped
		}
	}
	return t.match(parts)
}

func (t *RouteTable) match(parts []string) (Match, bool) {
	if t == nil {
		return Match{}, false
	}

	best := -1
	var bestParams map[string]string
	for i, cr := range t.routes {
		params, ok := cr.match(parts)
		if !ok {
			continue
		}
		if best == -1 || cr.literals > t.routes[best].literals {
			best = i
			bestParams = params
		}
	}
	if best == -1 {
		return Match{}, false
	}
	return Match{Route: t.routes[best].route, Params: bestParams}, true
}

// Lookup returns the route registered under name
func (t *RouteTable) Lookup(name string) (Route, bool) {
	if t == nil {
		return Route{}, false
	}
	r, ok := t.byName[name]
	return r, ok
}

// Routes lists the table in declaration order
func (t *RouteTable) Routes() []Route {
	out := make([]Route, 0, len(t.routes))
	for _, cr := range t.routes {
		out = append(out, cr.route)
	}
	return out
}

func (cr compiledRoute) match(parts []string) (map[string]string, bool) {
	params := map[string]string{}
	for i, seg := range cr.segments {
		if seg.catchAll {
			params[seg.param] = strings.Join(parts[i:], "/")
			return params, true
		}
		if i >= len(parts) {
			return nil, false
		}
		switch {
		case seg.param != "":
			params[seg.param] = parts[i]
		case seg.literal != parts[i]:
			return nil, false
		}
	}
	if len(parts) != len(cr.segments) {
		return nil, false
	}
	return params, true
}

// splitPath turns "/a/b/" into [a b]; "/" is no segments
func splitPath(path string) []string {
	var parts []string
	for _, p := range strings.Split(path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}
