package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jrsteele09/sadsa-portal/audit"
	"github.com/jrsteele09/sadsa-portal/internal/config"
	"github.com/jrsteele09/sadsa-portal/navigation"
	"github.com/jrsteele09/sadsa-portal/server/ui"
	"github.com/jrsteele09/sadsa-portal/session"
	"github.com/jrsteele09/sadsa-portal/storage"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Dependencies are the collaborators the portal is built on
type Dependencies struct {
	Auth    session.Authenticator // required
	Scopes  storage.Scopes        // required, one backend per scope
	Journal *audit.Journal        // optional session journal
	Routes  *navigation.RouteTable
	NowTime func() time.Time
	Logger  *zerolog.Logger
}

type Server struct {
	env      string // Environment (e.g., "DEV", "PROD")
	mux      *http.ServeMux
	routes   []string
	config   config.Config
	auth     session.Authenticator
	scopes   storage.Scopes
	journal  *audit.Journal
	guard    *navigation.Guard
	validate *validator.Validate
	nowTime  func() time.Time
	logger   zerolog.Logger
}

func New(c config.Config, deps Dependencies) (*Server, error) {
	if deps.Auth == nil {
		return nil, fmt.Errorf("[Server New] authenticator is required")
	}
	if deps.Scopes.Persistent == nil || deps.Scopes.Ephemeral == nil {
		return nil, fmt.Errorf("[Server New] both scope backends are required")
	}

	s := &Server{
		env:      c.GetEnv(),
		mux:      http.NewServeMux(),
		config:   c,
		auth:     deps.Auth,
		scopes:   deps.Scopes,
		journal:  deps.Journal,
		validate: newValidator(),
		nowTime:  deps.NowTime,
		logger:   log.Logger,
	}
	if s.nowTime == nil {
		s.nowTime = time.Now
	}
	if deps.Logger != nil {
		s.logger = *deps.Logger
	}

	routes := deps.Routes
	if routes == nil {
		routes = navigation.DefaultRoutes()
	}
	s.guard = navigation.NewGuard(routes, requestSessions{}, navigation.WithGuardLogger(s.logger))

	if err := s.initRoutes(); err != nil {
		return nil, fmt.Errorf("[Server New] failed to register routes: %w", err)
	}
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			s.logRoute(parts[0], parts[1])
		} else {
			s.logRoute("", parts[0])
		}
	}
}

func (s *Server) logRoute(method, path string) {
	s.logger.Info().Msgf("[%-19s] %s", colourMethod(method), path)
}

func (s *Server) logError(method, path, message string) {
	s.logger.Error().Msgf("[%-19s] %s %s", colourMethod(method), path, ui.Paint(ui.Red, message))
}

func colourMethod(method string) string {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := ui.MethodColors[method]; ok {
		return ui.Paint(color, paddedMethod)
	}
	return ui.Paint(ui.Gray, paddedMethod)
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
