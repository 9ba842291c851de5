package server

import (
	"net/http"
)

func (s *Server) initRoutes() error {
	pages := s.PageMiddleware()

	s.RegisterRouteHandler("GET /{$}", ChainMiddleware(s.IndexHandler(), pages...))

	// LOGIN / SIGNUP
	s.RegisterRouteHandler("GET "+RouteLogin, ChainMiddleware(s.LoginPageUIHandler(), pages...))
	s.RegisterRouteHandler("GET "+RouteRegister, ChainMiddleware(s.RegisterPageUIHandler(), pages...))
	s.RegisterRouteHandler("POST "+RouteAuthLogin, ChainMiddleware(s.LoginSubmissionHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("POST "+RouteAuthRegister, ChainMiddleware(s.RegisterSubmissionHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteAuthLogout, ChainMiddleware(s.LogoutHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("POST "+RouteAuthLogout, ChainMiddleware(s.LogoutHandler(), s.HTMLMiddleWare()...))

	// PROFILE
	s.RegisterRouteHandler("GET "+RouteDashboard, ChainMiddleware(s.DashboardHandler(), pages...))
	s.RegisterRouteHandler("GET "+RouteChangePassword, ChainMiddleware(s.ChangePasswordPageHandler(), pages...))
	s.RegisterRouteHandler("POST "+RouteAuthChangePassword, ChainMiddleware(s.ChangePasswordSubmissionHandler(), s.HTMLMiddleWare()...))

	// Role homes
	for _, base := range []string{RouteAgentAntenneDossiers, RouteAgentGUCDossiers, RouteAgentCommissionDossiers} {
		s.RegisterRouteHandler("GET "+base, ChainMiddleware(s.DossiersHandler(base), pages...))
		s.RegisterRouteHandler("GET "+base+RouteDossierDetail, ChainMiddleware(s.DossierHandler(base), pages...))
	}

	// Admin
	s.RegisterRouteHandler("GET "+RouteAdminDocumentsRequis, ChainMiddleware(s.RequiredDocumentsHandler(), pages...))
	s.RegisterRouteHandler("GET "+RouteAdminJournal, ChainMiddleware(s.JournalHandler(), pages...))

	// API routes
	s.RegisterRouteHandler("GET "+RouteAPISession, ChainMiddleware(s.SessionStateHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("OPTIONS "+RouteAPISession, ChainMiddleware(s.SessionStateHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAPISessionRefresh, ChainMiddleware(s.SessionRefreshHandler(), s.APIMiddleware()...))

	// Static files
	s.RegisterRouteHandler("GET "+RouteStatic, ChainMiddleware(s.StaticFileHandler(), s.StaticMiddleware()...))

	// Everything else is a 404 page, still behind the guard
	s.RegisterRouteHandler(RouteIndex, ChainMiddleware(s.NotFoundHandler(), pages...))

	return nil
}

// Mount exposes handler under pattern, outside the portal middleware
func (s *Server) Mount(pattern string, handler http.Handler) {
	s.RegisterRouteHandler(pattern, handler)
}
