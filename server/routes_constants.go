package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Pages
	RouteIndex          = "/"
	RouteLogin          = "/login"
	RouteRegister       = "/register"
	RouteDashboard      = "/dashboard"
	RouteChangePassword = "/profile/change-password"

	// Role home pages and dossier details
	RouteAgentAntenneDossiers    = "/agent_antenne/dossiers"
	RouteAgentGUCDossiers        = "/agent_guc/dossiers"
	RouteAgentCommissionDossiers = "/agent_commission/dossiers"
	RouteDossierDetail           = "/{id}"

	// Admin pages
	RouteAdminDocumentsRequis = "/admin/documents-requis"
	RouteAdminJournal         = "/admin/journal"

	// Auth actions
	RouteAuthLogin          = "/auth/login"
	RouteAuthRegister       = "/auth/register"
	RouteAuthLogout         = "/auth/logout"
	RouteAuthChangePassword = "/auth/change-password"

	// API Routes
	RouteAPISession        = "/api/session"
	RouteAPISessionRefresh = "/api/session/refresh"

	// Static Asset Routes (patterns)
	RouteStatic = "/static/{file...}"
)

// Holder cookies
const (
	DeviceCookieName = "sadsa_device"
	TabCookieName    = "sadsa_tab"
)
