package server

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/sadsa-portal/navigation"
	"github.com/jrsteele09/sadsa-portal/token"
	"github.com/jrsteele09/sadsa-portal/users"
)

const contentTypeHTML = "text/html; charset=utf-8"

const layoutTemplate = "layout.html"

//go:embed templates/*
var templateFiles embed.FS

func TemplateFilesFS() fs.FS {
	// Create the sub filesystem once
	subFS, err := fs.Sub(templateFiles, "templates")
	if err != nil {
		panic("Failed to create templates sub filesystem: " + err.Error())
	}
	return subFS
}

var templateFuncs = template.FuncMap{
	"roleLabel": roleLabel,
	"datetime": func(t time.Time) string {
		return t.Local().Format("02/01/2006 15:04:05")
	},
	"upper": strings.ToUpper,
}

// ParseTemplate parses a page from the embedded filesystem on top of the shared layout
func ParseTemplate(name string) (*template.Template, error) {
	return template.New(layoutTemplate).Funcs(templateFuncs).ParseFS(TemplateFilesFS(), layoutTemplate, name)
}

// PageData is what every page template receives
type PageData struct {
	AppName string
	Meta    navigation.PageMeta
	User    *token.Claims
	Nav     []NavLink
	Error   string
	Success string
	Data    any
}

// NavLink is one entry of the top navigation
type NavLink struct {
	Label  string
	Path   string
	Active bool
}

func (s *Server) pageData(r *http.Request, data any) PageData {
	pd := PageData{
		AppName: s.config.GetAppName(),
		Meta:    s.guard.Presentation(navigation.TargetFromURL(r.URL)),
		Error:   r.URL.Query().Get("error"),
		Success: r.URL.Query().Get("success"),
		Data:    data,
	}
	if store, ok := StoreFromContext(r.Context()); ok {
		pd.User, _ = store.CurrentUser(r.Context())
	}
	pd.Nav = navLinks(pd.User, r.URL.Path)
	return pd
}

func navLinks(user *token.Claims, current string) []NavLink {
	if user == nil {
		return nil
	}
	links := []NavLink{{Label: "Tableau de bord", Path: RouteDashboard}}
	if home := user.HomePath(); home != RouteDashboard {
		links = append(links, NavLink{Label: "Mes dossiers", Path: home})
	}
	if user.Role == users.RoleAdmin {
		links = append(links, NavLink{Label: "Journal", Path: RouteAdminJournal})
	}
	links = append(links, NavLink{Label: "Mot de passe", Path: RouteChangePassword})
	for i := range links {
		links[i].Active = links[i].Path == current
	}
	return links
}

func roleLabel(role users.RoleType) string {
	switch role {
	case users.RoleAdmin:
		return "Administrateur"
	case users.RoleAgentAntenne:
		return "Agent antenne"
	case users.RoleAgentGUC:
		return "Agent guichet unique"
	case users.RoleAgentCommission:
		return "Agent commission"
	case users.RoleAgentCommissionTerrain:
		return "Agent commission terrain"
	case users.RoleCommissionAHAAF:
		return "Commission AHA/AF"
	case users.RoleServiceTechnique:
		return "Service technique"
	}
	return "Utilisateur"
}

// pageRenderer parses a page once and renders it with the request's PageData
func (s *Server) pageRenderer(name string) func(w http.ResponseWriter, r *http.Request, status int, data any) {
	tmpl, err := ParseTemplate(name)
	if err != nil {
		s.logger.Err(err).Str("template", name).Msg("Failed to parse template")
	}

	return func(w http.ResponseWriter, r *http.Request, status int, data any) {
		if tmpl == nil {
			http.Error(w, "Failed to render page", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", contentTypeHTML)
		setNoStore(w)
		w.WriteHeader(status)
		if err := tmpl.ExecuteTemplate(w, layoutTemplate, s.pageData(r, data)); err != nil {
			s.logger.Err(err).Str("template", name).Msg("Failed to render template")
		}
	}
}
