package server

import (
	"net/http"
	"path"

	"github.com/jrsteele09/sadsa-portal/audit"
	"github.com/jrsteele09/sadsa-portal/navigation"
	"github.com/jrsteele09/sadsa-portal/session"
)

// LoginPageData contains data for rendering the login page
type LoginPageData struct {
	Email    string // Preserve email on error
	Redirect string
}

// DossiersPageData is a role's dossier list
type DossiersPageData struct {
	Base     string
	Dossiers []Dossier
}

// Dossier is a case file row. Dossier content is served by the back office; the portal only links to it.
type Dossier struct {
	ID     string
	Status string
}

// DossierPageData is a single dossier page
type DossierPageData struct {
	Base string
	ID   string
}

// RequiredDocument is one row of the required documents page
type RequiredDocument struct {
	Label    string
	Required bool
}

// JournalPageData is the audit journal page
type JournalPageData struct {
	Enabled bool
	Email   string
	Kind    session.EventKind
	Kinds   []session.EventKind
	Events  []audit.SessionEvent
}

var requiredDocuments = []RequiredDocument{
	{Label: "Carte nationale d'identité (CNI)", Required: true},
	{Label: "Acte de naissance", Required: true},
	{Label: "Justificatif de domicile", Required: true},
	{Label: "Titre foncier ou attestation de propriété", Required: true},
	{Label: "Plan de situation", Required: true},
	{Label: "Photos du terrain", Required: false},
}

// IndexHandler sends visitors on to the login page, which itself forwards signed in users home
func (s *Server) IndexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		redirectSuccess(w, r, RouteLogin)
	}
}

// LoginPageUIHandler displays the login page (GET /login)
func (s *Server) LoginPageUIHandler() http.HandlerFunc {
	render := s.pageRenderer("login.html")

	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		render(w, r, http.StatusOK, LoginPageData{
			Email:    query.Get("email"),
			Redirect: safeRedirect(query.Get(navigation.RedirectParam)),
		})
	}
}

// RegisterPageUIHandler displays the sign up form (GET /register)
func (s *Server) RegisterPageUIHandler() http.HandlerFunc {
	render := s.pageRenderer("register.html")

	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		render(w, r, http.StatusOK, session.RegisterRequest{
			FamilyName: query.Get("nom"),
			GivenName:  query.Get("prenom"),
			Email:      query.Get("email"),
		})
	}
}

func (s *Server) DashboardHandler() http.HandlerFunc {
	render := s.pageRenderer("dashboard.html")

	return func(w http.ResponseWriter, r *http.Request) {
		render(w, r, http.StatusOK, nil)
	}
}

func (s *Server) ChangePasswordPageHandler() http.HandlerFunc {
	render := s.pageRenderer("change_password.html")

	return func(w http.ResponseWriter, r *http.Request) {
		render(w, r, http.StatusOK, nil)
	}
}

// DossiersHandler renders a role home. base is the list path the page lives at.
func (s *Server) DossiersHandler(base string) http.HandlerFunc {
	render := s.pageRenderer("dossiers.html")

	return func(w http.ResponseWriter, r *http.Request) {
		render(w, r, http.StatusOK, DossiersPageData{Base: base})
	}
}

func (s *Server) DossierHandler(base string) http.HandlerFunc {
	render := s.pageRenderer("dossier.html")

	return func(w http.ResponseWriter, r *http.Request) {
		render(w, r, http.StatusOK, DossierPageData{Base: base, ID: r.PathValue("id")})
	}
}

func (s *Server) RequiredDocumentsHandler() http.HandlerFunc {
	render := s.pageRenderer("documents.html")

	return func(w http.ResponseWriter, r *http.Request) {
		render(w, r, http.StatusOK, requiredDocuments)
	}
}

// JournalHandler lists the latest session events (GET /admin/journal)
func (s *Server) JournalHandler() http.HandlerFunc {
	render := s.pageRenderer("journal.html")
	kinds := []session.EventKind{session.EventLogin, session.EventLogout, session.EventRegister, session.EventRefresh}

	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		data := JournalPageData{
			Enabled: s.journal != nil,
			Email:   query.Get("email"),
			Kind:    session.EventKind(query.Get("kind")),
			Kinds:   kinds,
		}

		if s.journal != nil {
			events, err := s.journal.List(r.Context(), audit.Filter{Email: data.Email, Kind: data.Kind})
			if err != nil {
				s.logger.Err(err).Msg("Failed to list session events")
				http.Error(w, "Failed to load journal", http.StatusInternalServerError)
				return
			}
			data.Events = events
		}
		render(w, r, http.StatusOK, data)
	}
}

// NotFoundHandler renders the 404 page for every path no other route claims
func (s *Server) NotFoundHandler() http.HandlerFunc {
	render := s.pageRenderer("not_found.html")

	return func(w http.ResponseWriter, r *http.Request) {
		if path.Ext(r.URL.Path) != "" {
			http.NotFound(w, r)
			return
		}
		render(w, r, http.StatusNotFound, nil)
	}
}
