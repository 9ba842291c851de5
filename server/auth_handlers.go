package server

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/jrsteele09/sadsa-portal/session"
	"github.com/jrsteele09/sadsa-portal/users"
)

const (
	msgInvalidForm        = "Formulaire invalide"
	msgRegistered         = "Compte créé. Vous pourrez vous connecter une fois votre compte activé."
	msgPasswordChanged    = "Mot de passe modifié"
	msgLoggedOut          = "Vous êtes déconnecté"
	msgSessionUnavailable = "Session indisponible"
)

// LoginSubmissionHandler processes the login form submission (POST /auth/login)
func (s *Server) LoginSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, ok := StoreFromContext(r.Context())
		if !ok {
			http.Error(w, msgSessionUnavailable, http.StatusInternalServerError)
			return
		}

		// Parse form data
		if err := r.ParseForm(); err != nil {
			redirectWithError(w, r, RouteLogin, msgInvalidForm, nil)
			return
		}
		form := parseLoginForm(r)
		keep := redirectQuery(form.Redirect)
		if keep == nil {
			keep = url.Values{}
		}
		keep.Set("email", form.Email)

		if err := s.validate.Struct(form); err != nil {
			redirectWithError(w, r, RouteLogin, validationMessage(err), keep)
			return
		}

		sess, err := store.Login(r.Context(), form.Email, form.Password, form.Remember)
		if err != nil {
			s.logger.Warn().Err(err).Str("email", form.Email).Msg("login failed")
			redirectWithError(w, r, RouteLogin, session.UserMessage(err), keep)
			return
		}

		target := safeRedirect(form.Redirect)
		if target == "" {
			target = sess.Claims.HomePath()
		}
		redirectSuccess(w, r, target)
	}
}

// RegisterSubmissionHandler creates an account (POST /auth/register)
func (s *Server) RegisterSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, ok := StoreFromContext(r.Context())
		if !ok {
			http.Error(w, msgSessionUnavailable, http.StatusInternalServerError)
			return
		}

		if err := r.ParseForm(); err != nil {
			redirectWithError(w, r, RouteRegister, msgInvalidForm, nil)
			return
		}
		req := parseRegisterForm(r)
		keep := url.Values{"nom": {req.FamilyName}, "prenom": {req.GivenName}, "email": {req.Email}}

		if err := s.validate.Struct(req); err != nil {
			redirectWithError(w, r, RouteRegister, validationMessage(err), keep)
			return
		}
		if err := users.ValidatePasswordStrength(req.Password); err != nil {
			redirectWithError(w, r, RouteRegister, session.MsgWeakPassword, keep)
			return
		}

		sess, err := store.Register(r.Context(), req)
		if err != nil {
			s.logger.Warn().Err(err).Str("email", req.Email).Msg("registration failed")
			redirectWithError(w, r, RouteRegister, session.UserMessage(err), keep)
			return
		}

		if sess == nil {
			redirectSuccess(w, r, RouteLogin+"?"+url.Values{"success": {msgRegistered}, "email": {req.Email}}.Encode())
			return
		}
		redirectSuccess(w, r, sess.Claims.HomePath())
	}
}

// LogoutHandler clears both scopes and returns to the login page (GET and POST /auth/logout)
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, ok := StoreFromContext(r.Context())
		if !ok {
			http.Error(w, msgSessionUnavailable, http.StatusInternalServerError)
			return
		}

		if err := store.Logout(r.Context()); err != nil {
			s.logger.Err(err).Msg("logout failed")
			redirectWithError(w, r, RouteLogin, session.UserMessage(err), nil)
			return
		}
		redirectSuccess(w, r, RouteLogin+"?"+url.Values{"success": {msgLoggedOut}}.Encode())
	}
}

// ChangePasswordSubmissionHandler processes POST /auth/change-password
func (s *Server) ChangePasswordSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, ok := StoreFromContext(r.Context())
		if !ok {
			http.Error(w, msgSessionUnavailable, http.StatusInternalServerError)
			return
		}

		if !store.IsAuthenticated(r.Context()) {
			redirectSuccess(w, r, RouteLogin+"?"+redirectQuery(RouteChangePassword).Encode())
			return
		}

		if err := r.ParseForm(); err != nil {
			redirectWithError(w, r, RouteChangePassword, msgInvalidForm, nil)
			return
		}
		form := parseChangePasswordForm(r)
		if err := s.validate.Struct(form); err != nil {
			redirectWithError(w, r, RouteChangePassword, validationMessage(err), nil)
			return
		}

		err := store.ChangePassword(r.Context(), form.OldPassword, form.NewPassword)
		switch {
		case errors.Is(err, session.ErrNotAuthenticated):
			redirectSuccess(w, r, RouteLogin)
			return
		case err != nil:
			s.logger.Warn().Err(err).Msg("password change failed")
			redirectWithError(w, r, RouteChangePassword, session.UserMessage(err), nil)
			return
		}
		redirectSuccess(w, r, RouteChangePassword+"?"+url.Values{"success": {msgPasswordChanged}}.Encode())
	}
}
