// Package authstub is an in-process stand-in for the SADSA authentication backend.
// It serves the same three endpoints as the real API with bcrypt-hashed accounts
// and HS256 tokens, so the portal and CLI can run without the backend.
package authstub

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/sadsa-portal/authapi"
	"github.com/jrsteele09/sadsa-portal/internal/errors"
	"github.com/jrsteele09/sadsa-portal/session"
	"github.com/jrsteele09/sadsa-portal/token"
	"github.com/jrsteele09/sadsa-portal/users"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Handler struct {
	mux            *http.ServeMux
	users          users.UserRepo
	tokens         *token.Creator
	activeOnSignup bool
	nowTime        func() time.Time
	logger         zerolog.Logger
}

type Option func(*Handler)

// WithActiveOnSignup makes registered accounts active immediately, so register returns a token.
// By default new accounts wait for activation and register returns no token.
func WithActiveOnSignup(active bool) Option {
	return func(h *Handler) {
		h.activeOnSignup = active
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(h *Handler) {
		h.nowTime = nowFunc
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// New creates the stub over a user repository, issuing tokens with creator
func New(repo users.UserRepo, creator *token.Creator, options ...Option) *Handler {
	h := &Handler{
		mux:     http.NewServeMux(),
		users:   repo,
		tokens:  creator,
		nowTime: time.Now,
		logger:  log.Logger,
	}
	for _, opt := range options {
		opt(h)
	}

	h.mux.HandleFunc("POST "+authapi.LoginPath, h.login)
	h.mux.HandleFunc("POST "+authapi.RegisterPath, h.register)
	h.mux.HandleFunc("POST "+authapi.ChangePasswordPath, h.changePassword)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// Seed creates or replaces an account with a plain text password
func (h *Handler) Seed(user users.User, password string) (*users.User, error) {
	if err := h.prepare(&user, password); err != nil {
		return nil, err
	}
	if err := h.users.Upsert(&user); err != nil {
		return nil, errors.Wrapf(err, "seeding %s", user.Email)
	}
	return &user, nil
}

func (h *Handler) prepare(user *users.User, password string) error {
	hash, err := users.HashPassword(password)
	if err != nil {
		return errors.Wrapf(err, "hashing password for %s", user.Email)
	}
	user.PasswordHash = hash
	if user.DateJoined.IsZero() {
		user.DateJoined = h.nowTime()
	}
	return nil
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"motDePasse"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Requête invalide")
		return
	}

	user, err := h.users.GetByEmail(req.Email)
	if err != nil || !users.CheckPasswordHash(req.Password, user.PasswordHash) {
		h.logger.Debug().Str("email", req.Email).Msg("stub login rejected")
		writeMessage(w, http.StatusUnauthorized, session.MsgInvalidCredentials)
		return
	}
	if !user.Active {
		writeMessage(w, http.StatusForbidden, session.MsgAccountInactive)
		return
	}

	if err := h.users.SetLastLogin(user.Email, h.nowTime()); err != nil {
		h.logger.Warn().Err(err).Str("email", user.Email).Msg("failed to record last login")
	}
	h.writeToken(w, http.StatusOK, user)
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req session.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Requête invalide")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeMessage(w, http.StatusBadRequest, "Email et mot de passe requis")
		return
	}
	dob, _ := time.Parse(time.DateOnly, req.DateOfBirth)
	role := users.ParseRole(string(req.Role))
	if !role.Known() {
		role = users.RoleNone
	}

	user := &users.User{
		Email:       strings.ToLower(strings.TrimSpace(req.Email)),
		FirstName:   req.GivenName,
		LastName:    req.FamilyName,
		CNI:         req.CNI,
		CNE:         req.CNE,
		DateOfBirth: dob,
		Role:        role,
		Active:      h.activeOnSignup,
	}
	err := h.prepare(user, req.Password)
	if err == nil {
		err = h.users.Create(user)
	}
	if errors.Is(err, errors.ErrUserExists) {
		writeMessage(w, http.StatusConflict, "Un compte existe déjà avec cet email")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Msg("stub register failed")
		writeMessage(w, http.StatusInternalServerError, "Erreur lors de l'inscription")
		return
	}

	if !user.Active {
		writeMessage(w, http.StatusCreated, "Compte créé, en attente d'activation")
		return
	}
	h.writeToken(w, http.StatusCreated, user)
}

type passwordChange struct {
	OldPassword string `json:"ancienMotDePasse"`
	NewPassword string `json:"nouveauMotDePasse"`
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	bearer, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Token manquant")
		return
	}
	claims, err := h.tokens.Verify(bearer)
	if errors.Is(err, errors.ErrTokenExpired) {
		writeMessage(w, http.StatusUnauthorized, "Token expiré")
		return
	}
	if err != nil {
		writeMessage(w, http.StatusUnauthorized, "Token invalide")
		return
	}

	var req passwordChange
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Requête invalide")
		return
	}

	user, err := h.users.GetByEmail(claims.Email)
	if err != nil {
		writeMessage(w, http.StatusUnauthorized, "Utilisateur inconnu")
		return
	}
	if !users.CheckPasswordHash(req.OldPassword, user.PasswordHash) {
		writeMessage(w, http.StatusBadRequest, session.MsgWrongPassword)
		return
	}
	if err := users.ValidatePasswordStrength(req.NewPassword); err != nil {
		writeMessage(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	hash, err := users.HashPassword(req.NewPassword)
	if err == nil {
		err = h.users.SetPasswordHash(user.Email, hash)
	}
	if err != nil {
		h.logger.Error().Err(err).Msg("stub password change failed")
		writeMessage(w, http.StatusInternalServerError, "Erreur serveur")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeToken(w http.ResponseWriter, status int, user *users.User) {
	raw, err := h.tokens.CreateToken(user)
	if err != nil {
		h.logger.Error().Err(err).Msg("stub token signing failed")
		writeMessage(w, http.StatusInternalServerError, "Erreur serveur")
		return
	}
	writeJSON(w, status, map[string]string{"token": raw})
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
