package session

import (
	"errors"
	"fmt"

	ierrors "github.com/jrsteele09/sadsa-portal/internal/errors"
	"github.com/jrsteele09/sadsa-portal/token"
)

// Messages shown to users
const (
	MsgInvalidCredentials = "Email ou mot de passe incorrect"
	MsgAccountInactive    = "Votre compte n'est pas encore activé"
	MsgConnection         = "Erreur de connexion. Veuillez réessayer."
	MsgInvalidToken       = "Token invalide reçu du serveur"
	MsgNoToken            = "Aucun token reçu du serveur"
	MsgWrongPassword      = "Mot de passe actuel incorrect"
	MsgWeakPassword       = "Le nouveau mot de passe ne respecte pas les règles de sécurité"
	MsgNotAuthenticated   = "Veuillez vous connecter"
)

type AuthErrorKind int

const (
	ServerError AuthErrorKind = iota
	InvalidCredentials
	AccountInactive
)

func (k AuthErrorKind) String() string {
	switch k {
	case InvalidCredentials:
		return "invalid_credentials"
	case AccountInactive:
		return "account_inactive"
	default:
		return "server_error"
	}
}

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountInactive    = errors.New("account inactive")
	ErrServerError        = errors.New("authentication server error")
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrWeakPassword       = fmt.Errorf("%w: weak password", ierrors.ErrInvalidInput)
)

// AuthenticationError is a rejection from the authentication collaborator
type AuthenticationError struct {
	Kind    AuthErrorKind
	Message string
	Err     error
}

func (e *AuthenticationError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		return fmt.Sprintf("authentication failed (%s): %s: %v", e.Kind, msg, e.Err)
	}
	return fmt.Sprintf("authentication failed (%s): %s", e.Kind, msg)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match the kind sentinels
func (e *AuthenticationError) Is(target error) bool {
	switch target {
	case ErrInvalidCredentials:
		return e.Kind == InvalidCredentials
	case ErrAccountInactive:
		return e.Kind == AccountInactive
	case ErrServerError:
		return e.Kind == ServerError
	}
	return false
}

// NetworkError is a transport failure talking to the collaborator
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// UserMessage maps any error from the store to a message fit for display
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var authErr *AuthenticationError
	switch {
	case errors.Is(err, ErrNotAuthenticated):
		return MsgNotAuthenticated
	case errors.Is(err, ErrWeakPassword):
		return MsgWeakPassword
	case errors.Is(err, token.ErrDecode):
		return MsgInvalidToken
	case errors.As(err, &authErr):
		switch authErr.Kind {
		case InvalidCredentials:
			if authErr.Message != "" {
				return authErr.Message
			}
			return MsgInvalidCredentials
		case AccountInactive:
			return MsgAccountInactive
		}
		if authErr.Message != "" {
			return authErr.Message
		}
	}
	return MsgConnection
}
