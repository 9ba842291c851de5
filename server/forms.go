package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jrsteele09/sadsa-portal/session"
	"github.com/jrsteele09/sadsa-portal/users"
)

// LoginForm is the POST /auth/login payload
type LoginForm struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
	Remember bool
	Redirect string
}

// ChangePasswordForm is the POST /auth/change-password payload
type ChangePasswordForm struct {
	OldPassword     string `validate:"required"`
	NewPassword     string `validate:"required,min=8,nefield=OldPassword"`
	ConfirmPassword string `validate:"required,eqfield=NewPassword"`
}

func newValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

func parseLoginForm(r *http.Request) LoginForm {
	return LoginForm{
		Email:    strings.TrimSpace(r.FormValue("email")),
		Password: r.FormValue("password"),
		Remember: isChecked(r.FormValue("remember")),
		Redirect: r.FormValue("redirect"),
	}
}

func parseRegisterForm(r *http.Request) session.RegisterRequest {
	return session.RegisterRequest{
		FamilyName:  strings.TrimSpace(r.FormValue("nom")),
		GivenName:   strings.TrimSpace(r.FormValue("prenom")),
		Email:       strings.TrimSpace(r.FormValue("email")),
		CNI:         strings.ToUpper(strings.TrimSpace(r.FormValue("cni"))),
		CNE:         strings.ToUpper(strings.TrimSpace(r.FormValue("cne"))),
		DateOfBirth: strings.TrimSpace(r.FormValue("dateNaissance")),
		Password:    r.FormValue("motDePasse"),
		Role:        users.ParseRole(r.FormValue("role")),
	}
}

func parseChangePasswordForm(r *http.Request) ChangePasswordForm {
	return ChangePasswordForm{
		OldPassword:     r.FormValue("oldPassword"),
		NewPassword:     r.FormValue("newPassword"),
		ConfirmPassword: r.FormValue("confirmPassword"),
	}
}

func isChecked(v string) bool {
	switch strings.ToLower(v) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}

var fieldLabels = map[string]string{
	"Email":           "Email",
	"Password":        "Mot de passe",
	"FamilyName":      "Nom",
	"GivenName":       "Prénom",
	"CNI":             "CNI",
	"CNE":             "CNE",
	"DateOfBirth":     "Date de naissance",
	"OldPassword":     "Mot de passe actuel",
	"NewPassword":     "Nouveau mot de passe",
	"ConfirmPassword": "Confirmation",
}

// validationMessage turns the first validation failure into a French message
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Formulaire invalide"
	}
	fe := verrs[0]
	label, ok := fieldLabels[fe.Field()]
	if !ok {
		label = fe.Field()
	}

	switch fe.Tag() {
	case "required":
		return label + " est obligatoire"
	case "email":
		return "Adresse email invalide"
	case "min":
		return label + " doit contenir au moins " + fe.Param() + " caractères"
	case "max":
		return label + " est trop long"
	case "datetime":
		return label + " doit être au format AAAA-MM-JJ"
	case "alphanum":
		return label + " ne doit contenir que des lettres et des chiffres"
	case "eqfield":
		return "Les mots de passe ne correspondent pas"
	case "nefield":
		return "Le nouveau mot de passe doit être différent de l'ancien"
	}
	return label + " est invalide"
}
