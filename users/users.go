package users

import (
	"fmt"
	"time"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// User is an account as the authentication backend stores it.
// The portal never sees this type; it only sees the claims of the token issued for it.
type User struct {
	ID           string    `json:"id,omitempty"`
	Email        string    `json:"email,omitempty"`
	PasswordHash string    `json:"-"` // never serialize
	FirstName    string    `json:"prenom,omitempty"`
	LastName     string    `json:"nom,omitempty"`
	CNI          string    `json:"cni,omitempty"`
	CNE          string    `json:"cne,omitempty"`
	DateOfBirth  time.Time `json:"dateNaissance,omitempty"`
	Role         RoleType  `json:"role,omitempty"`
	DateJoined   time.Time `json:"dateCreation,omitempty"`
	LastLogin    time.Time `json:"lastLogin,omitempty"`

	// Active accounts can log in; new accounts may wait for an administrator
	Active bool `json:"actif"`
}

// ValidatePasswordStrength checks if password meets security requirements:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, char := range password {
		if unicode.IsUpper(char) {
			hasUpper = true
		} else if unicode.IsLower(char) {
			hasLower = true
		} else if unicode.IsDigit(char) {
			hasNumber = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}

	return nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// HomePath is the landing page for this user's role
func (u *User) HomePath() string {
	return HomePath(u.Role)
}
