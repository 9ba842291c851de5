package users

import "time"

type UserRepo interface {
	// Create stores a new account, failing with errors.ErrUserExists if the email is taken
	Create(user *User) error
	Upsert(user *User) error
	Delete(email string) error
	GetByEmail(email string) (*User, error)
	GetByID(ID string) (*User, error)
	SetActive(email string, active bool) error
	SetPasswordHash(email, hash string) error
	SetLastLogin(email string, at time.Time) error
}
