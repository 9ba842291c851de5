package fakeuserrepo

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/sadsa-portal/internal/errors"
	"github.com/jrsteele09/sadsa-portal/users"
)

var _ users.UserRepo = (*FakeUserRepo)(nil)

type FakeUserRepo struct {
	users    map[string]*users.User
	emailIds map[string]string // email to user id
	lock     sync.RWMutex
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		users:    make(map[string]*users.User),
		emailIds: make(map[string]string),
	}
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (ur *FakeUserRepo) Create(user *users.User) error {
	if user == nil || normaliseEmail(user.Email) == "" {
		return errors.ErrInvalidInput
	}

	ur.lock.Lock()
	defer ur.lock.Unlock()

	if _, taken := ur.emailIds[normaliseEmail(user.Email)]; taken {
		return errors.ErrUserExists
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	stored := *user
	ur.users[user.ID] = &stored
	ur.emailIds[normaliseEmail(user.Email)] = user.ID
	return nil
}

func (ur *FakeUserRepo) Upsert(user *users.User) error {
	if user == nil || normaliseEmail(user.Email) == "" {
		return errors.ErrInvalidInput
	}

	ur.lock.Lock()
	defer ur.lock.Unlock()

	if user.ID == "" {
		if id, ok := ur.emailIds[normaliseEmail(user.Email)]; ok {
			user.ID = id
		} else {
			user.ID = uuid.New().String()
		}
	}
	stored := *user
	ur.users[user.ID] = &stored
	ur.emailIds[normaliseEmail(user.Email)] = user.ID
	return nil
}

func (ur *FakeUserRepo) Delete(email string) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	userID, ok := ur.emailIds[normaliseEmail(email)]
	if !ok {
		return errors.ErrUserNotFound
	}
	delete(ur.emailIds, normaliseEmail(email))
	delete(ur.users, userID)
	return nil
}

// GetByEmail returns a copy so callers can't mutate the stored record
func (ur *FakeUserRepo) GetByEmail(email string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	id, ok := ur.emailIds[normaliseEmail(email)]
	if !ok {
		return nil, errors.ErrUserNotFound
	}
	user := *ur.users[id]
	return &user, nil
}

func (ur *FakeUserRepo) GetByID(id string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	stored, ok := ur.users[id]
	if !ok {
		return nil, errors.ErrUserNotFound
	}
	user := *stored
	return &user, nil
}

func (ur *FakeUserRepo) SetActive(email string, active bool) error {
	return ur.update(email, func(u *users.User) { u.Active = active })
}

func (ur *FakeUserRepo) SetPasswordHash(email, hash string) error {
	return ur.update(email, func(u *users.User) { u.PasswordHash = hash })
}

func (ur *FakeUserRepo) SetLastLogin(email string, at time.Time) error {
	return ur.update(email, func(u *users.User) { u.LastLogin = at })
}

func (ur *FakeUserRepo) update(email string, apply func(*users.User)) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	id, ok := ur.emailIds[normaliseEmail(email)]
	if !ok {
		return errors.ErrUserNotFound
	}
	apply(ur.users[id])
	return nil
}
