package session

import (
	"context"

	"github.com/jrsteele09/sadsa-portal/token"
	"github.com/jrsteele09/sadsa-portal/users"
)

// Scope names one of the two places a session can live.
// Persistent survives a browser restart; ephemeral dies with the tab.
type Scope string

const (
	ScopeNone       Scope = ""
	ScopePersistent Scope = "persistent"
	ScopeEphemeral  Scope = "ephemeral"
)

// Scopes in read order
var readOrder = []Scope{ScopePersistent, ScopeEphemeral}

func (s Scope) String() string {
	return string(s)
}

// ScopeFor returns the scope a login with the given remember flag writes to
func ScopeFor(remember bool) Scope {
	if remember {
		return ScopePersistent
	}
	return ScopeEphemeral
}

// StoredUser is the identity snapshot persisted next to the token
type StoredUser struct {
	Email      string         `json:"email"`
	Role       users.RoleType `json:"role"`
	UserID     string         `json:"userId"`
	FamilyName string         `json:"nom"`
	GivenName  string         `json:"prenom"`
	ExpiresAt  int64          `json:"exp,omitempty"`
}

// Record is what a scope holds. Token and user are written and cleared as a pair.
type Record struct {
	Token string     `json:"token"`
	User  StoredUser `json:"user"`
}

// NewRecord pairs a raw token with the snapshot of its claims
func NewRecord(raw string, claims *token.Claims) *Record {
	rec := &Record{Token: raw}
	if claims == nil {
		return rec
	}
	rec.User = StoredUser{
		Email:      claims.Email,
		Role:       claims.Role,
		UserID:     string(claims.UserID),
		FamilyName: claims.FamilyName,
		GivenName:  claims.GivenName,
	}
	if claims.ExpiresAt != nil {
		rec.User.ExpiresAt = claims.ExpiresAt.Unix()
	}
	return rec
}

// Repo persists one Record per scope for a single session holder.
// Load returns errors.ErrScopeEmpty when the scope holds nothing.
type Repo interface {
	Load(ctx context.Context, scope Scope) (*Record, error)
	Save(ctx context.Context, scope Scope, record *Record) error
	Clear(ctx context.Context, scope Scope) error
}

// Session is an authenticated session as the store hands it out
type Session struct {
	Token  string
	Claims *token.Claims
	Scope  Scope
}
