package storage

import (
	"context"
	"fmt"

	"github.com/jrsteele09/sadsa-portal/internal/errors"
	"github.com/jrsteele09/sadsa-portal/session"
)

// Holders identifies who owns each scope for one session.Store
type Holders struct {
	Persistent string // device id / profile
	Ephemeral  string // tab id / process id
}

// Scopes pairs a backend with each scope
type Scopes struct {
	Persistent Backend
	Ephemeral  Backend
}

type boundRepo struct {
	scopes  Scopes
	holders Holders
}

// Bind turns two backends and a pair of holder ids into a session.Repo.
// A scope with no holder id reads as empty and rejects writes.
func Bind(scopes Scopes, holders Holders) (session.Repo, error) {
	if scopes.Persistent == nil || scopes.Ephemeral == nil {
		return nil, fmt.Errorf("both scope backends are required")
	}
	return &boundRepo{scopes: scopes, holders: holders}, nil
}

func (b *boundRepo) pick(scope session.Scope) (Backend, string, error) {
	switch scope {
	case session.ScopePersistent:
		return b.scopes.Persistent, b.holders.Persistent, nil
	case session.ScopeEphemeral:
		return b.scopes.Ephemeral, b.holders.Ephemeral, nil
	}
	return nil, "", fmt.Errorf("%w: unknown scope %q", errors.ErrInvalidInput, scope)
}

func (b *boundRepo) Load(ctx context.Context, scope session.Scope) (*session.Record, error) {
	backend, holder, err := b.pick(scope)
	if err != nil {
		return nil, err
	}
	if holder == "" {
		return nil, errors.ErrScopeEmpty
	}
	return backend.Load(ctx, holder)
}

func (b *boundRepo) Save(ctx context.Context, scope session.Scope, record *session.Record) error {
	backend, holder, err := b.pick(scope)
	if err != nil {
		return err
	}
	if holder == "" {
		return fmt.Errorf("%w: no holder for %s scope", errors.ErrInvalidInput, scope)
	}
	return backend.Save(ctx, holder, record)
}

func (b *boundRepo) Clear(ctx context.Context, scope session.Scope) error {
	backend, holder, err := b.pick(scope)
	if err != nil {
		return err
	}
	if holder == "" {
		return nil
	}
	return backend.Clear(ctx, holder)
}
