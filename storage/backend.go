package storage

import (
	"context"

	"github.com/jrsteele09/sadsa-portal/session"
)

// Backend stores one session.Record per holder. A holder is whatever owns a scope:
// a browser (device cookie), a tab (tab cookie) or a CLI profile.
// Load returns errors.ErrScopeEmpty for a holder with nothing stored.
type Backend interface {
	Load(ctx context.Context, holder string) (*session.Record, error)
	Save(ctx context.Context, holder string, record *session.Record) error
	Clear(ctx context.Context, holder string) error
}
