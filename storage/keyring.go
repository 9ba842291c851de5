package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	ierrors "github.com/jrsteele09/sadsa-portal/internal/errors"
	"github.com/jrsteele09/sadsa-portal/session"
	"github.com/zalando/go-keyring"
)

var _ Backend = (*KeyringBackend)(nil)

// DefaultKeyringService is the keychain service name records are filed under
const DefaultKeyringService = "sadsa-cli"

// KeyringBackend persists records in the OS keychain/credential manager.
// The CLI uses it as its persistent scope, keyed per API URL.
type KeyringBackend struct {
	service string
}

func NewKeyringBackend(service string) *KeyringBackend {
	if service == "" {
		service = DefaultKeyringService
	}
	return &KeyringBackend{service: service}
}

// keyringKey returns a unique key for storing a session per holder
func keyringKey(holder string) string {
	return fmt.Sprintf("session-%s", holder)
}

func (k *KeyringBackend) Load(_ context.Context, holder string) (*session.Record, error) {
	data, err := keyring.Get(k.service, keyringKey(holder))
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ierrors.ErrScopeEmpty
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var rec session.Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("corrupt session in keyring: %w", err)
	}
	return &rec, nil
}

func (k *KeyringBackend) Save(_ context.Context, holder string, record *session.Record) error {
	if record == nil {
		return ierrors.ErrInvalidInput
	}
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	if err := keyring.Set(k.service, keyringKey(holder), string(data)); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (k *KeyringBackend) Clear(_ context.Context, holder string) error {
	if err := keyring.Delete(k.service, keyringKey(holder)); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil // Already deleted
		}
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
