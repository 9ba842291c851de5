package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jrsteele09/sadsa-portal/internal/errors"
	"github.com/jrsteele09/sadsa-portal/session"
)

var _ Backend = (*MemoryBackend)(nil)

type memoryEntry struct {
	record   session.Record
	lastSeen time.Time
}

// MemoryBackend keeps records in process memory. It backs the ephemeral scope,
// and the persistent scope when no Redis is configured.
type MemoryBackend struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry // holder -> record
	nowTime func() time.Time
}

type MemoryOption func(*MemoryBackend)

// WithMemoryClock sets the now time function (primarily for testing)
func WithMemoryClock(nowFunc func() time.Time) MemoryOption {
	return func(m *MemoryBackend) {
		m.nowTime = nowFunc
	}
}

// NewMemoryBackend creates a new in-memory backend
func NewMemoryBackend(options ...MemoryOption) *MemoryBackend {
	m := &MemoryBackend{
		entries: make(map[string]*memoryEntry),
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// Load returns the holder's record and marks the holder as seen
func (m *MemoryBackend) Load(_ context.Context, holder string) (*session.Record, error) {
	if holder == "" {
		return nil, fmt.Errorf("holder is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[holder]
	if !ok {
		return nil, errors.ErrScopeEmpty
	}
	entry.lastSeen = m.nowTime()

	// Hand out a copy so callers can't modify stored state
	rec := entry.record
	return &rec, nil
}

func (m *MemoryBackend) Save(_ context.Context, holder string, record *session.Record) error {
	if holder == "" {
		return fmt.Errorf("holder is required")
	}
	if record == nil {
		return errors.ErrInvalidInput
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[holder] = &memoryEntry{record: *record, lastSeen: m.nowTime()}
	return nil
}

// Clear removes the holder's record. Clearing an empty holder is not an error.
func (m *MemoryBackend) Clear(_ context.Context, holder string) error {
	if holder == "" {
		return fmt.Errorf("holder is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, holder)
	return nil
}

// Len is the number of holders with a stored record
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Sweep drops records whose token expired before now and records idle for longer than idle.
// idle <= 0 disables the idle check. It returns how many records were dropped.
func (m *MemoryBackend) Sweep(now time.Time, idle time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	dropped := 0
	for holder, entry := range m.entries {
		expired := entry.record.User.ExpiresAt == 0 || entry.record.User.ExpiresAt < now.Unix()
		stale := idle > 0 && now.Sub(entry.lastSeen) > idle
		if expired || stale {
			delete(m.entries, holder)
			dropped++
		}
	}
	return dropped
}
