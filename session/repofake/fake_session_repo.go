package fakesessionrepo

import (
	"context"
	"sync"

	"github.com/jrsteele09/sadsa-portal/internal/errors"
	"github.com/jrsteele09/sadsa-portal/session"
)

var _ session.Repo = (*FakeSessionRepo)(nil)

type FakeSessionRepo struct {
	records  map[session.Scope]*session.Record
	failing  map[session.Scope]error // Injected Load/Save failures
	clearing map[session.Scope]error // Injected Clear failures
	lock     sync.RWMutex
}

func NewFakeSessionRepo() *FakeSessionRepo {
	return &FakeSessionRepo{
		records:  make(map[session.Scope]*session.Record),
		failing:  make(map[session.Scope]error),
		clearing: make(map[session.Scope]error),
	}
}

func (sr *FakeSessionRepo) Load(_ context.Context, scope session.Scope) (*session.Record, error) {
	sr.lock.RLock()
	defer sr.lock.RUnlock()

	if err := sr.failing[scope]; err != nil {
		return nil, err
	}
	rec, ok := sr.records[scope]
	if !ok {
		return nil, errors.ErrScopeEmpty
	}
	cp := *rec
	return &cp, nil
}

func (sr *FakeSessionRepo) Save(_ context.Context, scope session.Scope, record *session.Record) error {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	if err := sr.failing[scope]; err != nil {
		return err
	}
	if record == nil {
		return errors.ErrInvalidInput
	}
	cp := *record
	sr.records[scope] = &cp
	return nil
}

func (sr *FakeSessionRepo) Clear(_ context.Context, scope session.Scope) error {
	sr.lock.Lock()
	defer sr.lock.Unlock()
	if err := sr.clearing[scope]; err != nil {
		return err
	}
	delete(sr.records, scope)
	return nil
}

// Put writes a record directly, bypassing the store
func (sr *FakeSessionRepo) Put(scope session.Scope, record *session.Record) {
	sr.lock.Lock()
	defer sr.lock.Unlock()
	cp := *record
	sr.records[scope] = &cp
}

// Has reports whether the scope currently holds a record
func (sr *FakeSessionRepo) Has(scope session.Scope) bool {
	sr.lock.RLock()
	defer sr.lock.RUnlock()
	_, ok := sr.records[scope]
	return ok
}

// Fail makes Load and Save on scope return err until called again with nil
func (sr *FakeSessionRepo) Fail(scope session.Scope, err error) {
	sr.lock.Lock()
	defer sr.lock.Unlock()
	if err == nil {
		delete(sr.failing, scope)
		return
	}
	sr.failing[scope] = err
}

// FailClear makes Clear on scope return err, leaving the record in place, until called again with nil
func (sr *FakeSessionRepo) FailClear(scope session.Scope, err error) {
	sr.lock.Lock()
	defer sr.lock.Unlock()
	if err == nil {
		delete(sr.clearing, scope)
		return
	}
	sr.clearing[scope] = err
}
