package session

import (
	"time"

	"github.com/jrsteele09/sadsa-portal/token"
)

type EventKind string

const (
	EventLogin    EventKind = "login"
	EventLogout   EventKind = "logout"
	EventRegister EventKind = "register"
	EventRefresh  EventKind = "refresh"
)

// Event is delivered to subscribers after the storage change it describes.
// Claims is nil when no session resulted (logout, failed refresh, tokenless register).
type Event struct {
	Kind   EventKind
	Scope  Scope
	Claims *token.Claims
	At     time.Time
}

// Authenticated reports whether a session exists after the event
func (e Event) Authenticated() bool {
	return e.Claims != nil
}

type subscriber struct {
	id int
	fn func(Event)
}

// Subscribe registers fn for every subsequent event. Calling the returned func stops delivery.
func (s *Store) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.subsLock.Lock()
	defer s.subsLock.Unlock()

	s.nextSubID++
	id := s.nextSubID
	s.subscribers = append(s.subscribers, subscriber{id: id, fn: fn})

	return func() {
		s.subsLock.Lock()
		defer s.subsLock.Unlock()
		for i, sub := range s.subscribers {
			if sub.id == id {
				s.subscribers = append(s.subscribers[:i:i], s.subscribers[i+1:]...)
				return
			}
		}
	}
}

func (s *Store) emit(kind EventKind, scope Scope, claims *token.Claims) {
	s.subsLock.RLock()
	subs := make([]subscriber, len(s.subscribers))
	copy(subs, s.subscribers)
	s.subsLock.RUnlock()

	event := Event{Kind: kind, Scope: scope, Claims: claims, At: s.nowTime()}
	for _, sub := range subs {
		sub.fn(event)
	}
}
