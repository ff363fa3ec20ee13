package state

import (
	"sync"

	"github.com/nadtcp/nadtcp-go/pkg/wire"
)

// Listener receives the full state after every applied update.
type Listener func(DeviceState)

// Store holds the current DeviceState and its subscribers.
type Store struct {
	mu    sync.RWMutex
	state DeviceState

	subMu     sync.RWMutex
	listeners []subscription
	nextID    uint64
}

type subscription struct {
	id uint64
	fn Listener
}

// NewStore creates a store with every field unknown.
func NewStore() *Store {
	return &Store{}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() DeviceState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Apply overwrites the field named by u, marks it known and notifies every
// subscriber with the new snapshot. Updates that carry no state (the Main
// key, or a value of the wrong type) are ignored and notify nobody.
// Returns the state after the update.
func (s *Store) Apply(u wire.StateUpdate) DeviceState {
	s.mu.Lock()
	next, ok := s.state.apply(u)
	if !ok {
		s.mu.Unlock()
		return next
	}
	s.state = next
	s.mu.Unlock()

	s.notify(next)
	return next
}

// Subscribe registers fn for state notifications. The returned function
// removes the registration; calling it more than once is harmless.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	s.subMu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, subscription{id: id, fn: fn})
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { s.unsubscribe(id) })
	}
}

// SubscriberCount returns the number of registered subscribers.
func (s *Store) SubscriberCount() int {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	return len(s.listeners)
}

func (s *Store) unsubscribe(id uint64) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for i, l := range s.listeners {
		if l.id == id {
			s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
			return
		}
	}
}

func (s *Store) notify(snapshot DeviceState) {
	s.subMu.RLock()
	listeners := make([]Listener, len(s.listeners))
	for i, l := range s.listeners {
		listeners[i] = l.fn
	}
	s.subMu.RUnlock()

	for _, fn := range listeners {
		fn(snapshot)
	}
}
