// Package store holds the client-side state of the console. Each store is a
// value guarded by a single writer: every change goes through Dispatch, which
// runs a pure reducer under the store lock and fans the new snapshot out to
// subscribers.
package store

import (
	"sync"
)

// Action is anything a reducer understands
type Action any

// Reducer computes the next state from the current one; it must not mutate prev
type Reducer[S any] func(prev S, a Action) S

// Store is a mutex-serialized reducer store
type Store[S any] struct {
	mu      sync.Mutex
	state   S
	reducer Reducer[S]
	subs    map[int]chan S
	nextSub int
}

// New creates a store holding initial
func New[S any](initial S, reducer Reducer[S]) *Store[S] {
	return &Store[S]{
		state:   initial,
		reducer: reducer,
		subs:    make(map[int]chan S),
	}
}

// Dispatch applies a and returns the resulting state
func (s *Store[S]) Dispatch(a Action) S {
	_, next := s.DispatchWithPrev(a)
	return next
}

// DispatchWithPrev applies a and returns the state before and after
func (s *Store[S]) DispatchWithPrev(a Action) (prev, next S) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev = s.state
	next = s.reducer(prev, a)
	s.state = next

	for _, ch := range s.subs {
		// Slow subscribers miss intermediate states, never the writer
		select {
		case ch <- next:
		default:
		}
	}
	return prev, next
}

// Snapshot returns the current state
func (s *Store[S]) Snapshot() S {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe returns a channel receiving every new state and a cancel func
func (s *Store[S]) Subscribe(buffer int) (<-chan S, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan S, max(buffer, 1))
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
}
