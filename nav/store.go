package nav

import (
	"maps"
	"sync"
)

// Params is the opaque payload forwarded to the target view of a navigation.
type Params map[string]any

// State is the currently shown view plus the params it was opened with.
type State struct {
	View   ViewID
	Params Params
}

func (s State) clone() State {
	p := maps.Clone(s.Params)
	if p == nil {
		p = Params{}
	}
	return State{View: s.View, Params: p}
}

// Observer is called after every transition with the replaced and the new state.
type Observer func(prev, next State)

type observer struct {
	id int
	fn Observer
}

// Store holds the single navigation state of an application session.
// All mutation goes through Navigate.
type Store struct {
	mu        sync.Mutex
	state     State
	observers []observer
	nextID    int

	// Transitions waiting for delivery. Only the outermost Navigate
	// drains them, so nested navigations reach observers in call order.
	pending   []transition
	notifying bool
}

type transition struct {
	prev, next State
}

// NewStore creates a Store showing initial with empty params.
// An empty initial selects the Dashboard.
func NewStore(initial ViewID) *Store {
	if initial == "" {
		initial = Dashboard
	}
	return &Store{state: State{View: initial, Params: Params{}}}
}

// Current returns a copy of the current state.
func (s *Store) Current() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Navigate replaces the current state and notifies every observer, in
// registration order, before returning. Nil params become an empty map.
// Navigating to the current view still notifies since params may differ.
//
// A Navigate made by an observer updates the state at once but is
// delivered after the transition being notified has reached every
// observer; the outermost call returns once all of them are delivered.
func (s *Store) Navigate(view ViewID, params Params) {
	next := State{View: view, Params: params}.clone()

	s.mu.Lock()
	s.pending = append(s.pending, transition{prev: s.state, next: next})
	s.state = next
	if s.notifying {
		s.mu.Unlock()
		return
	}
	s.notifying = true
	defer func() {
		s.mu.Lock()
		s.notifying = false
		s.pending = nil
		s.mu.Unlock()
	}()

	for len(s.pending) > 0 {
		t := s.pending[0]
		s.pending = s.pending[1:]
		obs := make([]observer, len(s.observers))
		copy(obs, s.observers)
		s.mu.Unlock()

		// Observers run without the lock held so they may read or navigate.
		for _, o := range obs {
			o.fn(t.prev.clone(), t.next.clone())
		}
		s.mu.Lock()
	}
	s.mu.Unlock()
}

// Subscribe registers fn for every future transition. The returned cancel
// func removes it; calling cancel more than once is harmless.
func (s *Store) Subscribe(fn Observer) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.observers = append(s.observers, observer{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, o := range s.observers {
				if o.id == id {
					s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
					return
				}
			}
		})
	}
}
