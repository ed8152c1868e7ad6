package source

import (
	"context"
	"sync"
)

// MockSource is a Source whose behaviour is supplied by function fields.
// Nil funcs fall back to: ready, empty query results, and an in-memory
// subscription that Emit delivers to. Calls are counted.
type MockSource struct {
	IsReadyFunc     func() bool
	QueryFunc       func(ctx context.Context, q Query) ([]Row, error)
	SubscribeFunc   func(ctx context.Context, resource string, filter EventFilter, onEvent func(ChangeEvent)) (*Subscription, error)
	UnsubscribeFunc func(sub *Subscription)

	mu           sync.Mutex
	queries      []Query
	subscribes   int
	unsubscribes int
	handlers     []mockHandler
}

type mockHandler struct {
	sub     *Subscription
	filter  EventFilter
	onEvent func(ChangeEvent)
}

func (m *MockSource) IsReady() bool {
	if m.IsReadyFunc != nil {
		return m.IsReadyFunc()
	}
	return true
}

func (m *MockSource) Query(ctx context.Context, q Query) ([]Row, error) {
	m.mu.Lock()
	m.queries = append(m.queries, q)
	m.mu.Unlock()
	if m.QueryFunc != nil {
		return m.QueryFunc(ctx, q)
	}
	return nil, nil
}

func (m *MockSource) Subscribe(ctx context.Context, resource string, filter EventFilter, onEvent func(ChangeEvent)) (*Subscription, error) {
	m.mu.Lock()
	m.subscribes++
	m.mu.Unlock()
	if m.SubscribeFunc != nil {
		return m.SubscribeFunc(ctx, resource, filter, onEvent)
	}
	sub := NewSubscription(resource, nil)
	m.mu.Lock()
	m.handlers = append(m.handlers, mockHandler{sub: sub, filter: filter, onEvent: onEvent})
	m.mu.Unlock()
	return sub, nil
}

func (m *MockSource) Unsubscribe(sub *Subscription) {
	m.mu.Lock()
	m.unsubscribes++
	m.mu.Unlock()
	if m.UnsubscribeFunc != nil {
		m.UnsubscribeFunc(sub)
		return
	}
	if sub != nil {
		sub.Close()
	}
}

// Emit delivers ev synchronously to every open default subscription on
// ev.Resource whose filter matches.
func (m *MockSource) Emit(ev ChangeEvent) {
	m.mu.Lock()
	hs := make([]mockHandler, len(m.handlers))
	copy(hs, m.handlers)
	m.mu.Unlock()

	for _, h := range hs {
		select {
		case <-h.sub.Done():
			continue
		default:
		}
		if h.sub.Resource == ev.Resource && h.filter.Matches(ev) {
			h.onEvent(ev)
		}
	}
}

// Queries returns every query issued so far.
func (m *MockSource) Queries() []Query {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Query, len(m.queries))
	copy(out, m.queries)
	return out
}

// QueryCount returns the number of Query calls.
func (m *MockSource) QueryCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queries)
}

// SubscribeCount returns the number of Subscribe calls.
func (m *MockSource) SubscribeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subscribes
}

// UnsubscribeCount returns the number of Unsubscribe calls.
func (m *MockSource) UnsubscribeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unsubscribes
}
