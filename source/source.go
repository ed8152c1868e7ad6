package source

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotReady is returned by sources that are asked to query or subscribe
// before their initialization has finished.
var ErrNotReady = errors.New("source not ready")

// Row is one result row keyed by column name.
type Row map[string]any

// Filter restricts a query to rows where Column equals Value.
type Filter struct {
	Column string
	Value  any
}

// Order sorts query results by Column.
type Order struct {
	Column     string
	Descending bool
}

// Query is a point-in-time read of a resource.
type Query struct {
	Resource string
	Columns  []string
	Filters  []Filter
	Order    *Order
	Limit    int // 0 means no limit
}

// Op is the kind of change a ChangeEvent reports.
type Op string

const (
	OpInsert Op = "INSERT"
	OpUpdate Op = "UPDATE"
	OpDelete Op = "DELETE"

	// OpResync is emitted when a feed may have missed events, e.g. after a
	// reconnect. It passes every EventFilter.
	OpResync Op = "RESYNC"

	// OpAny in an EventFilter matches every operation.
	OpAny Op = "*"
)

// ChangeEvent notifies that a resource was mutated. Record carries the new
// row when the feed provides one; consumers should not rely on it.
type ChangeEvent struct {
	Resource string
	Schema   string
	Op       Op
	Record   Row
	At       time.Time
}

// EventFilter selects which change events a subscriber receives. Zero
// fields match anything.
type EventFilter struct {
	Op     Op
	Schema string
}

// Matches reports whether ev passes the filter.
func (f EventFilter) Matches(ev ChangeEvent) bool {
	if ev.Op == OpResync {
		return true
	}
	if f.Op != "" && f.Op != OpAny && f.Op != ev.Op {
		return false
	}
	if f.Schema != "" && ev.Schema != "" && f.Schema != ev.Schema {
		return false
	}
	return true
}

// Subscription is the ownership token for one change feed registration.
type Subscription struct {
	ID       string
	Resource string

	once    sync.Once
	closeFn func()
	closed  chan struct{}
}

// NewSubscription creates a Subscription for resource that runs closeFn
// the first time it is closed.
func NewSubscription(resource string, closeFn func()) *Subscription {
	return &Subscription{
		ID:       uuid.NewString(),
		Resource: resource,
		closeFn:  closeFn,
		closed:   make(chan struct{}),
	}
}

// Close releases the registration. Only the first call has any effect.
func (s *Subscription) Close() {
	s.once.Do(func() {
		if s.closeFn != nil {
			s.closeFn()
		}
		close(s.closed)
	})
}

// Done is closed once the subscription has been released.
func (s *Subscription) Done() <-chan struct{} {
	return s.closed
}

// Reader is the query side of a Source.
type Reader interface {
	IsReady() bool
	Query(ctx context.Context, q Query) ([]Row, error)
}

// Feed is the change-feed side of a Source.
type Feed interface {
	Subscribe(ctx context.Context, resource string, filter EventFilter, onEvent func(ChangeEvent)) (*Subscription, error)
	Unsubscribe(sub *Subscription)
}

// Source is a query and subscribe capable backend with a readiness flag.
// Callers must not query or subscribe while IsReady reports false.
type Source interface {
	Reader
	Feed
}

type combined struct {
	Reader
	Feed
}

// Combine builds a Source that reads through r and listens through f.
// Readiness is that of r.
func Combine(r Reader, f Feed) Source {
	return combined{Reader: r, Feed: f}
}
