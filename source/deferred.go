package source

import (
	"context"
	"sync"
)

// Deferred is a Source placeholder that becomes ready once a connected
// Source is attached with Resolve. Until then IsReady reports false and
// Query and Subscribe return ErrNotReady.
type Deferred struct {
	mu    sync.RWMutex
	inner Source
	ready chan struct{}
}

// NewDeferred returns an unresolved Deferred.
func NewDeferred() *Deferred {
	return &Deferred{ready: make(chan struct{})}
}

// Resolve attaches src. Only the first call has any effect; it reports
// whether src was attached.
func (d *Deferred) Resolve(src Source) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.inner != nil || src == nil {
		return false
	}
	d.inner = src
	close(d.ready)
	return true
}

// Ready is closed once a source has been attached.
func (d *Deferred) Ready() <-chan struct{} {
	return d.ready
}

func (d *Deferred) get() Source {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.inner
}

// IsReady reports whether an attached source exists and is itself ready.
func (d *Deferred) IsReady() bool {
	src := d.get()
	return src != nil && src.IsReady()
}

func (d *Deferred) Query(ctx context.Context, q Query) ([]Row, error) {
	src := d.get()
	if src == nil || !src.IsReady() {
		return nil, ErrNotReady
	}
	return src.Query(ctx, q)
}

func (d *Deferred) Subscribe(ctx context.Context, resource string, filter EventFilter, onEvent func(ChangeEvent)) (*Subscription, error) {
	src := d.get()
	if src == nil || !src.IsReady() {
		return nil, ErrNotReady
	}
	return src.Subscribe(ctx, resource, filter, onEvent)
}

func (d *Deferred) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	if src := d.get(); src != nil {
		src.Unsubscribe(sub)
		return
	}
	sub.Close()
}
