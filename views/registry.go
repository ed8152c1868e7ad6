package views

import (
	"git.sr.ht/~rockorager/vaxis/vxfw"
	"github.com/deevus/clinic-tui/nav"
)

// Registry maps view identifiers to the widgets that render them.
type Registry struct {
	views    map[nav.ViewID]vxfw.Widget
	fallback vxfw.Widget
}

// NewRegistry creates an empty Registry. Unregistered identifiers resolve
// to fallback, or to a not-found view when fallback is nil.
func NewRegistry(fallback vxfw.Widget) *Registry {
	if fallback == nil {
		fallback = NewNotFoundView()
	}
	return &Registry{
		views:    make(map[nav.ViewID]vxfw.Widget),
		fallback: fallback,
	}
}

// Register binds id to w, replacing any earlier binding. A nil widget
// removes the binding.
func (r *Registry) Register(id nav.ViewID, w vxfw.Widget) {
	if w == nil {
		delete(r.views, id)
		return
	}
	r.views[id] = w
}

// Resolve returns the widget for id. It never returns nil.
func (r *Registry) Resolve(id nav.ViewID) vxfw.Widget {
	if w, ok := r.views[id]; ok {
		return w
	}
	return r.fallback
}

// Registered reports whether id has its own widget.
func (r *Registry) Registered(id nav.ViewID) bool {
	_, ok := r.views[id]
	return ok
}

// DefaultRegistry binds the dashboard and an under-construction page for
// every other known view.
func DefaultRegistry(dashboard vxfw.Widget, store *nav.Store) *Registry {
	r := NewRegistry(NewNotFoundView())
	for _, id := range nav.Known() {
		if id == nav.Dashboard {
			continue
		}
		r.Register(id, NewPlaceholderView(id, store))
	}
	r.Register(nav.Dashboard, dashboard)
	return r
}
