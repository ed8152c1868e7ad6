package views_test

import (
	"strings"
	"testing"

	"git.sr.ht/~rockorager/vaxis/vxfw"
	"github.com/deevus/clinic-tui/nav"
	"github.com/deevus/clinic-tui/source"
	"github.com/deevus/clinic-tui/views"
)

func newTestRegistry() (*views.Registry, *views.DashboardView, *nav.Store) {
	store := nav.NewStore(nav.Dashboard)
	dv := views.NewDashboardView(views.DashboardViewParams{Source: &source.MockSource{}, Store: store})
	return views.DefaultRegistry(dv, store), dv, store
}

func TestRegistry_ResolveDashboard(t *testing.T) {
	r, dv, _ := newTestRegistry()
	if got := r.Resolve(nav.Dashboard); got != vxfw.Widget(dv) {
		t.Errorf("expected dashboard view, got %T", got)
	}
}

func TestRegistry_ResolveKnownViews(t *testing.T) {
	r, _, _ := newTestRegistry()
	for _, id := range nav.Known() {
		if id == nav.Dashboard {
			continue
		}
		t.Run(string(id), func(t *testing.T) {
			pv, ok := r.Resolve(id).(*views.PlaceholderView)
			if !ok {
				t.Fatalf("expected placeholder, got %T", r.Resolve(id))
			}
			if pv.ID() != id {
				t.Errorf("expected placeholder for %s, got %s", id, pv.ID())
			}
			if !r.Registered(id) {
				t.Errorf("expected %s registered", id)
			}
		})
	}
}

func TestRegistry_ResolveUnknown(t *testing.T) {
	r, _, _ := newTestRegistry()
	for _, id := range []nav.ViewID{"", "billing", "Dashboard", "dashboard ", "../admin", "日本語", "404"} {
		got := r.Resolve(id)
		if got == nil {
			t.Fatalf("Resolve(%q) returned nil", id)
		}
		if _, ok := got.(*views.NotFoundView); !ok {
			t.Errorf("Resolve(%q): expected not found view, got %T", id, got)
		}
	}
}

func TestRegistry_EncounterNotFound(t *testing.T) {
	r, _, _ := newTestRegistry()
	if r.Registered(nav.Encounter) {
		t.Error("expected encounter to have no screen")
	}
	if _, ok := r.Resolve(nav.Encounter).(*views.NotFoundView); !ok {
		t.Errorf("expected not found view for encounter, got %T", r.Resolve(nav.Encounter))
	}
}

func TestRegistry_NilFallback(t *testing.T) {
	r := views.NewRegistry(nil)
	if _, ok := r.Resolve("anything").(*views.NotFoundView); !ok {
		t.Errorf("expected not found view for nil fallback, got %T", r.Resolve("anything"))
	}
}

func TestRegistry_RegisterNilRemoves(t *testing.T) {
	r := views.NewRegistry(nil)
	r.Register(nav.Help, views.NewPlaceholderView(nav.Help, nil))
	r.Register(nav.Help, nil)
	if r.Registered(nav.Help) {
		t.Error("expected help unregistered")
	}
	if r.Resolve(nav.Help) == nil {
		t.Error("expected fallback, got nil")
	}
}

func TestPlaceholderView_Lines(t *testing.T) {
	store := nav.NewStore(nav.Dashboard)
	pv := views.NewPlaceholderView(nav.Patients, store)

	lines := pv.Lines()
	if lines[0] != "Patients" {
		t.Errorf("expected title Patients, got %q", lines[0])
	}
	if len(lines) != 3 {
		t.Errorf("expected no params listed while not current, got %v", lines)
	}

	store.Navigate(nav.Patients, nav.Params{"action": "register"})
	lines = pv.Lines()
	if last := lines[len(lines)-1]; last != "action: register" {
		t.Errorf("expected params listed, got %q", last)
	}
}

func TestPlaceholderView_ProfileTitle(t *testing.T) {
	pv := views.NewPlaceholderView(nav.Profile, nil)
	if got := pv.Lines()[0]; got != "My-profile" {
		t.Errorf("expected My-profile, got %q", got)
	}
}

func TestPlaceholderView_Screen(t *testing.T) {
	store := nav.NewStore(nav.Dashboard)
	store.Navigate(nav.Patients, nav.Params{"action": "register"})
	screen := strings.Join(screenText(t, views.NewPlaceholderView(nav.Patients, store), 100, 10), "\n")
	for _, want := range []string{"Patients", "under construction", "action: register"} {
		if !strings.Contains(screen, want) {
			t.Errorf("expected %q on screen:\n%s", want, screen)
		}
	}
}

func TestPlaceholderView_Draw(t *testing.T) {
	pv := views.NewPlaceholderView(nav.Reports, nil)
	s, err := pv.Draw(testDrawContext(80, 10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Size.Width != 80 || s.Size.Height != 10 {
		t.Errorf("unexpected size %dx%d", s.Size.Width, s.Size.Height)
	}
}

func TestNotFoundView(t *testing.T) {
	nf := views.NewNotFoundView()
	if got := nf.Lines()[0]; got != "404 Not Found" {
		t.Errorf("expected 404 title, got %q", got)
	}
	if !strings.Contains(nf.Lines()[2], "under construction") {
		t.Errorf("unexpected body %q", nf.Lines()[2])
	}
	if _, err := nf.Draw(testDrawContext(40, 2)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
