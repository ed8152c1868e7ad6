package nav_test

import (
	"fmt"
	"testing"

	"github.com/deevus/clinic-tui/nav"
)

func TestNewStore_Defaults(t *testing.T) {
	s := nav.NewStore("")
	cur := s.Current()
	if cur.View != nav.Dashboard {
		t.Errorf("expected initial view dashboard, got %q", cur.View)
	}
	if cur.Params == nil || len(cur.Params) != 0 {
		t.Errorf("expected empty non-nil params, got %#v", cur.Params)
	}
}

func TestNewStore_Initial(t *testing.T) {
	s := nav.NewStore(nav.Patients)
	if got := s.Current().View; got != nav.Patients {
		t.Errorf("expected patients, got %q", got)
	}
}

func TestStore_Navigate_LastCallWins(t *testing.T) {
	s := nav.NewStore(nav.Dashboard)

	calls := []struct {
		view   nav.ViewID
		params nav.Params
	}{
		{nav.Patients, nav.Params{"action": "register"}},
		{nav.Encounter, nav.Params{"action": "vitals"}},
		{nav.Encounter, nil},
		{"no-such-view", nav.Params{"x": 1}},
		{nav.Dashboard, nil},
	}

	for i, c := range calls {
		s.Navigate(c.view, c.params)
		cur := s.Current()
		if cur.View != c.view {
			t.Fatalf("call %d: expected view %q, got %q", i, c.view, cur.View)
		}
		if len(cur.Params) != len(c.params) {
			t.Fatalf("call %d: expected %d params, got %#v", i, len(c.params), cur.Params)
		}
		for k, v := range c.params {
			if cur.Params[k] != v {
				t.Errorf("call %d: param %q = %v, want %v", i, k, cur.Params[k], v)
			}
		}
	}
}

func TestStore_Navigate_NilParamsBecomeEmpty(t *testing.T) {
	s := nav.NewStore(nav.Dashboard)
	s.Navigate(nav.Patients, nav.Params{"action": "register"})
	s.Navigate(nav.Patients, nil)

	cur := s.Current()
	if cur.Params == nil {
		t.Fatal("expected non-nil params")
	}
	if _, ok := cur.Params["action"]; ok {
		t.Error("params from the previous navigation leaked into the next one")
	}
}

func TestStore_Current_ReturnsCopy(t *testing.T) {
	s := nav.NewStore(nav.Dashboard)
	s.Navigate(nav.Patients, nav.Params{"action": "register"})

	cur := s.Current()
	cur.Params["action"] = "tampered"

	if got := s.Current().Params["action"]; got != "register" {
		t.Errorf("store state mutated through a read copy: %v", got)
	}
}

func TestStore_Navigate_CallerMapNotAliased(t *testing.T) {
	s := nav.NewStore(nav.Dashboard)
	p := nav.Params{"action": "register"}
	s.Navigate(nav.Patients, p)
	p["action"] = "tampered"

	if got := s.Current().Params["action"]; got != "register" {
		t.Errorf("store state mutated through caller's map: %v", got)
	}
}

func TestStore_Subscribe_SynchronousNotification(t *testing.T) {
	s := nav.NewStore(nav.Dashboard)

	var seen []nav.ViewID
	s.Subscribe(func(prev, next nav.State) {
		// Observers must already see the new state on read.
		if s.Current().View != next.View {
			t.Errorf("observer read %q, expected %q", s.Current().View, next.View)
		}
		seen = append(seen, next.View)
	})

	s.Navigate(nav.Patients, nil)
	if len(seen) != 1 || seen[0] != nav.Patients {
		t.Fatalf("expected notification before Navigate returned, got %v", seen)
	}
}

func TestStore_Subscribe_NoDedup(t *testing.T) {
	s := nav.NewStore(nav.Patients)

	count := 0
	var lastParams nav.Params
	s.Subscribe(func(prev, next nav.State) {
		count++
		lastParams = next.Params
	})

	s.Navigate(nav.Patients, nil)
	s.Navigate(nav.Patients, nav.Params{"action": "register"})

	if count != 2 {
		t.Errorf("expected 2 notifications, got %d", count)
	}
	if lastParams["action"] != "register" {
		t.Errorf("expected latest params, got %#v", lastParams)
	}
}

func TestStore_Subscribe_PrevAndNext(t *testing.T) {
	s := nav.NewStore(nav.Dashboard)

	var prevView, nextView nav.ViewID
	s.Subscribe(func(prev, next nav.State) {
		prevView, nextView = prev.View, next.View
	})

	s.Navigate(nav.Reports, nil)
	if prevView != nav.Dashboard || nextView != nav.Reports {
		t.Errorf("expected dashboard -> reports, got %s -> %s", prevView, nextView)
	}
}

func TestStore_Subscribe_OrderAndCancel(t *testing.T) {
	s := nav.NewStore(nav.Dashboard)

	var order []string
	for i := 0; i < 3; i++ {
		name := fmt.Sprintf("obs%d", i)
		cancel := s.Subscribe(func(prev, next nav.State) {
			order = append(order, name)
		})
		if i == 1 {
			defer cancel()
			cancel()
			cancel() // idempotent
		}
	}

	s.Navigate(nav.Help, nil)

	want := []string{"obs0", "obs2"}
	if len(order) != len(want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], order[i])
		}
	}
}

func TestStore_Navigate_FromObserver(t *testing.T) {
	s := nav.NewStore(nav.Dashboard)

	s.Subscribe(func(prev, next nav.State) {
		if next.View == nav.Login {
			s.Navigate(nav.Dashboard, nil)
		}
	})

	s.Navigate(nav.Login, nil)
	if got := s.Current().View; got != nav.Dashboard {
		t.Errorf("expected redirect to dashboard, got %q", got)
	}
}

func TestStore_Navigate_NestedDeliveredInOrder(t *testing.T) {
	s := nav.NewStore(nav.Dashboard)

	s.Subscribe(func(prev, next nav.State) {
		if next.View == nav.Login {
			s.Navigate(nav.Dashboard, nil)
		}
	})
	var seen []string
	s.Subscribe(func(prev, next nav.State) {
		seen = append(seen, string(prev.View)+">"+string(next.View))
	})

	s.Navigate(nav.Login, nil)

	want := []string{"dashboard>login", "login>dashboard"}
	if len(seen) != len(want) {
		t.Fatalf("expected %v, got %v", want, seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("notification %d: expected %s, got %s", i, want[i], seen[i])
		}
	}
	if got := s.Current().View; got != nav.Dashboard {
		t.Errorf("expected current dashboard, got %s", got)
	}
}

func TestStore_Navigate_NestedStateVisibleToLaterObservers(t *testing.T) {
	s := nav.NewStore(nav.Dashboard)

	s.Subscribe(func(prev, next nav.State) {
		if next.View == nav.Login {
			s.Navigate(nav.Patients, nav.Params{"action": "register"})
		}
	})
	var current []nav.ViewID
	s.Subscribe(func(prev, next nav.State) {
		current = append(current, s.Current().View)
	})

	s.Navigate(nav.Login, nil)

	if len(current) != 2 || current[1] != nav.Patients {
		t.Errorf("expected last notification to match current state, got %v", current)
	}
}

func TestTitle(t *testing.T) {
	tests := []struct {
		in   nav.ViewID
		want string
	}{
		{nav.Patients, "Patients"},
		{nav.Profile, "My-profile"},
		{"404 Not Found", "404 Not Found"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := nav.Title(tt.in); got != tt.want {
			t.Errorf("Title(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRailItems(t *testing.T) {
	if len(nav.RailItems) == 0 {
		t.Fatal("expected rail items")
	}
	if nav.RailItems[0].View != nav.Dashboard {
		t.Errorf("expected first rail item to be the dashboard, got %q", nav.RailItems[0].View)
	}
	known := map[nav.ViewID]bool{}
	for _, v := range nav.Known() {
		known[v] = true
	}
	for _, item := range nav.RailItems {
		if !known[item.View] {
			t.Errorf("rail item %q is not a known view", item.View)
		}
	}
}
