package app

import (
	"context"
	"io"
	"log"
	"sync"
	"time"

	"git.sr.ht/~rockorager/vaxis"
	"git.sr.ht/~rockorager/vaxis/vxfw"
	"git.sr.ht/~rockorager/vaxis/vxfw/richtext"
	"github.com/deevus/clinic-tui/internal"
	"github.com/deevus/clinic-tui/nav"
	"github.com/deevus/clinic-tui/source"
	"github.com/deevus/clinic-tui/views"
	"github.com/deevus/clinic-tui/widgets"
)

const (
	headerTitle = "Staff Dashboard"
	clockFormat = "Mon, Jan 2 · 15:04"
	railWidth   = 22
)

// Connected is posted when the background connect succeeds. Closer, if
// set, is closed on shutdown.
type Connected struct {
	Source source.Source
	Closer io.Closer
}

// ConnectFailed is posted when the background connect fails.
type ConnectFailed struct {
	Err error
}

// ClockTick is posted once a minute so the header clock stays current.
type ClockTick struct{}

// Params holds configuration for creating an App.
type Params struct {
	// Services may be nil; an empty container is created.
	Services *internal.Services
	// Connect, if set, is run in the background on Init.
	Connect func(ctx context.Context) (source.Source, io.Closer, error)

	ClinicName  string
	StaffName   string
	DefaultView nav.ViewID

	// Store may be nil; a store starting at DefaultView is created.
	Store    *nav.Store
	Location *time.Location
	Now      func() time.Time
}

// App is the root vxfw widget for clinic-tui.
type App struct {
	services   *internal.Services
	connectFn  func(ctx context.Context) (source.Source, io.Closer, error)
	clinicName string
	loc        *time.Location
	now        func() time.Time

	store     *nav.Store
	registry  *views.Registry
	dashboard *views.DashboardView
	rail      *widgets.NavRail

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	postEvent func(vaxis.Event)
	connErr   error

	closeOnce sync.Once
}

// New creates the root App widget. If the store starts on the dashboard
// it is mounted immediately and begins syncing once the source is ready.
func New(p Params) *App {
	svc := p.Services
	if svc == nil {
		svc = internal.NewServices()
	}
	store := p.Store
	if store == nil {
		store = nav.NewStore(p.DefaultView)
	}
	loc := p.Location
	if loc == nil {
		loc = time.Local
	}
	now := p.Now
	if now == nil {
		now = time.Now
	}

	a := &App{
		services:   svc,
		connectFn:  p.Connect,
		clinicName: p.ClinicName,
		loc:        loc,
		now:        now,
		store:      store,
		rail:       widgets.NewNavRail(nav.RailItems),
	}
	a.ctx, a.cancel = context.WithCancel(context.Background())
	a.dashboard = views.NewDashboardView(views.DashboardViewParams{
		Source:    svc.Data,
		Store:     store,
		Location:  loc,
		Now:       now,
		PostEvent: a.post,
	})
	a.registry = views.DefaultRegistry(a.dashboard, store)
	a.rail.Staff = p.StaffName

	cur := store.Current()
	a.rail.Select(cur.View)
	if cur.View == nav.Dashboard {
		a.dashboard.Mount(a.ctx)
	}
	store.Subscribe(a.onNavigate)
	return a
}

// onNavigate keeps the rail highlight and the dashboard's lifetime in
// step with the store. The dashboard is mounted while it is the current
// view and disposed as soon as it is left.
func (a *App) onNavigate(prev, next nav.State) {
	a.rail.Select(next.View)
	switch {
	case prev.View == nav.Dashboard && next.View != nav.Dashboard:
		a.dashboard.Unmount()
	case prev.View != nav.Dashboard && next.View == nav.Dashboard:
		a.dashboard.Mount(a.ctx)
	}
}

// SetPostEvent sets the function used to post events to the vaxis event loop.
// Must be called before the app receives Init.
func (a *App) SetPostEvent(fn func(vaxis.Event)) {
	a.mu.Lock()
	a.postEvent = fn
	a.mu.Unlock()
}

func (a *App) post(ev vaxis.Event) {
	a.mu.Lock()
	fn := a.postEvent
	a.mu.Unlock()
	if fn != nil {
		fn(ev)
	}
}

// Store returns the navigation store.
func (a *App) Store() *nav.Store {
	return a.store
}

// Dashboard returns the dashboard view.
func (a *App) Dashboard() *views.DashboardView {
	return a.dashboard
}

// ClinicName returns the clinic profile name.
func (a *App) ClinicName() string {
	return a.clinicName
}

// IsConnected reports whether a ready data source is attached.
func (a *App) IsConnected() bool {
	return a.services.Data.IsReady()
}

// ConnectErr returns the last connect error, if any.
func (a *App) ConnectErr() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connErr
}

// Close disposes the dashboard, stops background work and releases the
// data source. It is safe to call more than once.
func (a *App) Close() error {
	var err error
	a.closeOnce.Do(func() {
		a.cancel()
		a.dashboard.Unmount()
		err = a.services.Close()
	})
	return err
}

func (a *App) connect() {
	src, closer, err := a.connectFn(a.ctx)
	if err != nil {
		a.post(ConnectFailed{Err: err})
		return
	}
	a.post(Connected{Source: src, Closer: closer})
}

func (a *App) tick() {
	t := time.NewTicker(time.Minute)
	defer t.Stop()
	for {
		select {
		case <-a.ctx.Done():
			return
		case <-t.C:
			a.post(ClockTick{})
		}
	}
}

func (a *App) activeView() vxfw.Widget {
	return a.registry.Resolve(a.store.Current().View)
}

func (a *App) status() (string, vaxis.Style) {
	if err := a.ConnectErr(); err != nil {
		return "Connection failed: " + err.Error(), vaxis.Style{Foreground: vaxis.IndexColor(1)}
	}
	if !a.IsConnected() {
		return "Connecting...", vaxis.Style{Attribute: vaxis.AttrDim}
	}
	if a.dashboard.Snapshot().Degraded {
		return "Live updates unavailable", vaxis.Style{Foreground: vaxis.IndexColor(3)}
	}
	return "Connected", vaxis.Style{Foreground: vaxis.IndexColor(2)}
}

// Draw renders the header row, the rail and the current view.
func (a *App) Draw(ctx vxfw.DrawContext) (vxfw.Surface, error) {
	s := vxfw.NewSurface(ctx.Max.Width, ctx.Max.Height, a)
	if ctx.Max.Height == 0 {
		return s, nil
	}

	// Header (1 row)
	status, statusStyle := a.status()
	segments := []vaxis.Segment{
		{Text: " " + headerTitle, Style: vaxis.Style{Attribute: vaxis.AttrBold}},
	}
	if a.clinicName != "" {
		segments = append(segments, vaxis.Segment{Text: "  " + a.clinicName, Style: vaxis.Style{Attribute: vaxis.AttrDim}})
	}
	segments = append(segments, vaxis.Segment{Text: "  " + status, Style: statusStyle})
	headerSurf, err := richtext.New(segments).Draw(ctx.WithMax(vxfw.Size{Width: ctx.Max.Width, Height: 1}))
	if err != nil {
		return vxfw.Surface{}, err
	}
	s.AddChild(0, 0, headerSurf)

	clock := a.now().In(a.loc).Format(clockFormat) + " "
	clockWidth := 0
	for _, ch := range ctx.Characters(clock) {
		clockWidth += ch.Width
	}
	if clockWidth < int(ctx.Max.Width)/2 {
		clockSurf, err := richtext.New([]vaxis.Segment{{Text: clock, Style: vaxis.Style{Attribute: vaxis.AttrDim}}}).
			Draw(ctx.WithMax(vxfw.Size{Width: uint16(clockWidth), Height: 1}))
		if err != nil {
			return vxfw.Surface{}, err
		}
		s.AddChild(int(ctx.Max.Width)-clockWidth, 0, clockSurf)
	}

	if ctx.Max.Height < 2 {
		return s, nil
	}
	bodyHeight := ctx.Max.Height - 1

	// Rail (left column); dropped on very narrow terminals.
	contentCol := 0
	if int(ctx.Max.Width) >= railWidth*2 {
		a.rail.SyncedAt = a.dashboard.Snapshot().SyncedAt
		railSurf, err := a.rail.Draw(ctx.WithMax(vxfw.Size{Width: railWidth, Height: bodyHeight}))
		if err != nil {
			return vxfw.Surface{}, err
		}
		s.AddChild(0, 1, railSurf)
		contentCol = railWidth + 1
	}

	// Current view (remaining space)
	viewCtx := ctx.WithMax(vxfw.Size{Width: ctx.Max.Width - uint16(contentCol), Height: bodyHeight})
	viewSurf, err := a.activeView().Draw(viewCtx)
	if err != nil {
		return vxfw.Surface{}, err
	}
	s.AddChild(contentCol, 1, viewSurf)

	return s, nil
}

// CaptureEvent handles global keybindings before views process them.
func (a *App) CaptureEvent(ev vaxis.Event) (vxfw.Command, error) {
	key, ok := ev.(vaxis.Key)
	if !ok {
		return nil, nil
	}
	switch {
	case key.Matches('q'):
		return vxfw.QuitCmd{}, nil
	case key.Matches('r'):
		if a.store.Current().View != nav.Dashboard {
			return nil, nil
		}
		a.dashboard.Refresh(a.ctx)
	case key.Matches(vaxis.KeyTab, vaxis.ModShift):
		a.store.Navigate(a.rail.Prev(), nil)
	case key.Matches(vaxis.KeyTab):
		a.store.Navigate(a.rail.Next(), nil)
	case key.Matches('+'):
		a.store.Navigate(nav.Encounter, nil)
	case key.Matches('p'):
		a.store.Navigate(nav.Profile, nil)
	case key.Matches('s'):
		a.store.Navigate(nav.Settings, nil)
	case key.Matches('o'):
		// Sign out. Sessions are not managed here; this only shows the
		// login screen.
		a.store.Navigate(nav.Login, nil)
	default:
		for pos := 1; pos <= len(nav.RailItems); pos++ {
			if key.Matches(rune('0' + pos)) {
				view, _ := a.rail.ItemAt(pos)
				a.store.Navigate(view, nil)
				return vxfw.ConsumeAndRedraw(), nil
			}
		}
		return nil, nil
	}
	return vxfw.ConsumeAndRedraw(), nil
}

// HandleEvent handles lifecycle events and delegates the rest to the
// current view.
func (a *App) HandleEvent(ev vaxis.Event, phase vxfw.EventPhase) (vxfw.Command, error) {
	switch ev := ev.(type) {
	case vxfw.Init:
		if a.connectFn == nil {
			return nil, nil
		}
		go a.connect()
		go a.tick()
		return nil, nil
	case Connected:
		if !a.services.Attach(ev.Source, closers(ev.Closer)...) {
			log.Printf("ignoring second connection")
			return nil, nil
		}
		a.mu.Lock()
		a.connErr = nil
		a.mu.Unlock()
		a.dashboard.Activate(a.ctx)
		return vxfw.RedrawCmd{}, nil
	case ConnectFailed:
		log.Printf("connecting to %s: %v", a.clinicName, ev.Err)
		a.mu.Lock()
		a.connErr = ev.Err
		a.mu.Unlock()
		return vxfw.RedrawCmd{}, nil
	case views.DashboardUpdated, ClockTick:
		return vxfw.RedrawCmd{}, nil
	default:
		type handler interface {
			HandleEvent(vaxis.Event, vxfw.EventPhase) (vxfw.Command, error)
		}
		if h, ok := a.activeView().(handler); ok {
			return h.HandleEvent(ev, phase)
		}
	}
	return nil, nil
}

func closers(c io.Closer) []io.Closer {
	if c == nil {
		return nil
	}
	return []io.Closer{c}
}
