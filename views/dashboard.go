package views

import (
	"context"
	"log"
	"sync"
	"time"

	"git.sr.ht/~rockorager/vaxis"
	"git.sr.ht/~rockorager/vaxis/vxfw"
	"git.sr.ht/~rockorager/vaxis/vxfw/richtext"
	"github.com/deevus/clinic-tui/livesync"
	"github.com/deevus/clinic-tui/nav"
	"github.com/deevus/clinic-tui/source"
	"github.com/deevus/clinic-tui/widgets"
)

// DashboardViewParams holds configuration for creating a DashboardView.
type DashboardViewParams struct {
	Source    source.Source
	Store     *nav.Store
	Location  *time.Location
	Now       func() time.Time
	PostEvent func(vaxis.Event)
}

// DashboardView shows the clinic overview: summary counters, the most
// recent encounters and quick actions. Each mount owns a fresh sync engine
// which is disposed on unmount.
type DashboardView struct {
	src   source.Source
	store *nav.Store
	loc   *time.Location
	now   func() time.Time

	mu        sync.Mutex
	engine    *livesync.Engine
	postEvent func(vaxis.Event)

	wg sync.WaitGroup
}

// Quick actions bound on the dashboard.
const (
	keyRegisterPatient = 'n'
	keyRecordVitals    = 'v'
	keyExportCensus    = 'x'
)

// NewDashboardView creates an unmounted DashboardView.
func NewDashboardView(p DashboardViewParams) *DashboardView {
	return &DashboardView{
		src:       p.Source,
		store:     p.Store,
		loc:       p.Location,
		now:       p.Now,
		postEvent: p.PostEvent,
	}
}

// SetPostEvent sets the function used to notify the event loop of new data.
func (dv *DashboardView) SetPostEvent(fn func(vaxis.Event)) {
	dv.mu.Lock()
	defer dv.mu.Unlock()
	dv.postEvent = fn
}

func (dv *DashboardView) notify() {
	dv.mu.Lock()
	post := dv.postEvent
	dv.mu.Unlock()
	if post != nil {
		post(DashboardUpdated{})
	}
}

// Mount creates a sync engine for this visit and starts it in the
// background. Mounting an already mounted view does nothing.
func (dv *DashboardView) Mount(ctx context.Context) {
	dv.mu.Lock()
	if dv.engine != nil {
		dv.mu.Unlock()
		return
	}
	e := livesync.New(livesync.Params{
		Source:   dv.src,
		Location: dv.loc,
		Now:      dv.now,
		OnChange: dv.notify,
	})
	dv.engine = e
	dv.mu.Unlock()

	dv.goRun(func() { e.Start(ctx) })
}

// Activate retries starting the engine, for when the source became ready
// after the view was mounted.
func (dv *DashboardView) Activate(ctx context.Context) {
	if e := dv.current(); e != nil {
		dv.goRun(func() { e.Start(ctx) })
	}
}

// Refresh refetches the read model in the background.
func (dv *DashboardView) Refresh(ctx context.Context) {
	if e := dv.current(); e != nil {
		dv.goRun(func() { e.Refresh(ctx) })
	}
}

// Unmount disposes the engine. Its subscription is released before
// Unmount returns, and nothing it fetches afterwards is applied.
func (dv *DashboardView) Unmount() {
	dv.mu.Lock()
	e := dv.engine
	dv.engine = nil
	dv.mu.Unlock()
	if e != nil {
		e.Dispose()
	}
}

// Mounted reports whether the view currently owns an engine.
func (dv *DashboardView) Mounted() bool {
	return dv.current() != nil
}

// Snapshot returns the engine's read model, or a zero Snapshot when
// unmounted.
func (dv *DashboardView) Snapshot() livesync.Snapshot {
	if e := dv.current(); e != nil {
		return e.Snapshot()
	}
	return livesync.Snapshot{}
}

// Wait blocks until background starts and refreshes have returned.
func (dv *DashboardView) Wait() {
	dv.wg.Wait()
}

func (dv *DashboardView) current() *livesync.Engine {
	dv.mu.Lock()
	defer dv.mu.Unlock()
	return dv.engine
}

func (dv *DashboardView) goRun(fn func()) {
	dv.wg.Add(1)
	go func() {
		defer dv.wg.Done()
		fn()
	}()
}

// Fixed-width columns for the encounters table. The patient column takes
// a share of what is left and the complaint column the rest.
const (
	encColTimeWidth = 5
	encColGap       = 2
	statCardGap     = 2
)

func encounterCols() []widgets.TableColumn {
	return []widgets.TableColumn{
		{Width: encColTimeWidth, Style: vaxis.Style{Attribute: vaxis.AttrDim}},
		{Width: 12, Flex: true, Style: vaxis.Style{Attribute: vaxis.AttrBold}},
		{Width: 10, Flex: true},
	}
}

// newestRow marks the most recent encounter.
func newestRow(i int) vaxis.Style {
	if i == 0 {
		return vaxis.Style{Foreground: vaxis.IndexColor(2)}
	}
	return vaxis.Style{}
}

// StatCards returns the three summary cards in display order.
func StatCards(st livesync.Stats) []*widgets.StatCard {
	return []*widgets.StatCard{
		{Label: "Patients checked-in today", Value: st.PatientsCheckedIn, Loaded: st.Loaded, Accent: vaxis.IndexColor(4)},
		{Label: "Encounters today", Value: st.EncountersToday, Loaded: st.Loaded, Accent: vaxis.IndexColor(2)},
		{Label: "Pending referrals", Value: st.PendingReferrals, Loaded: st.Loaded, Accent: vaxis.IndexColor(3)},
	}
}

// Draw renders the dashboard.
func (dv *DashboardView) Draw(ctx vxfw.DrawContext) (vxfw.Surface, error) {
	e := dv.current()
	if e == nil {
		return drawLoadingState(ctx, dv, "Loading...")
	}
	snap := e.Snapshot()

	s := vxfw.NewSurface(ctx.Max.Width, ctx.Max.Height, dv)
	row := 0
	line := func(segments ...vaxis.Segment) error {
		if row >= int(ctx.Max.Height) {
			return nil
		}
		surf, err := richtext.New(segments).Draw(ctx.WithMax(vxfw.Size{Width: ctx.Max.Width, Height: 1}))
		if err != nil {
			return err
		}
		s.AddChild(0, row, surf)
		row++
		return nil
	}

	// === Title ===
	title := []vaxis.Segment{{Text: " Overview", Style: vaxis.Style{Attribute: vaxis.AttrBold}}}
	switch {
	case snap.State == livesync.StateIdle:
		title = append(title, vaxis.Segment{Text: "  waiting for connection", Style: vaxis.Style{Attribute: vaxis.AttrDim}})
	case snap.State == livesync.StateLoading:
		title = append(title, vaxis.Segment{Text: "  loading", Style: vaxis.Style{Attribute: vaxis.AttrDim}})
	case snap.Degraded:
		title = append(title, vaxis.Segment{Text: "  live updates unavailable", Style: vaxis.Style{Foreground: vaxis.IndexColor(3)}})
	}
	if err := line(title...); err != nil {
		return vxfw.Surface{}, err
	}
	row++

	// === Stat cards ===
	cards := StatCards(snap.Stats)
	cardWidth := (int(ctx.Max.Width) - statCardGap*(len(cards)-1)) / len(cards)
	if cardWidth >= 12 && row < int(ctx.Max.Height) {
		var height uint16
		for i, c := range cards {
			cardCtx := ctx.WithMax(vxfw.Size{Width: uint16(cardWidth), Height: ctx.Max.Height - uint16(row)})
			surf, err := c.Draw(cardCtx)
			if err != nil {
				return vxfw.Surface{}, err
			}
			s.AddChild(i*(cardWidth+statCardGap), row, surf)
			height = surf.Size.Height
		}
		row += int(height)
	} else {
		// Too narrow for cards; one line per counter.
		for _, c := range cards {
			if err := line(
				vaxis.Segment{Text: " " + c.Label + ": ", Style: vaxis.Style{Attribute: vaxis.AttrDim}},
				vaxis.Segment{Text: c.Text(), Style: vaxis.Style{Attribute: vaxis.AttrBold}},
			); err != nil {
				return vxfw.Surface{}, err
			}
		}
	}
	row++

	// === Recent encounters ===
	if err := line(vaxis.Segment{Text: " Recent encounters", Style: vaxis.Style{Attribute: vaxis.AttrBold}}); err != nil {
		return vxfw.Surface{}, err
	}
	if len(snap.Encounters) == 0 {
		msg := "No recent encounters"
		if snap.SyncedAt.IsZero() {
			msg = "Loading..."
		}
		if err := line(vaxis.Segment{Text: " " + msg, Style: vaxis.Style{Attribute: vaxis.AttrDim}}); err != nil {
			return vxfw.Surface{}, err
		}
	} else if row < int(ctx.Max.Height) {
		rows := make([][]string, 0, len(snap.Encounters))
		for _, enc := range snap.Encounters {
			rows = append(rows, []string{enc.Time, enc.Patient, enc.Complaint})
		}
		tbl := &widgets.Table{
			Columns:  encounterCols(),
			Header:   []string{"TIME", "PATIENT", "COMPLAINT"},
			Rows:     rows,
			Gap:      encColGap,
			RowStyle: newestRow,
		}
		tblSurf, err := tbl.Draw(ctx.WithMax(vxfw.Size{Width: ctx.Max.Width - 1, Height: ctx.Max.Height - uint16(row)}))
		if err != nil {
			return vxfw.Surface{}, err
		}
		s.AddChild(1, row, tblSurf)
		row += int(tblSurf.Size.Height)
	}
	row++

	// === Quick actions ===
	if err := line(vaxis.Segment{Text: " Quick actions", Style: vaxis.Style{Attribute: vaxis.AttrBold}}); err != nil {
		return vxfw.Surface{}, err
	}
	key := vaxis.Style{Foreground: vaxis.IndexColor(6)}
	if err := line(
		vaxis.Segment{Text: " [" + string(keyRegisterPatient) + "]", Style: key},
		vaxis.Segment{Text: " Register Patient   "},
		vaxis.Segment{Text: "[" + string(keyRecordVitals) + "]", Style: key},
		vaxis.Segment{Text: " Record Vitals   "},
		vaxis.Segment{Text: "[" + string(keyExportCensus) + "]", Style: key},
		vaxis.Segment{Text: " Export Census"},
	); err != nil {
		return vxfw.Surface{}, err
	}

	return s, nil
}

// HandleEvent runs the quick actions.
func (dv *DashboardView) HandleEvent(ev vaxis.Event, phase vxfw.EventPhase) (vxfw.Command, error) {
	key, ok := ev.(vaxis.Key)
	if !ok {
		return nil, nil
	}
	switch {
	case key.Matches(keyRegisterPatient):
		dv.navigate(nav.Patients, nav.Params{"action": "register"})
	case key.Matches(keyRecordVitals):
		dv.navigate(nav.Encounter, nav.Params{"action": "vitals"})
	case key.Matches(keyExportCensus):
		snap := dv.Snapshot()
		log.Printf("census export requested: %d encounters listed, %d patients checked in",
			len(snap.Encounters), snap.Stats.PatientsCheckedIn)
	default:
		return nil, nil
	}
	return vxfw.ConsumeAndRedraw(), nil
}

func (dv *DashboardView) navigate(view nav.ViewID, params nav.Params) {
	if dv.store != nil {
		dv.store.Navigate(view, params)
	}
}
