package livesync

import (
	"context"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/deevus/clinic-tui/source"
	"golang.org/x/sync/errgroup"
)

// State is the lifecycle state of an Engine.
type State int

const (
	StateIdle     State = iota // source not ready, nothing issued
	StateLoading               // subscribing and running the first fetch
	StateLive                  // first fetch done, subscription issued
	StateTornDown              // disposed; terminal
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateLive:
		return "live"
	case StateTornDown:
		return "torn down"
	}
	return "unknown"
}

// Params holds configuration for creating an Engine.
type Params struct {
	Source source.Source

	// Location is used to format encounter times. Defaults to time.Local.
	Location *time.Location

	// OnChange is called after every state transition or read model
	// replacement. It may be called from any goroutine.
	OnChange func()

	// Now defaults to time.Now.
	Now func() time.Time
}

// Snapshot is a consistent copy of everything an Engine exposes.
type Snapshot struct {
	State      State
	Stats      Stats
	Encounters []Encounter
	SyncedAt   time.Time // zero until a query has succeeded
	Degraded   bool      // live without a change feed
}

// Engine is the live synchronization engine for one mounted dashboard.
// An Engine is single use: once disposed it cannot be restarted.
type Engine struct {
	src      source.Source
	loc      *time.Location
	onChange func()
	now      func() time.Time

	mu         sync.Mutex
	state      State
	stats      Stats
	encounters []Encounter
	syncedAt   time.Time
	sub        *source.Subscription
	subFailed  bool
	ctx        context.Context
	cancel     context.CancelFunc
}

// New creates an idle Engine.
func New(p Params) *Engine {
	e := &Engine{
		src:      p.Source,
		loc:      p.Location,
		onChange: p.OnChange,
		now:      p.Now,
	}
	if e.loc == nil {
		e.loc = time.Local
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// Start leaves the idle state if the source is ready: it registers the
// encounters change feed, runs the first fetch and goes live. If the
// source is not ready Start does nothing; call it again once it is.
// Start blocks until the engine is live (or disposed meanwhile) and is a
// no-op in any state other than idle.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	if e.state != StateIdle || !e.src.IsReady() {
		e.mu.Unlock()
		return
	}
	e.ctx, e.cancel = context.WithCancel(ctx)
	e.state = StateLoading
	runCtx := e.ctx
	e.mu.Unlock()
	e.changed()

	// Subscribing before the first fetch leaves no window in which an
	// insert could land between the read and the registration.
	sub, err := e.src.Subscribe(runCtx, EncountersResource,
		source.EventFilter{Op: source.OpInsert, Schema: "public"}, e.handleChange)
	if err != nil {
		log.Printf("livesync: %v", &SubscribeError{Resource: EncountersResource, Err: err})
		sub = nil
	}

	e.mu.Lock()
	if e.state == StateTornDown {
		e.mu.Unlock()
		if sub != nil {
			e.src.Unsubscribe(sub)
		}
		return
	}
	e.sub = sub
	e.subFailed = sub == nil
	e.mu.Unlock()

	e.fetch(runCtx)

	e.mu.Lock()
	if e.state != StateLoading {
		e.mu.Unlock()
		return
	}
	e.state = StateLive
	e.mu.Unlock()
	e.changed()
}

// Refresh runs the combined fetch. It does nothing unless the engine is
// loading or live and the source is ready. The queries stop when either
// ctx is done or the engine is disposed.
func (e *Engine) Refresh(ctx context.Context) {
	e.mu.Lock()
	active := e.state == StateLoading || e.state == StateLive
	engineCtx := e.ctx
	e.mu.Unlock()
	if !active || engineCtx == nil {
		return
	}

	runCtx, cancel := context.WithCancel(engineCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	e.fetch(runCtx)
}

// Dispose releases the subscription and cancels in-flight queries.
// Results or change events arriving afterwards are discarded. Dispose is
// safe to call more than once.
func (e *Engine) Dispose() {
	e.mu.Lock()
	if e.state == StateTornDown {
		e.mu.Unlock()
		return
	}
	e.state = StateTornDown
	sub := e.sub
	e.sub = nil
	cancel := e.cancel
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if sub != nil {
		e.src.Unsubscribe(sub)
	}
	e.changed()
}

func (e *Engine) handleChange(ev source.ChangeEvent) {
	e.mu.Lock()
	if e.state == StateTornDown || e.ctx == nil {
		e.mu.Unlock()
		return
	}
	ctx := e.ctx
	e.mu.Unlock()

	e.fetch(ctx)
}

// fetch issues both dashboard queries concurrently and applies each
// result on its own: a failed query keeps the previous value of its
// entity and does not hold back the other one.
func (e *Engine) fetch(ctx context.Context) {
	if !e.src.IsReady() {
		return
	}

	var (
		statsRows, encRows []source.Row
		statsErr, encErr   error
		g                  errgroup.Group
	)
	// Both funcs return nil so one failure never cancels the other; the
	// errors are kept per query.
	g.Go(func() error {
		statsRows, statsErr = e.src.Query(ctx, statsQuery())
		return nil
	})
	g.Go(func() error {
		encRows, encErr = e.src.Query(ctx, encountersQuery())
		return nil
	})
	_ = g.Wait()

	var encounters []Encounter
	if encErr == nil {
		encounters = decodeEncounters(encRows, e.loc)
	}

	e.mu.Lock()
	if e.state == StateTornDown {
		e.mu.Unlock()
		return
	}
	if statsErr != nil {
		log.Printf("livesync: %v", &QueryError{Resource: StatsResource, Err: statsErr})
	} else {
		e.stats = decodeStats(statsRows)
	}
	if encErr != nil {
		log.Printf("livesync: %v", &QueryError{Resource: EncountersResource, Err: encErr})
	} else {
		e.encounters = encounters
	}
	if statsErr == nil || encErr == nil {
		e.syncedAt = e.now()
	}
	e.mu.Unlock()
	e.changed()
}

func (e *Engine) changed() {
	if e.onChange != nil {
		e.onChange()
	}
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Stats returns the current counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// Encounters returns a copy of the recent encounters, newest first.
func (e *Engine) Encounters() []Encounter {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.encounters)
}

// Snapshot returns state and read model taken under one lock.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{
		State:      e.state,
		Stats:      e.stats,
		Encounters: slices.Clone(e.encounters),
		SyncedAt:   e.syncedAt,
		Degraded:   e.state == StateLive && e.subFailed,
	}
}
