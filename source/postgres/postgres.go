package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/deevus/clinic-tui/source"
	"github.com/lib/pq"
)

// Config holds connection settings for Open.
type Config struct {
	DSN string

	// Dialer opens the TCP connections, e.g. through an SSH tunnel.
	// Defaults to a direct dial.
	Dialer pq.Dialer

	// Listener reconnect backoff bounds. Default 1s and 30s.
	MinReconnect time.Duration
	MaxReconnect time.Duration
}

// listener is the part of *pq.Listener the Source uses.
type listener interface {
	Listen(channel string) error
	Unlisten(channel string) error
	NotificationChannel() <-chan *pq.Notification
	Close() error
}

type subscriber struct {
	sub     *source.Subscription
	filter  source.EventFilter
	onEvent func(source.ChangeEvent)
}

// Source is a PostgreSQL backed source.Source. Changes arrive through
// LISTEN/NOTIFY on a channel named after each resource.
type Source struct {
	db       *sql.DB
	listener listener
	ready    atomic.Bool

	// listenMu serialises LISTEN/UNLISTEN with subscriber bookkeeping.
	listenMu sync.Mutex
	mu       sync.Mutex
	subs     map[string]map[string]*subscriber // channel -> subscription ID

	done      chan struct{}
	closeOnce sync.Once
}

type netDialer struct{}

func (netDialer) Dial(network, address string) (net.Conn, error) {
	return net.Dial(network, address)
}

func (netDialer) DialTimeout(network, address string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout(network, address, timeout)
}

// Open connects to the database, verifies the connection and starts the
// notification listener. The returned Source is ready.
func Open(ctx context.Context, cfg Config) (*Source, error) {
	connector, err := pq.NewConnector(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing database DSN: %w", err)
	}
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = netDialer{}
	}
	connector.Dialer(dialer)

	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	minReconnect := cfg.MinReconnect
	if minReconnect == 0 {
		minReconnect = time.Second
	}
	maxReconnect := cfg.MaxReconnect
	if maxReconnect == 0 {
		maxReconnect = 30 * time.Second
	}
	l := pq.NewDialListener(dialer, cfg.DSN, minReconnect, maxReconnect, logListenerEvent)

	return newSource(db, l), nil
}

func newSource(db *sql.DB, l listener) *Source {
	s := &Source{
		db:       db,
		listener: l,
		subs:     make(map[string]map[string]*subscriber),
		done:     make(chan struct{}),
	}
	s.ready.Store(true)
	go s.dispatch()
	return s
}

func logListenerEvent(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventDisconnected:
		log.Printf("postgres: listener disconnected: %v", err)
	case pq.ListenerEventReconnected:
		log.Printf("postgres: listener reconnected")
	case pq.ListenerEventConnectionAttemptFailed:
		log.Printf("postgres: listener connection attempt failed: %v", err)
	}
}

// IsReady reports whether the Source is open.
func (s *Source) IsReady() bool {
	return s.ready.Load()
}

// Query runs q as a single SELECT.
func (s *Source) Query(ctx context.Context, q source.Query) ([]source.Row, error) {
	if !s.IsReady() {
		return nil, source.ErrNotReady
	}
	stmt, args, err := buildSelect(q)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", q.Resource, err)
	}
	defer rows.Close()
	return scanRows(rows)
}

// Subscribe listens on the notification channel named after resource.
// onEvent is called from the Source's dispatch goroutine, one event at a
// time, in delivery order.
func (s *Source) Subscribe(ctx context.Context, resource string, filter source.EventFilter, onEvent func(source.ChangeEvent)) (*source.Subscription, error) {
	if !s.IsReady() {
		return nil, source.ErrNotReady
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.listenMu.Lock()
	defer s.listenMu.Unlock()

	s.mu.Lock()
	first := len(s.subs[resource]) == 0
	s.mu.Unlock()

	if first {
		if err := s.listener.Listen(resource); err != nil && err != pq.ErrChannelAlreadyOpen {
			return nil, fmt.Errorf("listen %s: %w", resource, err)
		}
	}

	var sub *source.Subscription
	sub = source.NewSubscription(resource, func() { s.remove(resource, sub.ID) })

	s.mu.Lock()
	if s.subs[resource] == nil {
		s.subs[resource] = make(map[string]*subscriber)
	}
	s.subs[resource][sub.ID] = &subscriber{sub: sub, filter: filter, onEvent: onEvent}
	s.mu.Unlock()
	return sub, nil
}

// Unsubscribe releases sub. The channel is unlistened once its last
// subscriber is gone.
func (s *Source) Unsubscribe(sub *source.Subscription) {
	if sub != nil {
		sub.Close()
	}
}

func (s *Source) remove(channel, id string) {
	s.listenMu.Lock()
	defer s.listenMu.Unlock()

	s.mu.Lock()
	delete(s.subs[channel], id)
	last := len(s.subs[channel]) == 0
	if last {
		delete(s.subs, channel)
	}
	s.mu.Unlock()

	if last && s.IsReady() {
		if err := s.listener.Unlisten(channel); err != nil && err != pq.ErrChannelNotOpen {
			log.Printf("postgres: unlisten %s: %v", channel, err)
		}
	}
}

func (s *Source) dispatch() {
	notes := s.listener.NotificationChannel()
	for {
		select {
		case <-s.done:
			return
		case n, ok := <-notes:
			if !ok {
				return
			}
			if n == nil {
				// The listener reconnected; anything sent meanwhile is lost.
				s.resyncAll()
				continue
			}
			ev, err := decodeNotification(n.Channel, n.Extra)
			if err != nil {
				log.Printf("postgres: %v", err)
				continue
			}
			s.deliver(n.Channel, ev)
		}
	}
}

func (s *Source) subscribers(channel string) []*subscriber {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*subscriber, 0, len(s.subs[channel]))
	for _, sb := range s.subs[channel] {
		out = append(out, sb)
	}
	return out
}

func (s *Source) deliver(channel string, ev source.ChangeEvent) {
	for _, sb := range s.subscribers(channel) {
		select {
		case <-sb.sub.Done():
			continue
		default:
		}
		if sb.filter.Matches(ev) {
			sb.onEvent(ev)
		}
	}
}

func (s *Source) resyncAll() {
	s.mu.Lock()
	channels := make([]string, 0, len(s.subs))
	for ch := range s.subs {
		channels = append(channels, ch)
	}
	s.mu.Unlock()

	now := time.Now()
	for _, ch := range channels {
		s.deliver(ch, source.ChangeEvent{Resource: ch, Op: source.OpResync, At: now})
	}
}

// Close stops the listener and closes the database. Open subscriptions
// receive no further events.
func (s *Source) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.ready.Store(false)
		close(s.done)
		if lerr := s.listener.Close(); lerr != nil {
			err = fmt.Errorf("closing listener: %w", lerr)
		}
		if s.db != nil {
			if derr := s.db.Close(); derr != nil && err == nil {
				err = fmt.Errorf("closing database: %w", derr)
			}
		}
	})
	return err
}
