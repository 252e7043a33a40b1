// Package livesync keeps an ordered in-memory projection of a datastore
// collection up to date from a stream of full snapshots, and tells observers
// which documents were added, modified or removed.
//
// The first authoritative snapshot only populates the view. Deltas are
// reported from the second snapshot on.
package livesync

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"slices"
	"sync"
)

// State is the lifecycle position of a Synchronizer.
type State int

const (
	StateUninitialized State = iota
	StateInitialLoad
	StateLive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialLoad:
		return "initial_load"
	case StateLive:
		return "live"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Snapshot is the full contents of a collection at one point in time.
// HasPendingWrites marks a snapshot that reflects local writes the store has
// not yet confirmed as durable.
type Snapshot[T any] struct {
	Docs             []T
	HasPendingWrites bool
}

// ChangeKind classifies a per-document delta.
type ChangeKind string

const (
	Added    ChangeKind = "added"
	Modified ChangeKind = "modified"
	Removed  ChangeKind = "removed"
)

// Change is one document delta. For Removed, Doc is the last known version.
// Prev is the replaced version of a Modified document.
type Change[T any] struct {
	Kind ChangeKind
	Key  string
	Doc  T
	Prev T
}

// Source opens a subscription that yields snapshots until ctx is done.
// The channel is closed when the subscription ends.
type Source[T any] interface {
	Subscribe(ctx context.Context) (<-chan Snapshot[T], error)
}

// Observer receives deltas. Observers run on the synchronizer goroutine in
// snapshot order and must not block.
type Observer[T any] func(Change[T])

// Options configures a Synchronizer.
type Options[T any] struct {
	// Name labels log lines and metrics, e.g. "requests".
	Name string
	// Key returns the document identity.
	Key func(T) string
	// Compare orders the view.
	Compare func(a, b T) int
	// Equal decides whether a document changed. Defaults to reflect.DeepEqual.
	Equal  func(a, b T) bool
	Logger *slog.Logger
}

// ErrSourceClosed is returned by Run when the source ends its subscription
// before the context is cancelled.
var ErrSourceClosed = errors.New("livesync: source closed subscription")

// Synchronizer maintains the projection of one collection.
type Synchronizer[T any] struct {
	opts Options[T]

	mu            sync.RWMutex
	state         State
	initialLoaded bool
	view          []T
	byKey         map[string]T

	obsMu     sync.Mutex
	observers map[int]Observer[T]
	nextObs   int

	ready     chan struct{}
	readyOnce sync.Once
}

// New returns an Uninitialized synchronizer.
func New[T any](opts Options[T]) *Synchronizer[T] {
	if opts.Equal == nil {
		opts.Equal = func(a, b T) bool { return reflect.DeepEqual(a, b) }
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Synchronizer[T]{
		opts:      opts,
		byKey:     make(map[string]T),
		observers: make(map[int]Observer[T]),
		ready:     make(chan struct{}),
	}
}

// Run subscribes to src and applies snapshots until ctx is cancelled or the
// source closes. The synchronizer is Closed when Run returns.
func (s *Synchronizer[T]) Run(ctx context.Context, src Source[T]) error {
	ch, err := src.Subscribe(ctx)
	if err != nil {
		s.Close()
		return err
	}
	s.setState(StateInitialLoad)
	s.opts.Logger.Info("live sync subscribed", "collection", s.opts.Name)

	defer s.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-ch:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return ErrSourceClosed
			}
			s.Apply(snap)
		}
	}
}

// Apply processes one snapshot and returns the deltas it produced, which
// have already been delivered to observers. Snapshots with pending writes
// are skipped; the confirmed snapshot that follows carries the same data.
func (s *Synchronizer[T]) Apply(snap Snapshot[T]) []Change[T] {
	if snap.HasPendingWrites {
		s.opts.Logger.Debug("live sync skipped unconfirmed snapshot", "collection", s.opts.Name, "docs", len(snap.Docs))
		return nil
	}

	next := make(map[string]T, len(snap.Docs))
	for _, d := range snap.Docs {
		next[s.opts.Key(d)] = d
	}
	view := slices.Clone(snap.Docs)
	slices.SortFunc(view, s.opts.Compare)

	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}

	var changes []Change[T]
	initial := !s.initialLoaded
	if !initial {
		changes = diff(s.view, s.byKey, snap.Docs, next, s.opts.Key, s.opts.Equal)
	}
	s.view = view
	s.byKey = next
	s.initialLoaded = true
	s.state = StateLive
	s.mu.Unlock()

	if initial {
		s.readyOnce.Do(func() { close(s.ready) })
		s.opts.Logger.Info("live sync initial load", "collection", s.opts.Name, "docs", len(view))
		return nil
	}

	s.notify(changes)
	return changes
}

func diff[T any](prevView []T, prev map[string]T, docs []T, next map[string]T, key func(T) string, equal func(a, b T) bool) []Change[T] {
	var changes []Change[T]
	for _, d := range docs {
		k := key(d)
		old, ok := prev[k]
		switch {
		case !ok:
			changes = append(changes, Change[T]{Kind: Added, Key: k, Doc: d})
		case !equal(old, d):
			changes = append(changes, Change[T]{Kind: Modified, Key: k, Doc: d, Prev: old})
		}
	}
	for _, d := range prevView {
		k := key(d)
		if _, ok := next[k]; !ok {
			changes = append(changes, Change[T]{Kind: Removed, Key: k, Doc: d})
		}
	}
	return changes
}

func (s *Synchronizer[T]) notify(changes []Change[T]) {
	if len(changes) == 0 {
		return
	}
	s.obsMu.Lock()
	ids := make([]int, 0, len(s.observers))
	for id := range s.observers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	obs := make([]Observer[T], 0, len(ids))
	for _, id := range ids {
		obs = append(obs, s.observers[id])
	}
	s.obsMu.Unlock()

	for _, c := range changes {
		s.opts.Logger.Debug("live sync delta", "collection", s.opts.Name, "kind", c.Kind, "key", c.Key)
		for _, fn := range obs {
			fn(c)
		}
	}
}

// Observe registers fn for deltas and returns a func that unregisters it.
func (s *Synchronizer[T]) Observe(fn Observer[T]) func() {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	return func() {
		s.obsMu.Lock()
		delete(s.observers, id)
		s.obsMu.Unlock()
	}
}

// View returns a copy of the current ordered projection.
func (s *Synchronizer[T]) View() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.view)
}

// Get returns the document with the given key from the projection.
func (s *Synchronizer[T]) Get(key string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.byKey[key]
	return d, ok
}

// State returns the current lifecycle state.
func (s *Synchronizer[T]) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Ready is closed once the initial load has been applied.
func (s *Synchronizer[T]) Ready() <-chan struct{} {
	return s.ready
}

// Close moves the synchronizer to Closed. No observer is called afterwards.
func (s *Synchronizer[T]) Close() {
	s.mu.Lock()
	s.state = StateClosed
	s.mu.Unlock()

	s.obsMu.Lock()
	clear(s.observers)
	s.obsMu.Unlock()
}

func (s *Synchronizer[T]) setState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateClosed {
		s.state = st
	}
}
