// Package ledger holds the in-memory Reference & Entry Store: cash-flow entries,
// the status/type/category/subcategory taxonomy, and the integrity rules that
// keep the two consistent.
//
// Every mutation replaces the affected collection with a fresh slice, so
// snapshots handed out earlier never change underneath their holders. Successful
// mutations are announced to subscribers as Events.
package ledger

import (
	"context"
	"slices"
	"sync"
	"time"

	"cashflow/internal/core"
	"cashflow/internal/log"
)

type Store struct {
	mu      sync.Mutex
	ref     core.ReferenceData
	entries []core.Entry
	issued  map[string]struct{}

	ids    IDGenerator
	now    func() time.Time
	logger *log.Logger
	audit  *log.StructuredLogger

	// emitMu is taken before mu is released so listeners observe events in
	// the order the mutations were applied.
	emitMu       sync.Mutex
	lmu          sync.Mutex
	listeners    map[int]Listener
	nextListener int
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator replaces the default UUID generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *Store) { s.ids = g }
}

// WithClock replaces time.Now for CreatedAt and event timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithLogger(l *log.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithSeed starts the store from the given data instead of the built-in seed.
func WithSeed(ref core.ReferenceData, entries []core.Entry) Option {
	return func(s *Store) {
		s.ref = ref.Clone()
		s.entries = slices.Clone(entries)
	}
}

// Empty starts the store with no records at all.
func Empty() Option {
	return WithSeed(core.ReferenceData{}, nil)
}

// New builds a session store. Without options it holds the built-in seed data,
// issues UUIDs and logs through slog's default logger.
func New(opts ...Option) *Store {
	s := &Store{
		ref:       SeedReferenceData(),
		entries:   SeedEntries(),
		ids:       UUIDGenerator{},
		now:       time.Now,
		listeners: make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.Default()
	}
	s.logger = s.logger.WithComponent(log.ComponentLedger)
	s.audit = log.NewStructuredLogger(s.logger)

	s.issued = make(map[string]struct{})
	for _, st := range s.ref.Statuses {
		s.issued[string(CollectionStatuses)+"/"+st.ID] = struct{}{}
	}
	for _, t := range s.ref.Types {
		s.issued[string(CollectionTypes)+"/"+t.ID] = struct{}{}
	}
	for _, c := range s.ref.Categories {
		s.issued[string(CollectionCategories)+"/"+c.ID] = struct{}{}
	}
	for _, sc := range s.ref.Subcategories {
		s.issued[string(CollectionSubcategories)+"/"+sc.ID] = struct{}{}
	}
	for _, e := range s.entries {
		s.issued[string(CollectionEntries)+"/"+e.ID] = struct{}{}
	}
	return s
}

// Entries returns the current entry snapshot.
func (s *Store) Entries() []core.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.entries)
}

// ReferenceData returns the current taxonomy snapshot.
func (s *Store) ReferenceData() core.ReferenceData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ref.Clone()
}

// Snapshot returns entries and taxonomy read under one lock.
func (s *Store) Snapshot() ([]core.Entry, core.ReferenceData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.entries), s.ref.Clone()
}

// CategoriesByType lists the categories of typeID in collection order.
func (s *Store) CategoriesByType(typeID string) []core.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ref.CategoriesByType(typeID)
}

// SubcategoriesByCategory lists the subcategories of categoryID in collection order.
func (s *Store) SubcategoriesByCategory(categoryID string) []core.Subcategory {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ref.SubcategoriesByCategory(categoryID)
}

// Subscribe registers l for every subsequent Event and returns a function
// that removes it again.
func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = l
	var once sync.Once
	return func() {
		once.Do(func() {
			s.lmu.Lock()
			delete(s.listeners, id)
			s.lmu.Unlock()
		})
	}
}

// newID must be called with mu held.
func (s *Store) newID(c Collection) string {
	for {
		id := s.ids.NewID()
		key := string(c) + "/" + id
		if _, taken := s.issued[key]; taken {
			continue
		}
		s.issued[key] = struct{}{}
		return id
	}
}

// commit must be called with mu held; it releases mu and delivers ev.
func (s *Store) commit(kind EventKind, c Collection, id string) {
	ev := Event{Kind: kind, Collection: c, ID: id, At: s.now()}
	s.emitMu.Lock()
	s.mu.Unlock()
	defer s.emitMu.Unlock()

	op := log.OpUpdate
	switch kind {
	case EventAdded:
		op = log.OpCreate
	case EventDeleted:
		op = log.OpDelete
	}
	s.audit.LogLedgerChange(context.Background(), op, string(c), id)

	s.lmu.Lock()
	keys := make([]int, 0, len(s.listeners))
	for k := range s.listeners {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	ls := make([]Listener, 0, len(keys))
	for _, k := range keys {
		ls = append(ls, s.listeners[k])
	}
	s.lmu.Unlock()

	for _, l := range ls {
		l(ev)
	}
}

// reject must be called with mu held; it releases mu and returns err.
func (s *Store) reject(op string, c Collection, err error) error {
	s.mu.Unlock()
	s.audit.LogRejected(context.Background(), op, string(c), err, string(core.KindOf(err)))
	return err
}

func appended[T any](items []T, v T) []T {
	out := make([]T, len(items), len(items)+1)
	copy(out, items)
	return append(out, v)
}

func replaced[T any](items []T, i int, v T) []T {
	out := slices.Clone(items)
	out[i] = v
	return out
}

func removed[T any](items []T, i int) []T {
	out := make([]T, 0, len(items)-1)
	out = append(out, items[:i]...)
	return append(out, items[i+1:]...)
}
