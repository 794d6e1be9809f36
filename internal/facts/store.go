package facts

import (
	"github.com/roach88/sift/internal/ir"
)

// Handle is the stable identity of a declared fact within one run.
// Handles are the fact's logical-clock seq number: strictly increasing
// in declaration order, never reused within a run.
type Handle int64

// Entry pairs a declared fact with its handle.
type Entry struct {
	Handle Handle
	Fact   ir.Fact
}

// Store holds the working set of facts for one engine run.
//
// A Store is single-run and request-scoped: each query gets its own
// instance (or calls Reset between runs), so no locking is needed.
// There is no delete operation - derivation is purely additive.
type Store struct {
	clock  *Clock
	all    []Entry
	byKind map[string][]int // kind -> indexes into all, declaration order
}

// NewStore creates an empty working memory.
func NewStore() *Store {
	s := &Store{clock: NewClock()}
	s.Reset()
	return s
}

// Reset clears all facts and restarts the clock, returning the store to
// empty. Must be called before each independent run when a store is reused.
func (s *Store) Reset() {
	s.clock.Restart()
	s.all = s.all[:0]
	s.byKind = make(map[string][]int)
}

// Declare inserts one fact and returns its handle.
//
// Duplicates are not deduplicated: declaring a fact with identical kind and
// field values creates a second, distinct fact with its own handle.
func (s *Store) Declare(f ir.Fact) Handle {
	h := Handle(s.clock.Next())
	s.byKind[f.Kind] = append(s.byKind[f.Kind], len(s.all))
	s.all = append(s.all, Entry{Handle: h, Fact: f})
	return h
}

// Len returns the number of declared facts.
func (s *Store) Len() int {
	return len(s.all)
}

// Iterate returns a fresh iterator over facts of the given kind in
// declaration order. An empty kind iterates all facts. Each call re-scans
// current state; iterating does not consume anything.
func (s *Store) Iterate(kind string) *Iterator {
	return &Iterator{store: s, kind: kind}
}

// Snapshot returns a copy of all entries in declaration order.
// Used by trace recording; the engine itself iterates lazily.
func (s *Store) Snapshot() []Entry {
	out := make([]Entry, len(s.all))
	copy(out, s.all)
	return out
}

// Iterator walks facts in declaration order. Zero or more iterators may be
// live at once; declaring facts mid-iteration makes them visible to
// iterators that have not yet passed their position.
type Iterator struct {
	store *Store
	kind  string
	pos   int
}

// Next returns the next entry, or ok=false when exhausted.
func (it *Iterator) Next() (Entry, bool) {
	if it.kind != "" {
		// Read the index live so facts declared mid-iteration are visible.
		index := it.store.byKind[it.kind]
		if it.pos >= len(index) {
			return Entry{}, false
		}
		e := it.store.all[index[it.pos]]
		it.pos++
		return e, true
	}

	if it.pos >= len(it.store.all) {
		return Entry{}, false
	}
	e := it.store.all[it.pos]
	it.pos++
	return e, true
}
