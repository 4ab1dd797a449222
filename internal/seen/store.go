// Package seen tracks which listing ids have already been notified for each
// query and persists that record as a snapshot.
package seen

import (
	"slices"
	"sync"

	domain "github.com/donaldgifford/listing-notifier/pkg/types"
)

// Snapshot maps a query key to the ordered ids already notified for it.
type Snapshot map[string][]string

// Set is an insertion-ordered set of listing ids.
type Set struct {
	ids   map[string]struct{}
	order []string
}

func newSet() *Set {
	return &Set{ids: make(map[string]struct{})}
}

func (s *Set) add(id string) bool {
	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = struct{}{}
	s.order = append(s.order, id)
	return true
}

// Store is the in-memory seen record. Ids only ever grow; the only way to
// shrink a set is Reset. The loop is the single writer, the status API reads
// concurrently.
type Store struct {
	mu   sync.RWMutex
	sets map[string]*Set
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{sets: make(map[string]*Set)}
}

// FromSnapshot builds a Store holding every id in snap.
func FromSnapshot(snap Snapshot) *Store {
	s := NewStore()
	s.Reset(snap)
	return s
}

// Reset replaces the whole record with snap.
func (s *Store) Reset(snap Snapshot) {
	sets := make(map[string]*Set, len(snap))
	for key, ids := range snap {
		set := newSet()
		for _, id := range ids {
			set.add(id)
		}
		sets[key] = set
	}

	s.mu.Lock()
	s.sets = sets
	s.mu.Unlock()
}

// Has reports whether id was already notified for key.
func (s *Store) Has(key, id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.sets[key]
	if !ok {
		return false
	}
	_, ok = set.ids[id]
	return ok
}

// Len returns the number of ids recorded for key.
func (s *Store) Len(key string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if set, ok := s.sets[key]; ok {
		return len(set.order)
	}
	return 0
}

// Keys returns every query key with a recorded set, sorted.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.sets))
	for k := range s.sets {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Diff returns the listings whose ids are not recorded for key, in input
// order. With no record for key every listing is new. Duplicate ids within
// listings are reported once.
func (s *Store) Diff(key string, listings []domain.Listing) []domain.Listing {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := s.sets[key]
	fresh := make([]domain.Listing, 0, len(listings))
	batch := make(map[string]struct{}, len(listings))
	for i := range listings {
		id := listings[i].ID
		if set != nil {
			if _, ok := set.ids[id]; ok {
				continue
			}
		}
		if _, dup := batch[id]; dup {
			continue
		}
		batch[id] = struct{}{}
		fresh = append(fresh, listings[i])
	}
	return fresh
}

// Add records ids for key and returns how many were not already present.
func (s *Store) Add(key string, ids ...string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.sets[key]
	if !ok {
		set = newSet()
		s.sets[key] = set
	}

	added := 0
	for _, id := range ids {
		if set.add(id) {
			added++
		}
	}
	return added
}

// Snapshot returns a deep copy of the record.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := make(Snapshot, len(s.sets))
	for key, set := range s.sets {
		ids := make([]string, len(set.order))
		copy(ids, set.order)
		snap[key] = ids
	}
	return snap
}
