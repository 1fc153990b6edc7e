// Package state holds the process-wide mapping from entity identifier
// to last-known state. The store is seeded from a bulk snapshot, kept
// current by the event stream and read by the redraw path; a reader
// never blocks on a missing entry, it just sees pending.
package state

import (
	"sort"
	"sync"

	"github.com/hubdeck/hubdeck/internal/entity"
	"github.com/hubdeck/hubdeck/internal/logger"
)

// Store maps entity identifiers to their last-known snapshots. Every
// watched identifier has an entry; a nil entry means the entity is
// declared but no state has arrived yet. Records are replaced
// wholesale, never merged.
type Store struct {
	mu      sync.RWMutex
	watch   map[string]struct{}
	entries map[string]*entity.State
	log     logger.Logger
}

// NewStore returns an empty store.
func NewStore(log logger.Logger) *Store {
	if log == nil {
		log = logger.NewNullLogger()
	}
	return &Store{
		watch:   make(map[string]struct{}),
		entries: make(map[string]*entity.State),
		log:     log,
	}
}

// SetWatch replaces the active watch set in one step. New identifiers
// get a pending entry immediately; entries outside the new set are
// retained for display but stop receiving updates.
func (s *Store) SetWatch(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watch = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		s.watch[id] = struct{}{}
		if _, ok := s.entries[id]; !ok {
			s.entries[id] = nil
		}
	}
	s.log.WithField("entities", len(ids)).Debug("Watch set replaced")
}

// Seed bulk-loads snapshots, keeping only watched identifiers. The hub
// returns every entity it knows; the rest is noise here.
func (s *Store) Seed(states []entity.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := 0
	for i := range states {
		st := states[i]
		if _, ok := s.watch[st.ID]; !ok {
			continue
		}
		s.entries[st.ID] = &st
		kept++
	}
	s.log.WithFields(map[string]interface{}{
		"received": len(states),
		"kept":     kept,
	}).Debug("Seeded state store")
}

// Apply replaces one entry with a fresh snapshot. Updates for
// identifiers outside the active watch set are dropped, so a layout
// switch never grows the store from stale subscriptions. A nil
// snapshot returns the entry to pending. Reports whether the update
// was applied.
func (s *Store) Apply(id string, st *entity.State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.watch[id]; !ok {
		return false
	}
	s.entries[id] = st
	return true
}

// Lookup returns the snapshot for id. The second return is false for
// unknown identifiers and for declared entries that are still pending.
func (s *Store) Lookup(id string) (*entity.State, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.entries[id]
	return st, st != nil
}

// Watched reports whether id is in the active watch set.
func (s *Store) Watched(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.watch[id]
	return ok
}

// WatchList returns the active watch set sorted by identifier.
func (s *Store) WatchList() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.watch))
	for id := range s.watch {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Snapshot returns a copy of every known entry sorted by identifier.
// Pending entries are skipped.
func (s *Store) Snapshot() []entity.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entity.State, 0, len(s.entries))
	for _, st := range s.entries {
		if st == nil {
			continue
		}
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of declared entries, pending included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
