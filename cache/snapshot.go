package cache

import (
	"sort"
	"sync"

	"github.com/goliatone/go-painpoint/painpoint"
)

// Snapshot is the in-memory mirror of the pain point table, keyed by record id.
//
// A secondary index classID -> set(record id) is maintained on every write so
// per-class reads neither scan nor mutate the primary map.
type Snapshot struct {
	mu      sync.RWMutex
	records map[int32]painpoint.Record
	byClass map[int32]map[int32]struct{}
	loaded  bool
}

// NewSnapshot returns an empty, never-loaded snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		records: make(map[int32]painpoint.Record),
		byClass: make(map[int32]map[int32]struct{}),
	}
}

// ReplaceAll swaps the snapshot contents for exactly records and marks it loaded.
func (s *Snapshot) ReplaceAll(records map[int32]painpoint.Record) {
	next := make(map[int32]painpoint.Record, len(records))
	index := make(map[int32]map[int32]struct{})
	for id, rec := range records {
		rec.ID = id
		next[id] = rec
		addToIndex(index, rec)
	}

	s.mu.Lock()
	s.records = next
	s.byClass = index
	s.loaded = true
	s.mu.Unlock()
}

// Upsert inserts or overwrites rec by id.
func (s *Snapshot) Upsert(rec painpoint.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.records[rec.ID]; ok && prev.ClassID != rec.ClassID {
		removeFromIndex(s.byClass, prev)
	}
	s.records[rec.ID] = rec
	addToIndex(s.byClass, rec)
}

// Remove drops id from the snapshot.
func (s *Snapshot) Remove(id int32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.records[id]
	if !ok {
		return
	}
	delete(s.records, id)
	removeFromIndex(s.byClass, prev)
}

// Get returns the record for id.
func (s *Snapshot) Get(id int32) (painpoint.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	return rec, ok
}

// FilterByClassID returns every record of classID ordered by id. It never
// modifies the snapshot.
func (s *Snapshot) FilterByClassID(classID int32) []painpoint.Record {
	s.mu.RLock()
	ids := s.byClass[classID]
	out := make([]painpoint.Record, 0, len(ids))
	for id := range ids {
		out = append(out, s.records[id])
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// All returns a copy of the snapshot contents.
func (s *Snapshot) All() map[int32]painpoint.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[int32]painpoint.Record, len(s.records))
	for id, rec := range s.records {
		out[id] = rec
	}
	return out
}

// IsEmpty reports whether the snapshot holds no records.
func (s *Snapshot) IsEmpty() bool {
	return s.Len() == 0
}

// Len returns the number of records held.
func (s *Snapshot) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Loaded reports whether a full refresh has populated the snapshot at least once.
func (s *Snapshot) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

func addToIndex(index map[int32]map[int32]struct{}, rec painpoint.Record) {
	ids, ok := index[rec.ClassID]
	if !ok {
		ids = make(map[int32]struct{})
		index[rec.ClassID] = ids
	}
	ids[rec.ID] = struct{}{}
}

func removeFromIndex(index map[int32]map[int32]struct{}, rec painpoint.Record) {
	ids, ok := index[rec.ClassID]
	if !ok {
		return
	}
	delete(ids, rec.ID)
	if len(ids) == 0 {
		delete(index, rec.ClassID)
	}
}
