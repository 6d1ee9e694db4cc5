// Package knowledge holds the curated entries maintained by the feedback loop.
//
// Readers load an immutable snapshot through an atomic pointer. Writers copy the
// current slice, apply their change and swap the result in, so a concurrent Search
// never observes a partially applied update.
package knowledge

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/vilaw/backend/internal/storage/models"
)

const DefaultCapacity = 1000

type Store struct {
	capacity int
	entries  atomic.Pointer[[]models.KnowledgeEntry]
	// mu serializes writers; readers never take it.
	mu sync.Mutex
}

func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	s := &Store{capacity: capacity}
	empty := []models.KnowledgeEntry{}
	s.entries.Store(&empty)
	return s
}

func (s *Store) Capacity() int {
	return s.capacity
}

func (s *Store) load() []models.KnowledgeEntry {
	return *s.entries.Load()
}

func (s *Store) Len() int {
	return len(s.load())
}

// Snapshot returns a copy the caller may modify.
func (s *Store) Snapshot() []models.KnowledgeEntry {
	cur := s.load()
	out := make([]models.KnowledgeEntry, len(cur))
	copy(out, cur)
	return out
}

// Upsert replaces the entry with the same id in place or appends a new one. It does
// not evict; callers follow up with EvictIfOverCapacity.
func (s *Store) Upsert(entry models.KnowledgeEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := Upsert(s.Snapshot(), entry)
	s.entries.Store(&next)
}

// EvictIfOverCapacity drops the lowest-importance entries until the population is at
// capacity and returns how many were removed.
func (s *Store) EvictIfOverCapacity() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.load()
	if len(cur) <= s.capacity {
		return 0
	}
	next := Evict(cur, s.capacity)
	s.entries.Store(&next)
	return len(cur) - len(next)
}

// Replace swaps in a complete entry set in one step. The set is evicted to capacity
// first.
func (s *Store) Replace(entries []models.KnowledgeEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]models.KnowledgeEntry, len(entries))
	copy(next, entries)
	if len(next) > s.capacity {
		next = Evict(next, s.capacity)
	}
	s.entries.Store(&next)
}

// Search matches query case-insensitively against title and content. Results are
// ordered by importance, highest first; equal importance keeps store order. An empty
// query matches every entry.
func (s *Store) Search(query string) []models.KnowledgeEntry {
	q := strings.ToLower(strings.TrimSpace(query))

	var out []models.KnowledgeEntry
	for _, e := range s.load() {
		if strings.Contains(strings.ToLower(e.Title+" "+e.Content), q) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Importance > out[j].Importance
	})
	return out
}

func (s *Store) CategoryCounts() map[string]int {
	counts := make(map[string]int)
	for _, e := range s.load() {
		counts[e.Category]++
	}
	return counts
}

// Upsert is the pure form of Store.Upsert, used by the feedback loop to fold into a
// working copy before committing it.
func Upsert(entries []models.KnowledgeEntry, entry models.KnowledgeEntry) []models.KnowledgeEntry {
	for i := range entries {
		if entries[i].ID == entry.ID {
			entries[i] = entry
			return entries
		}
	}
	return append(entries, entry)
}

// Evict returns the capacity highest-importance entries in their original order.
// Among equal importance the earlier entry survives.
func Evict(entries []models.KnowledgeEntry, capacity int) []models.KnowledgeEntry {
	if len(entries) <= capacity {
		return entries
	}

	idx := make([]int, len(entries))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return entries[idx[a]].Importance > entries[idx[b]].Importance
	})

	keep := make([]bool, len(entries))
	for _, i := range idx[:capacity] {
		keep[i] = true
	}

	out := make([]models.KnowledgeEntry, 0, capacity)
	for i, e := range entries {
		if keep[i] {
			out = append(out, e)
		}
	}
	return out
}
