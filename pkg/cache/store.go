package cache

import (
	"container/list"
	"sync"

	"github.com/benbjohnson/clock"
)

// Store is a bounded, concurrency-safe in-memory cache with per-entry
// expiry and least-recently-used eviction. A map gives O(1) lookup and a
// doubly-linked list maintains recency ordering (front = most recently
// used). The store owns entry lifetime exclusively: Get returns copies.
type Store struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*list.Element
	lru      *list.List
	clock    clock.Clock
}

// slot is the value stored in the LRU list elements. The key lives here
// because eviction starts from list nodes.
type slot struct {
	key   string
	entry Entry
}

// NewStore creates a store holding at most capacity entries.
// A capacity <= 0 panics: an unbounded response cache is never wanted here.
func NewStore(capacity int, clk clock.Clock) *Store {
	if capacity <= 0 {
		panic("cache: capacity must be positive")
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Store{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		lru:      list.New(),
		clock:    clk,
	}
}

// Get returns a copy of the entry for key, if present and fresh.
// Expired entries are removed on access, so a stale body is never handed
// out. A hit refreshes the entry's recency.
func (s *Store) Get(key string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.items[key]
	if !ok {
		CacheMisses.Inc()
		return Entry{}, false
	}

	sl := elem.Value.(*slot)
	if !sl.entry.Fresh(s.clock.Now()) {
		s.removeLocked(elem)
		CacheExpired.Inc()
		CacheMisses.Inc()
		return Entry{}, false
	}

	s.lru.MoveToFront(elem)
	CacheHits.Inc()
	return sl.entry.Clone(), true
}

// Put stores a copy of entry under key, evicting the least recently used
// entry first when the store is at capacity. An existing entry for the
// same key is replaced in place.
func (s *Store) Put(key string, entry Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := entry.Clone()

	if elem, ok := s.items[key]; ok {
		elem.Value.(*slot).entry = stored
		s.lru.MoveToFront(elem)
		return
	}

	if s.lru.Len() >= s.capacity {
		s.evictLocked()
	}

	elem := s.lru.PushFront(&slot{key: key, entry: stored})
	s.items[key] = elem
	CacheEntries.Set(float64(s.lru.Len()))
}

// Len returns the current number of entries, expired ones included.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Len()
}

// evictLocked removes the least recently used entry. The recency list is
// strict (every access moves an element to the front), so the back of the
// list is both the least recently accessed and, among never-read entries,
// the oldest stored.
func (s *Store) evictLocked() {
	elem := s.lru.Back()
	if elem == nil {
		return
	}
	s.removeLocked(elem)
	CacheEvictions.Inc()
}

func (s *Store) removeLocked(elem *list.Element) {
	s.lru.Remove(elem)
	delete(s.items, elem.Value.(*slot).key)
	CacheEntries.Set(float64(s.lru.Len()))
}
