package cache

import (
	"container/list"
	"context"
	"strings"
	"sync"
	"time"
)

const defaultMemoryMaxItems = 10000

// MemoryStore is an in-process LRU store with per-item TTL. It backs the
// "memory" driver for single-instance deployments and tests.
type MemoryStore struct {
	mu       sync.Mutex
	items    map[string]*memoryItem
	lru      *list.List
	maxItems int
	now      func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

type memoryItem struct {
	key     string
	value   []byte
	expiry  time.Time
	element *list.Element
}

type MemoryOption func(*MemoryStore)

// WithMaxItems bounds the number of entries; the least recently used entry
// is evicted first.
func WithMaxItems(n int) MemoryOption {
	return func(s *MemoryStore) {
		if n > 0 {
			s.maxItems = n
		}
	}
}

// WithClock replaces time.Now, for tests that need to move time forward.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		s.now = now
	}
}

// NewMemoryStore creates the store. A positive cleanupInterval starts a
// janitor that drops expired entries; Close stops it.
func NewMemoryStore(cleanupInterval time.Duration, opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		items:    make(map[string]*memoryItem),
		lru:      list.New(),
		maxItems: defaultMemoryMaxItems,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if cleanupInterval > 0 {
		go s.janitor(cleanupInterval)
	}
	return s
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[key]
	if !ok {
		return nil, false, nil
	}
	if !s.now().Before(item.expiry) {
		s.remove(item)
		return nil, false, nil
	}

	s.lru.MoveToFront(item.element)

	value := make([]byte, len(item.value))
	copy(value, item.value)
	return value, true, nil
}

func (s *MemoryStore) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.items[key]; ok {
		s.remove(existing)
	}

	for len(s.items) >= s.maxItems && s.lru.Len() > 0 {
		s.remove(s.lru.Back().Value.(*memoryItem))
	}

	item := &memoryItem{
		key:    key,
		value:  make([]byte, len(value)),
		expiry: s.now().Add(ttl),
	}
	copy(item.value, value)
	item.element = s.lru.PushFront(item)
	s.items[key] = item
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item, ok := s.items[key]; ok {
		s.remove(item)
	}
	return nil
}

func (s *MemoryStore) DeleteByPrefix(_ context.Context, prefix string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, item := range s.items {
		if strings.HasPrefix(key, prefix) {
			s.remove(item)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) Available() bool {
	return true
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}

// Len returns the number of live entries.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	n := 0
	for _, item := range s.items {
		if now.Before(item.expiry) {
			n++
		}
	}
	return n
}

func (s *MemoryStore) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.deleteExpired()
		case <-s.stop:
			return
		}
	}
}

func (s *MemoryStore) deleteExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for _, item := range s.items {
		if !now.Before(item.expiry) {
			s.remove(item)
		}
	}
}

// remove must be called with the lock held.
func (s *MemoryStore) remove(item *memoryItem) {
	if item.element != nil {
		s.lru.Remove(item.element)
	}
	delete(s.items, item.key)
}
