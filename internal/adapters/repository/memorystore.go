package repository

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/okian/msci/internal/domain/types"
	"github.com/okian/msci/pkg/metrics"
)

const (
	defaultMaxEntries    = 256
	defaultTTL           = 5 * time.Minute
	defaultSweepInterval = 30 * time.Second
)

type entry struct {
	key     Key
	words   types.WordCounts
	expires time.Time
}

// MemoryStore is an in-memory LRU cache with per-entry expiry.
type MemoryStore struct {
	mu            sync.Mutex
	items         map[Key]*list.Element
	order         *list.List // front = most recently used
	maxEntries    int
	ttl           time.Duration
	sweepInterval time.Duration
	now           func() time.Time

	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewMemoryStore constructs a store and starts its expiry sweeper, which
// runs until ctx is done or Close is called.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		items:         make(map[Key]*list.Element),
		order:         list.New(),
		maxEntries:    defaultMaxEntries,
		ttl:           defaultTTL,
		sweepInterval: defaultSweepInterval,
		now:           time.Now,
		stopChan:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.startSweeper(ctx)
	return s
}

func (s *MemoryStore) startSweeper(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.sweep()
			}
		}
	}()
}

// Close stops the sweeper.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return nil
}

// Get implements Store.Get.
func (s *MemoryStore) Get(_ context.Context, key Key) (types.WordCounts, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[key]
	if !ok {
		metrics.RecordCacheLookup("miss")
		return nil, false
	}
	e := el.Value.(*entry)
	if !s.now().Before(e.expires) {
		s.remove(el)
		metrics.RecordCacheLookup("expired")
		return nil, false
	}
	s.order.MoveToFront(el)
	metrics.RecordCacheLookup("hit")
	return e.words.Clone(), true
}

// Put implements Store.Put.
func (s *MemoryStore) Put(_ context.Context, key Key, words types.WordCounts) {
	if s.maxEntries == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	expires := s.now().Add(s.ttl)
	if el, ok := s.items[key]; ok {
		e := el.Value.(*entry)
		e.words = words.Clone()
		e.expires = expires
		s.order.MoveToFront(el)
		return
	}
	for len(s.items) >= s.maxEntries {
		s.remove(s.order.Back())
	}
	s.items[key] = s.order.PushFront(&entry{key: key, words: words.Clone(), expires: expires})
	metrics.UpdateCacheEntries(len(s.items))
}

// Count implements Store.Count.
func (s *MemoryStore) Count(_ context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *MemoryStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for el := s.order.Back(); el != nil; {
		prev := el.Prev()
		if !now.Before(el.Value.(*entry).expires) {
			s.remove(el)
		}
		el = prev
	}
}

// remove must be called with s.mu held.
func (s *MemoryStore) remove(el *list.Element) {
	e := s.order.Remove(el).(*entry)
	delete(s.items, e.key)
	metrics.UpdateCacheEntries(len(s.items))
}
