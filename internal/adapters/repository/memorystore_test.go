package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/msci/internal/domain/types"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestStore(t *testing.T, opts ...Option) (*MemoryStore, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	opts = append([]Option{WithClock(clock.Now), WithSweepInterval(time.Hour)}, opts...)
	s := NewMemoryStore(context.Background(), opts...)
	t.Cleanup(func() { _ = s.Close() })
	return s, clock
}

func TestMemoryStore_BasicOperations(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	if count := store.Count(ctx); count != 0 {
		t.Errorf("expected count 0, got %d", count)
	}
	if _, ok := store.Get(ctx, Key{Article: "Go", Depth: 0}); ok {
		t.Error("expected miss on empty store")
	}

	store.Put(ctx, Key{Article: "Go", Depth: 0}, types.WordCounts{"go": 3})

	got, ok := store.Get(ctx, Key{Article: "Go", Depth: 0})
	if !ok {
		t.Fatal("expected hit")
	}
	if got["go"] != 3 {
		t.Errorf("expected go=3, got %d", got["go"])
	}

	if _, ok := store.Get(ctx, Key{Article: "Go", Depth: 1}); ok {
		t.Error("depth must be part of the key")
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	key := Key{Article: "Go"}

	words := types.WordCounts{"go": 1}
	store.Put(ctx, key, words)
	words["go"] = 100

	got, _ := store.Get(ctx, key)
	got["go"] = 50

	again, _ := store.Get(ctx, key)
	if again["go"] != 1 {
		t.Errorf("cached value was mutated: go=%d", again["go"])
	}
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	store, clock := newTestStore(t, WithTTL(time.Minute))
	key := Key{Article: "Go"}

	store.Put(ctx, key, types.WordCounts{"go": 1})
	clock.Advance(59 * time.Second)
	if _, ok := store.Get(ctx, key); !ok {
		t.Fatal("expected entry to be fresh")
	}

	clock.Advance(time.Second)
	if _, ok := store.Get(ctx, key); ok {
		t.Fatal("expected entry to expire")
	}
	if count := store.Count(ctx); count != 0 {
		t.Errorf("expected expired entry to be dropped, count %d", count)
	}
}

func TestMemoryStore_Sweep(t *testing.T) {
	ctx := context.Background()
	store, clock := newTestStore(t, WithTTL(time.Minute))

	store.Put(ctx, Key{Article: "old"}, types.WordCounts{"a": 1})
	clock.Advance(30 * time.Second)
	store.Put(ctx, Key{Article: "new"}, types.WordCounts{"b": 1})
	clock.Advance(45 * time.Second)

	store.sweep()

	if count := store.Count(ctx); count != 1 {
		t.Fatalf("expected 1 entry after sweep, got %d", count)
	}
	if _, ok := store.Get(ctx, Key{Article: "new"}); !ok {
		t.Error("expected newer entry to survive")
	}
}

func TestMemoryStore_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, WithMaxEntries(2))

	store.Put(ctx, Key{Article: "a"}, types.WordCounts{"a": 1})
	store.Put(ctx, Key{Article: "b"}, types.WordCounts{"b": 1})
	store.Get(ctx, Key{Article: "a"})
	store.Put(ctx, Key{Article: "c"}, types.WordCounts{"c": 1})

	if _, ok := store.Get(ctx, Key{Article: "b"}); ok {
		t.Error("expected b to be evicted")
	}
	for _, name := range []string{"a", "c"} {
		if _, ok := store.Get(ctx, Key{Article: name}); !ok {
			t.Errorf("expected %s to be cached", name)
		}
	}
}

func TestMemoryStore_Disabled(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, WithMaxEntries(0))

	store.Put(ctx, Key{Article: "a"}, types.WordCounts{"a": 1})
	if _, ok := store.Get(ctx, Key{Article: "a"}); ok {
		t.Error("expected disabled store to miss")
	}
}

func TestMemoryStore_Concurrent(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, WithMaxEntries(16))

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := Key{Article: fmt.Sprintf("a%d", (g*i)%32)}
				store.Put(ctx, key, types.WordCounts{"w": i})
				store.Get(ctx, key)
			}
		}(g)
	}
	wg.Wait()

	if count := store.Count(ctx); count > 16 {
		t.Errorf("expected at most 16 entries, got %d", count)
	}
}

func TestMemoryStore_CloseIsIdempotent(t *testing.T) {
	store := NewMemoryStore(context.Background())
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}
}
