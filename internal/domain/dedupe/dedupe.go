// Package dedupe tracks which keys have already been seen.
//
// The crawler keeps one Deduper per job so a linked title is fetched at most
// once no matter how many pages link to it.
package dedupe

import (
	"context"
	"sync"
)

// Deduper records seen keys.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, id string) bool

	// Size reports how many keys are recorded.
	Size() int
}

// inMemoryDeduper keeps every key for its lifetime. A job's deduper is
// dropped when the job finishes.
type inMemoryDeduper struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewInMemoryDeduper creates an empty deduper.
func NewInMemoryDeduper() Deduper {
	return &inMemoryDeduper{seen: make(map[string]struct{})}
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return true
	}
	d.seen[id] = struct{}{}
	return false
}

func (d *inMemoryDeduper) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
