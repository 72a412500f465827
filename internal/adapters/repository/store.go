// Package repository caches finished word-frequency results.
package repository

import (
	"context"

	"github.com/okian/msci/internal/domain/types"
)

// Key identifies a crawl result.
type Key struct {
	Article string
	Depth   int
}

// Store provides read/write access to cached results.
type Store interface {
	// Get returns a copy of the cached counts for key.
	Get(ctx context.Context, key Key) (types.WordCounts, bool)

	// Put caches a copy of words under key, evicting the least recently
	// used entry when the store is full.
	Put(ctx context.Context, key Key, words types.WordCounts)

	// Count returns the number of live entries.
	Count(ctx context.Context) int
}
