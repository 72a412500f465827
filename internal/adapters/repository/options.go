package repository

import "time"

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithMaxEntries bounds the number of cached results. Zero disables caching.
func WithMaxEntries(n int) Option {
	return func(s *MemoryStore) {
		if n >= 0 {
			s.maxEntries = n
		}
	}
}

// WithTTL sets how long a result stays fresh.
func WithTTL(ttl time.Duration) Option {
	return func(s *MemoryStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithSweepInterval sets how often expired entries are purged.
func WithSweepInterval(interval time.Duration) Option {
	return func(s *MemoryStore) {
		if interval > 0 {
			s.sweepInterval = interval
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}
