package crawler

import "github.com/okian/msci/pkg/logger"

// Option configures an Engine.
type Option func(*Engine)

// WithBatchSize sets how many linked titles are fetched per request.
func WithBatchSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}
