// Package model contains domain models passed between layers.
package model

import "github.com/okian/msci/internal/domain/types"

// TaskKind names the MediaWiki query a task performs.
type TaskKind string

const (
	// KindWords fetches plain-text extracts and counts words.
	KindWords TaskKind = "words"
	// KindLinks fetches main-namespace links of the titles.
	KindLinks TaskKind = "links"
)

// Task is one unit of crawl work flowing through the queue.
type Task struct {
	JobID  string
	Kind   TaskKind
	Titles []string
	// Level is the link distance of Titles' links from the seed article.
	// Only meaningful for KindLinks.
	Level    int
	MaxDepth int
}

// TaskOutput carries what a task produced. Exactly one of Words, Links or Err
// is meaningful, depending on Kind and success.
type TaskOutput struct {
	Words types.WordCounts
	Links []string
	Err   error
}

// Result is the final outcome of a crawl job.
type Result struct {
	Success bool             `json:"success"`
	Words   types.WordCounts `json:"words,omitempty"`
	Error   string           `json:"error,omitempty"`
}
