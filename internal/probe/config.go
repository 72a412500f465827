// Package probe drives concurrent requests against a running msci server
// and summarises how it coped.
package probe

import "time"

// Config holds configuration for a probe run.
type Config struct {
	BaseURL  string        // Base URL of the service
	Articles []string      // Articles requested round-robin
	Depth    int           // Crawl depth for every request
	Requests int           // Total number of requests
	Workers  int           // Number of concurrent requests
	Timeout  time.Duration // HTTP request timeout

	// Keywords switches from GET /word-frequency to POST /keywords.
	Keywords   bool
	IgnoreList []string
	Percentile *int

	Verbose bool
}

// Stats holds probe statistics.
type Stats struct {
	Submitted  int
	Successful int
	Failed     int
	ByStatus   map[int]int
	Words      int // distinct words in the largest successful response
	Latencies  []time.Duration
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
}

// Summary condenses latencies into percentiles.
type Summary struct {
	P50, P95, Max  time.Duration
	SuccessRate    float64
	RequestsPerSec float64
}

type keywordsRequest struct {
	Article    string   `json:"article"`
	Depth      int      `json:"depth"`
	IgnoreList []string `json:"ignore_list,omitempty"`
	Percentile *int     `json:"percentile,omitempty"`
}
