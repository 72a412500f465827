package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// HTTPClient wraps http.Client with timeout.
type HTTPClient struct {
	client  *http.Client
	baseURL string
}

func newHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// Get performs a GET request against path.
func (c *HTTPClient) Get(ctx context.Context, path string, query url.Values) (*http.Response, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// Post performs a POST request with a JSON body.
func (c *HTTPClient) Post(ctx context.Context, path string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}

// outcome is the result of one probe request.
type outcome struct {
	status  int
	words   int
	latency time.Duration
	err     error
}

func (c *HTTPClient) request(ctx context.Context, cfg *Config, article string) outcome {
	start := time.Now()
	var (
		resp *http.Response
		err  error
	)
	if cfg.Keywords {
		resp, err = c.Post(ctx, "/keywords", keywordsRequest{
			Article:    article,
			Depth:      cfg.Depth,
			IgnoreList: cfg.IgnoreList,
			Percentile: cfg.Percentile,
		})
	} else {
		resp, err = c.Get(ctx, "/word-frequency", url.Values{
			"article": {article},
			"depth":   {strconv.Itoa(cfg.Depth)},
		})
	}
	if err != nil {
		return outcome{latency: time.Since(start), err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	res := outcome{status: resp.StatusCode, latency: time.Since(start), err: err}
	if err != nil || resp.StatusCode != http.StatusOK {
		return res
	}
	var words map[string]int
	if err := json.Unmarshal(body, &words); err != nil {
		res.err = fmt.Errorf("decode response: %w", err)
		return res
	}
	res.words = len(words)
	return res
}
