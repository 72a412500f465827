// Package wiki talks to the MediaWiki Action API.
package wiki

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/okian/msci/internal/domain/counting"
	"github.com/okian/msci/internal/domain/types"
	"github.com/okian/msci/pkg/logger"
	"github.com/okian/msci/pkg/metrics"
	"golang.org/x/time/rate"
)

// Default client configuration constants.
const (
	DefaultAPIURL     = "https://en.wikipedia.org/w/api.php"
	defaultUserAgent  = "MSCI-test/1.0 (contact@example.com)"
	defaultTimeout    = 3 * time.Second
	defaultMaxRetries = 5
	backoffBase       = 2 * time.Second
	backoffFactor     = 3
	maxBodyBytes      = 32 << 20
)

// Client fetches page extracts and links. It is safe for concurrent use.
type Client struct {
	apiURL      string
	userAgent   string
	accessToken string
	timeout     time.Duration
	maxRetries  int
	httpClient  *http.Client
	limiter     *rate.Limiter
	sleep       Sleeper
	logger      logger.Logger
}

// NewClient creates a client for the API at apiURL.
func NewClient(apiURL string, opts ...Option) *Client {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	c := &Client{
		apiURL:     apiURL,
		userAgent:  defaultUserAgent,
		timeout:    defaultTimeout,
		maxRetries: defaultMaxRetries,
		httpClient: &http.Client{},
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.Get().Named("wiki")
	}
	return c
}

type page struct {
	Title   string `json:"title"`
	Extract string `json:"extract"`
	Links   []struct {
		Title string `json:"title"`
	} `json:"links"`
}

type queryResponse struct {
	Query struct {
		Pages map[string]page `json:"pages"`
	} `json:"query"`
	Continue map[string]json.RawMessage `json:"continue"`
}

// Words returns the summed word counts of the plain-text extracts of titles.
func (c *Client) Words(ctx context.Context, titles []string) (types.WordCounts, error) {
	c.logger.Debug(ctx, "getting words", logger.String("titles", strings.Join(titles, ",")))
	params := url.Values{
		"action":      {"query"},
		"format":      {"json"},
		"prop":        {"extracts"},
		"explaintext": {"True"},
		"exlimit":     {"max"},
		"titles":      {strings.Join(titles, "|")},
	}
	all := make(types.WordCounts)
	err := c.paginate(ctx, params, func(p page) {
		all.Merge(counting.Count(p.Extract))
	})
	if err != nil {
		return nil, err
	}
	c.logger.Debug(ctx, "done getting words", logger.String("titles", strings.Join(titles, ",")),
		logger.Int("distinct", len(all)))
	return all, nil
}

// Links returns the distinct main-namespace link targets of titles in
// first-seen order.
func (c *Client) Links(ctx context.Context, titles []string) ([]string, error) {
	c.logger.Debug(ctx, "getting links", logger.String("titles", strings.Join(titles, ",")))
	params := url.Values{
		"action":      {"query"},
		"format":      {"json"},
		"prop":        {"links"},
		"pllimit":     {"max"},
		"plnamespace": {"0"},
		"titles":      {strings.Join(titles, "|")},
	}
	seen := make(map[string]struct{})
	var links []string
	err := c.paginate(ctx, params, func(p page) {
		for _, l := range p.Links {
			if l.Title == "" {
				continue
			}
			if _, ok := seen[l.Title]; ok {
				continue
			}
			seen[l.Title] = struct{}{}
			links = append(links, l.Title)
		}
	})
	if err != nil {
		return nil, err
	}
	c.logger.Debug(ctx, "done getting links", logger.String("titles", strings.Join(titles, ",")),
		logger.Int("links", len(links)))
	return links, nil
}

// paginate follows "continue" blocks, merging them into params until the
// API reports no more results.
func (c *Client) paginate(ctx context.Context, params url.Values, visit func(page)) error {
	for {
		resp, err := c.get(ctx, params)
		if err != nil {
			return err
		}
		for _, p := range resp.Query.Pages {
			visit(p)
		}
		if len(resp.Continue) == 0 {
			return nil
		}
		for k, raw := range resp.Continue {
			params.Set(k, continueValue(raw))
		}
	}
}

func continueValue(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// get performs one logical request with retries.
// HTTP 429 sleeps Retry-After+1 seconds when present, otherwise 2*3^attempt
// seconds. Timeouts sleep 2*3^attempt seconds. Other non-200 statuses fail
// immediately.
func (c *Client) get(ctx context.Context, params url.Values) (*queryResponse, error) {
	prop := params.Get("prop")
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("wiki rate limiter: %w", err)
			}
		}

		start := time.Now()
		resp, status, retryAfter, err := c.do(ctx, params)
		latency := time.Since(start)

		var wait time.Duration
		switch {
		case err != nil && isTimeout(err) && ctx.Err() == nil:
			metrics.RecordWikiRequest(prop, "timeout", latency)
			metrics.RecordWikiRetry("timeout")
			wait = backoff(attempt)
			c.logger.Warn(ctx, "timeout", logger.Int("attempt", attempt))
		case err != nil:
			metrics.RecordWikiRequest(prop, "error", latency)
			metrics.RecordErrorByComponent("wiki", "transport")
			return nil, err
		case status == http.StatusOK:
			metrics.RecordWikiRequest(prop, "200", latency)
			return resp, nil
		case status == http.StatusTooManyRequests:
			metrics.RecordWikiRequest(prop, "429", latency)
			metrics.RecordWikiRetry("rate_limited")
			if secs, convErr := strconv.Atoi(strings.TrimSpace(retryAfter)); convErr == nil {
				wait = time.Duration(secs+1) * time.Second
				c.logger.Warn(ctx, "HTTP 429 - sleeping (retry-after)", logger.Duration("sleep", wait))
			} else {
				wait = backoff(attempt)
				c.logger.Warn(ctx, "HTTP 429 - sleeping (fallback)", logger.Duration("sleep", wait))
			}
		default:
			metrics.RecordWikiRequest(prop, strconv.Itoa(status), latency)
			metrics.RecordErrorByComponent("wiki", "http_status")
			c.logger.Warn(ctx, "unexpected upstream status", logger.Int("status", status))
			return nil, statusError(status)
		}

		if attempt == c.maxRetries {
			break
		}
		if err := c.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
	c.logger.Warn(ctx, "retries exhausted", logger.Int("attempts", c.maxRetries))
	return nil, exhaustedError()
}

// do sends a single attempt. A decoded body is returned only for HTTP 200.
func (c *Client) do(ctx context.Context, params url.Values) (*queryResponse, int, string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u, err := url.Parse(c.apiURL)
	if err != nil {
		return nil, 0, "", fmt.Errorf("parse wiki api url: %w", err)
	}
	q := u.Query()
	for k, v := range params {
		q[k] = v
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return nil, 0, "", fmt.Errorf("build wiki request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, "", err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		return nil, res.StatusCode, res.Header.Get("Retry-After"), nil
	}
	var out queryResponse
	if err := json.NewDecoder(io.LimitReader(res.Body, maxBodyBytes)).Decode(&out); err != nil {
		if isTimeout(err) {
			return nil, 0, "", err
		}
		return nil, res.StatusCode, "", fmt.Errorf("decode wiki response: %w", err)
	}
	return &out, res.StatusCode, "", nil
}

func backoff(attempt int) time.Duration {
	return backoffBase * time.Duration(math.Pow(backoffFactor, float64(attempt)))
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
