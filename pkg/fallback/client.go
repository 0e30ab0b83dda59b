// Package fallback implements the remote crawl client used when direct
// extraction is unavailable: rate-limited, retrying, cached page
// fetches plus keyword heuristics that turn returned text into coarse
// setting signals.
package fallback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"

	"github.com/privscope/privscope/pkg/scan"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultWaitCeiling  = 60 * time.Second
	defaultRetryMax     = 4
	defaultRetryBase    = 1 * time.Second
	defaultRateLimit    = 30
	defaultCacheTTL     = 5 * time.Minute
)

// Config controls a crawl client instance.
type Config struct {
	Endpoint string
	APIKey   string

	RequestsPerMinute int
	RetryMax          int
	RetryBase         time.Duration
	CacheTTL          time.Duration
	PollInterval      time.Duration
	WaitCeiling       time.Duration

	HTTPClient *http.Client
}

// FetchResult is a completed crawl of one URL.
type FetchResult struct {
	URL      string
	Markdown string
	HTML     string
	Title    string
	Cached   bool
}

// Client talks to the crawl API. Safe for use by concurrent scans; the
// rate window and cache are shared and internally locked.
type Client struct {
	endpoint string
	apiKey   string

	http    *retryablehttp.Client
	limiter *windowLimiter
	cache   *resultCache

	pollInterval time.Duration
	waitCeiling  time.Duration
}

// NewClient builds a crawl client. Retries cover HTTP 429 and 5xx with
// a server-supplied Retry-After honored when present, otherwise
// exponential backoff from the base delay with random jitter up to half
// the base.
func NewClient(cfg Config) *Client {
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = defaultRateLimit
	}
	if cfg.RetryMax <= 0 {
		cfg.RetryMax = defaultRetryMax
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = defaultRetryBase
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.WaitCeiling <= 0 {
		cfg.WaitCeiling = defaultWaitCeiling
	}

	rc := retryablehttp.NewClient()
	rc.Logger = log.New(io.Discard, "", 0)
	rc.RetryMax = cfg.RetryMax
	rc.RetryWaitMin = cfg.RetryBase
	rc.RetryWaitMax = cfg.RetryBase * 16
	rc.CheckRetry = checkRetry
	rc.Backoff = backoffWithJitter(cfg.RetryBase)
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if cfg.HTTPClient != nil {
		rc.HTTPClient = cfg.HTTPClient
	}

	return &Client{
		endpoint:     strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:       cfg.APIKey,
		http:         rc,
		limiter:      newWindowLimiter(cfg.RequestsPerMinute, time.Minute),
		cache:        newResultCache(cfg.CacheTTL),
		pollInterval: cfg.PollInterval,
		waitCeiling:  cfg.WaitCeiling,
	}
}

// checkRetry retries transport errors, 429 and 5xx. Anything else is
// final and surfaced immediately.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, nil
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return true, nil
	}
	return false, nil
}

// backoffWithJitter honors Retry-After when the server sends one, in
// either its delay-seconds or HTTP-date form, else doubles from base
// per attempt and adds random jitter up to base/2.
func backoffWithJitter(base time.Duration) retryablehttp.Backoff {
	return func(min, max time.Duration, attemptNum int, resp *http.Response) time.Duration {
		if resp != nil {
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
					return time.Duration(secs) * time.Second
				}
				if at, err := http.ParseTime(ra); err == nil {
					if d := time.Until(at); d > 0 {
						return d
					}
				}
			}
		}
		d := base << uint(attemptNum)
		if d > max {
			d = max
		}
		jitter := time.Duration(rand.Int63n(int64(base/2) + 1))
		return d + jitter
	}
}

// Fetch crawls a URL with the requested output formats, waiting up to
// waitFor for dynamic content. Cached results inside the TTL window are
// returned without touching the network.
func (c *Client) Fetch(ctx context.Context, url string, formats []string, waitFor time.Duration) (*FetchResult, error) {
	if len(formats) == 0 {
		formats = []string{"markdown"}
	}
	key := cacheKey(url, formats)
	if res, ok := c.cache.get(key); ok {
		cached := *res
		cached.Cached = true
		return &cached, nil
	}

	if err := c.limiter.Acquire(ctx); err != nil {
		return nil, scan.NewError(scan.CodeRateLimit, "rate limit wait aborted", true).WithCause(err)
	}

	body := map[string]any{"url": url, "formats": formats}
	if waitFor > 0 {
		body["waitFor"] = waitFor.Milliseconds()
	}
	raw, err := c.post(ctx, "/v1/scrape", body)
	if err != nil {
		return nil, err
	}

	// Synchronous responses carry data directly; asynchronous ones hand
	// back a job id to poll.
	if gjson.GetBytes(raw, "data").Exists() {
		res := parseResult(url, gjson.GetBytes(raw, "data"))
		c.cache.put(key, res)
		return res, nil
	}
	jobID := gjson.GetBytes(raw, "id").String()
	if jobID == "" {
		return nil, scan.NewError(scan.CodeParsing, "crawl API returned neither data nor a job id", true).
			WithDetail("body", truncate(string(raw), 512))
	}

	res, err := c.pollJob(ctx, url, jobID)
	if err != nil {
		return nil, err
	}
	c.cache.put(key, res)
	return res, nil
}

// pollJob polls an asynchronous crawl job at a fixed interval until it
// completes, fails, or the overall wait ceiling passes.
func (c *Client) pollJob(ctx context.Context, url, jobID string) (*FetchResult, error) {
	deadline := time.Now().Add(c.waitCeiling)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, scan.NewError(scan.CodeScraping, "crawl canceled while polling", true).WithCause(ctx.Err())
		case <-ticker.C:
		}
		if time.Now().After(deadline) {
			return nil, scan.NewError(scan.CodeScraping, fmt.Sprintf("crawl job %s did not complete within %s", jobID, c.waitCeiling), true)
		}

		raw, err := c.get(ctx, "/v1/scrape/"+jobID)
		if err != nil {
			return nil, err
		}
		switch status := gjson.GetBytes(raw, "status").String(); status {
		case "completed":
			return parseResult(url, gjson.GetBytes(raw, "data")), nil
		case "failed":
			return nil, scan.NewError(scan.CodeScraping, fmt.Sprintf("crawl job %s failed", jobID), true).
				WithDetail("error", gjson.GetBytes(raw, "error").String())
		default:
			// pending/scraping: keep polling
		}
	}
}

func parseResult(url string, data gjson.Result) *FetchResult {
	res := &FetchResult{
		URL:      url,
		Markdown: data.Get("markdown").String(),
		HTML:     data.Get("html").String(),
		Title:    data.Get("metadata.title").String(),
	}
	if res.Title == "" && res.HTML != "" {
		res.Title = htmlTitle(res.HTML)
	}
	return res
}

func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, scan.Wrap(err)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(b))
	if err != nil {
		return nil, scan.Wrap(err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+path, nil)
	if err != nil {
		return nil, scan.Wrap(err)
	}
	return c.do(req)
}

func (c *Client) do(req *retryablehttp.Request) ([]byte, error) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		// Retry budget exhausted: one aggregated error naming the last
		// underlying cause.
		code := scan.CodeNetwork
		if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
			code = scan.CodeRateLimit
		}
		if resp != nil {
			resp.Body.Close()
		}
		return nil, scan.NewError(code, fmt.Sprintf("crawl request failed after %d retries", c.http.RetryMax), true).WithCause(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, scan.NewError(scan.CodeNetwork, "reading crawl response", true).WithCause(err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		// Still rate limited after the whole retry budget.
		return nil, scan.NewError(scan.CodeRateLimit, fmt.Sprintf("crawl API still rate limiting after %d retries", c.http.RetryMax), true).
			WithDetail("body", truncate(string(body), 512))
	case resp.StatusCode >= 500:
		return nil, scan.NewError(scan.CodeNetwork, fmt.Sprintf("crawl API returned HTTP %d after %d retries", resp.StatusCode, c.http.RetryMax), true).
			WithDetail("body", truncate(string(body), 512))
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, scan.NewError(scan.CodeAuthentication, "crawl API rejected credentials", false).
			WithDetail("body", truncate(string(body), 512))
	case resp.StatusCode >= 400:
		// Non-retryable HTTP error: fail immediately with the body as
		// error detail.
		return nil, scan.NewError(scan.CodeNetwork, fmt.Sprintf("crawl API returned HTTP %d", resp.StatusCode), false).
			WithDetail("body", truncate(string(body), 512))
	}
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
