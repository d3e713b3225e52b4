package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// Fetcher is the transport contract the pipeline consumes: bytes for a URL,
// with caching and politeness behind the interface.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// TransportError wraps a network or upstream failure. It propagates to the
// caller; the pipeline does not retry beyond what the client itself does.
type TransportError struct {
	URL    string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Options configures the archive client. Zero values fall back to the
// defaults the archive host tolerates.
type Options struct {
	CacheDir           string
	RateLimitPerMinute int
	UserAgent          string
	Timeout            time.Duration
	Retries            int
}

const (
	defaultRatePerMinute = 20
	defaultTimeout       = 30 * time.Second
	defaultRetries       = 3
	defaultUserAgent     = "jpinfect-archive-client/1.0"
)

// Client downloads archive files with a per-URL disk cache, conditional
// re-fetch via ETag/Last-Modified, and a fixed request interval. Safe for
// concurrent use; the interval serializes outbound requests.
type Client struct {
	http      *http.Client
	cache     *diskCache
	userAgent string
	retries   int

	mu       sync.Mutex
	interval time.Duration
	last     time.Time
}

// NewClient builds a client and creates the cache directory if needed.
func NewClient(opts Options) (*Client, error) {
	if opts.RateLimitPerMinute <= 0 {
		opts.RateLimitPerMinute = defaultRatePerMinute
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Retries <= 0 {
		opts.Retries = defaultRetries
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	cache, err := newDiskCache(opts.CacheDir)
	if err != nil {
		return nil, err
	}
	return &Client{
		http:      &http.Client{Timeout: opts.Timeout},
		cache:     cache,
		userAgent: opts.UserAgent,
		retries:   opts.Retries,
		interval:  time.Minute / time.Duration(opts.RateLimitPerMinute),
	}, nil
}

// Fetch returns the body for url, serving from cache when the upstream
// responds 304 Not Modified.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	cached, meta, _ := c.cache.load(url)

	var lastErr error
	for attempt := 0; attempt < c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}
		if err := c.wait(ctx); err != nil {
			return nil, err
		}

		body, err := c.fetchOnce(ctx, url, cached, meta)
		if err == nil {
			return body, nil
		}
		lastErr = err
		var te *TransportError
		// Client errors will not improve on retry.
		if errors.As(err, &te) && te.Status >= 400 && te.Status < 500 {
			break
		}
	}
	return nil, lastErr
}

func (c *Client) fetchOnce(ctx context.Context, url string, cached []byte, meta *cacheMeta) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)
	if cached != nil && meta != nil {
		if meta.ETag != "" {
			req.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", meta.LastModified)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified && cached != nil:
		return cached, nil
	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, &TransportError{URL: url, Err: err}
		}
		if err := c.cache.store(url, body, &cacheMeta{
			URL:          url,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
			FetchedAt:    time.Now().UTC(),
		}); err != nil {
			return nil, err
		}
		return body, nil
	}
	return nil, &TransportError{URL: url, Status: resp.StatusCode}
}

// wait enforces the request interval, honoring context cancellation.
func (c *Client) wait(ctx context.Context) error {
	c.mu.Lock()
	now := time.Now()
	next := c.last.Add(c.interval)
	if next.Before(now) {
		next = now
	}
	c.last = next
	c.mu.Unlock()

	d := time.Until(next)
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
