package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"tweetcrawler/pkg/auth"
	"tweetcrawler/pkg/config"
	errs "tweetcrawler/pkg/errors"
	"tweetcrawler/pkg/logger"
	"tweetcrawler/pkg/query"
	"tweetcrawler/pkg/ratelimit"
)

// minResultsPerCall is the smallest page size the endpoint accepts
const minResultsPerCall = 10

// Client retrieves all pages of a day's search
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	endpoint   string
	tokens     TokenSource
	limiter    ratelimit.Limiter
	recordMode string
	logger     logger.Logger
	now        func() time.Time
}

// Option customizes a Client
type Option func(*Client)

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLimiter replaces the request pacing limiter
func WithLimiter(l ratelimit.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithTokenSource replaces the bearer token source
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// NewClient creates a search client. The endpoint in creds, when set, takes
// precedence over cfg.API.Endpoint.
func NewClient(cfg *config.Config, creds *auth.Credentials, log logger.Logger, opts ...Option) (*Client, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	endpoint := cfg.API.Endpoint
	if creds != nil && creds.Endpoint != "" {
		endpoint = creds.Endpoint
	}
	if endpoint == "" {
		return nil, errs.New(errs.ErrorTypeConfig, 0, "search endpoint is not configured")
	}

	c := &Client{
		httpClient: &http.Client{Timeout: cfg.API.Timeout},
		headers: map[string]string{
			"User-Agent": cfg.API.UserAgent,
			"Accept":     "application/json",
		},
		endpoint:   endpoint,
		limiter:    newLimiter(cfg.RateLimit),
		recordMode: cfg.Search.RecordMode,
		logger:     log,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.tokens == nil {
		ts, err := NewTokenSource(creds, cfg.API.TokenURL, c.httpClient)
		if err != nil {
			return nil, err
		}
		c.tokens = ts
	}

	return c, nil
}

// newLimiter combines the request window with the minimum spacing between
// requests. Zero values disable the respective limit.
func newLimiter(cfg config.RateLimitConfig) ratelimit.Limiter {
	var m ratelimit.Multi
	if cfg.RequestsPerWindow > 0 && cfg.Window > 0 {
		m = append(m, ratelimit.NewSlidingWindow(cfg.RequestsPerWindow, cfg.Window))
	}
	if cfg.RequestDelay > 0 {
		m = append(m, ratelimit.NewPacer(cfg.RequestDelay))
	}
	if len(m) == 0 {
		return ratelimit.Unlimited{}
	}
	return m
}

// Endpoint returns the search URL requests are sent to
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Fetch retrieves every page of spec's window, following next_token until
// the last page or until spec.MaxResults tweets or spec.MaxPages pages have
// been collected. Any failure discards the pages gathered so far.
func (c *Client) Fetch(ctx context.Context, spec query.Spec) (*Batch, error) {
	batch := &Batch{Day: spec.Day()}
	nextToken := ""
	seen := make(map[string]bool)

	for {
		if spec.MaxPages > 0 && batch.Pages >= spec.MaxPages {
			break
		}

		req := spec
		remaining := 0
		if spec.MaxResults > 0 {
			remaining = spec.MaxResults - batch.Tweets
			if remaining < req.ResultsPerCall && remaining >= minResultsPerCall {
				req.ResultsPerCall = remaining
			}
		}

		page, raw, err := c.fetchPage(ctx, req, nextToken)
		if err != nil {
			return nil, err
		}
		batch.Pages++
		c.collect(batch, page, raw, remaining)

		c.logger.DebugWithFields("fetched page", map[string]interface{}{
			"day":          batch.Day,
			"page":         batch.Pages,
			"result_count": page.Meta.ResultCount,
			"tweets":       batch.Tweets,
		})

		if spec.MaxResults > 0 && batch.Tweets >= spec.MaxResults {
			break
		}
		if page.Meta.NextToken == "" {
			break
		}
		// A token the stream already handed out would page forever
		if seen[page.Meta.NextToken] {
			return nil, errs.New(errs.ErrorTypeStream, 0,
				fmt.Sprintf("next_token %q repeated after page %d", page.Meta.NextToken, batch.Pages))
		}
		seen[page.Meta.NextToken] = true
		nextToken = page.Meta.NextToken
	}

	return batch, nil
}

// collect adds a page to the batch according to the record mode. limit is
// the number of tweets still wanted (0 = all).
func (c *Client) collect(batch *Batch, page *Page, raw []byte, limit int) {
	if c.recordMode != config.RecordModeTweet {
		batch.Records = append(batch.Records, json.RawMessage(raw))
		batch.Tweets += len(page.Data)
		return
	}

	data := page.Data
	if limit > 0 && len(data) > limit {
		data = data[:limit]
	}
	batch.Records = append(batch.Records, data...)
	batch.Tweets += len(data)

	if len(page.Includes) > 0 && string(page.Includes) != "null" {
		batch.Records = append(batch.Records, page.Includes)
	}
}

// fetchPage performs one paced, authenticated request and decodes the page
func (c *Client) fetchPage(ctx context.Context, spec query.Spec, nextToken string) (*Page, []byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, nil, err
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, nil, err
	}

	url := c.endpoint + "?" + spec.Params(nextToken).Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, errs.Wrap(errs.ErrorTypeConfig, 0, "failed to create request", err)
	}
	for key, value := range c.headers {
		if value != "" {
			req.Header.Set(key, value)
		}
	}
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      url,
			"error":    err.Error(),
			"duration": time.Since(start),
		})
		return nil, nil, errs.Wrap(errs.ErrorTypeNetwork, 0, "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	logger.LogRequest(c.logger, req.Method, url, resp.StatusCode, time.Since(start))
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		return nil, nil, errs.Wrap(errs.ErrorTypeStream, resp.StatusCode, "failed to read response body", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, nil, c.statusError(resp, body)
	}

	var page Page
	if err := json.Unmarshal(body, &page); err != nil {
		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          url,
			"status":       resp.StatusCode,
			"error":        err.Error(),
			"body_preview": preview(body),
		})
		return nil, nil, errs.Wrap(errs.ErrorTypeStream, resp.StatusCode, "failed to parse response", err)
	}
	if page.Meta == nil {
		msg := "response has no meta section"
		if d := describe(body); d != "" {
			msg += ": " + d
		}
		return nil, nil, errs.New(errs.ErrorTypeStream, resp.StatusCode, msg)
	}

	return &page, body, nil
}

// statusError classifies a non-200 response
func (c *Client) statusError(resp *http.Response, body []byte) error {
	code := resp.StatusCode
	msg := describe(body)
	if msg == "" {
		msg = http.StatusText(code)
	}

	apiErr := errs.New(errs.TypeForStatus(code), code, msg)

	switch apiErr.Type {
	case errs.ErrorTypeRateLimit:
		apiErr.RetryAfter = c.retryAfter(resp.Header)
		if p, ok := c.limiter.(ratelimit.Pauser); ok && apiErr.RetryAfter > 0 {
			p.PauseUntil(c.now().Add(apiErr.RetryAfter))
		}
		logger.LogRateLimit(c.logger, c.endpoint, apiErr.RetryAfter)
	case errs.ErrorTypeAuth:
		if a, ok := c.tokens.(*AppOnlyToken); ok && code == http.StatusUnauthorized {
			a.Invalidate()
		}
	}

	return apiErr
}

// retryAfter reads the server's advertised wait from x-rate-limit-reset
// (epoch seconds) or Retry-After (seconds or HTTP date)
func (c *Client) retryAfter(h http.Header) time.Duration {
	now := c.now()

	if v := h.Get("x-rate-limit-reset"); v != "" {
		if epoch, err := strconv.ParseInt(v, 10, 64); err == nil {
			if d := time.Unix(epoch, 0).Sub(now); d > 0 {
				return d
			}
			return 0
		}
	}

	if v := h.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
		if t, err := http.ParseTime(v); err == nil {
			if d := t.Sub(now); d > 0 {
				return d
			}
		}
	}

	return 0
}

func preview(body []byte) string {
	s := string(body)
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
