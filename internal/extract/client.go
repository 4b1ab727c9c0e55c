// Package extract calls the claim extraction service.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/factaudit/internal/cache"
	"github.com/ppiankov/factaudit/internal/model"
	"github.com/ppiankov/factaudit/internal/util"
	"go.uber.org/zap"
)

// ErrEmptyText is returned when there is nothing to extract claims from
var ErrEmptyText = errors.New("document text is empty")

// maxResponseBytes bounds the size of an extraction response
const maxResponseBytes = 10 << 20

// RateLimiter gates outbound requests per endpoint
type RateLimiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Error reports that the extraction service answered with a non-success status
type Error struct {
	StatusCode int
	Body       string // Start of the response body, for diagnostics
}

func (e *Error) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("extraction failed: unexpected status %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("extraction failed: unexpected status %d", e.StatusCode)
}

// Client extracts claims through the extraction endpoint
type Client struct {
	httpClient *http.Client
	endpoint   string
	userAgent  string
	limiter    RateLimiter
	cache      cache.Cache
	cacheTTL   time.Duration
	logger     *zap.Logger
}

// Option configures a Client
type Option func(*Client)

// WithCache caches successful responses keyed by the document text
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(cl *Client) {
		cl.cache = c
		cl.cacheTTL = ttl
	}
}

// WithRateLimiter makes every outbound call wait on limiter
func WithRateLimiter(limiter RateLimiter) Option {
	return func(cl *Client) {
		cl.limiter = limiter
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(cl *Client) {
		cl.logger = logger
	}
}

// NewClient creates an extraction client
func NewClient(cfg model.EndpointConfig, httpCfg model.HTTPConfig, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy: util.NewProxyFunc(httpCfg.HTTPProxy, httpCfg.HTTPSProxy, httpCfg.NoProxy),
			},
		},
		endpoint:  cfg.URL(),
		userAgent: httpCfg.UserAgent,
		logger:    zap.NewNop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

type extractRequest struct {
	Text string `json:"text"`
}

type extractResponse struct {
	Claims []model.Claim `json:"claims"`
}

// Extract returns the claims of text in document order. Zero claims is not an error.
func (c *Client) Extract(ctx context.Context, title, text string) ([]model.Claim, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	key := cache.CacheKey("extract", c.endpoint, text)
	if c.cache != nil {
		var cached extractResponse
		if cache.GetJSON(c.cache, key, &cached) {
			c.logger.Debug("extraction cache hit", zap.String("title", title), zap.Int("claims", len(cached.Claims)))
			return cached.Claims, nil
		}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, c.endpoint); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	body, err := json.Marshal(extractRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, &Error{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	var parsed extractResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	claims := normalize(parsed.Claims)
	c.logger.Debug("claims extracted",
		zap.String("title", title),
		zap.Int("claims", len(claims)),
		zap.Duration("elapsed", time.Since(started)))

	if c.cache != nil {
		if err := cache.SetJSON(c.cache, key, extractResponse{Claims: claims}, c.cacheTTL); err != nil {
			c.logger.Warn("failed to cache extraction", zap.Error(err))
		}
	}

	return claims, nil
}

// normalize drops empty claims, assigns missing ids and keeps the first of any
// duplicate id so ids stay unique. Order is preserved.
func normalize(claims []model.Claim) []model.Claim {
	out := make([]model.Claim, 0, len(claims))
	seen := make(map[string]bool, len(claims))

	for i, claim := range claims {
		if strings.TrimSpace(claim.Text()) == "" {
			continue
		}
		if claim.ID == "" {
			claim.ID = fmt.Sprintf("claim-%d", i+1)
		}
		if seen[claim.ID] {
			continue
		}
		seen[claim.ID] = true
		out = append(out, claim)
	}

	return out
}
