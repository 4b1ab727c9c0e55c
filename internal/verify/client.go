// Package verify consumes the streaming verification endpoint and folds its events
// into a VerificationRecord per claim.
package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ppiankov/factaudit/internal/model"
	"github.com/ppiankov/factaudit/internal/stream"
	"github.com/ppiankov/factaudit/internal/util"
	"go.uber.org/zap"
)

// RateLimiter gates outbound requests per endpoint
type RateLimiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Tierer assigns authority tiers to evidence that arrived without one
type Tierer interface {
	AssignTiers(items []model.EvidenceItem)
}

// Error reports that a claim could not be verified at all
type Error struct {
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("verification failed: unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("verification failed: %v", e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// errNoBody is returned when the endpoint answers without a stream
var errNoBody = errors.New("response has no body")

// Client verifies claims against the streaming verification endpoint
type Client struct {
	httpClient *http.Client
	endpoint   string
	marker     string
	chunkSize  int
	userAgent  string
	limiter    RateLimiter
	tierer     Tierer
	logger     *zap.Logger
}

// NewClient creates a verification client. limiter and tierer may be nil.
func NewClient(cfg model.VerifierConfig, httpCfg model.HTTPConfig, limiter RateLimiter, tierer Tierer, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	marker := cfg.EventMarker
	if marker == "" {
		marker = "data: "
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy: util.NewProxyFunc(httpCfg.HTTPProxy, httpCfg.HTTPSProxy, httpCfg.NoProxy),
			},
		},
		endpoint:  cfg.URL(),
		marker:    marker,
		chunkSize: cfg.ChunkSize,
		userAgent: httpCfg.UserAgent,
		limiter:   limiter,
		tierer:    tierer,
		logger:    logger,
	}
}

type verifyRequest struct {
	Claim string `json:"claim"`
}

// Verify streams the verification of one claim and returns the folded record.
// A failure before the stream starts returns a nil record and *Error; the caller is
// expected to carry on with the next claim. If the stream breaks mid-way the events
// received so far are returned as the record.
func (c *Client) Verify(ctx context.Context, claimText string) (*model.VerificationRecord, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, c.endpoint); err != nil {
			return nil, &Error{Err: fmt.Errorf("rate limit: %w", err)}
		}
	}

	body, err := json.Marshal(verifyRequest{Claim: claimText})
	if err != nil {
		return nil, &Error{Err: fmt.Errorf("marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream, application/x-ndjson, text/plain")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Err: fmt.Errorf("execute request: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{StatusCode: resp.StatusCode}
	}
	if resp.Body == http.NoBody {
		return nil, &Error{Err: errNoBody}
	}

	rec, stats, err := c.Consume(ctx, resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &Error{Err: ctx.Err()}
		}
		c.logger.Warn("verification stream interrupted",
			zap.Int("events", stats.Applied),
			zap.Error(err))
	}

	c.logger.Debug("verification stream consumed",
		zap.Int("events", stats.Applied),
		zap.Int("skipped_lines", stats.Skipped),
		zap.Int("malformed_events", stats.Malformed),
		zap.Int("evidence", len(rec.Evidence)))

	return rec, nil
}

// ConsumeStats counts what happened to the lines of one stream
type ConsumeStats struct {
	Applied   int // Events folded into the record
	Skipped   int // Lines without the marker or with an unparseable envelope
	Malformed int // Known events whose data could not be decoded
	Ignored   int // Events of a type this version does not know
}

// Consume folds every event of the response body into a new record.
// The returned record is always non-nil; err reports a broken stream.
func (c *Client) Consume(ctx context.Context, r io.Reader) (*model.VerificationRecord, ConsumeStats, error) {
	rec := &model.VerificationRecord{}
	var stats ConsumeStats

	err := stream.ScanLines(ctx, r, c.chunkSize, func(line string) error {
		ev, ok := ParseEvent(line, c.marker)
		if !ok {
			stats.Skipped++
			return nil
		}
		if !Known(ev.Type) {
			stats.Ignored++
			return nil
		}
		if err := Apply(rec, ev); err != nil {
			stats.Malformed++
			c.logger.Debug("skipping malformed event", zap.String("type", string(ev.Type)), zap.Error(err))
			return nil
		}
		stats.Applied++
		return nil
	})

	if c.tierer != nil {
		c.tierer.AssignTiers(rec.Evidence)
	}

	return rec, stats, err
}
