// Package exchange hosts the market data source connectors: the resilient
// multi-mirror HTTP client, the symbol universe loader, and the kline fetcher.
package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/minhchau1982/macd-screener-bot/internal/metrics"
)

// DataSourceError is returned once every mirror has been exhausted for a call,
// or when a mirror answers with a non-retryable client error. It carries the
// last error observed; callers inside the per-symbol loop must treat it as a
// per-call failure, not a process-fatal one.
type DataSourceError struct {
	Path string
	Err  error
}

func (e *DataSourceError) Error() string { return fmt.Sprintf("data source %s: %v", e.Path, e.Err) }

func (e *DataSourceError) Unwrap() error { return e.Err }

// transientError marks failures worth retrying on another mirror: network-level
// errors and blocking/overload HTTP statuses.
type transientError struct{ err error }

func (e *transientError) Error() string { return e.err.Error() }

func (e *transientError) Unwrap() error { return e.err }

const (
	defaultTimeout     = 20 * time.Second
	defaultBackoffBase = 500 * time.Millisecond
	defaultBackoffMax  = 3 * time.Second
	backoffJitter      = 0.2
	defaultRateLimit   = 10.0
	defaultRateBurst   = 20
)

// Client fetches JSON resources from a set of interchangeable mirrors of the
// same API. Mirror order is shuffled per call, blocked or failing mirrors are
// skipped after a capped backoff, and requests are paced through a shared token
// bucket. Safe to reuse across a whole scan.
type Client struct {
	log         zerolog.Logger
	http        *http.Client
	mirrors     []string
	limiter     *rate.Limiter
	breakers    map[string]*gobreaker.CircuitBreaker
	backoffBase time.Duration
	backoffMax  time.Duration
}

// Option configures Client construction parameters.
type Option func(*Client)

// WithTimeout overrides the per-attempt HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithBackoff overrides the base and ceiling of the inter-mirror backoff.
func WithBackoff(base, max time.Duration) Option {
	return func(c *Client) {
		if base > 0 {
			c.backoffBase = base
		}
		if max > 0 {
			c.backoffMax = max
		}
	}
}

// WithRateLimit overrides the request pacing applied across all mirrors.
func WithRateLimit(perSec float64, burst int) Option {
	return func(c *Client) {
		if perSec > 0 && burst > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSec), burst)
		}
	}
}

// NewClient builds a client over the given mirror base URLs (scheme + host).
func NewClient(log zerolog.Logger, mirrors []string, opts ...Option) *Client {
	c := &Client{
		log:         log,
		http:        &http.Client{Timeout: defaultTimeout},
		mirrors:     append([]string(nil), mirrors...),
		limiter:     rate.NewLimiter(rate.Limit(defaultRateLimit), defaultRateBurst),
		backoffBase: defaultBackoffBase,
		backoffMax:  defaultBackoffMax,
		breakers:    make(map[string]*gobreaker.CircuitBreaker, len(mirrors)),
	}
	for _, opt := range opts {
		opt(c)
	}
	for _, mirror := range c.mirrors {
		c.breakers[mirror] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    mirrorLabel(mirror),
			Timeout: 30 * time.Second,
		})
	}
	return c
}

// Get issues a GET for path+query against the mirror set and decodes the JSON
// body into out. Mirrors are tried in a per-call random order; 429/403/451, any
// 5xx, and network errors move on to the next mirror after a backoff sleep.
// Any other 4xx fails the call immediately. Exhausting all mirrors yields a
// DataSourceError wrapping the last error seen.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	if len(c.mirrors) == 0 {
		return &DataSourceError{Path: path, Err: errors.New("no mirrors configured")}
	}
	var lastErr error
	for attempt, idx := range rand.Perm(len(c.mirrors)) {
		if attempt > 0 {
			if err := c.sleep(ctx, c.backoffFor(attempt)); err != nil {
				return &DataSourceError{Path: path, Err: err}
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return &DataSourceError{Path: path, Err: err}
		}
		mirror := c.mirrors[idx]
		body, err := c.attempt(ctx, mirror, path, query)
		if err == nil {
			if err := json.Unmarshal(body, out); err != nil {
				return &DataSourceError{Path: path, Err: fmt.Errorf("decode response: %w", err)}
			}
			return nil
		}
		if !retryable(err) {
			return &DataSourceError{Path: path, Err: err}
		}
		lastErr = err
		c.log.Warn().Err(err).Str("mirror", mirrorLabel(mirror)).Str("path", path).Msg("mirror attempt failed")
	}
	return &DataSourceError{Path: path, Err: lastErr}
}

func (c *Client) attempt(ctx context.Context, mirror, path string, query url.Values) ([]byte, error) {
	res, err := c.breakers[mirror].Execute(func() (any, error) {
		return c.doRequest(ctx, mirror, path, query)
	})
	if err != nil {
		return nil, err
	}
	return res.([]byte), nil
}

func (c *Client) doRequest(ctx context.Context, mirror, path string, query url.Values) ([]byte, error) {
	endpoint := mirror + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "macd-screener-bot/1.0")
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.MirrorRequestsTotal.WithLabelValues(mirrorLabel(mirror), "network_error").Inc()
		return nil, &transientError{fmt.Errorf("http do: %w", err)}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if err != nil {
			metrics.MirrorRequestsTotal.WithLabelValues(mirrorLabel(mirror), "network_error").Inc()
			return nil, &transientError{fmt.Errorf("read body: %w", err)}
		}
		metrics.MirrorRequestsTotal.WithLabelValues(mirrorLabel(mirror), "ok").Inc()
		return body, nil
	case retryableStatus(resp.StatusCode):
		metrics.MirrorRequestsTotal.WithLabelValues(mirrorLabel(mirror), "retryable").Inc()
		return nil, &transientError{fmt.Errorf("retryable status %d", resp.StatusCode)}
	default:
		metrics.MirrorRequestsTotal.WithLabelValues(mirrorLabel(mirror), "rejected").Inc()
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
}

// retryableStatus covers rate limiting (429), geo/IP blocking (403, 451), and
// any server-side failure; all of these are worth trying on another mirror.
func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusForbidden, http.StatusUnavailableForLegalReasons:
		return true
	}
	return code >= 500
}

func retryable(err error) bool {
	var transient *transientError
	if errors.As(err, &transient) {
		return true
	}
	// An open breaker means the mirror recently failed; move on to the next one.
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// backoffFor grows exponentially from the base, capped at the ceiling, with
// ±20% jitter so parallel callers do not hammer the same mirror in lockstep.
func (c *Client) backoffFor(attempt int) time.Duration {
	delay := c.backoffBase << (attempt - 1)
	if delay > c.backoffMax || delay <= 0 {
		delay = c.backoffMax
	}
	factor := 1.0 + (rand.Float64()*2-1)*backoffJitter
	return time.Duration(float64(delay) * factor)
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func mirrorLabel(mirror string) string {
	if u, err := url.Parse(mirror); err == nil && u.Host != "" {
		return u.Host
	}
	return mirror
}
