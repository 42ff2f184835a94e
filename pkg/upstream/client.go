// Package upstream performs the actual calls to the origin API and
// normalizes their outcome into a Result or a classified Failure.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/grepotools/grepodata-proxy/pkg/logging"
)

// Prometheus metrics for origin fetches.
var (
	upstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "grepoproxy_upstream_requests_total",
		Help: "Total origin requests by datafile and status",
	}, []string{"datafile", "status"})

	upstreamRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "grepoproxy_upstream_request_duration_seconds",
		Help:    "Origin request duration in seconds by datafile",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"datafile"})

	upstreamFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "grepoproxy_upstream_failures_total",
		Help: "Total origin failures by kind",
	}, []string{"kind"})
)

// Result is a successful origin response.
type Result struct {
	// Status is the origin's HTTP status code (always 2xx)
	Status int

	// Body is the full response body
	Body []byte

	// ContentType is the origin's Content-Type header value
	ContentType string
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is the origin URL template with {world} and {file} placeholders.
	// Default: "https://{world}.grepolis.com/data/{file}"
	BaseURL string

	// Timeout bounds one full fetch attempt
	Timeout time.Duration

	// UserAgent identifies the proxy to the origin
	UserAgent string
}

// DefaultBaseURL is the Grepolis world-data endpoint template.
const DefaultBaseURL = "https://{world}.grepolis.com/data/{file}"

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:   DefaultBaseURL,
		Timeout:   10 * time.Second,
		UserAgent: "grepodata-proxy/1.0",
	}
}

// Client fetches datafiles from the origin. It performs exactly one
// attempt per call: retry policy belongs to the caller, and there is none
// by default.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// New creates a new origin client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if !strings.Contains(cfg.BaseURL, "{world}") && !strings.Contains(cfg.BaseURL, "{file}") {
		return nil, fmt.Errorf("base URL must contain a {world} or {file} placeholder")
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive")
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			// The origin serves datafiles directly; a redirect means the
			// world does not exist, so surface it instead of following.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		config: cfg,
		logger: logging.NewLogger("upstream"),
	}, nil
}

// URL builds the origin URL for a world and datafile.
func (c *Client) URL(world, datafile string) string {
	url := strings.ReplaceAll(c.config.BaseURL, "{world}", world)
	return strings.ReplaceAll(url, "{file}", datafile)
}

// Fetch performs one bounded GET against the origin and classifies the
// outcome. On success the returned Result holds the complete body; any
// other outcome is a *Failure.
func (c *Client) Fetch(ctx context.Context, world, datafile string) (*Result, error) {
	url := c.URL(world, datafile)

	startTime := time.Now()
	defer func() {
		upstreamRequestDuration.WithLabelValues(datafile).Observe(time.Since(startTime).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "text/plain, */*")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		failure := c.classifyTransportError(err)
		upstreamFailuresTotal.WithLabelValues(string(failure.Kind)).Inc()
		upstreamRequestsTotal.WithLabelValues(datafile, string(failure.Kind)).Inc()
		c.logger.Warn().
			Str("world", world).
			Str("datafile", datafile).
			Str("kind", string(failure.Kind)).
			Err(err).
			Msg("Origin request failed")
		return nil, failure
	}
	defer resp.Body.Close()

	upstreamRequestsTotal.WithLabelValues(datafile, fmt.Sprintf("%d", resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		upstreamFailuresTotal.WithLabelValues(string(KindUpstreamStatus)).Inc()
		c.logger.Warn().
			Str("world", world).
			Str("datafile", datafile).
			Int("status", resp.StatusCode).
			Msg("Origin returned error status")
		return nil, &Failure{Kind: KindUpstreamStatus, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		failure := c.classifyTransportError(err)
		upstreamFailuresTotal.WithLabelValues(string(failure.Kind)).Inc()
		return nil, failure
	}

	// Datafiles are plain text dumps. Fail closed on anything else.
	if len(body) == 0 || !utf8.Valid(body) {
		upstreamFailuresTotal.WithLabelValues(string(KindBadResponse)).Inc()
		c.logger.Warn().
			Str("world", world).
			Str("datafile", datafile).
			Int("size", len(body)).
			Msg("Origin body malformed")
		return nil, &Failure{Kind: KindBadResponse}
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "text/plain; charset=utf-8"
	}

	c.logger.Debug().
		Str("world", world).
		Str("datafile", datafile).
		Int("status", resp.StatusCode).
		Int("size", len(body)).
		Msg("Origin fetch succeeded")

	return &Result{
		Status:      resp.StatusCode,
		Body:        body,
		ContentType: contentType,
	}, nil
}

// classifyTransportError separates deadline overruns from plain
// connectivity failures.
func (c *Client) classifyTransportError(err error) *Failure {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Failure{Kind: KindTimeout, Err: err}
	}
	var timeoutErr interface{ Timeout() bool }
	if errors.As(err, &timeoutErr) && timeoutErr.Timeout() {
		return &Failure{Kind: KindTimeout, Err: err}
	}
	return &Failure{Kind: KindUnreachable, Err: err}
}
