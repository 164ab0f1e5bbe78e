package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fluffyriot/rpinsights/internal/logging"
	"github.com/fluffyriot/rpinsights/internal/metrics"
	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/oauth2"
)

const (
	DefaultBaseURL    = "https://graph.facebook.com"
	DefaultAPIVersion = "21.0"

	breakerName = "graph-api"
)

type Client struct {
	httpClient *http.Client
	baseURL    string
	version    string
	timeout    time.Duration
	breaker    *gobreaker.CircuitBreaker[[]byte]
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithAPIVersion(v string) Option {
	return func(c *Client) {
		if v != "" {
			c.version = strings.TrimPrefix(v, "v")
		}
	}
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithBreakerThreshold sets how many consecutive transient or rate-limited
// failures open the circuit.
func WithBreakerThreshold(n uint32) Option {
	return func(c *Client) { c.breaker = newBreaker(n, 30*time.Second) }
}

func NewClient(timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{},
		baseURL:    DefaultBaseURL,
		version:    DefaultAPIVersion,
		timeout:    timeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.breaker == nil {
		c.breaker = newBreaker(5, 30*time.Second)
	}
	return c
}

func newBreaker(threshold uint32, openFor time.Duration) *gobreaker.CircuitBreaker[[]byte] {
	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)
	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     openFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// Only upstream health problems count against the circuit. A rejected
		// metric or an expired token says nothing about availability.
		IsSuccessful: func(err error) bool {
			switch KindOf(err) {
			case KindTransient, KindRateLimited:
				return false
			}
			return true
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Fetcher: circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
		},
	})
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

func (c *Client) endpointURL(path string, params url.Values) string {
	u := fmt.Sprintf("%s/v%s/%s", c.baseURL, c.version, strings.TrimLeft(path, "/"))
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

// get issues one bounded, uncached GET and decodes the body into out. The call
// is never retried here.
func (c *Client) get(ctx context.Context, endpoint, path, token string, params url.Values, out any) error {
	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.do(ctx, endpoint, path, token, params)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = &GraphError{Kind: KindTransient, Endpoint: endpoint, Message: "circuit open", Err: err}
		}
		metrics.UpstreamRequests.WithLabelValues(endpoint, string(KindOf(err))).Inc()
		return err
	}
	metrics.UpstreamRequests.WithLabelValues(endpoint, "ok").Inc()
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &GraphError{Kind: KindUnknown, Endpoint: endpoint, Message: "decode response", Err: err}
	}
	return nil
}

func (c *Client) do(ctx context.Context, endpoint, path, token string, params url.Values) ([]byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	httpClient := c.httpClient
	if token != "" {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: token,
			TokenType:   "Bearer",
		}))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpointURL(path, params), nil)
	if err != nil {
		return nil, &GraphError{Kind: KindUnknown, Endpoint: endpoint, Err: err}
	}
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Accept", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, &GraphError{Kind: KindTransient, Endpoint: endpoint, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &GraphError{Kind: KindTransient, Endpoint: endpoint, Status: resp.StatusCode, Message: "read body", Err: err}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return data, nil
	}

	var eb graphErrorBody
	_ = json.Unmarshal(data, &eb)
	msg := eb.Error.Message
	if msg == "" {
		msg = strings.TrimSpace(string(data))
		if len(msg) > 200 {
			msg = msg[:200]
		}
	}
	return nil, &GraphError{
		Kind:     Classify(resp.StatusCode, eb.Error.Code, msg),
		Status:   resp.StatusCode,
		Code:     eb.Error.Code,
		Subcode:  eb.Error.Subcode,
		Message:  msg,
		Endpoint: endpoint,
	}
}
