package ifapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/yegors/if-inbounds/internal/config"
	"github.com/yegors/if-inbounds/pkg/logger"
)

// Client talks to the Infinite Flight public API
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	sessionID  string
	timeout    time.Duration
	limiter    *rate.Limiter
	logger     *logger.Logger
}

// NewClient creates a new API client
func NewClient(cfg config.APIConfig, log *logger.Logger) *Client {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	return &Client{
		// per-request deadlines come from ctx so timeouts can be told apart
		httpClient: &http.Client{},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		sessionID:  cfg.SessionID,
		timeout:    cfg.RequestTimeout(),
		limiter:    rate.NewLimiter(limit, burst),
		logger:     log.Named("ifapi"),
	}
}

// WithHTTPClient swaps the underlying HTTP client
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// SessionID returns the server session the client queries
func (c *Client) SessionID() string {
	return c.sessionID
}

// HasAPIKey reports whether requests carry a bearer token
func (c *Client) HasAPIKey() bool {
	return c.apiKey != ""
}

// GetAirport fetches static airport data. A 404 or a result without usable
// coordinates yields ErrAirportNotFound.
func (c *Client) GetAirport(ctx context.Context, icao string) (*Airport, error) {
	endpoint := "/airport/" + url.PathEscape(icao)

	var airport Airport
	if err := c.getObject(ctx, endpoint, &airport); err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidResponseFormat) {
			return nil, fmt.Errorf("%w: %s: %w", ErrAirportNotFound, icao, err)
		}
		return nil, err
	}
	if airport.Latitude == nil || airport.Longitude == nil {
		return nil, fmt.Errorf("%w: %s: missing coordinates", ErrAirportNotFound, icao)
	}
	return &airport, nil
}

// GetAirportStatus fetches the inbound flight ids and staffed frequencies of an airport
func (c *Client) GetAirportStatus(ctx context.Context, icao string) (*AirportStatus, error) {
	endpoint := c.sessionPath("/airport/" + url.PathEscape(icao) + "/status")

	var status AirportStatus
	if err := c.getObject(ctx, endpoint, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// GetFlights fetches every flight in the session
func (c *Client) GetFlights(ctx context.Context) ([]Flight, error) {
	var flights []Flight
	if err := c.getArray(ctx, c.sessionPath("/flights"), &flights); err != nil {
		return nil, err
	}
	return flights, nil
}

// GetATIS fetches the current ATIS text of an airport
func (c *Client) GetATIS(ctx context.Context, icao string) (string, error) {
	endpoint := c.sessionPath("/airport/" + url.PathEscape(icao) + "/atis")

	var atis string
	if err := c.getObject(ctx, endpoint, &atis); err != nil {
		return "", err
	}
	return atis, nil
}

// GetATC fetches every staffed frequency in the session
func (c *Client) GetATC(ctx context.Context) ([]ATCFacility, error) {
	var facilities []ATCFacility
	if err := c.getArray(ctx, c.sessionPath("/atc"), &facilities); err != nil {
		return nil, err
	}
	return facilities, nil
}

// GetWorld fetches the per-airport summary of the session
func (c *Client) GetWorld(ctx context.Context) ([]WorldAirport, error) {
	var airports []WorldAirport
	if err := c.getArray(ctx, c.sessionPath("/world"), &airports); err != nil {
		return nil, err
	}
	return airports, nil
}

// Relay forwards a raw request to the upstream with the bearer token
// attached. The caller owns the response body. Non-2xx statuses are not
// treated as errors.
func (c *Client) Relay(ctx context.Context, method, endpoint, rawQuery string, body []byte) (*http.Response, error) {
	target := c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
	if rawQuery != "" {
		target += "?" + rawQuery
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	reqCtx := ctx
	cancel := context.CancelFunc(func() {})
	if c.timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, c.timeout)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(reqCtx, method, target, reader)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("Relaying request",
		logger.String("method", method),
		logger.String("endpoint", endpoint),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, c.transportError(ctx, reqCtx, endpoint, err)
	}
	// the deadline also bounds reading the body; it is released on Close
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// cancelOnClose releases a request context once the body is closed
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

func (c *Client) sessionPath(suffix string) string {
	return "/sessions/" + url.PathEscape(c.sessionID) + suffix
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// getObject fetches endpoint and decodes the envelope result into out
func (c *Client) getObject(ctx context.Context, endpoint string, out any) error {
	result, err := c.fetch(ctx, endpoint)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(result, out); err != nil {
		return &APIError{Endpoint: endpoint, Err: fmt.Errorf("%w: %v", ErrInvalidResponseFormat, err)}
	}
	return nil
}

// getArray is getObject for endpoints whose result must be a JSON array
func (c *Client) getArray(ctx context.Context, endpoint string, out any) error {
	result, err := c.fetch(ctx, endpoint)
	if err != nil {
		return err
	}
	if !isJSONArray(result) {
		return &APIError{Endpoint: endpoint, Err: fmt.Errorf("%w: result is not an array", ErrInvalidResponseFormat)}
	}
	if err := json.Unmarshal(result, out); err != nil {
		return &APIError{Endpoint: endpoint, Err: fmt.Errorf("%w: %v", ErrInvalidResponseFormat, err)}
	}
	return nil
}

// fetch performs a GET, classifies failures and returns the raw envelope result
func (c *Client) fetch(ctx context.Context, endpoint string) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	reqCtx := ctx
	cancel := context.CancelFunc(func() {})
	if c.timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, c.timeout)
	}
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	c.logger.Debug("Fetching", logger.String("endpoint", endpoint))
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.transportError(ctx, reqCtx, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(endpoint, resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.transportError(ctx, reqCtx, endpoint, err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &APIError{Endpoint: endpoint, Err: fmt.Errorf("%w: %v", ErrInvalidResponseFormat, err)}
	}
	if env.ErrorCode == nil {
		return nil, &APIError{Endpoint: endpoint, Err: fmt.Errorf("%w: missing errorCode", ErrInvalidResponseFormat)}
	}
	if *env.ErrorCode != 0 {
		return nil, &APIError{Endpoint: endpoint, ErrorCode: *env.ErrorCode, Err: ErrInvalidResponseFormat}
	}
	if len(env.Result) == 0 || string(env.Result) == "null" {
		return nil, &APIError{Endpoint: endpoint, Err: fmt.Errorf("%w: missing result", ErrInvalidResponseFormat)}
	}

	c.logger.Debug("Fetched",
		logger.String("endpoint", endpoint),
		logger.Duration("elapsed", time.Since(start)),
		logger.Int("bytes", len(body)),
	)
	return env.Result, nil
}

// transportError separates a per-request timeout from caller cancellation
// and from plain network failures.
func (c *Client) transportError(parent, reqCtx context.Context, endpoint string, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
		c.logger.Warn("Request timed out",
			logger.String("endpoint", endpoint),
			logger.Duration("timeout", c.timeout),
		)
		return &APIError{Endpoint: endpoint, Err: ErrFetchTimeout}
	}
	return &APIError{Endpoint: endpoint, Err: fmt.Errorf("%w: %v", ErrNetwork, err)}
}

func statusError(endpoint string, resp *http.Response) error {
	apiErr := &APIError{Endpoint: endpoint, StatusCode: resp.StatusCode}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		apiErr.Err = ErrRateLimited
		apiErr.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
	case resp.StatusCode == http.StatusNotFound:
		apiErr.Err = ErrNotFound
	case resp.StatusCode >= 500:
		apiErr.Err = ErrNetwork
	default:
		apiErr.Err = ErrUpstreamStatus
	}
	return apiErr
}

// parseRetryAfter accepts both the delta-seconds and HTTP-date forms
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

func isJSONArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '['
}
