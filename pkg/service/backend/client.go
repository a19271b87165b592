package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/prreminder/frontend/pkg/domain/model"
	"github.com/prreminder/frontend/pkg/utils/logging"
	"github.com/prreminder/frontend/pkg/utils/safe"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout = 30 * time.Second
	maxBodySize    = 32 << 20
)

// Client is the only component that talks to the PR Reminder backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	metrics    *Metrics
	userAgent  string
	tokens     TokenStore
}

var _ Service = &Client{}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout bounds every backend call. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		hc := *c.httpClient
		hc.Timeout = d
		c.httpClient = &hc
	}
}

// WithRateLimit throttles outbound calls shared by every bound client.
// A non-positive rps disables throttling.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func WithMetrics(m *Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// New creates a client for baseURL. An empty baseURL selects DefaultBaseURL
// and a nil tokens store sends every request unauthenticated.
func New(baseURL string, tokens TokenStore, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if tokens == nil {
		tokens = StaticToken("")
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		userAgent:  "prreminder-frontend",
		tokens:     tokens,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Bind returns a client sharing transport, limiter and metrics with c but
// reading its credential from tokens.
func (c *Client) Bind(tokens TokenStore) *Client {
	bound := *c
	if tokens == nil {
		tokens = StaticToken("")
	}
	bound.tokens = tokens
	return &bound
}

func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) endpoint(path string) string {
	return c.baseURL + APIPrefix + path
}

type request struct {
	op     string
	method string
	path   string
	query  url.Values
	body   any
}

type response struct {
	header http.Header
	body   []byte
}

// do sends req and decodes a JSON reply into out. An empty 2xx body leaves
// out untouched.
func (c *Client) do(ctx context.Context, req request, out any) error {
	resp, err := c.send(ctx, req)
	if err != nil {
		return err
	}

	if out == nil || len(bytes.TrimSpace(resp.body)) == 0 {
		return nil
	}

	if err := json.Unmarshal(resp.body, out); err != nil {
		return &APIError{
			Detail:     "Invalid JSON response from server",
			StatusCode: http.StatusOK,
			Op:         req.op,
			cause:      goerr.Wrap(err, "failed to decode response", goerr.V("op", req.op)),
		}
	}

	return nil
}

func (c *Client) send(ctx context.Context, req request) (*response, error) {
	logger := logging.From(ctx)

	u := c.endpoint(req.path)
	if len(req.query) > 0 {
		u += "?" + req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		raw, err := json.Marshal(req.body)
		if err != nil {
			return nil, &APIError{
				Detail: "Failed to encode request",
				Op:     req.op,
				cause:  goerr.Wrap(err, "failed to marshal request body", goerr.V("op", req.op)),
			}
		}
		body = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, u, body)
	if err != nil {
		return nil, &APIError{
			Detail: "Failed to build request",
			Op:     req.op,
			cause:  goerr.Wrap(err, "failed to create request", goerr.V("url", u)),
		}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, &APIError{
			Detail: "Failed to read stored credential",
			Op:     req.op,
			cause:  goerr.Wrap(err, "failed to read token"),
		}
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &APIError{
				Detail: networkErrorDetail,
				Op:     req.op,
				cause:  goerr.Wrap(err, "rate limiter wait aborted"),
			}
		}
	}

	started := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.metrics.observe(req.op, "network", time.Since(started))
		logger.Warn("backend request failed", "op", req.op, "method", req.method, "path", req.path, "error", err)
		return nil, &APIError{
			Detail: networkErrorDetail,
			Op:     req.op,
			cause:  goerr.Wrap(err, "failed to send request", goerr.V("url", u)),
		}
	}
	defer safe.Close(ctx, httpResp.Body)

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodySize))
	c.metrics.observe(req.op, strconv.Itoa(httpResp.StatusCode), time.Since(started))
	if err != nil {
		return nil, &APIError{
			Detail:     networkErrorDetail,
			StatusCode: httpResp.StatusCode,
			Op:         req.op,
			cause:      goerr.Wrap(err, "failed to read response body"),
		}
	}

	logger.Debug("backend request",
		"op", req.op,
		"method", req.method,
		"path", req.path,
		"status", httpResp.StatusCode,
		"duration", time.Since(started),
	)

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, &APIError{
			Detail:     errorDetail(httpResp.StatusCode, httpResp.Status, raw),
			StatusCode: httpResp.StatusCode,
			Op:         req.op,
		}
	}

	return &response{header: httpResp.Header, body: raw}, nil
}

// Identity

func (c *Client) GetCurrentUser(ctx context.Context) (*model.User, error) {
	var user model.User
	if err := c.do(ctx, request{op: "get_current_user", method: http.MethodGet, path: "/users/me"}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// RefreshToken rotates the bearer token and stores the new one.
func (c *Client) RefreshToken(ctx context.Context) (*model.AuthResponse, error) {
	var resp model.AuthResponse
	if err := c.do(ctx, request{op: "refresh_token", method: http.MethodPost, path: "/auth/refresh"}, &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, &APIError{Detail: "Token refresh returned no access token", StatusCode: http.StatusOK, Op: "refresh_token"}
	}
	if err := c.SetAuthToken(ctx, resp.AccessToken); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GoogleLoginURL is navigated to by the browser, never fetched.
func (c *Client) GoogleLoginURL() string {
	return c.endpoint("/auth/google/login")
}

func (c *Client) SetAuthToken(ctx context.Context, token string) error {
	if err := c.tokens.SetToken(ctx, token); err != nil {
		return goerr.Wrap(err, "failed to store auth token")
	}
	return nil
}

func (c *Client) ClearAuthToken(ctx context.Context) error {
	if err := c.tokens.ClearToken(ctx); err != nil {
		return goerr.Wrap(err, "failed to clear auth token")
	}
	return nil
}
