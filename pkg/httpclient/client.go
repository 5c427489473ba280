// Package httpclient is the net/http implementation of workflow.Dispatcher.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/getmockd/reqchain/pkg/auth"
	"github.com/getmockd/reqchain/pkg/logging"
	"github.com/getmockd/reqchain/pkg/workflow"
)

// DefaultMaxBodyBytes caps how much of a response body is read.
const DefaultMaxBodyBytes = 10 << 20

// ErrBodyTooLarge is returned when a response body exceeds MaxBodyBytes.
var ErrBodyTooLarge = errors.New("response body too large")

// DefaultTimeout applies when neither the config nor the step sets one.
const DefaultTimeout = 30 * time.Second

// HTTPClient is the subset of *http.Client the dispatcher needs.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config configures a Client.
type Config struct {
	Timeout           time.Duration
	NoFollowRedirects bool
	NoCookies         bool
	MaxBodyBytes      int64
	UserAgent         string

	// Headers are sent with every request unless the step sets them.
	Headers map[string]string
}

// AuthSource returns the credential material for the next request.
type AuthSource func(ctx context.Context) (auth.Material, error)

// Client dispatches resolved requests over HTTP. Cookies set by one step
// are sent by later steps of the same client.
type Client struct {
	http HTTPClient
	cfg  Config
	auth AuthSource
	log  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying transport client, mainly in tests.
func WithHTTPClient(c HTTPClient) Option {
	return func(cl *Client) { cl.http = c }
}

// WithAuth attaches credential material to every request.
func WithAuth(src AuthSource) Option {
	return func(cl *Client) { cl.auth = src }
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(cl *Client) {
		if log != nil {
			cl.log = log
		}
	}
}

// New creates a client.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "reqchain"
	}

	c := &Client{cfg: cfg, log: logging.Nop()}
	for _, opt := range opts {
		opt(c)
	}
	if c.http != nil {
		return c, nil
	}

	hc := &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	if !cfg.NoCookies {
		jar, err := newJar()
		if err != nil {
			return nil, err
		}
		hc.Jar = jar
	}
	if cfg.NoFollowRedirects {
		hc.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
	c.http = hc
	return c, nil
}

var _ workflow.Dispatcher = (*Client)(nil)

func newJar() (http.CookieJar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}
	return jar, nil
}

// ResetCookies drops every stored cookie. It must not be called while a
// request is in flight. Clients built with WithHTTPClient are unaffected.
func (c *Client) ResetCookies() error {
	hc, ok := c.http.(*http.Client)
	if !ok || hc.Jar == nil {
		return nil
	}
	jar, err := newJar()
	if err != nil {
		return err
	}
	hc.Jar = jar
	return nil
}

// Dispatch sends req and returns the response. Non-2xx statuses are
// responses, not errors.
func (c *Client) Dispatch(ctx context.Context, req *workflow.RequestSpec) (*workflow.ResponseSpec, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.cfg.Timeout
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var material auth.Material
	if c.auth != nil {
		m, err := c.auth(ctx)
		if err != nil {
			return nil, fmt.Errorf("acquiring credentials: %w", err)
		}
		material = m
	}

	httpReq, err := c.build(ctx, req, material)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("request timed out after %s: %w", timeout, err)
		}
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if int64(len(body)) > c.cfg.MaxBodyBytes {
		return nil, fmt.Errorf("%w: %s %s returned more than %d bytes", ErrBodyTooLarge, httpReq.Method, httpReq.URL.Redacted(), c.cfg.MaxBodyBytes)
	}
	elapsed := time.Since(start)

	c.log.Debug("request dispatched",
		"method", httpReq.Method,
		"url", httpReq.URL.Redacted(),
		"status", resp.StatusCode,
		"bytes", len(body),
		"duration_ms", elapsed.Milliseconds(),
	)

	return &workflow.ResponseSpec{
		Status:  resp.StatusCode,
		Headers: resp.Header.Clone(),
		Body:    string(body),
		Elapsed: elapsed,
	}, nil
}

// build assembles the http.Request. Precedence for headers and query
// parameters, lowest first: client defaults, credential material, step.
func (c *Client) build(ctx context.Context, req *workflow.RequestSpec, material auth.Material) (*http.Request, error) {
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}

	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", req.URL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid url %q: scheme and host are required", req.URL)
	}
	if len(material.Query) > 0 || len(req.Query) > 0 {
		q := u.Query()
		for k, v := range material.Query {
			q.Set(k, v)
		}
		for k, v := range req.Query {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}

	var body io.Reader
	if req.Body != "" {
		body = strings.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	httpReq.Header.Set("User-Agent", c.cfg.UserAgent)
	for k, v := range c.cfg.Headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range material.Headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if req.Body != "" && httpReq.Header.Get("Content-Type") == "" && looksLikeJSON(req.Body) {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if host := httpReq.Header.Get("Host"); host != "" {
		httpReq.Host = host
	}
	return httpReq, nil
}

func looksLikeJSON(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[")
}
