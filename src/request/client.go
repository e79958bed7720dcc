package request

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/oneclickvirt/console/src/apierror"
)

// the pipeline never notifies or redirects; callers decide presentation
var silent = apierror.Silent()

// TokenSource supplies the bearer token for outgoing requests
type TokenSource interface {
	Token() string
}

// StaticToken is a fixed TokenSource
type StaticToken string

// Token returns the token itself
func (t StaticToken) Token() string { return string(t) }

// Client sends descriptors against one base URL with one timeout profile.
// Clients share nothing mutable and are safe for concurrent use.
type Client struct {
	cfg        Config
	httpClient *http.Client
	tokens     TokenSource
	classifier *apierror.Classifier
	metrics    *Metrics
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures a Client
type Option func(*Client)

// WithTokenSource sets where the bearer token comes from
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithClassifier sets the classifier used to build every returned error
func WithClassifier(cl *apierror.Classifier) Option {
	return func(c *Client) { c.classifier = cl }
}

// WithMetrics enables prometheus metrics
func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithClock replaces time.Now for request ids and cache busting
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New creates a client from cfg
func New(cfg Config, opts ...Option) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = Interactive.Timeout
	}
	if cfg.RequestIDPrefix == "" {
		cfg.RequestIDPrefix = Interactive.RequestIDPrefix
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	c := &Client{
		cfg: cfg,
		// per-attempt deadlines come from the request context
		httpClient: &http.Client{Transport: transport},
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.classifier == nil {
		c.classifier = apierror.NewClassifier(apierror.WithLogger(c.logger))
	}
	return c
}

// BaseURL returns the configured base URL
func (c *Client) BaseURL() string {
	return c.cfg.BaseURL
}

// Timeout returns the profile timeout
func (c *Client) Timeout() time.Duration {
	return c.cfg.Timeout
}

// Send performs d, retrying failed attempts when d asks for it. Every error
// returned is an *apierror.Record.
func (c *Client) Send(ctx context.Context, d Descriptor) (*Response, error) {
	retries := d.Retry
	if _, oneShot := d.Body.(io.Reader); oneShot {
		retries = 0
	}

	for attempt := 0; ; attempt++ {
		resp, failure, business := c.attempt(ctx, d)
		if failure == nil {
			return resp, nil
		}
		if business || attempt >= retries || ctx.Err() != nil {
			return nil, c.classifier.Classify(failure, silent)
		}

		delay := d.retryDelay()
		c.logger.Warn("request failed, retrying",
			"method", d.method(),
			"path", d.Path,
			"attempt", attempt+1,
			"max_attempts", retries+1,
			"delay", delay,
			"error", failure)
		c.metrics.retried(c.cfg.RequestIDPrefix)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, c.classifier.Classify(&apierror.Failure{Sent: true, Err: ctx.Err()}, silent)
		case <-timer.C:
		}
	}
}

// attempt performs one round trip. business is true for a well-formed
// envelope carrying a failure code.
func (c *Client) attempt(ctx context.Context, d Descriptor) (resp *Response, failure *apierror.Failure, business bool) {
	method := d.method()
	began := time.Now()
	code := apierror.CodeRequest
	defer func() {
		c.metrics.observe(c.cfg.RequestIDPrefix, method, code, time.Since(began).Seconds())
	}()

	req, cancel, err := c.build(ctx, d, c.now())
	if err != nil {
		return nil, &apierror.Failure{Err: err}, false
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		cancel()
		code = apierror.CodeTransport
		return nil, &apierror.Failure{Sent: true, Err: err}, false
	}
	requestID := req.Header.Get("X-Request-ID")
	code = httpResp.StatusCode

	if isSuccessStatus(httpResp.StatusCode) && isBinary(httpResp.Header.Get("Content-Type")) {
		return &Response{
			StatusCode: httpResp.StatusCode,
			Header:     httpResp.Header,
			RequestID:  requestID,
			Stream:     &cancelOnClose{ReadCloser: httpResp.Body, cancel: cancel},
		}, nil, false
	}

	body, err := io.ReadAll(httpResp.Body)
	httpResp.Body.Close()
	cancel()
	if err != nil {
		code = apierror.CodeTransport
		return nil, &apierror.Failure{Sent: true, Err: fmt.Errorf("failed to read response: %w", err)}, false
	}

	if !isSuccessStatus(httpResp.StatusCode) {
		return nil, &apierror.Failure{
			Sent:     true,
			Response: &apierror.ResponseBody{Status: httpResp.StatusCode, Fields: decodeFields(body)},
		}, false
	}

	env, fields, ok := decodeEnvelope(body)
	resp = &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		RequestID:  requestID,
		Body:       body,
	}
	if !ok {
		return resp, nil, false
	}
	code = env.Code
	if env.Success() {
		resp.Envelope = env
		return resp, nil, false
	}
	return nil, &apierror.Failure{
		Sent:     true,
		Response: &apierror.ResponseBody{Status: httpResp.StatusCode, Fields: fields},
	}, true
}

// build prepares the outgoing request. The returned cancel releases the
// per-attempt deadline.
func (c *Client) build(ctx context.Context, d Descriptor, now time.Time) (*http.Request, context.CancelFunc, error) {
	u, err := url.Parse(c.cfg.BaseURL + d.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid request url: %w", err)
	}
	query := u.Query()
	for k, vs := range d.Query {
		for _, v := range vs {
			query.Add(k, v)
		}
	}
	method := d.method()
	if method == http.MethodGet {
		query.Set("_t", strconv.FormatInt(now.UnixMilli(), 10))
	}
	u.RawQuery = query.Encode()

	body, contentType, err := encodeBody(d)
	if err != nil {
		return nil, nil, err
	}

	timeout := c.cfg.Timeout
	if d.Timeout > 0 {
		timeout = d.Timeout
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)

	req, err := http.NewRequestWithContext(attemptCtx, method, u.String(), body)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", fmt.Sprintf("%s-cli/%s", ProjectName, Version))
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range c.cfg.Headers {
		req.Header.Set(k, v)
	}
	for k, vs := range d.Header {
		req.Header[http.CanonicalHeaderKey(k)] = vs
	}
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	req.Header.Set("X-Request-ID", NewRequestID(c.cfg.RequestIDPrefix, now))

	return req, cancel, nil
}

func encodeBody(d Descriptor) (io.Reader, string, error) {
	switch b := d.Body.(type) {
	case nil:
		return nil, "", nil
	case []byte:
		return bytes.NewReader(b), d.ContentType, nil
	case io.Reader:
		return b, d.ContentType, nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, "", fmt.Errorf("failed to marshal body: %w", err)
		}
		contentType := d.ContentType
		if contentType == "" {
			contentType = "application/json"
		}
		return bytes.NewReader(data), contentType, nil
	}
}

func decodeFields(body []byte) map[string]any {
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return map[string]any{}
	}
	return fields
}

func isSuccessStatus(status int) bool {
	return status >= 200 && status < 300
}

func isBinary(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/octet-stream"
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
