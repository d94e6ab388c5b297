package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/apilink-dev/handshake/protoerr"
	"github.com/apilink-dev/handshake/redact"
	"github.com/apilink-dev/handshake/types"
)

// DefaultMaxRedirects bounds redirect following unless overridden per
// call.
const DefaultMaxRedirects = 5

// Option configures the pipeline client.
type Option func(*Client)

// WithHTTPClient sets a custom http.Client. Tests use this to inject stub
// transports.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithPolicy sets the retry policy.
func WithPolicy(p Policy) Option {
	return func(c *Client) {
		c.policy = p
	}
}

// WithTimeouts sets the timeout bounds applied to every dispatch.
func WithTimeouts(tc types.TimeoutConfig) Option {
	return func(c *Client) {
		c.timeouts = tc
	}
}

// WithMaxRedirects sets the default redirect ceiling.
func WithMaxRedirects(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxRedirects = n
		}
	}
}

// WithLogger sets a custom logger. If not provided, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTracer sets an OpenTelemetry tracer. Each dispatch opens one span
// carrying method, host, status, and attempt attributes.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Client) {
		c.tracer = tracer
	}
}

// WithMeter sets an OpenTelemetry meter used to count dispatches and
// retries.
func WithMeter(meter metric.Meter) Option {
	return func(c *Client) {
		c.meter = meter
	}
}

// Client dispatches execution contexts. It is safe for concurrent use;
// every call is an independent unit of work with no shared mutable state.
type Client struct {
	httpClient   *http.Client
	policy       Policy
	timeouts     types.TimeoutConfig
	maxRedirects int
	logger       *slog.Logger
	tracer       trace.Tracer
	meter        metric.Meter

	requests metric.Int64Counter
	retries  metric.Int64Counter
}

// NewClient creates a pipeline client with the provided options.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient:   &http.Client{},
		policy:       DefaultPolicy(),
		maxRedirects: DefaultMaxRedirects,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	if c.meter != nil {
		c.requests, _ = c.meter.Int64Counter("handshake.pipeline.requests")
		c.retries, _ = c.meter.Int64Counter("handshake.pipeline.retries")
	}
	return c
}

// Policy returns the client's retry policy.
func (c *Client) Policy() Policy {
	return c.policy
}

// Log emits a debug record through the client's logger. Callers are
// responsible for masking sensitive values first.
func (c *Client) Log(ctx context.Context, msg string, args ...any) {
	c.logger.DebugContext(ctx, msg, args...)
}

// Do executes one call: it resolves the effective URL, headers, and body
// by merging the module injection with caller overrides and placeholder
// substitution, dispatches under a bounded timeout with transient-failure
// retry, and normalizes the response.
//
// Failures are reported on the result, never as a non-nil error; the error
// return is reserved for a nil receiver or similar programmer errors.
func (c *Client) Do(ctx context.Context, ec types.ExecutionContext, inj types.Injection) (types.ExecutionResult, error) {
	if c == nil {
		return types.ExecutionResult{}, errors.New("pipeline client is nil")
	}

	start := time.Now()
	result := types.ExecutionResult{
		RequestID: uuid.New().String(),
	}

	req, unresolved, perr := c.buildRequest(ec, inj)
	result.UnresolvedPlaceholders = unresolved
	if perr != nil {
		result.ErrorCode = protoerr.CodeValidation
		result.Error = redact.Error(perr)
		result.Duration = time.Since(start)
		return result, nil
	}

	if c.tracer != nil {
		var span trace.Span
		ctx, span = c.tracer.Start(ctx, "pipeline.dispatch", trace.WithAttributes(
			attribute.String("http.method", req.method),
			attribute.String("url.host", req.url.Host),
		))
		defer func() {
			span.SetAttributes(
				attribute.Int("http.status_code", result.StatusCode),
				attribute.Int("handshake.attempts", result.Attempts),
			)
			span.End()
		}()
	}
	if c.requests != nil {
		c.requests.Add(ctx, 1)
	}

	timeout := c.timeouts.Resolve(ec.Timeout)
	hc := c.redirectClient(ec)

	maxRetries := c.policy.MaxRetries
	var lastErr error
	for attempt := 1; attempt <= maxRetries+1; attempt++ {
		result.Attempts = attempt

		resp, err := c.dispatchOnce(ctx, hc, req, timeout)
		if err == nil {
			c.finishResponse(&result, resp)
			result.Duration = time.Since(start)
			return result, nil
		}
		lastErr = err

		if !retryable(err) || attempt > maxRetries {
			break
		}
		if c.retries != nil {
			c.retries.Add(ctx, 1)
		}
		c.logger.Debug("retrying after transient failure",
			slog.String("request_id", result.RequestID),
			slog.Int("attempt", attempt),
			slog.String("error", redact.Error(err)),
		)
		if werr := c.policy.wait(ctx, attempt); werr != nil {
			lastErr = werr
			break
		}
	}

	result.ErrorCode = protoerr.CodeNetwork
	result.Error = redact.Error(lastErr)
	result.Duration = time.Since(start)
	attrs := []any{
		slog.String("request_id", result.RequestID),
		slog.Int("attempts", result.Attempts),
		slog.String("class", string(protoerr.ClassOf(lastErr))),
		slog.String("error", result.Error),
	}
	c.logger.Debug("dispatch failed", append(attrs, LogFields(ec)...)...)
	return result, nil
}

// builtRequest carries the fully resolved request pieces so each retry
// attempt can construct a fresh *http.Request.
type builtRequest struct {
	method  string
	url     *url.URL
	headers map[string]string
	body    string
}

func (c *Client) buildRequest(ec types.ExecutionContext, inj types.Injection) (builtRequest, []string, error) {
	var unresolved []string
	seen := map[string]struct{}{}
	collect := func(names []string) {
		for _, n := range names {
			if _, dup := seen[n]; !dup {
				seen[n] = struct{}{}
				unresolved = append(unresolved, n)
			}
		}
	}

	rawURL, missing := Substitute(ec.URL, ec.Values)
	collect(missing)

	callerHeaders, missing := SubstituteMap(ec.Headers, ec.Values)
	collect(missing)

	body := ec.Body
	if body == "" {
		body = inj.Body
	}
	body, missing = Substitute(body, ec.Values)
	collect(missing)

	if strings.TrimSpace(rawURL) == "" {
		return builtRequest{}, unresolved, errors.New("target URL is required")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return builtRequest{}, unresolved, fmt.Errorf("invalid target URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "ws" && u.Scheme != "wss" {
		return builtRequest{}, unresolved, fmt.Errorf("unsupported URL scheme: %q", u.Scheme)
	}

	if len(inj.Query) > 0 {
		q := u.Query()
		for k, v := range inj.Query {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}

	headers := make(map[string]string, len(inj.Headers)+len(callerHeaders))
	for k, v := range inj.Headers {
		headers[k] = v
	}
	for k, v := range callerHeaders {
		headers[k] = v
	}

	method := strings.ToUpper(strings.TrimSpace(ec.Method))
	if method == "" {
		method = http.MethodGet
	}

	return builtRequest{method: method, url: u, headers: headers, body: body}, unresolved, nil
}

// redirectClient returns an http.Client honoring the call's redirect
// policy without mutating the shared client.
func (c *Client) redirectClient(ec types.ExecutionContext) *http.Client {
	hc := *c.httpClient

	follow := true
	if ec.FollowRedirects != nil {
		follow = *ec.FollowRedirects
	}
	max := c.maxRedirects
	if ec.MaxRedirects > 0 {
		max = ec.MaxRedirects
	}

	if !follow {
		hc.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
		return &hc
	}
	hc.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= max {
			return fmt.Errorf("stopped after %d redirects", max)
		}
		return nil
	}
	return &hc
}

func (c *Client) dispatchOnce(ctx context.Context, hc *http.Client, req builtRequest, timeout time.Duration) (*http.Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if req.body != "" {
		body = strings.NewReader(req.body)
	}
	httpReq, err := http.NewRequestWithContext(attemptCtx, req.method, req.url.String(), body)
	if err != nil {
		return nil, err
	}
	for k, v := range req.headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := hc.Do(httpReq)
	if err != nil {
		return nil, err
	}

	// Read the body before the attempt context is cancelled.
	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	resp.Body.Close()
	if readErr != nil {
		return nil, readErr
	}
	resp.Body = io.NopCloser(strings.NewReader(string(raw)))
	return resp, nil
}

// finishResponse normalizes a completed HTTP response into the result:
// best-effort JSON parse with the raw text always retained, and a
// PROVIDER_ERROR code for non-2xx statuses. Completed non-2xx responses
// are never retried.
func (c *Client) finishResponse(result *types.ExecutionResult, resp *http.Response) {
	raw, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	result.StatusCode = resp.StatusCode
	result.RawBody = string(raw)
	result.Headers = flattenHeaders(resp.Header)

	var parsed any
	if len(raw) > 0 && json.Unmarshal(raw, &parsed) == nil {
		result.Body = parsed
	} else {
		result.Body = result.RawBody
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		result.Success = true
		return
	}

	result.ErrorCode = protoerr.CodeProvider
	result.Error = fmt.Sprintf("provider returned %d", resp.StatusCode)
	if msg := providerMessage(parsed, result.RawBody); msg != "" {
		result.Error += ": " + msg
	}
}

// providerMessage digs a human-readable message out of a structured error
// body, falling back to a short raw snippet.
func providerMessage(parsed any, raw string) string {
	if obj, ok := parsed.(map[string]any); ok {
		for _, key := range []string{"message", "error_description", "error", "detail"} {
			if s, ok := obj[key].(string); ok && s != "" {
				return s
			}
		}
	}
	snippet := strings.TrimSpace(raw)
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}
	return snippet
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k := range h {
		out[k] = h.Get(k)
	}
	return out
}

// retryable defers the retry decision to the error taxonomy: the failure
// is classified, and only transient-class failures are tried again. A
// completed HTTP response never reaches here, so it is never retried.
func retryable(err error) bool {
	if code := protoerr.CodeOf(err); code != "" {
		return protoerr.Retryable(code)
	}
	return protoerr.ClassOf(err) == protoerr.ClassTransient
}

// LogFields returns attributes describing a context safe for logging, with
// sensitive header values masked.
func LogFields(ec types.ExecutionContext) []any {
	return []any{
		slog.String("url", ec.URL),
		slog.String("method", ec.Method),
		slog.Any("headers", redact.Headers(ec.Headers)),
	}
}
