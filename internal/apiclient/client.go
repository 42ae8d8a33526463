package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/docbook-web/internal/observability/metrics"
	"github.com/wolfman30/docbook-web/internal/session"
	"github.com/wolfman30/docbook-web/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const defaultBaseURL = "http://127.0.0.1:8000/api"

var tracer = otel.Tracer("docbook.internal.apiclient")

// CallOptions describes one backend request. The zero value is a GET.
type CallOptions struct {
	Method  string
	Body    any
	Headers map[string]string
}

// Response is a successful (2xx) backend reply. JSON bodies land in JSON,
// every other content type in Text.
type Response struct {
	Status int
	JSON   json.RawMessage
	Text   string
}

// IsJSON reports whether the body was served as application/json.
func (r *Response) IsJSON() bool { return r.JSON != nil }

// Decode unmarshals the JSON body into out.
func (r *Response) Decode(out any) error {
	if r.JSON == nil {
		return fmt.Errorf("apiclient: expected JSON response, got %q", truncate(r.Text, 120))
	}
	if len(r.JSON) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.JSON, out); err != nil {
		return fmt.Errorf("apiclient: decode response: %w", err)
	}
	return nil
}

// Client calls the backend. It is safe for concurrent use; per-request state
// (the admin session) travels in the context.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *logging.Logger
	metrics    *metrics.FrontendMetrics
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient swaps the transport, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithMetrics records every call in m.
func WithMetrics(m *metrics.FrontendMetrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient builds a client for baseURL. No client timeout is set; calls
// end when the caller's context does.
func NewClient(baseURL string, logger *logging.Logger, opts ...Option) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBaseURL
	}
	if logger == nil {
		logger = logging.Default()
	}
	c := &Client{
		httpClient: &http.Client{},
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured backend root.
func (c *Client) BaseURL() string { return c.baseURL }

// Call performs one request against endpoint (a path below the base URL).
//
// A 401 expires the session carried in ctx before the error is returned.
// Non-2xx replies and transport failures come back as *APIError.
func (c *Client) Call(ctx context.Context, endpoint string, opts *CallOptions) (*Response, error) {
	if opts == nil {
		opts = &CallOptions{}
	}
	method := strings.ToUpper(strings.TrimSpace(opts.Method))
	if method == "" {
		method = http.MethodGet
	}

	ctx, span := tracer.Start(ctx, "apiclient.call")
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("docbook.endpoint", endpoint),
	)

	var bodyReader io.Reader
	if method != http.MethodGet && opts.Body != nil {
		payload, err := json.Marshal(opts.Body)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("apiclient: marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, bodyReader)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("apiclient: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}
	sess, hasSession := session.FromContext(ctx)
	if hasSession {
		if token := sess.AccessToken(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveUpstream(method, 0, time.Since(start).Seconds())
		c.logger.Error("backend API unreachable", "method", method, "path", endpoint, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "network error")
		return nil, &APIError{Status: 0, Message: NetworkErrorMessage, cause: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	c.metrics.ObserveUpstream(method, resp.StatusCode, time.Since(start).Seconds())
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if err != nil {
		span.RecordError(err)
		return nil, &APIError{Status: 0, Message: NetworkErrorMessage, cause: err}
	}

	parsed := parseBody(resp.Header.Get("Content-Type"), raw)
	parsed.Status = resp.StatusCode

	if resp.StatusCode == http.StatusUnauthorized && hasSession {
		if err := sess.Expire(ctx); err != nil {
			c.logger.Warn("failed to expire session after 401", "session_id", sess.ID(), "error", err)
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("backend API non-2xx response",
			"status", resp.StatusCode,
			"method", method,
			"path", endpoint,
			"body", truncate(string(raw), 300),
		)
		apiErr := errorFromResponse(resp.StatusCode, parsed)
		span.SetStatus(codes.Error, "status "+strconv.Itoa(resp.StatusCode))
		return nil, apiErr
	}
	return parsed, nil
}

func parseBody(contentType string, raw []byte) *Response {
	out := &Response{}
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if mediaType == "application/json" {
		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) == 0 {
			out.JSON = json.RawMessage{}
			return out
		}
		if json.Valid(trimmed) {
			out.JSON = json.RawMessage(trimmed)
			return out
		}
	}
	out.Text = string(raw)
	return out
}

func errorFromResponse(status int, body *Response) *APIError {
	apiErr := &APIError{Status: status}
	if !body.IsJSON() || len(body.JSON) == 0 {
		apiErr.Data = body.Text
		apiErr.Message = body.Text
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(status)
		}
		return apiErr
	}

	var data any
	if err := json.Unmarshal(body.JSON, &data); err == nil {
		apiErr.Data = data
	}
	apiErr.Message = compactJSON(body.JSON)
	obj, ok := data.(map[string]any)
	if !ok {
		return apiErr
	}
	switch detail := obj["detail"].(type) {
	case nil:
	case string:
		if detail != "" {
			apiErr.Message = detail
		}
	default:
		if b, err := json.Marshal(detail); err == nil {
			apiErr.Message = string(b)
		}
	}
	return apiErr
}

func compactJSON(raw []byte) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// doJSON issues a call and decodes the JSON reply into out (when non-nil).
func (c *Client) doJSON(ctx context.Context, method, endpoint string, body, out any) error {
	resp, err := c.Call(ctx, endpoint, &CallOptions{Method: method, Body: body})
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return resp.Decode(out)
}

// IsSessionExpired reports whether err came from a 401.
func IsSessionExpired(err error) bool {
	return errors.Is(err, ErrSessionExpired)
}
