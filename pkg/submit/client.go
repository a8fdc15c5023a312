// Package submit posts finished annotations to the annotation server.
package submit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"annobox/pkg/annotation"
)

// Path is the endpoint that receives annotations and answers with the
// operator's next page.
const Path = "/tasks/receive_annotation"

const contentType = "application/json;charset=UTF-8"

// Response is the server's answer. An empty Redirect means stay put.
type Response struct {
	Redirect string `json:"redirect,omitempty"`
}

// RetryPolicy controls how often a network failure is retried. Attempts
// of 1 or less sends once.
type RetryPolicy struct {
	Attempts uint
	Delay    time.Duration
}

type ClientConfig struct {
	BaseURL    string
	Timeout    time.Duration
	Retry      RetryPolicy
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// DefaultClientConfig returns the defaults: one attempt, no timeout beyond
// the caller's context.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL: "http://127.0.0.1:5000",
		Retry:   RetryPolicy{Attempts: 1, Delay: time.Second},
	}
}

type Client struct {
	config ClientConfig
	http   *http.Client
	logger *slog.Logger
}

func NewClient(config ClientConfig) *Client {
	hc := config.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: config.Timeout}
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		config: config,
		http:   hc,
		logger: logger,
	}
}

// Endpoint returns the full URL payloads are posted to.
func (c *Client) Endpoint() string {
	return strings.TrimRight(c.config.BaseURL, "/") + Path
}

// Submit implements box.Submitter.
func (c *Client) Submit(ctx context.Context, p *annotation.Payload) (string, error) {
	resp, err := c.Send(ctx, p)
	if err != nil {
		return "", err
	}
	return resp.Redirect, nil
}

// Send posts the payload, retrying only on NetworkError per the policy.
func (c *Client) Send(ctx context.Context, p *annotation.Payload) (*Response, error) {
	body, err := sonic.ConfigStd.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	attempts := c.config.Retry.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var resp *Response
	err = retry.Do(
		func() error {
			r, err := c.post(ctx, body)
			if err != nil {
				return err
			}
			resp = r
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(c.config.Retry.Delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(IsRetryable),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Warn("retrying annotation submit", "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) post(ctx context.Context, body []byte) (*Response, error) {
	endpoint := c.Endpoint()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	reqID := uuid.NewString()
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", reqID)

	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{URL: endpoint, Err: err}
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &NetworkError{URL: endpoint, StatusCode: httpResp.StatusCode, Err: err}
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, &NetworkError{
			URL:        endpoint,
			StatusCode: httpResp.StatusCode,
			Err:        fmt.Errorf("unexpected status: %s", strings.TrimSpace(string(data))),
		}
	}

	if httpResp.StatusCode == http.StatusNoContent {
		return &Response{}, nil
	}

	var out Response
	if err := sonic.ConfigStd.Unmarshal(data, &out); err != nil {
		return nil, &ProtocolError{Body: data, Err: err}
	}
	out.Redirect = ResolveRedirect(endpoint, out.Redirect)
	c.logger.Debug("annotation received by server", "request_id", reqID, "redirect", out.Redirect)
	return &out, nil
}

// ResolveRedirect makes a redirect from the annotation server absolute,
// resolving paths against base. Absolute URLs and "" pass through.
func ResolveRedirect(base, redirect string) string {
	if redirect == "" || base == "" {
		return redirect
	}
	b, err := url.Parse(base)
	if err != nil {
		return redirect
	}
	ref, err := url.Parse(redirect)
	if err != nil {
		return redirect
	}
	return b.ResolveReference(ref).String()
}

// IsRetryable reports whether err is worth sending again. Cancellation and
// protocol errors are not.
func IsRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr *NetworkError
	return errors.As(err, &netErr)
}
