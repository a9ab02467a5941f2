package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	pkgerrors "github.com/angelmondragon/playfunia-backend/pkg/errors"
	"github.com/angelmondragon/playfunia-backend/pkg/logger"
	"github.com/angelmondragon/playfunia-backend/pkg/types"
)

const maxBodyBytes = 1 << 20

// TokenSource supplies the bearer token for each request.
type TokenSource interface {
	Token() string
}

// StaticToken is a TokenSource with a fixed value.
type StaticToken string

func (s StaticToken) Token() string { return string(s) }

// Config holds API client configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Tokens  TokenSource

	// BreakerName enables a circuit breaker on GET requests when set.
	BreakerName string
}

// Client calls the Playfunia API and unwraps its JSON envelopes. Writes are
// sent exactly once and never retried.
type Client struct {
	base       *url.URL
	httpClient *http.Client
	tokens     TokenSource
	breaker    *gobreaker.CircuitBreaker[[]byte]
	logger     *logger.Logger
}

func New(cfg Config, logg *logger.Logger) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, errors.New("api base url is required")
	}
	base, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid api base url %q", raw)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		base: base,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				ForceAttemptHTTP2:   true,
				MaxIdleConns:        20,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		tokens: cfg.Tokens,
		logger: logg,
	}
	if cfg.BreakerName != "" {
		c.breaker = newBreaker(cfg.BreakerName, logg)
	}
	return c, nil
}

// WithHTTPClient swaps the transport (tests point it at httptest servers).
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	cpy := *c
	cpy.httpClient = h
	return &cpy
}

// WithTokens returns a copy that authenticates with the given source.
func (c *Client) WithTokens(tokens TokenSource) *Client {
	cpy := *c
	cpy.tokens = tokens
	return &cpy
}

// URL resolves an API path against the base URL.
func (c *Client) URL(path string) string {
	return c.base.String() + "/" + strings.TrimLeft(path, "/")
}

// Token returns the current bearer token, or empty.
func (c *Client) Token() string {
	if c.tokens == nil {
		return ""
	}
	return strings.TrimSpace(c.tokens.Token())
}

type requestOptions struct {
	idempotencyKey string
}

type RequestOption func(*requestOptions)

// WithIdempotencyKey sets the Idempotency-Key header.
func WithIdempotencyKey(key string) RequestOption {
	return func(o *requestOptions) { o.idempotencyKey = key }
}

// PostJSON sends body and decodes the `data` member of the response into out.
func (c *Client) PostJSON(ctx context.Context, path string, body, out any, opts ...RequestOption) error {
	return c.sendJSON(ctx, http.MethodPost, path, body, out, opts...)
}

// PatchJSON behaves like PostJSON with PATCH.
func (c *Client) PatchJSON(ctx context.Context, path string, body, out any) error {
	return c.sendJSON(ctx, http.MethodPatch, path, body, out)
}

func (c *Client) sendJSON(ctx context.Context, method, path string, body, out any, opts ...RequestOption) error {
	options := requestOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode request body")
	}
	req, err := http.NewRequestWithContext(ctx, method, c.URL(path), bytes.NewReader(payload))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	if options.idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", options.idempotencyKey)
	}
	data, err := c.do(req)
	if err != nil {
		return err
	}
	return decodeData(data, out)
}

// GetJSON fetches path and decodes the `data` member into out. When a
// breaker is configured, repeated dependency failures open it.
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	fetch := func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(path), http.NoBody)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build request")
		}
		return c.do(req)
	}
	var (
		data []byte
		err  error
	)
	if c.breaker != nil {
		data, err = c.breaker.Execute(fetch)
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "api temporarily unavailable")
		}
	} else {
		data, err = fetch()
	}
	if err != nil {
		return err
	}
	return decodeData(data, out)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	req.Header.Set("Accept", "application/json")
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "api request failed")
	}
	c.logRequest(req, resp.StatusCode, time.Since(start))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, ParseResponseError(resp)
	}
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read api response")
	}
	return data, nil
}

func (c *Client) logRequest(req *http.Request, status int, elapsed time.Duration) {
	if c.logger == nil {
		return
	}
	ctx := c.logger.WithFields(req.Context(), map[string]any{
		"method":      req.Method,
		"path":        req.URL.Path,
		"status":      status,
		"duration_ms": elapsed.Milliseconds(),
	})
	c.logger.Debug(ctx, "api call")
}

func decodeData(body []byte, out any) error {
	if out == nil {
		return nil
	}
	var envelope types.RawEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode api response")
	}
	if len(envelope.Data) == 0 {
		return pkgerrors.New(pkgerrors.CodeDependency, "api response missing data")
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode api response")
	}
	return nil
}
