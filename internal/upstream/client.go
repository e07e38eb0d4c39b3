package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/straye-as/pipeline-gateway/internal/telemetry"
	"go.uber.org/zap"
)

// Config holds connection settings for the CRM backend
type Config struct {
	BaseURL      string
	Timeout      time.Duration
	ServiceToken string
	UserAgent    string
}

// TokenSource returns the caller's bearer token carried by ctx, if any
type TokenSource func(ctx context.Context) (string, bool)

// Client calls the CRM backend REST API
type Client struct {
	baseURL      string
	httpClient   *http.Client
	serviceToken string
	userAgent    string
	tokens       TokenSource
	logger       *zap.Logger
}

type tokenKey struct{}

// WithToken attaches a bearer token to ctx for backend calls
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

func contextToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenKey{}).(string)
	return token, ok && token != ""
}

// NewClient creates a backend client. tokens may be nil.
func NewClient(cfg Config, tokens TokenSource, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "pipeline-gateway"
	}
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:   &http.Client{Timeout: timeout},
		serviceToken: cfg.ServiceToken,
		userAgent:    userAgent,
		tokens:       tokens,
		logger:       logger,
	}
}

// token picks, in order, an explicit context token, the caller's token and
// the service token.
func (c *Client) token(ctx context.Context) (string, error) {
	if t, ok := contextToken(ctx); ok {
		return t, nil
	}
	if c.tokens != nil {
		if t, ok := c.tokens(ctx); ok && t != "" {
			return t, nil
		}
	}
	if c.serviceToken != "" {
		return c.serviceToken, nil
	}
	return "", ErrNoToken
}

// do sends one request and decodes a 2xx JSON body into out. No retries.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	token, err := c.token(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: failed to encode request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("%s: failed to create request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	telemetry.RecordUpstreamCall(op, time.Since(start).Seconds())
	if err != nil {
		telemetry.RecordUpstreamError(op, "transport")
		c.logger.Warn("backend request failed",
			zap.String("operation", op),
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return &transportError{Operation: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		telemetry.RecordUpstreamError(op, "transport")
		return &transportError{Operation: op, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{Operation: op, StatusCode: resp.StatusCode, Message: errorMessage(resp.StatusCode, data)}
		telemetry.RecordUpstreamError(op, apiErr.Kind())
		c.logger.Debug("backend rejected request",
			zap.String("operation", op),
			zap.Int("status", resp.StatusCode),
			zap.String("message", apiErr.Message),
		)
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", op, err)
	}
	return nil
}

// errorMessage extracts the backend's error text from a failed response
func errorMessage(status int, data []byte) string {
	var body struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
		Detail  string          `json:"detail"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		var s string
		if len(body.Error) > 0 && json.Unmarshal(body.Error, &s) == nil && s != "" {
			return s
		}
		if body.Message != "" {
			return body.Message
		}
		if body.Detail != "" {
			return body.Detail
		}
	}
	if text := strings.TrimSpace(string(data)); text != "" && len(text) < 300 && !strings.HasPrefix(text, "<") {
		return text
	}
	return http.StatusText(status)
}

// Ping checks that the backend answers at all
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("ping: failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &transportError{Operation: "ping", Err: err}
	}
	resp.Body.Close()
	if resp.StatusCode >= 500 {
		return &Error{Operation: "ping", StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	return nil
}
