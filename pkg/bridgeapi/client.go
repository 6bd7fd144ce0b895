// Package bridgeapi is the HTTP client for the bridge backend: identity
// registration and the transfer extra payload encoder.
package bridgeapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

const maxErrBodyBytes = 4096

// ErrEmptyExtra is returned when the backend answers without an extra payload
var ErrEmptyExtra = errors.New("bridge returned empty extra")

// RegisterRequest is the body of the registration call
type RegisterRequest struct {
	PublicKey string `json:"public_key"`
	Signature string `json:"signature"`
}

// UserKey is the session key material issued on registration
type UserKey struct {
	ClientID   string `json:"client_id"`
	SessionID  string `json:"session_id"`
	PrivateKey string `json:"private_key"`
}

// User is the registered identity returned by the backend
type User struct {
	UserID    string  `json:"user_id"`
	SessionID string  `json:"session_id"`
	FullName  string  `json:"full_name"`
	CreatedAt string  `json:"created_at"`
	Contract  string  `json:"contract"`
	Key       UserKey `json:"key"`
}

type registerResponse struct {
	User *User `json:"user"`
}

// ExtraRequest is the body of the extra payload call. Empty fields are omitted.
type ExtraRequest struct {
	Extra     string   `json:"extra,omitempty"`
	Receivers []string `json:"receivers,omitempty"`
	Threshold int      `json:"threshold,omitempty"`
}

type extraResponse struct {
	Extra string `json:"extra"`
}

// Option configures client settings using the functional options pattern.
type Option func(*settings)

type settings struct {
	logger     *zap.Logger
	httpClient *http.Client
}

// WithLogger sets a custom logger for the client.
func WithLogger(l *zap.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *settings) { s.httpClient = c }
}

func applyOptions(opts []Option) settings {
	s := settings{
		logger:     zap.NewNop(),
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}
	return s
}

// Client calls the bridge backend
type Client struct {
	registrationURL string
	extraURL        string
	httpClient      *http.Client
	logger          *zap.Logger
}

// NewClient creates a bridge backend client
func NewClient(registrationURL, extraURL string, opts ...Option) *Client {
	s := applyOptions(opts)
	return &Client{
		registrationURL: registrationURL,
		extraURL:        extraURL,
		httpClient:      s.httpClient,
		logger:          s.logger,
	}
}

// Register submits a signed registration challenge and returns the identity
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	var resp registerResponse
	if err := c.post(ctx, c.registrationURL, req, &resp); err != nil {
		return nil, err
	}
	if resp.User == nil || resp.User.UserID == "" {
		return nil, fmt.Errorf("registration response has no user")
	}
	return resp.User, nil
}

// Extra encodes a transfer memo and receivers into the opaque extra payload.
// The returned value is 0x-prefixed.
func (c *Client) Extra(ctx context.Context, req ExtraRequest) (string, error) {
	if req.Threshold == 0 && len(req.Receivers) > 0 {
		req.Threshold = 1
	}

	var resp extraResponse
	if err := c.post(ctx, c.extraURL, req, &resp); err != nil {
		return "", err
	}
	if resp.Extra == "" {
		return "", ErrEmptyExtra
	}
	return "0x" + strings.TrimPrefix(resp.Extra, "0x"), nil
}

func (c *Client) post(ctx context.Context, url string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return readHTTPError(url, resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// HTTPError is a non-2xx response from the bridge backend
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("bridge returned %d: %s", e.StatusCode, e.Body)
}

func readHTTPError(url string, resp *http.Response) error {
	limited := io.LimitReader(resp.Body, maxErrBodyBytes)

	b, err := io.ReadAll(limited)
	if err != nil {
		return fmt.Errorf("POST %s returned %d and body read failed: %w", url, resp.StatusCode, err)
	}
	return &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
}
