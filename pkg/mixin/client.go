package mixin

import (
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

	"go.uber.org/zap"
)

const maxErrBodyBytes = 4096

// ErrNoKeystore is returned when an authenticated call is made without credentials
var ErrNoKeystore = errors.New("mixin: keystore required")

// Option configures client settings using the functional options pattern.
type Option func(*settings)

type settings struct {
	logger     *zap.Logger
	httpClient *http.Client
	tokenTTL   time.Duration
	now        func() time.Time
}

// WithLogger sets a custom logger for the client.
func WithLogger(l *zap.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *settings) { s.httpClient = c }
}

// WithTokenTTL sets the lifetime of request tokens.
func WithTokenTTL(ttl time.Duration) Option {
	return func(s *settings) { s.tokenTTL = ttl }
}

func applyOptions(opts []Option) settings {
	s := settings{
		logger:     zap.NewNop(),
		httpClient: http.DefaultClient,
		tokenTTL:   10 * time.Minute,
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}
	return s
}

// Client talks to the custodial network HTTP API
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	tokenTTL   time.Duration
	now        func() time.Time
}

// NewClient creates a client for the API rooted at baseURL
func NewClient(baseURL string, opts ...Option) *Client {
	s := applyOptions(opts)
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: s.httpClient,
		logger:     s.logger,
		tokenTTL:   s.tokenTTL,
		now:        s.now,
	}
}

// TopAssets returns the network's top assets. No authentication is needed.
func (c *Client) TopAssets(ctx context.Context) ([]Asset, error) {
	var assets []Asset
	if err := c.get(ctx, nil, "/network/assets/top", &assets); err != nil {
		return nil, err
	}
	return assets, nil
}

// Asset returns the descriptor of a single asset as seen by the keystore's user
func (c *Client) Asset(ctx context.Context, ks *Keystore, assetID string) (*Asset, error) {
	if ks == nil {
		return nil, ErrNoKeystore
	}
	var asset Asset
	if err := c.get(ctx, ks, "/assets/"+url.PathEscape(assetID), &asset); err != nil {
		return nil, err
	}
	return &asset, nil
}

// Assets returns every asset held by the keystore's user
func (c *Client) Assets(ctx context.Context, ks *Keystore) ([]Asset, error) {
	if ks == nil {
		return nil, ErrNoKeystore
	}
	var assets []Asset
	if err := c.get(ctx, ks, "/assets", &assets); err != nil {
		return nil, err
	}
	return assets, nil
}

// ExternalTransactions returns pending deposits for a deposit address
func (c *Client) ExternalTransactions(ctx context.Context, ks *Keystore, q DepositQuery) ([]Deposit, error) {
	if ks == nil {
		return nil, ErrNoKeystore
	}

	params := url.Values{}
	if q.AssetID != "" {
		params.Set("asset", q.AssetID)
	}
	if q.Destination != "" {
		params.Set("destination", q.Destination)
	}
	if q.Tag != "" {
		params.Set("tag", q.Tag)
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset != "" {
		params.Set("offset", q.Offset)
	}

	uri := "/external/transactions"
	if len(params) > 0 {
		uri += "?" + params.Encode()
	}

	var deposits []Deposit
	if err := c.get(ctx, ks, uri, &deposits); err != nil {
		return nil, err
	}
	return deposits, nil
}

// User looks up a user by id
func (c *Client) User(ctx context.Context, ks *Keystore, userID string) (*User, error) {
	if ks == nil {
		return nil, ErrNoKeystore
	}
	var user User
	if err := c.get(ctx, ks, "/users/"+url.PathEscape(userID), &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) get(ctx context.Context, ks *Keystore, uri string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+uri, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	if ks != nil {
		token, err := SignAuthenticationToken(ks, http.MethodGet, uri, nil, c.now(), c.tokenTTL)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", uri, err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.logger.Debug("mixin request",
		zap.String("uri", uri),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return readHTTPError(uri, resp)
	}

	return decodeEnvelope(resp.Body, out)
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *APIError       `json:"error"`
}

func decodeEnvelope(r io.Reader, out any) error {
	var env envelope
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if env.Error != nil && env.Error.Code != 0 {
		return env.Error
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}

func readHTTPError(uri string, resp *http.Response) error {
	limited := io.LimitReader(resp.Body, maxErrBodyBytes)

	b, err := io.ReadAll(limited)
	if err != nil {
		return fmt.Errorf("GET %s returned %d and body read failed: %w", uri, resp.StatusCode, err)
	}

	var env envelope
	if json.Unmarshal(b, &env) == nil && env.Error != nil && env.Error.Code != 0 {
		return env.Error
	}
	return &APIError{Status: resp.StatusCode, Code: resp.StatusCode, Description: strings.TrimSpace(string(b))}
}

// IsNotFound reports whether err is an API not-found error
func IsNotFound(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == CodeNotFound || apiErr.Code == CodeUserNotFound || apiErr.Status == http.StatusNotFound
}
