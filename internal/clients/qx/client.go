// Package qx provides a client for the Quantum Experience REST API.
//
// The client authenticates with an API token, exchanges it for a
// short-lived access token, and transparently re-authenticates when the
// server reports the access token as expired. All request methods accept
// a context and respect its cancellation.
package qx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultBaseURL is the default Quantum Experience API endpoint.
	DefaultBaseURL = "https://quantumexperience.ng.bluemix.net/api"

	// DefaultTimeout is the default timeout for each request.
	DefaultTimeout = 30 * time.Second

	// DefaultRetries is the default number of attempts per request.
	DefaultRetries = 3

	// MaxShots is the largest shot count the service accepts per experiment.
	MaxShots = 8192
)

// Client talks to the Quantum Experience API.
type Client struct {
	baseURL  string
	apiToken string
	client   *http.Client
	log      zerolog.Logger
	retries  int

	mu          sync.Mutex
	accessToken string
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint. Useful for tests and proxies.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.client = hc
	}
}

// WithRetries sets how many attempts each request gets.
func WithRetries(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.retries = n
		}
	}
}

// WithAccessToken seeds the client with an already-obtained access token,
// skipping the initial login round-trip.
func WithAccessToken(token string) Option {
	return func(c *Client) {
		c.accessToken = token
	}
}

// NewClient creates a Quantum Experience API client.
func NewClient(apiToken string, log zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:  DefaultBaseURL,
		apiToken: apiToken,
		client:   &http.Client{Timeout: DefaultTimeout},
		log:      log.With().Str("client", "qx").Logger(),
		retries:  DefaultRetries,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured API endpoint.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// loginResp is the response of the token exchange endpoint.
type loginResp struct {
	UserID string `json:"userId"`
	ID     string `json:"id"`
	TTL    int64  `json:"ttl"`
}

// authenticate exchanges the API token for an access token.
func (c *Client) authenticate(ctx context.Context) error {
	if c.apiToken == "" {
		return &AuthError{Reason: "no API token configured"}
	}

	body, err := json.Marshal(map[string]string{"apiToken": c.apiToken})
	if err != nil {
		return fmt.Errorf("failed to encode login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/users/loginWithToken", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("login request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusBadRequest {
		return &AuthError{Reason: fmt.Sprintf("server rejected API token (status %d)", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		return newAPIError(resp)
	}

	var login loginResp
	if err := json.NewDecoder(resp.Body).Decode(&login); err != nil {
		return fmt.Errorf("failed to parse login response: %w", err)
	}
	if login.ID == "" {
		return &AuthError{Reason: "login response carried no access token"}
	}

	c.mu.Lock()
	c.accessToken = login.ID
	c.mu.Unlock()

	c.log.Debug().Str("user_id", login.UserID).Int64("ttl", login.TTL).Msg("Obtained access token")
	return nil
}

// token returns the current access token, logging in first if needed.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	tok := c.accessToken
	c.mu.Unlock()
	if tok != "" {
		return tok, nil
	}

	if err := c.authenticate(ctx); err != nil {
		return "", err
	}

	c.mu.Lock()
	tok = c.accessToken
	c.mu.Unlock()
	return tok, nil
}

// invalidateToken drops the cached access token so the next request logs in again.
func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.accessToken = ""
	c.mu.Unlock()
}

// get performs an authenticated GET and decodes the JSON response into out.
func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

// post performs an authenticated POST with a JSON body and decodes the response into out.
func (c *Client) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request body: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, nil, payload, out)
}

// do sends one authenticated request with retries. A 401 response
// invalidates the cached access token and the attempt is repeated after a
// fresh login; transient transport and server errors back off briefly
// before the next attempt.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte, out interface{}) error {
	var lastErr error

	for attempt := 1; attempt <= c.retries; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt-1) * 500 * time.Millisecond):
			}
		}

		tok, err := c.token(ctx)
		if err != nil {
			return err
		}

		q := url.Values{}
		for k, vs := range query {
			q[k] = vs
		}
		q.Set("access_token", tok)
		reqURL := c.baseURL + path + "?" + q.Encode()

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
		if err != nil {
			return fmt.Errorf("failed to build request: %w", err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = fmt.Errorf("request failed: %w", err)
			c.log.Warn().Err(err).Str("path", path).Int("attempt", attempt).Msg("Request failed, retrying")
			continue
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			resp.Body.Close()
			c.invalidateToken()
			lastErr = &APIError{StatusCode: http.StatusUnauthorized, Message: "access token expired"}
			c.log.Debug().Str("path", path).Msg("Access token expired, re-authenticating")
			continue

		case resp.StatusCode >= 500:
			lastErr = newAPIError(resp)
			resp.Body.Close()
			c.log.Warn().Int("status", resp.StatusCode).Str("path", path).Int("attempt", attempt).Msg("Server error, retrying")
			continue

		case resp.StatusCode != http.StatusOK:
			defer resp.Body.Close()
			return newAPIError(resp)
		}

		if out == nil {
			resp.Body.Close()
			return nil
		}
		err = json.NewDecoder(resp.Body).Decode(out)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
		return nil
	}

	return fmt.Errorf("request to %s failed after %d attempts: %w", path, c.retries, lastErr)
}
