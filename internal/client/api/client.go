// Package api is the HTTP transport to the synchronization backend. It
// speaks the JSON wire contract and maps transport failures onto the shared
// error sentinels so the sync engine can distinguish "offline" from
// "session expired" without inspecting HTTP details.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/wassertech/fieldsync/internal/common"
	"github.com/wassertech/fieldsync/internal/logging"
	"github.com/wassertech/fieldsync/internal/wire"
)

// TokenSource supplies the bearer token for authenticated requests.
// *store.Meta satisfies it.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Client talks to the sync backend.
type Client struct {
	baseURL string
	hc      *http.Client
	tokens  TokenSource
	logger  logging.Logger
}

// New returns a Client for the given base URL. timeout bounds each request;
// zero falls back to one minute.
func New(baseURL string, timeout time.Duration, tokens TokenSource, logger logging.Logger) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		hc:      &http.Client{Timeout: timeout},
		tokens:  tokens,
		logger:  logger,
	}
}

// LoginResponse is the body returned by a successful login.
type LoginResponse struct {
	Token    string `json:"token"`
	Role     string `json:"role"`
	ClientID string `json:"clientId,omitempty"`
}

// Login exchanges credentials for a session token. Wrong credentials map to
// common.ErrInvalidCredentials.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/login", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, common.ErrInvalidCredentials
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("login failed: %s", readError(resp))
	}

	var out LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode login response: %w", err)
	}
	return &out, nil
}

// Push uploads local mutations and tombstones. The response is returned
// even when Success is false so the caller can apply per-record results.
func (c *Client) Push(ctx context.Context, pushReq *wire.PushRequest) (*wire.PushResponse, error) {
	var out wire.PushResponse
	if err := c.do(ctx, http.MethodPost, "/api/sync/push", pushReq, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Pull downloads every change committed on the server after since
// (epoch milliseconds, 0 means everything). A non-empty kinds list narrows
// the response to those entity kinds; tombstones are narrowed the same way.
func (c *Client) Pull(ctx context.Context, since int64, kinds []wire.Kind) (*wire.PullResponse, error) {
	var out wire.PullResponse
	q := url.Values{}
	q.Set("since", strconv.FormatInt(since, 10))
	for _, kind := range kinds {
		q.Add("entities[]", string(kind))
	}
	if err := c.do(ctx, http.MethodGet, "/api/sync/pull?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}
	if token == "" {
		return common.ErrSessionExpired
	}
	req.Header.Set("Authorization", "Bearer "+token)

	started := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	c.logger.Debug(ctx, "api call", "method", method, "path", path,
		"status", resp.StatusCode, "duration", time.Since(started).String())

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return common.ErrSessionExpired
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: server returned %d", common.ErrUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%s %s: %s", method, path, readError(resp))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// readError extracts a message from an error body, falling back to the
// status line.
func readError(resp *http.Response) string {
	var e struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if json.Unmarshal(b, &e) == nil {
		if e.Error != "" {
			return e.Error
		}
		if e.Message != "" {
			return e.Message
		}
	}
	return resp.Status
}
