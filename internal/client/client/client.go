package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/failseed/internal/common"
)

// APIClient talks to the FailSeed HTTP API. It is safe for concurrent use.
type APIClient struct {
	baseURL string
	http    *http.Client

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	onRefresh    func(TokenPair)
}

func New(baseURL string, timeout time.Duration) *APIClient {
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// HTTPClient exposes the underlying client, e.g. for presigned downloads.
func (c *APIClient) HTTPClient() *http.Client { return c.http }

func (c *APIClient) SetTokens(access, refresh string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken, c.refreshToken = access, refresh
}

func (c *APIClient) Tokens() TokenPair {
	c.mu.Lock()
	defer c.mu.Unlock()
	return TokenPair{AccessToken: c.accessToken, RefreshToken: c.refreshToken}
}

// OnRefresh registers fn to be called with the new pair after an automatic
// token refresh, so callers can persist it.
func (c *APIClient) OnRefresh(fn func(TokenPair)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onRefresh = fn
}

// ---- auth ----

func (c *APIClient) Register(ctx context.Context, email, password string) (*AuthResult, error) {
	var out AuthResult
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", map[string]string{"email": email, "password": password}, &out, false); err != nil {
		return nil, err
	}
	c.SetTokens(out.AccessToken, out.RefreshToken)
	return &out, nil
}

func (c *APIClient) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	var out AuthResult
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", map[string]string{"email": email, "password": password}, &out, false); err != nil {
		return nil, err
	}
	c.SetTokens(out.AccessToken, out.RefreshToken)
	return &out, nil
}

func (c *APIClient) Guest(ctx context.Context) (*AuthResult, error) {
	var out AuthResult
	if err := c.do(ctx, http.MethodPost, "/api/auth/guest", nil, &out, false); err != nil {
		return nil, err
	}
	c.SetTokens(out.AccessToken, "")
	return &out, nil
}

func (c *APIClient) CurrentUser(ctx context.Context) (*User, error) {
	var out User
	if err := c.do(ctx, http.MethodGet, "/api/auth/current-user", nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// ---- conversation ----

func (c *APIClient) Start(ctx context.Context, text string) (*Reply, error) {
	var out Reply
	if err := c.do(ctx, http.MethodPost, "/api/conversation/start", map[string]string{"text": text}, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *APIClient) Continue(ctx context.Context, entryID, message string) (*Reply, error) {
	var out Reply
	body := map[string]string{"entryId": entryID, "message": message}
	if err := c.do(ctx, http.MethodPost, "/api/conversation/continue", body, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *APIClient) Finalize(ctx context.Context, entryID string) (*Growth, error) {
	var out Growth
	if err := c.do(ctx, http.MethodPost, "/api/conversation/finalize", map[string]string{"entryId": entryID}, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// ---- entries ----

func (c *APIClient) Grows(ctx context.Context) ([]Entry, error) {
	var out []Entry
	if err := c.do(ctx, http.MethodGet, "/api/grows", nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *APIClient) Entry(ctx context.Context, id string) (*Entry, error) {
	var out Entry
	if err := c.do(ctx, http.MethodGet, "/api/entry/"+url.PathEscape(id), nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *APIClient) UpdateHint(ctx context.Context, id, status string) (*Entry, error) {
	var out Entry
	if err := c.do(ctx, http.MethodPatch, "/api/entry/"+url.PathEscape(id)+"/hint", map[string]string{"hintStatus": status}, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes an entry and reports whether anything was deleted.
func (c *APIClient) Delete(ctx context.Context, id string) (bool, error) {
	var out struct {
		Success bool `json:"success"`
	}
	if err := c.do(ctx, http.MethodDelete, "/api/entry/"+url.PathEscape(id), nil, &out, true); err != nil {
		return false, err
	}
	return out.Success, nil
}

func (c *APIClient) Analytics(ctx context.Context) (*Analytics, error) {
	var out Analytics
	if err := c.do(ctx, http.MethodGet, "/api/analytics", nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *APIClient) Export(ctx context.Context) (*Export, error) {
	var out Export
	if err := c.do(ctx, http.MethodPost, "/api/export", nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// ---- transport ----

// do sends one request. An authenticated call that fails with an expired
// access token is retried once after refreshing the token pair.
func (c *APIClient) do(ctx context.Context, method, path string, in, out any, authed bool) error {
	err := c.send(ctx, method, path, in, out, authed)
	if !authed || !tokenExpired(err) {
		return err
	}

	if rerr := c.refresh(ctx); rerr != nil {
		return err
	}

	// TOKENS REFRESHED, retrying with the new access token
	return c.send(ctx, method, path, in, out, authed)
}

func (c *APIClient) refresh(ctx context.Context) error {
	tokens := c.Tokens()
	if tokens.RefreshToken == "" {
		return ErrUnauthorized
	}

	var pair TokenPair
	if err := c.send(ctx, http.MethodPost, "/api/auth/refresh", map[string]string{"refreshToken": tokens.RefreshToken}, &pair, false); err != nil {
		return err
	}
	c.SetTokens(pair.AccessToken, pair.RefreshToken)

	c.mu.Lock()
	fn := c.onRefresh
	c.mu.Unlock()
	if fn != nil {
		fn(pair)
	}
	return nil
}

func tokenExpired(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) &&
		apiErr.Status == http.StatusUnauthorized &&
		apiErr.Message == common.ErrTokenExpired.Error()
}

func (c *APIClient) send(ctx context.Context, method, path string, in, out any, authed bool) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
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
	if authed {
		if token := c.Tokens().AccessToken; token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(apiErr)
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
