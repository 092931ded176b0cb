package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/soultalk/internal/common"
	"github.com/dmitrijs2005/soultalk/internal/netx"
)

const userAgent = "soultalk-cli/1.0"

type HTTPClient struct {
	baseURL string
	http    *http.Client

	mu     sync.Mutex
	tokens *Tokens

	// OnTokens is called after the pair changes, including on refresh.
	OnTokens func(*Tokens)
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) SetTokens(t *Tokens) {
	c.mu.Lock()
	c.tokens = t
	c.mu.Unlock()
}

func (c *HTTPClient) Tokens() *Tokens {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tokens
}

func (c *HTTPClient) replaceTokens(t *Tokens) {
	c.SetTokens(t)
	if c.OnTokens != nil {
		c.OnTokens(t)
	}
}

func (c *HTTPClient) send(ctx context.Context, method, path, bearer string, in, out any) error {
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
	req.Header.Set(common.UserAgentHeaderName, userAgent)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set(common.AuthorizationHeaderName, common.BearerScheme+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if netx.IsUnavailable(err) {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var eb struct {
			Detail string `json:"detail"`
			Code   string `json:"code"`
		}
		if json.NewDecoder(resp.Body).Decode(&eb) == nil {
			apiErr.Detail, apiErr.Code = eb.Detail, eb.Code
		}
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

// authorized sends with the current access token and retries once after a
// refresh when the server rejects it.
func (c *HTTPClient) authorized(ctx context.Context, method, path string, in, out any) error {
	t := c.Tokens()
	if t == nil {
		return ErrNotSignedIn
	}

	err := c.send(ctx, method, path, t.AccessToken, in, out)
	if !errors.Is(err, ErrUnauthorized) || t.RefreshToken == "" {
		return err
	}

	fresh, rerr := c.Refresh(ctx)
	if rerr != nil {
		return err
	}
	return c.send(ctx, method, path, fresh.AccessToken, in, out)
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	return c.send(ctx, http.MethodGet, "/healthz", "", nil, nil)
}

func (c *HTTPClient) Register(ctx context.Context, r Registration) (string, error) {
	var out struct {
		UserID string `json:"user_id"`
	}
	if err := c.send(ctx, http.MethodPost, "/api/auth/register", "", r, &out); err != nil {
		return "", err
	}
	return out.UserID, nil
}

// VerifyEmail signs the account in when the server returns tokens with the
// confirmation.
func (c *HTTPClient) VerifyEmail(ctx context.Context, email, code string) (*User, *Tokens, error) {
	var out struct {
		User   User    `json:"user"`
		Tokens *Tokens `json:"tokens"`
	}
	in := map[string]string{"email": email, "code": code}
	if err := c.send(ctx, http.MethodPost, "/api/auth/verify-email", "", in, &out); err != nil {
		return nil, nil, err
	}
	if out.Tokens != nil {
		c.replaceTokens(out.Tokens)
	}
	return &out.User, out.Tokens, nil
}

func (c *HTTPClient) ResendVerification(ctx context.Context, email string) error {
	return c.send(ctx, http.MethodPost, "/api/auth/resend-verification", "", map[string]string{"email": email}, nil)
}

func (c *HTTPClient) Login(ctx context.Context, email, password string) (*Tokens, error) {
	var out Tokens
	in := map[string]string{"email": email, "password": password}
	if err := c.send(ctx, http.MethodPost, "/api/auth/login", "", in, &out); err != nil {
		return nil, err
	}
	c.replaceTokens(&out)
	return &out, nil
}

func (c *HTTPClient) Refresh(ctx context.Context) (*Tokens, error) {
	t := c.Tokens()
	if t == nil || t.RefreshToken == "" {
		return nil, ErrNotSignedIn
	}

	var out Tokens
	in := map[string]string{"refresh_token": t.RefreshToken}
	if err := c.send(ctx, http.MethodPost, "/api/auth/refresh", "", in, &out); err != nil {
		return nil, err
	}
	c.replaceTokens(&out)
	return &out, nil
}

// Logout revokes the current refresh token and forgets the pair even when
// the server cannot be told.
func (c *HTTPClient) Logout(ctx context.Context) error {
	t := c.Tokens()
	if t == nil {
		return nil
	}
	err := c.send(ctx, http.MethodPost, "/api/auth/logout", "", map[string]string{"refresh_token": t.RefreshToken}, nil)
	c.replaceTokens(nil)
	return err
}

func (c *HTTPClient) LogoutAll(ctx context.Context) (int64, error) {
	var out struct {
		Revoked int64 `json:"revoked"`
	}
	if err := c.authorized(ctx, http.MethodPost, "/api/auth/logout-all", nil, &out); err != nil {
		return 0, err
	}
	c.replaceTokens(nil)
	return out.Revoked, nil
}

func (c *HTTPClient) ForgotPassword(ctx context.Context, email string) error {
	return c.send(ctx, http.MethodPost, "/api/auth/forgot-password", "", map[string]string{"email": email}, nil)
}

func (c *HTTPClient) ResetPassword(ctx context.Context, token, newPassword string) error {
	in := map[string]string{"token": token, "new_password": newPassword}
	return c.send(ctx, http.MethodPost, "/api/auth/reset-password", "", in, nil)
}

// ChangePassword ends every session of the account, this one included.
func (c *HTTPClient) ChangePassword(ctx context.Context, current, next string) error {
	in := map[string]string{"current_password": current, "new_password": next}
	if err := c.authorized(ctx, http.MethodPost, "/api/auth/change-password", in, nil); err != nil {
		return err
	}
	c.replaceTokens(nil)
	return nil
}

func (c *HTTPClient) Profile(ctx context.Context) (*Profile, error) {
	var out Profile
	if err := c.authorized(ctx, http.MethodGet, "/api/users/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
