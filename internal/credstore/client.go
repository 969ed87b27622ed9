package credstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to a hosted GoTrue-style credential store over REST. It is
// deliberately thin: every method maps to one endpoint, errors are mapped
// to the sentinels in errors.go, and nothing is cached here.
type Client struct {
	baseURL    string
	anonKey    string
	serviceKey string
	httpClient *http.Client
}

type Config struct {
	BaseURL string
	AnonKey string
	// ServiceKey enables the admin endpoints; leave empty otherwise.
	ServiceKey string
	Timeout    time.Duration
}

func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		anonKey:    cfg.AnonKey,
		serviceKey: cfg.ServiceKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// PasswordGrant exchanges an email/password pair for a session.
func (c *Client) PasswordGrant(ctx context.Context, email, password string) (Grant, error) {
	body := map[string]any{
		"email":    email,
		"password": password,
	}

	var resp struct {
		Session
		User Identity `json:"user"`
	}

	err := c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", c.anonKey, body, &resp)

	if err != nil {
		return Grant{}, err
	}

	resp.Session.ExpiresAt = time.Now().Add(time.Duration(resp.Session.ExpiresIn) * time.Second)

	return Grant{Session: resp.Session, Identity: resp.User}, nil
}

// RefreshGrant exchanges a refresh token for a fresh session.
func (c *Client) RefreshGrant(ctx context.Context, refreshToken string) (Grant, error) {
	body := map[string]any{
		"refresh_token": refreshToken,
	}

	var resp struct {
		Session
		User Identity `json:"user"`
	}

	err := c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=refresh_token", c.anonKey, body, &resp)

	if err != nil {
		return Grant{}, err
	}

	resp.Session.ExpiresAt = time.Now().Add(time.Duration(resp.Session.ExpiresIn) * time.Second)

	return Grant{Session: resp.Session, Identity: resp.User}, nil
}

// SignUp registers a new identity. "Already registered" surfaces as
// ErrAlreadyRegistered so callers can treat it as idempotent success.
func (c *Client) SignUp(ctx context.Context, params SignUpParams) (Identity, error) {
	body := map[string]any{
		"email":    params.Email,
		"password": params.Password,
		"data":     params.Metadata,
	}

	var resp struct {
		// Newer store versions nest the identity, older ones inline it.
		User *Identity `json:"user"`
		Identity
	}

	err := c.do(ctx, http.MethodPost, "/auth/v1/signup", c.anonKey, body, &resp)

	if err != nil {
		return Identity{}, err
	}

	if resp.User != nil {
		return *resp.User, nil
	}

	return resp.Identity, nil
}

// GetUser resolves the identity behind an access token.
func (c *Client) GetUser(ctx context.Context, accessToken string) (Identity, error) {
	var identity Identity

	err := c.do(ctx, http.MethodGet, "/auth/v1/user", accessToken, nil, &identity)

	if err != nil {
		return Identity{}, err
	}

	return identity, nil
}

// Logout revokes the session behind the access token. A failed revoke is
// not fatal to sign-out; callers may ignore the error.
func (c *Client) Logout(ctx context.Context, accessToken string) error {
	return c.do(ctx, http.MethodPost, "/auth/v1/logout", accessToken, nil, nil)
}

// Recover asks the store to send a password-reset email.
func (c *Client) Recover(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/auth/v1/recover", c.anonKey, map[string]any{"email": email}, nil)
}

// AdminListIdentities pages through all identities. Requires a service key.
func (c *Client) AdminListIdentities(ctx context.Context, page, perPage int) ([]Identity, error) {
	if c.serviceKey == "" {
		return nil, ErrUnauthorized
	}

	path := fmt.Sprintf("/auth/v1/admin/users?page=%d&per_page=%d", page, perPage)

	var resp struct {
		Users []Identity `json:"users"`
	}

	err := c.do(ctx, http.MethodGet, path, c.serviceKey, nil, &resp)

	if err != nil {
		return nil, err
	}

	return resp.Users, nil
}

// AdminConfirmUser marks an identity's email as confirmed. Requires a
// service key.
func (c *Client) AdminConfirmUser(ctx context.Context, subjectID string) error {
	if c.serviceKey == "" {
		return ErrUnauthorized
	}

	body := map[string]any{"email_confirm": true}

	return c.do(ctx, http.MethodPut, "/auth/v1/admin/users/"+subjectID, c.serviceKey, body, nil)
}

func (c *Client) do(ctx context.Context, method, path, bearer string, body, out any) error {
	var reader io.Reader

	if body != nil {
		raw, err := json.Marshal(body)

		if err != nil {
			return err
		}

		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)

	if err != nil {
		return err
	}

	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+bearer)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)

	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || len(raw) == 0 {
			return nil
		}
		return json.Unmarshal(raw, out)
	}

	return classifyHTTPError(resp.StatusCode, raw)
}

// classifyHTTPError maps the store's error payloads onto the package's
// sentinel errors. Raw backend text never leaves this package.
func classifyHTTPError(status int, raw []byte) error {
	var payload struct {
		Error       string `json:"error"`
		Description string `json:"error_description"`
		Msg         string `json:"msg"`
		Message     string `json:"message"`
	}

	_ = json.Unmarshal(raw, &payload)

	msg := payload.Description
	if msg == "" {
		msg = payload.Msg
	}
	if msg == "" {
		msg = payload.Message
	}
	if msg == "" {
		msg = payload.Error
	}

	lower := strings.ToLower(msg)

	switch {
	case status == http.StatusTooManyRequests || strings.Contains(lower, "too many requests"):
		return ErrRateLimited
	case strings.Contains(lower, "not confirmed"):
		return ErrEmailNotConfirmed
	case strings.Contains(lower, "already registered"):
		return ErrAlreadyRegistered
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		if strings.Contains(lower, "invalid login credentials") {
			return ErrInvalidCredentials
		}
		return ErrUnauthorized
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		if strings.Contains(lower, "invalid login credentials") {
			return ErrInvalidCredentials
		}
		if strings.Contains(lower, "already registered") {
			return ErrAlreadyRegistered
		}
		return ErrInvalidCredentials
	case status >= 500:
		return ErrUnavailable
	default:
		return fmt.Errorf("credstore: unexpected status %d", status)
	}
}
