package authapi

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

	"github.com/jrsteele09/sadsa-portal/session"
	"golang.org/x/oauth2"
)

// Endpoint paths, relative to the API base URL
const (
	LoginPath          = "/auth/login"
	RegisterPath       = "/auth/register"
	ChangePasswordPath = "/auth/change-password"
)

const defaultTimeout = 15 * time.Second

var _ session.Authenticator = (*Client)(nil)

// Client talks to the SADSA authentication endpoints
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type ClientOption func(*Client)

// WithTimeout bounds every request, including connection setup
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// New creates a client for the API rooted at baseURL (e.g. http://localhost:8081/api)
func New(baseURL string, options ...ClientOption) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid auth api url: %q", baseURL)
	}

	c := &Client{
		baseURL:    trimmed,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// BaseURL is the API root this client was built with
func (c *Client) BaseURL() string {
	return c.baseURL
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"motDePasse"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type changePasswordRequest struct {
	OldPassword string `json:"ancienMotDePasse"`
	NewPassword string `json:"nouveauMotDePasse"`
}

type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Login exchanges credentials for a token
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	resp, err := c.post(ctx, c.httpClient, LoginPath, loginRequest{Email: email, Password: password})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return "", &session.AuthenticationError{Kind: session.InvalidCredentials, Message: session.MsgInvalidCredentials}
	case resp.StatusCode == http.StatusForbidden:
		return "", &session.AuthenticationError{Kind: session.AccountInactive, Message: session.MsgAccountInactive}
	case !success(resp.StatusCode):
		return "", serverError(resp)
	}
	return decodeToken(resp)
}

// Register creates an account. The token is empty when the backend doesn't log the user in.
func (c *Client) Register(ctx context.Context, req session.RegisterRequest) (string, error) {
	resp, err := c.post(ctx, c.httpClient, RegisterPath, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if !success(resp.StatusCode) {
		return "", serverError(resp)
	}
	return decodeToken(resp)
}

// ChangePassword changes the password of the user the bearer token belongs to
func (c *Client) ChangePassword(ctx context.Context, bearer, oldPassword, newPassword string) error {
	resp, err := c.post(ctx, c.bearerClient(ctx, bearer), ChangePasswordPath, changePasswordRequest{
		OldPassword: oldPassword,
		NewPassword: newPassword,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusBadRequest, resp.StatusCode == http.StatusUnauthorized:
		return &session.AuthenticationError{Kind: session.InvalidCredentials, Message: session.MsgWrongPassword}
	case !success(resp.StatusCode):
		return serverError(resp)
	}
	return nil
}

// bearerClient wraps the configured client so every request carries the token
func (c *Client) bearerClient(ctx context.Context, bearer string) *http.Client {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: bearer,
		TokenType:   "Bearer",
	}))
	client.Timeout = c.httpClient.Timeout
	return client
}

func (c *Client) post(ctx context.Context, httpClient *http.Client, path string, body any) (*http.Response, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, &session.NetworkError{Err: err}
	}
	return resp, nil
}

func success(status int) bool {
	return status >= 200 && status < 300
}

func decodeToken(resp *http.Response) (string, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &session.NetworkError{Err: err}
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return "", nil
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", &session.AuthenticationError{Kind: session.ServerError, Message: session.MsgConnection, Err: err}
	}
	return tr.Token, nil
}

func serverError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var er errorResponse
	msg := ""
	if json.Unmarshal(body, &er) == nil {
		msg = er.Message
		if msg == "" {
			msg = er.Error
		}
	}
	return &session.AuthenticationError{
		Kind:    session.ServerError,
		Message: msg,
		Err:     fmt.Errorf("unexpected status %d", resp.StatusCode),
	}
}
