// Package auth integrates the hosted Supabase identity service: a GoTrue
// REST client for credential flows and JWT middleware for request
// authentication.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/agencydesk/agencydesk/internal/httputil"
	"github.com/agencydesk/agencydesk/pkg/logger"
)

// User is the authenticated identity the rest of the application sees.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
}

// Config holds the identity service connection parameters.
type Config struct {
	URL       string
	AnonKey   string
	JWTSecret string
}

// Session is the token pair returned by a successful credential flow.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	User         User   `json:"user"`
}

// StateFunc observes auth-state changes. A nil user means signed out.
type StateFunc func(user *User)

// Client talks to the GoTrue auth REST surface. All failures carry the
// service's error message so the UI can show it verbatim.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *logger.Logger

	mu          sync.Mutex
	current     *User
	subSeq      int
	subscribers map[int]StateFunc
}

// NewClient creates an identity client.
func NewClient(cfg Config, log *logger.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("auth URL is required")
	}
	if cfg.AnonKey == "" {
		return nil, fmt.Errorf("auth anon key is required")
	}
	if log == nil {
		log = logger.NewDefault("auth")
	}
	return &Client{
		cfg:         cfg,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		log:         log,
		subscribers: make(map[int]StateFunc),
	}, nil
}

// CurrentUser returns the identity of the active session, nil when signed
// out.
func (c *Client) CurrentUser() *User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// SubscribeAuthState registers an observer and returns its release func.
// The observer fires immediately with the current state.
func (c *Client) SubscribeAuthState(fn StateFunc) func() {
	c.mu.Lock()
	c.subSeq++
	id := c.subSeq
	c.subscribers[id] = fn
	current := c.current
	c.mu.Unlock()

	fn(current)

	return func() {
		c.mu.Lock()
		delete(c.subscribers, id)
		c.mu.Unlock()
	}
}

// Register creates a new identity with email and password.
func (c *Client) Register(ctx context.Context, email, password string) (*Session, error) {
	session, err := c.credentialRequest(ctx, "/auth/v1/signup", "", email, password)
	if err != nil {
		return nil, err
	}
	c.setUser(&session.User)
	return session, nil
}

// Login exchanges credentials for a session.
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	session, err := c.credentialRequest(ctx, "/auth/v1/token", "grant_type=password", email, password)
	if err != nil {
		return nil, err
	}
	c.setUser(&session.User)
	return session, nil
}

// Logout revokes the session and notifies observers.
func (c *Client) Logout(ctx context.Context, accessToken string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.cfg.URL, "/")+"/auth/v1/logout", nil)
	if err != nil {
		return err
	}
	req.Header.Set("apikey", c.cfg.AnonKey)
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return c.serviceError(resp)
	}

	c.setUser(nil)
	return nil
}

func (c *Client) credentialRequest(ctx context.Context, path, query, email, password string) (*Session, error) {
	if email == "" || password == "" {
		return nil, fmt.Errorf("email and password are required")
	}

	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, err
	}

	url := strings.TrimRight(c.cfg.URL, "/") + path
	if query != "" {
		url += "?" + query
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.cfg.AnonKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, c.serviceError(resp)
	}

	var session Session
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &session, nil
}

// serviceError extracts the identity service's own message so callers can
// surface it unchanged.
func (c *Client) serviceError(resp *http.Response) error {
	body, _, err := httputil.ReadAllWithLimit(resp.Body, 32<<10)
	if err != nil {
		return fmt.Errorf("auth service error %d", resp.StatusCode)
	}
	var payload struct {
		Message          string `json:"msg"`
		ErrorDescription string `json:"error_description"`
	}
	if json.Unmarshal(body, &payload) == nil {
		if payload.Message != "" {
			return fmt.Errorf("%s", payload.Message)
		}
		if payload.ErrorDescription != "" {
			return fmt.Errorf("%s", payload.ErrorDescription)
		}
	}
	return fmt.Errorf("auth service error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}

func (c *Client) setUser(user *User) {
	c.mu.Lock()
	c.current = user
	fns := make([]StateFunc, 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(user)
	}
}
