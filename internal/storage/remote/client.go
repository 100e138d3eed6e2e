// Package remote is the HTTP client of the session sync protocol. The
// remote copy is the full backup: sessions are sent untruncated.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hacker-kid/internal/logger"
	"hacker-kid/internal/session"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultTimeout bounds every remote call
const DefaultTimeout = 15 * time.Second

// Error is a failed remote call. StatusCode is zero for transport failures.
type Error struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Client talks to the remote session store
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
	nowFunc    func() time.Time
}

// Option configures a Client
type Option func(*Client)

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithToken sends token as a bearer credential on session calls
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// NewClient creates a Client for the store at baseURL
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		nowFunc:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken replaces the bearer credential
func (c *Client) SetToken(token string) {
	c.token = token
}

type fetchResponse struct {
	Found bool   `json:"found"`
	Data  string `json:"data"`
}

type saveRequest struct {
	Username string `json:"username"`
	Data     string `json:"data"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Fetch reads the remote session for username. A nil session with a nil
// error means the store has no record. Stored data that fails to parse is
// logged and reported as no record.
func (c *Client) Fetch(ctx context.Context, username string) (*session.Session, error) {
	query := url.Values{}
	query.Set("username", username)
	query.Set("t", strconv.FormatInt(c.nowFunc().UnixMilli(), 10))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/session?"+query.Encode(), nil)
	if err != nil {
		return nil, &Error{Message: fmt.Sprintf("Cloud fetch failed: %v", err), Err: err}
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Message: fmt.Sprintf("Cloud fetch failed: %v", err), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{StatusCode: resp.StatusCode, Message: fmt.Sprintf("Cloud fetch failed: %v", err), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newStatusError(resp.StatusCode, body)
	}

	var result fetchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &Error{StatusCode: resp.StatusCode, Message: fmt.Sprintf("Cloud fetch failed: %v", err), Err: err}
	}
	if !result.Found {
		return nil, nil
	}

	s, version, err := session.Decode([]byte(result.Data))
	if err != nil {
		logger.Log.WithError(err).WithField("username", username).Warn("Ignoring malformed remote session")
		return nil, nil
	}
	if version < session.CurrentSchemaVersion {
		logger.Log.WithFields(logrus.Fields{
			"username":     username,
			"from_version": version,
		}).Info("Migrated remote session to current schema")
	}
	return &s, nil
}

// Save writes the full session for username. It reports failure through the
// return value only.
func (c *Client) Save(ctx context.Context, username string, s session.Session) bool {
	data, err := session.Encode(s)
	if err != nil {
		logger.Log.WithError(err).WithField("username", username).Error("Failed to encode session for remote save")
		return false
	}

	payload, err := json.Marshal(saveRequest{Username: username, Data: string(data)})
	if err != nil {
		logger.Log.WithError(err).Error("Failed to encode remote save request")
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/session", bytes.NewReader(payload))
	if err != nil {
		logger.Log.WithError(err).Error("Failed to build remote save request")
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Log.WithError(err).WithField("username", username).Warn("Remote save failed")
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.Log.WithFields(logrus.Fields{
			"username": username,
			"status":   resp.StatusCode,
		}).Warn("Remote save rejected")
		return false
	}

	logger.Log.WithFields(logrus.Fields{
		"username": username,
		"bytes":    len(data),
	}).Debug("Remote save completed")
	return true
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// Login exchanges credentials for a bearer token. An empty token with a nil
// error means the server accepted the credentials but does not issue tokens.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	payload, err := json.Marshal(loginRequest{Username: username, Password: password})
	if err != nil {
		return "", fmt.Errorf("error marshaling login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/login", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("error creating login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &Error{Message: fmt.Sprintf("Login failed: %v", err), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &Error{StatusCode: resp.StatusCode, Message: fmt.Sprintf("Login failed: %v", err), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var envelope struct {
			Message string `json:"message"`
		}
		msg := fmt.Sprintf("Login failed: %d", resp.StatusCode)
		if json.Unmarshal(body, &envelope) == nil && envelope.Message != "" {
			msg = envelope.Message
		}
		return "", &Error{StatusCode: resp.StatusCode, Message: msg}
	}

	var result loginResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("error decoding login response: %w", err)
	}
	return result.Token, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func newStatusError(status int, body []byte) *Error {
	var resp errorResponse
	if err := json.Unmarshal(body, &resp); err == nil && resp.Error != "" {
		return &Error{StatusCode: status, Message: resp.Error}
	}
	return &Error{StatusCode: status, Message: fmt.Sprintf("Cloud fetch failed: %d", status)}
}
