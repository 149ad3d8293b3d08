package gotrue

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

	"github.com/goliatone/go-errors"

	"github.com/agrovia/go-access"
)

// Client talks to a GoTrue backend and tracks the current session.
type Client struct {
	cfg    Config
	http   *http.Client
	logger access.Logger
	now    func() time.Time

	mu          sync.Mutex
	session     *access.ProviderSession
	subscribers map[int]access.AuthStateHandler
	nextSubID   int
}

// Option customizes client construction.
type Option func(*Client)

// WithLogger overrides the logger.
func WithLogger(logger access.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock injects a custom clock.
func WithClock(clock func() time.Time) Option {
	return func(c *Client) {
		if clock != nil {
			c.now = clock
		}
	}
}

// NewClient builds a GoTrue client.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if cfg.baseURL() == "" {
		return nil, errors.New("gotrue: URL is required", errors.CategoryBadInput)
	}

	c := &Client{
		cfg:         cfg,
		http:        cfg.httpClient(),
		logger:      nopLogger{},
		now:         time.Now,
		subscribers: map[int]access.AuthStateHandler{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c, nil
}

type metaSecurity struct {
	CaptchaToken string `json:"captcha_token,omitempty"`
}

type tokenResponse struct {
	AccessToken  string      `json:"access_token"`
	TokenType    string      `json:"token_type"`
	ExpiresIn    int         `json:"expires_in"`
	RefreshToken string      `json:"refresh_token"`
	User         access.User `json:"user"`
}

type apiError struct {
	Code             int    `json:"code"`
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	ErrorField       string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (e apiError) text() string {
	for _, s := range []string{e.Msg, e.Message, e.ErrorDescription, e.ErrorField} {
		if s != "" {
			return s
		}
	}
	return "authentication backend error"
}

// SignInWithPassword exchanges credentials for a session.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*access.ProviderSession, error) {
	body := map[string]any{
		"email":    email,
		"password": password,
	}

	var res tokenResponse
	if err := c.call(ctx, http.MethodPost, "/token?grant_type=password", "", body, &res); err != nil {
		return nil, err
	}

	session := c.sessionFromToken(res)
	c.setSession(session, access.AuthEventSignedIn)
	return session, nil
}

// SignUp registers a new account. Depending on backend settings the
// response may carry a session or just the unconfirmed user.
func (c *Client) SignUp(ctx context.Context, params access.SignUpParams) (*access.ProviderSession, error) {
	body := map[string]any{
		"email":    params.Email,
		"password": params.Password,
	}
	if len(params.Data) > 0 {
		body["data"] = params.Data
	}
	if params.CaptchaToken != "" {
		body["gotrue_meta_security"] = metaSecurity{CaptchaToken: params.CaptchaToken}
	}

	path := "/signup"
	if params.RedirectTo != "" {
		path = fmt.Sprintf("/signup?redirect_to=%s", url.QueryEscape(params.RedirectTo))
	}

	var res tokenResponse
	if err := c.call(ctx, http.MethodPost, path, "", body, &res); err != nil {
		return nil, err
	}

	if res.AccessToken == "" {
		// email confirmation pending, no session yet
		return &access.ProviderSession{User: res.User}, nil
	}

	session := c.sessionFromToken(res)
	c.setSession(session, access.AuthEventSignedIn)
	return session, nil
}

// SignOut revokes the session server-side and always drops local state,
// notifying subscribers even when the backend call fails.
func (c *Client) SignOut(ctx context.Context, scope access.SignOutScope) error {
	token := c.accessToken()

	var callErr error
	if token != "" {
		path := fmt.Sprintf("/logout?scope=%s", url.QueryEscape(string(scope)))
		callErr = c.call(ctx, http.MethodPost, path, token, nil, nil)
	}

	c.setSession(nil, access.AuthEventSignedOut)
	return callErr
}

// GetSession returns the current session, refreshing it through the
// backend when the access token expired.
func (c *Client) GetSession(ctx context.Context) (*access.ProviderSession, error) {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()

	if session == nil {
		return nil, nil
	}

	if !session.Expired(c.now()) {
		return session, nil
	}

	if session.RefreshToken == "" {
		c.setSession(nil, access.AuthEventSignedOut)
		return nil, access.ErrNoActiveSession
	}

	var res tokenResponse
	err := c.call(ctx, http.MethodPost, "/token?grant_type=refresh_token", "", map[string]any{
		"refresh_token": session.RefreshToken,
	}, &res)
	if err != nil {
		c.setSession(nil, access.AuthEventSignedOut)
		return nil, err
	}

	refreshed := c.sessionFromToken(res)
	c.setSession(refreshed, access.AuthEventTokenRefreshed)
	return refreshed, nil
}

// OnAuthStateChange registers a handler for session transitions. The
// returned function unsubscribes it.
func (c *Client) OnAuthStateChange(handler access.AuthStateHandler) func() {
	if handler == nil {
		return func() {}
	}

	c.mu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.subscribers[id] = handler
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subscribers, id)
		c.mu.Unlock()
	}
}

// UpdateUser changes account attributes on the backend.
func (c *Client) UpdateUser(ctx context.Context, attrs access.UserAttributes) (*access.User, error) {
	token := c.accessToken()
	if token == "" {
		return nil, access.ErrNoActiveSession
	}

	body := map[string]any{}
	if attrs.Email != "" {
		body["email"] = attrs.Email
	}
	if attrs.Password != "" {
		body["password"] = attrs.Password
	}
	if len(attrs.Data) > 0 {
		body["data"] = attrs.Data
	}

	var user access.User
	if err := c.call(ctx, http.MethodPut, "/user", token, body, &user); err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.session != nil {
		c.session.User = user
	}
	session := c.session
	c.mu.Unlock()

	c.notify(access.AuthEventUserUpdated, session)
	return &user, nil
}

// ResetPasswordForEmail asks the backend to email a recovery link.
func (c *Client) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	path := "/recover"
	if redirectTo != "" {
		path = fmt.Sprintf("/recover?redirect_to=%s", url.QueryEscape(redirectTo))
	}

	return c.call(ctx, http.MethodPost, path, "", map[string]any{
		"email": email,
	}, nil)
}

func (c *Client) sessionFromToken(res tokenResponse) *access.ProviderSession {
	expires := time.Time{}
	if res.ExpiresIn > 0 {
		expires = c.now().Add(time.Duration(res.ExpiresIn) * time.Second)
	}

	return &access.ProviderSession{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		TokenType:    res.TokenType,
		ExpiresAt:    expires,
		User:         res.User,
	}
}

func (c *Client) accessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ""
	}
	return c.session.AccessToken
}

func (c *Client) setSession(session *access.ProviderSession, event access.AuthChangeEvent) {
	c.mu.Lock()
	c.session = session
	c.mu.Unlock()

	c.notify(event, session)
}

func (c *Client) notify(event access.AuthChangeEvent, session *access.ProviderSession) {
	c.mu.Lock()
	handlers := make([]access.AuthStateHandler, 0, len(c.subscribers))
	for _, handler := range c.subscribers {
		handlers = append(handlers, handler)
	}
	c.mu.Unlock()

	for _, handler := range handlers {
		handler(event, session)
	}
}

func (c *Client) call(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "gotrue: encode request")
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.baseURL()+path, reader)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "gotrue: build request")
	}

	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("apikey", c.cfg.APIKey)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "gotrue: request failed")
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return c.errorFromResponse(res)
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "gotrue: decode response")
	}

	return nil
}

func (c *Client) errorFromResponse(res *http.Response) error {
	payload, _ := io.ReadAll(io.LimitReader(res.Body, 4096))

	apiErr := apiError{}
	if err := json.Unmarshal(payload, &apiErr); err != nil {
		c.logger.Debug("gotrue: unparseable error payload", "status", res.StatusCode)
	}

	category := errors.CategoryAuth
	if res.StatusCode >= 500 {
		category = errors.CategoryInternal
	}

	return errors.New(apiErr.text(), category).WithMetadata(map[string]any{
		"status":     res.StatusCode,
		"error_code": apiErr.ErrorCode,
	})
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

var _ access.AuthClient = (*Client)(nil)
