package access

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// User is the identity issued by the managed auth backend. ID and Email are
// immutable for the lifetime of a session.
type User struct {
	ID       string         `json:"id"`
	Email    string         `json:"email"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ProviderSession is the opaque credential bundle issued by the backend on
// sign-in or token refresh.
type ProviderSession struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

// Expired reports whether the session's access token is past its expiry.
func (s *ProviderSession) Expired(now time.Time) bool {
	if s == nil {
		return true
	}
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// AuthChangeEvent enumerates backend auth-state notifications.
type AuthChangeEvent string

const (
	AuthEventInitialSession AuthChangeEvent = "INITIAL_SESSION"
	AuthEventSignedIn       AuthChangeEvent = "SIGNED_IN"
	AuthEventSignedOut      AuthChangeEvent = "SIGNED_OUT"
	AuthEventTokenRefreshed AuthChangeEvent = "TOKEN_REFRESHED"
	AuthEventUserUpdated    AuthChangeEvent = "USER_UPDATED"
)

// AuthStateHandler receives auth-state-change notifications. The session is
// nil for sign-out events.
type AuthStateHandler func(event AuthChangeEvent, session *ProviderSession)

// SignOutScope mirrors the backend's sign-out semantics.
type SignOutScope string

const (
	// SignOutScopeGlobal invalidates every session for the user.
	SignOutScopeGlobal SignOutScope = "global"
	// SignOutScopeLocal invalidates only the current session.
	SignOutScopeLocal SignOutScope = "local"
)

// SignUpParams carries optional profile metadata and a bot-verification
// token alongside the credentials.
type SignUpParams struct {
	Email        string
	Password     string
	RedirectTo   string
	Data         map[string]any
	CaptchaToken string
}

// UserAttributes holds updatable account attributes.
type UserAttributes struct {
	Email    string
	Password string
	Data     map[string]any
}

// AuthClient is the contract the managed auth backend exposes. Every call
// returns the backend's error verbatim; classification happens in this
// package.
type AuthClient interface {
	SignInWithPassword(ctx context.Context, email, password string) (*ProviderSession, error)
	SignUp(ctx context.Context, params SignUpParams) (*ProviderSession, error)
	SignOut(ctx context.Context, scope SignOutScope) error
	GetSession(ctx context.Context) (*ProviderSession, error)
	OnAuthStateChange(handler AuthStateHandler) (unsubscribe func())
	UpdateUser(ctx context.Context, attrs UserAttributes) (*User, error)
	ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error
}

// TokenCache abstracts locally cached auth artifacts. Cleared defensively
// before sign-in and unconditionally on sign-out so stale credentials never
// leak across accounts.
type TokenCache interface {
	Set(name, value string)
	Get(name string) (string, bool)
	Clear()
}

// Outcome is the structured result of an auth action. The caller decides
// whether and how to navigate; actions never perform redirects themselves.
type Outcome struct {
	Destination string
}

// PlanStatus is the access decision derived from role, profile and plan
// records. When IsBlocked is set, Reason carries the human-readable cause.
type PlanStatus struct {
	ShouldRedirect bool
	IsBlocked      bool
	Reason         string
}

// SecurityState is the shared snapshot consumed by the UI: login rate-limit
// standing plus the inactivity warning flag.
type SecurityState struct {
	IsBlocked             bool
	AttemptsRemaining     int
	SessionTimeoutWarning bool
}

// Config holds coordination options
type Config interface {
	GetDashboardRoute() string
	GetSubscriptionRoute() string
	GetLoginRoute() string
	GetSignUpRedirectURL() string
	GetMaxLoginAttempts() int
	GetAttemptWindow() time.Duration
	GetSessionTimeout() time.Duration
	GetTimeoutWarningLead() time.Duration
	GetActivityPollInterval() time.Duration
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] ACCESS "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] ACCESS "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] ACCESS "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] ACCESS "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
