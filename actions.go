package access

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// Actions exposes the imperative auth operations. Every action returns a
// structured Outcome instead of navigating; the HTTP layer (or whatever
// front end consumes this) performs the actual redirect.
type Actions struct {
	client   AuthClient
	checker  *PlanChecker
	security *Coordinator
	tokens   TokenCache
	cfg      Config
	sink     ActivitySink
	logger   Logger
}

// ActionsOption customizes construction.
type ActionsOption func(*Actions)

// WithActionsActivitySink sets the audit sink.
func WithActionsActivitySink(sink ActivitySink) ActionsOption {
	return func(a *Actions) {
		a.sink = normalizeActivitySink(sink)
	}
}

// WithActionsLogger overrides the logger.
func WithActionsLogger(logger Logger) ActionsOption {
	return func(a *Actions) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithActionsTokenCache overrides the local token cache. Defaults to the
// state store's cache when wired through NewActions' caller.
func WithActionsTokenCache(cache TokenCache) ActionsOption {
	return func(a *Actions) {
		if cache != nil {
			a.tokens = cache
		}
	}
}

// NewActions wires the auth operations to their collaborators.
func NewActions(client AuthClient, checker *PlanChecker, security *Coordinator, cfg Config, opts ...ActionsOption) *Actions {
	a := &Actions{
		client:   client,
		checker:  checker,
		security: security,
		tokens:   NewMemoryTokenCache(),
		cfg:      cfg,
		sink:     noopActivitySink{},
		logger:   defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}

	return a
}

// SignIn authenticates the credentials against the backend and applies the
// plan gate. Flow: clear stale local tokens, reject rate-limited
// identifiers before the backend sees them, best-effort global sign-out to
// invalidate lingering sessions, then password sign-in. Provider errors
// surface verbatim; there are no retries.
func (a *Actions) SignIn(ctx context.Context, email, password string) (Outcome, error) {
	a.tokens.Clear()

	if err := a.security.CheckLoginAllowed(ctx, email); err != nil {
		a.emit(ctx, ActivityEventSignInFailure, ActorRef{Type: "unknown"}, "", map[string]any{
			"identifier": email,
			"error":      err.Error(),
		})
		return Outcome{}, err
	}

	if err := a.client.SignOut(ctx, SignOutScopeGlobal); err != nil {
		// only here to invalidate lingering sessions; never fatal
		a.logger.Warn("pre-login global sign out failed", "error", err)
	}

	session, err := a.client.SignInWithPassword(ctx, email, password)
	if err != nil {
		a.security.RecordFailedAttempt(ctx, email)
		a.emit(ctx, ActivityEventSignInFailure, ActorRef{Type: "unknown"}, "", map[string]any{
			"identifier": email,
			"error":      err.Error(),
		})
		return Outcome{}, err
	}

	a.security.ResetAttempts(ctx, email)

	if session == nil || session.User.ID == "" {
		a.logger.Error("sign in returned no user")
		return Outcome{}, ErrNoActiveSession
	}

	actor := ActorRef{ID: session.User.ID, Type: "user"}
	status := a.checker.CheckUserPlanStatus(ctx, session.User.ID)

	if status.IsBlocked {
		if err := a.client.SignOut(ctx, SignOutScopeGlobal); err != nil {
			a.logger.Warn("forced sign out after block failed", "error", err)
		}
		a.tokens.Clear()

		a.emit(ctx, ActivityEventSignInBlocked, actor, session.User.ID, map[string]any{
			"identifier": email,
			"reason":     status.Reason,
		})

		return Outcome{}, ErrUserBlocked.WithMetadata(map[string]any{
			"reason": status.Reason,
		})
	}

	destination := a.cfg.GetDashboardRoute()
	if status.ShouldRedirect {
		destination = a.cfg.GetSubscriptionRoute()
	}

	a.emit(ctx, ActivityEventSignInSuccess, actor, session.User.ID, map[string]any{
		"identifier":  email,
		"destination": destination,
	})

	return Outcome{Destination: destination}, nil
}

// SignUp registers a new account. No plan check runs: fresh accounts have
// no plan yet. Captcha-related backend failures are classified so the UI
// can re-prompt the challenge.
func (a *Actions) SignUp(ctx context.Context, params SignUpParams) (Outcome, error) {
	a.tokens.Clear()

	if params.RedirectTo == "" {
		params.RedirectTo = a.cfg.GetSignUpRedirectURL()
	}

	session, err := a.client.SignUp(ctx, params)
	if err != nil {
		if isCaptchaFailure(err) {
			return Outcome{}, goerrors.Wrap(err, goerrors.CategoryValidation, "captcha verification required").
				WithTextCode(textCodeCaptchaRequired).
				WithCode(goerrors.CodeBadRequest)
		}
		return Outcome{}, err
	}

	userID := ""
	if session != nil {
		userID = session.User.ID
	}

	a.emit(ctx, ActivityEventSignUp, ActorRef{ID: userID, Type: "user"}, userID, map[string]any{
		"identifier": params.Email,
	})

	return Outcome{Destination: a.cfg.GetLoginRoute()}, nil
}

// SignOut terminates the session and always resolves to the login route,
// even when the backend call fails: the user-facing requirement is leaving
// the authenticated area, not a clean server round trip.
func (a *Actions) SignOut(ctx context.Context) (Outcome, error) {
	a.tokens.Clear()

	if err := a.client.SignOut(ctx, SignOutScopeGlobal); err != nil {
		a.logger.Warn("sign out failed, leaving authenticated area regardless", "error", err)
	}

	a.emit(ctx, ActivityEventSignOut, ActorRef{Type: "user"}, "", nil)

	return Outcome{Destination: a.cfg.GetLoginRoute()}, nil
}

// UpdateProfile forwards account attribute changes to the backend.
func (a *Actions) UpdateProfile(ctx context.Context, attrs UserAttributes) (*User, error) {
	user, err := a.client.UpdateUser(ctx, attrs)
	if err != nil {
		a.logger.Error("update user failed", "error", err)
		return nil, err
	}
	return user, nil
}

func (a *Actions) emit(ctx context.Context, eventType ActivityEventType, actor ActorRef, userID string, metadata map[string]any) {
	sink := normalizeActivitySink(a.sink)
	event := ActivityEvent{
		EventType: eventType,
		Actor:     actor,
		UserID:    userID,
		Metadata:  metadata,
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	if err := sink.Record(ctx, event); err != nil {
		a.logger.Warn("activity sink record error: %v", err)
	}
}
