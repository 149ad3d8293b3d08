package access

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

// SessionContextKey is the router.Context local under which Protected
// stores the authenticated user.
const SessionContextKey = "access:user"

const (
	defaultSessionCookie  = "agrovia_session"
	defaultRejectedCookie = "agrovia_rejected_route"
)

// SessionValidator checks an access token and resolves its user. The
// GoTrue provider implements this against the backend's JWKS.
type SessionValidator interface {
	Validate(ctx context.Context, accessToken string) (*User, error)
}

// RouteGuard protects routes behind a provider session cookie. Every
// request that passes validation also touches the security coordinator,
// so the inactivity clock follows real traffic.
type RouteGuard struct {
	validator        SessionValidator
	security         *Coordinator
	cfg              Config
	sessionCookie    string
	rejectedCookie   string
	Logger           Logger
	AuthErrorHandler func(c router.Context, err error) error
	ErrorHandler     func(c router.Context, err error) error
}

// RouteGuardOption customizes guard construction.
type RouteGuardOption func(*RouteGuard)

// WithGuardLogger overrides the logger.
func WithGuardLogger(logger Logger) RouteGuardOption {
	return func(g *RouteGuard) {
		if logger != nil {
			g.Logger = logger
		}
	}
}

// WithGuardCookieNames overrides the session and rejected-route cookie names.
func WithGuardCookieNames(session, rejected string) RouteGuardOption {
	return func(g *RouteGuard) {
		if session != "" {
			g.sessionCookie = session
		}
		if rejected != "" {
			g.rejectedCookie = rejected
		}
	}
}

// NewRouteGuard builds the HTTP session guard.
func NewRouteGuard(validator SessionValidator, security *Coordinator, cfg Config, opts ...RouteGuardOption) (*RouteGuard, error) {
	if validator == nil {
		return nil, errors.New("route guard requires a session validator", errors.CategoryBadInput)
	}

	g := &RouteGuard{
		validator:      validator,
		security:       security,
		cfg:            cfg,
		sessionCookie:  defaultSessionCookie,
		rejectedCookie: defaultRejectedCookie,
		Logger:         defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}

	g.ErrorHandler = g.defaultErrHandler
	g.AuthErrorHandler = g.defaultAuthErrHandler

	return g, nil
}

// Protected returns middleware that requires a valid session. With
// optional set, requests without a session proceed unauthenticated.
func (g *RouteGuard) Protected(optional bool) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			token := g.tokenFromRequest(ctx)
			if token == "" {
				if optional {
					return hf(ctx)
				}
				return g.AuthErrorHandler(ctx, ErrNoActiveSession)
			}

			user, err := g.validator.Validate(ctx.Context(), token)
			if err != nil {
				if optional {
					g.Logger.Info("optional auth failed, proceeding", "error", err)
					return hf(ctx)
				}
				return g.AuthErrorHandler(ctx, errors.Wrap(err, errors.CategoryAuth, "invalid session token").
					WithCode(errors.CodeUnauthorized))
			}

			ctx.Locals(SessionContextKey, user)

			if g.security != nil {
				g.security.Touch()
			}

			return hf(ctx)
		}
	}
}

// UserFromContext resolves the authenticated user a Protected route stored.
func UserFromContext(ctx router.Context) (*User, error) {
	val := ctx.Locals(SessionContextKey)
	if val == nil {
		return nil, ErrNoActiveSession
	}

	user, ok := val.(*User)
	if user == nil || !ok {
		return nil, ErrNoActiveSession
	}

	return user, nil
}

// RequireElevated returns middleware that rejects users without an
// admin or owner role. Must run after Protected.
func (g *RouteGuard) RequireElevated(lookup RoleLookup) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			user, err := UserFromContext(ctx)
			if err != nil {
				return g.AuthErrorHandler(ctx, err)
			}

			uid, err := uuid.Parse(user.ID)
			if err != nil {
				return g.ErrorHandler(ctx, errors.Wrap(err, errors.CategoryBadInput, "malformed user id"))
			}

			assignments, err := lookup.FindByUserID(ctx.Context(), uid)
			if err != nil {
				return g.ErrorHandler(ctx, errors.Wrap(err, errors.CategoryInternal, "role lookup failed"))
			}

			for _, assignment := range assignments {
				if assignment != nil && IsElevated(assignment.Role) {
					return hf(ctx)
				}
			}

			g.Logger.Warn("elevated route rejected", "user_id", user.ID, "path", ctx.OriginalURL())

			return g.ErrorHandler(ctx, errors.New("elevated role required", errors.CategoryAuthz).
				WithCode(errors.CodeForbidden))
		}
	}
}

// StoreSession writes the provider session into the browser cookie.
func (g *RouteGuard) StoreSession(ctx router.Context, session *ProviderSession) {
	if session == nil || session.AccessToken == "" {
		return
	}

	expires := session.ExpiresAt
	if expires.IsZero() {
		expires = time.Now().Add(24 * time.Hour)
	}

	ctx.Cookie(&router.Cookie{
		Name:     g.sessionCookie,
		Value:    session.AccessToken,
		Expires:  expires,
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

// ClearSession removes the session cookie.
func (g *RouteGuard) ClearSession(ctx router.Context) {
	g.cookieDel(ctx, g.sessionCookie)
}

// GetRedirect pops the rejected-route cookie, falling back to def.
func (g *RouteGuard) GetRedirect(ctx router.Context, def ...string) string {
	r := ctx.Cookies(g.rejectedCookie)
	if r == "" {
		return def[0]
	}
	g.cookieDel(ctx, g.rejectedCookie)
	return r
}

// SetRedirect remembers the rejected route so a successful login can
// land the user back where they were headed.
func (g *RouteGuard) SetRedirect(ctx router.Context) {
	g.Logger.Info("setting redirect cookie", "key", g.rejectedCookie, "path", ctx.OriginalURL())

	ctx.Cookie(&router.Cookie{
		Name:     g.rejectedCookie,
		Value:    ctx.OriginalURL(),
		Expires:  time.Now().Add(time.Minute * 5),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (g *RouteGuard) tokenFromRequest(ctx router.Context) string {
	if cookie := ctx.Cookies(g.sessionCookie); cookie != "" {
		return cookie
	}

	header := ctx.GetString("Authorization", "")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}

	return ""
}

func (g *RouteGuard) cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (g *RouteGuard) defaultAuthErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryAuth, "An unexpected authentication error").
			WithCode(errors.CodeUnauthorized)
	}

	g.Logger.Info(
		"authentication error, redirecting to login",
		"error", richErr.Message,
		"text_code", richErr.TextCode,
		"path", c.OriginalURL(),
	)

	g.SetRedirect(c)

	statusCode := http.StatusSeeOther
	if c.Method() == string(router.GET) {
		statusCode = http.StatusFound
	}

	login := "/login"
	if g.cfg != nil {
		login = g.cfg.GetLoginRoute()
	}
	return c.Redirect(login, statusCode)
}

func (g *RouteGuard) defaultErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	g.Logger.Info(
		"middleware error handler",
		"error", richErr.Message,
		"category", richErr.Category,
		"details", print.MaybePrettyJSON(richErr.Metadata),
	)

	switch richErr.Category {
	case errors.CategoryAuth, errors.CategoryAuthz:
		return g.AuthErrorHandler(c, richErr)
	default:
		return c.Status(richErr.Code).Render("errors/500", router.ViewContext{
			"error": richErr,
		})
	}
}
