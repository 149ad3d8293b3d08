package access

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	textCodeUserBlocked      = "USER_BLOCKED"
	textCodeCaptchaRequired  = "CAPTCHA_REQUIRED"
	textCodeTooManyAttempts  = "TOO_MANY_ATTEMPTS"
	textCodeAccessLookup     = "ACCESS_LOOKUP_FAILED"
	textCodeNoActiveSession  = "NO_ACTIVE_SESSION"
	textCodeNotImpersonating = "NOT_IMPERSONATING"
)

// ErrUserBlocked is returned when the plan check decides the account must
// not enter the app. The session is force-terminated before it surfaces.
var ErrUserBlocked = goerrors.New("account access is blocked", goerrors.CategoryAuthz).
	WithTextCode(textCodeUserBlocked).
	WithCode(goerrors.CodeUnauthorized)

// ErrCaptchaRequired signals the caller must re-run the bot-verification
// challenge and retry with a fresh token.
var ErrCaptchaRequired = goerrors.New("captcha verification required", goerrors.CategoryValidation).
	WithTextCode(textCodeCaptchaRequired).
	WithCode(goerrors.CodeBadRequest)

// ErrTooManyLoginAttempts rejects a sign-in before the backend is called.
var ErrTooManyLoginAttempts = goerrors.New("too many login attempts", goerrors.CategoryRateLimit).
	WithTextCode(textCodeTooManyAttempts)

// ErrAccessLookupFailed is the fail-closed result when role/profile/plan
// records cannot be read.
var ErrAccessLookupFailed = goerrors.New("unable to verify account access", goerrors.CategoryInternal).
	WithTextCode(textCodeAccessLookup).
	WithCode(goerrors.CodeInternal)

// ErrNoActiveSession is returned by operations that need a signed-in user.
var ErrNoActiveSession = goerrors.New("no active session", goerrors.CategoryAuth).
	WithTextCode(textCodeNoActiveSession).
	WithCode(goerrors.CodeUnauthorized)

// ErrNotImpersonating is returned when stopping an impersonation that was
// never started.
var ErrNotImpersonating = goerrors.New("no impersonation in progress", goerrors.CategoryConflict).
	WithTextCode(textCodeNotImpersonating).
	WithCode(goerrors.CodeConflict)

// IsUserBlockedError reports whether err carries the USER_BLOCKED code.
func IsUserBlockedError(err error) bool {
	return hasTextCode(err, textCodeUserBlocked)
}

// IsCaptchaError reports whether err asks for a bot-verification retry.
func IsCaptchaError(err error) bool {
	return hasTextCode(err, textCodeCaptchaRequired)
}

// IsRateLimitedError reports whether err was produced by the login limiter.
func IsRateLimitedError(err error) bool {
	return hasTextCode(err, textCodeTooManyAttempts)
}

func hasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == code
}

// isCaptchaFailure classifies raw backend messages. The backend reports
// captcha problems as plain message strings, so match on the token itself.
func isCaptchaFailure(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "captcha")
}
