package access

import (
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-router/flash"
	"github.com/google/uuid"
)

// RegisterAccessRoutes mounts the sign-in, sign-up, password-reset, and
// impersonation routes on the given router.
func RegisterAccessRoutes[T any](app router.Router[T], opts ...AccessControllerOption) {

	controller := NewAccessController(opts...)

	app.
		Get(controller.Routes.Login,
			controller.LoginShow,
		).
		SetName("sign-in.get")

	app.
		Post(
			controller.Routes.Login,
			controller.LoginPost,
		).
		SetName("sign-in.post")

	app.Get(controller.Routes.Logout, controller.LogOut).SetName("sign-out.get")

	app.Get(controller.Routes.Register, controller.RegistrationShow).
		SetName("register.get")
	app.Post(controller.Routes.Register, controller.RegistrationCreate).
		SetName("register.post")

	app.Get(controller.Routes.PasswordReset, controller.PasswordResetGet).
		SetName("pwd-reset.get")
	app.Post(controller.Routes.PasswordReset, controller.PasswordResetPost).
		SetName("pwd-reset.post")

	elevated := func(h router.HandlerFunc) router.HandlerFunc {
		protected := controller.Guard.Protected(false)
		requireElevated := controller.Guard.RequireElevated(controller.Repo.Roles())
		return protected(requireElevated(h))
	}

	app.Post(controller.Routes.Impersonate, elevated(controller.ImpersonateStart)).
		SetName("impersonate.post")
	app.Post(fmt.Sprintf("%s/stop", controller.Routes.Impersonate), elevated(controller.ImpersonateStop)).
		SetName("impersonate-stop.post")
}

type AccessControllerRoutes struct {
	Login         string
	Logout        string
	Register      string
	PasswordReset string
	Impersonate   string
}

type AccessControllerViews struct {
	Login         string
	Register      string
	PasswordReset string
}

type AccessController struct {
	Debug         bool
	Logger        Logger
	Actions       *Actions
	Guard         *RouteGuard
	State         *StateStore
	Impersonation *ImpersonationContext
	Repo          RepositoryManager
	Captcha       *CaptchaVerifier
	Config        Config
	Resetter      *InitializePasswordResetHandler
	Routes        *AccessControllerRoutes
	Views         *AccessControllerViews
	ErrorHandler  router.ErrorHandler
}

type AccessControllerOption func(*AccessController) *AccessController

func NewAccessController(opts ...AccessControllerOption) *AccessController {
	c := &AccessController{
		Logger:       defLogger{},
		ErrorHandler: defaultErrHandler,
		Routes: &AccessControllerRoutes{
			Login:         "/login",
			Logout:        "/logout",
			Register:      "/register",
			PasswordReset: "/password-reset",
			Impersonate:   "/impersonate",
		},
		Views: &AccessControllerViews{
			Login:         "login",
			Register:      "register",
			PasswordReset: "password_reset",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Actions == nil {
		panic("Missing Actions in access controller...")
	}

	if c.Guard == nil {
		panic("Missing RouteGuard in access controller...")
	}

	if c.State == nil {
		panic("Missing StateStore in access controller...")
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in access controller...")
	}

	if c.Impersonation == nil {
		panic("Missing ImpersonationContext in access controller...")
	}

	if c.Config == nil {
		panic("Missing Config in access controller...")
	}

	return c
}

func (a *AccessController) LoginShow(ctx router.Context) error {
	return ctx.Render(a.Views.Login, router.ViewContext{
		"errors": nil,
		"record": nil,
	})
}

// LoginRequest payload
type LoginRequest struct {
	Email        string `form:"email" json:"email"`
	Password     string `form:"password" json:"password"`
	CaptchaToken string `form:"captcha_token" json:"captcha_token"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&r.Password,
			validation.Required,
		),
	)
}

func (a *AccessController) LoginPost(ctx router.Context) error {
	payload := new(LoginRequest)
	formErrors := map[string]string{}

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("login parse payload: ", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return ctx.Render(a.Views.Login, router.ViewContext{
			"record":     payload,
			"validation": FormatValidationErrorToMap(err),
		})
	}

	if a.Debug {
		fmt.Println("======= ACCESS LOGIN ======")
		fmt.Println(print.MaybePrettyJSON(payload))
		fmt.Println("===========================")
	}

	if a.Captcha != nil {
		ok, err := a.Captcha.Verify(ctx.Context(), payload.CaptchaToken, "")
		if err != nil {
			a.Logger.Error("captcha verify call failed", "error", err)
		} else if !ok {
			formErrors["captcha"] = "Please complete the challenge and try again"
			return ctx.Render(a.Views.Login, router.ViewContext{
				"errors": formErrors,
				"record": payload,
			})
		}
	}

	outcome, err := a.Actions.SignIn(ctx.Context(), payload.Email, payload.Password)
	if err != nil {
		switch {
		case IsRateLimitedError(err):
			formErrors["authentication"] = "Too many attempts, wait a few minutes before retrying"
		case IsUserBlockedError(err):
			formErrors["authentication"] = blockedReason(err)
		default:
			formErrors["authentication"] = "Authentication Error"
		}

		return ctx.Render(a.Views.Login, router.ViewContext{
			"errors": formErrors,
			"record": payload,
		})
	}

	if session := a.State.Snapshot().Session; session != nil {
		a.Guard.StoreSession(ctx, session)
	}

	redirect := a.Guard.GetRedirect(ctx, outcome.Destination)

	return ctx.Redirect(redirect, router.StatusSeeOther)
}

func (a *AccessController) LogOut(ctx router.Context) error {
	outcome, err := a.Actions.SignOut(ctx.Context())
	if err != nil {
		a.Logger.Error("sign out error: ", "error", err)
	}

	a.Guard.ClearSession(ctx)

	return ctx.Redirect(outcome.Destination, router.StatusSeeOther)
}

func (a *AccessController) RegistrationShow(ctx router.Context) error {
	return ctx.Render(a.Views.Register, router.ViewContext{
		"errors": map[string]string{},
		"record": RegistrationCreatePayload{},
	})
}

// RegistrationCreatePayload is the form paylaod
type RegistrationCreatePayload struct {
	FullName        string `form:"full_name" json:"full_name"`
	FarmName        string `form:"farm_name" json:"farm_name"`
	Email           string `form:"email" json:"email"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
	CaptchaToken    string `form:"captcha_token" json:"captcha_token"`
}

// Validate will validate the payload
func (r RegistrationCreatePayload) Validate() error {

	return validation.ValidateStruct(&r,
		validation.Field(&r.FullName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.FarmName, validation.Length(0, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(10, 100)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.Length(10, 100),
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *AccessController) RegistrationCreate(ctx router.Context) error {
	payload := new(RegistrationCreatePayload)

	if err := ctx.Bind(payload); err != nil {
		formErrors := map[string]string{}
		formErrors["form"] = "Failed to parse form"
		a.Logger.Error("registration parse payload: ", "error", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error parsing body",
		}).Status(fiber.StatusBadRequest).Render(a.Views.Register, router.ViewContext{
			"errors": formErrors,
			"record": payload,
		})
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("registration validate payload: ", "error", err)

		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error validating payload",
		}).Render(a.Views.Register, router.ViewContext{
			"record":     payload,
			"validation": FormatValidationErrorToMap(err),
		})
	}

	outcome, err := a.Actions.SignUp(ctx.Context(), SignUpParams{
		Email:        payload.Email,
		Password:     payload.Password,
		CaptchaToken: payload.CaptchaToken,
		Data: map[string]any{
			"nome_completo": payload.FullName,
			"nome_fazenda":  payload.FarmName,
		},
	})
	if err != nil {
		a.Logger.Error("registration error: ", "error", err)

		message := "Error creating your account"
		if IsCaptchaError(err) {
			message = "Please complete the challenge and try again"
		}

		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": message,
		}).Render(a.Views.Register, router.ViewContext{
			"record": payload,
			"errors": []string{message},
		})
	}

	return flash.WithSuccess(ctx, router.ViewContext{
		"system_message": "Check your email to confirm your account",
	}).Redirect(outcome.Destination, fiber.StatusSeeOther)
}

func (a *AccessController) PasswordResetGet(ctx router.Context) error {
	return ctx.Render(a.Views.PasswordReset, router.ViewContext{
		"errors": nil,
		"record": nil,
	})
}

// PasswordResetRequestPayload holds values for password reset
type PasswordResetRequestPayload struct {
	Email string `form:"email" json:"email"`
}

// Validate will validate the payload
func (r PasswordResetRequestPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
	)
}

func (a *AccessController) PasswordResetPost(ctx router.Context) error {
	payload := new(PasswordResetRequestPayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("password reset parse payload: ", "error", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error parsing body",
		}).Status(fiber.StatusBadRequest).Render(a.Views.PasswordReset, router.ViewContext{
			"errors": map[string]string{"form": "Failed to parse form"},
			"record": payload,
		})
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("password reset validate payload: ", "error", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error validating payload",
		}).Render(a.Views.PasswordReset, router.ViewContext{
			"record":     payload,
			"validation": FormatValidationErrorToMap(err),
		})
	}

	if a.Resetter != nil {
		req := InitializePasswordResetMessage{
			Email:      payload.Email,
			RedirectTo: a.Config.GetLoginRoute(),
		}

		if err := a.Resetter.Execute(ctx.Context(), req); err != nil {
			// same page either way, never confirm whether the email exists
			a.Logger.Error("password reset error: ", "error", err)
		}
	}

	return flash.WithSuccess(ctx, router.ViewContext{
		"system_message": "If that email is registered you will receive a reset link",
	}).Redirect(a.Config.GetLoginRoute(), fiber.StatusSeeOther)
}

// ImpersonatePayload identifies the account an operator wants to act as.
type ImpersonatePayload struct {
	UserID string `form:"user_id" json:"user_id"`
}

// Validate will validate the payload
func (r ImpersonatePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.UserID,
			validation.Required,
			is.UUIDv4,
		),
	)
}

func (a *AccessController) ImpersonateStart(ctx router.Context) error {
	acting, err := UserFromContext(ctx)
	if err != nil {
		return a.Guard.AuthErrorHandler(ctx, err)
	}

	payload := new(ImpersonatePayload)
	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	target := User{ID: payload.UserID}

	uid, err := uuid.Parse(payload.UserID)
	if err == nil {
		if profile, perr := a.Repo.Profiles().GetByUserID(ctx.Context(), uid); perr == nil && profile != nil {
			target.Metadata = map[string]any{
				"nome_completo": profile.FullName,
				"nome_fazenda":  profile.FarmName,
			}
		}
	}

	a.Impersonation.Start(ctx.Context(), target, *acting)

	return ctx.Redirect(a.Config.GetDashboardRoute(), router.StatusSeeOther)
}

func (a *AccessController) ImpersonateStop(ctx router.Context) error {
	if err := a.Impersonation.Stop(ctx.Context()); err != nil {
		a.Logger.Error("impersonation stop error: ", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.Redirect(a.Config.GetDashboardRoute(), router.StatusSeeOther)
}

func blockedReason(err error) string {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.Metadata != nil {
		if reason, ok := richErr.Metadata["reason"].(string); ok && reason != "" {
			return reason
		}
	}
	return ReasonAccessInactive
}

// FormatValidationErrorToMap flattens ozzo validation errors for templates.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}

	var errs validation.Errors
	if errors.As(err, &errs) {
		for field, ferr := range errs {
			out[strings.ToLower(field)] = ferr.Error()
		}
		return out
	}

	out["form"] = err.Error()
	return out
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("values must match")
		}
		return nil
	}
}

func defaultErrHandler(c router.Context, err error) error {
	return c.Render("errors/500", router.ViewContext{
		"message": err.Error(),
	})
}
