package access

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// InitializePasswordResetMessage asks the backend to email a reset link.
type InitializePasswordResetMessage struct {
	Email      string `json:"email" example:"pepe.rone@example.com" doc:"Account email."`
	RedirectTo string `json:"redirect_to,omitempty" doc:"Where the emailed link lands."`
}

func (p InitializePasswordResetMessage) Type() string { return "auth.password_reset" }

// InitializePasswordResetHandler forwards the request to the auth backend.
// The backend responds identically for known and unknown emails, so the
// handler never leaks account existence either.
type InitializePasswordResetHandler struct {
	client AuthClient
	sink   ActivitySink
	logger Logger
}

// NewInitializePasswordResetHandler wires the handler.
func NewInitializePasswordResetHandler(client AuthClient, sink ActivitySink, logger Logger) *InitializePasswordResetHandler {
	if logger == nil {
		logger = defLogger{}
	}
	return &InitializePasswordResetHandler{
		client: client,
		sink:   normalizeActivitySink(sink),
		logger: logger,
	}
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	if event.Email == "" {
		return goerrors.New("password reset requires an email", goerrors.CategoryBadInput)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if err := h.client.ResetPasswordForEmail(ctx, event.Email, event.RedirectTo); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to initialize password reset")
	}

	record := ActivityEvent{
		EventType:  ActivityEventPasswordReset,
		Actor:      ActorRef{Type: "user"},
		Metadata:   map[string]any{"identifier": event.Email},
		OccurredAt: time.Now(),
	}

	if err := h.sink.Record(ctx, record); err != nil {
		h.logger.Warn("password reset activity sink error: %v", err)
	}

	return nil
}
