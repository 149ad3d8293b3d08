package access

import (
	"context"
	"sync"
)

// ImpersonationContext lets a privileged user act as another identity for
// the rest of the session. It is purely client-local state layered over a
// valid real session: nothing is re-authenticated, only the identity the
// Resolver reports changes. The context stores the override and does not
// enforce authorization; callers gate on elevated roles before Start.
type ImpersonationContext struct {
	mu           sync.Mutex
	impersonated *User
	original     *User
	sink         ActivitySink
	logger       Logger
}

// ImpersonationOption customizes context construction.
type ImpersonationOption func(*ImpersonationContext)

// WithImpersonationActivitySink sets the sink used for start/stop events.
func WithImpersonationActivitySink(sink ActivitySink) ImpersonationOption {
	return func(i *ImpersonationContext) {
		i.sink = normalizeActivitySink(sink)
	}
}

// WithImpersonationLogger overrides the logger.
func WithImpersonationLogger(logger Logger) ImpersonationOption {
	return func(i *ImpersonationContext) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// NewImpersonationContext returns a context hooked into the state store's
// sign-out notifications, so the override can never leak into another
// account's session. A nil store skips the hook.
func NewImpersonationContext(store *StateStore, opts ...ImpersonationOption) *ImpersonationContext {
	i := &ImpersonationContext{
		sink:   noopActivitySink{},
		logger: defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(i)
		}
	}

	if store != nil {
		store.OnSignOut(i.Clear)
	}

	return i
}

// Start installs target as the acting identity on behalf of actingAdmin.
func (i *ImpersonationContext) Start(ctx context.Context, target, actingAdmin User) {
	i.mu.Lock()
	t, a := target, actingAdmin
	i.impersonated = &t
	i.original = &a
	i.mu.Unlock()

	i.record(ctx, ActivityEvent{
		EventType: ActivityEventImpersonationStart,
		Actor:     ActorRef{ID: actingAdmin.ID, Type: "user"},
		UserID:    target.ID,
		Metadata: map[string]any{
			"target_email": target.Email,
		},
	})
}

// Stop removes the override. Returns ErrNotImpersonating when there is
// nothing to stop.
func (i *ImpersonationContext) Stop(ctx context.Context) error {
	i.mu.Lock()
	if i.impersonated == nil {
		i.mu.Unlock()
		return ErrNotImpersonating
	}

	target := *i.impersonated
	var actor ActorRef
	if i.original != nil {
		actor = ActorRef{ID: i.original.ID, Type: "user"}
	}

	i.impersonated = nil
	i.original = nil
	i.mu.Unlock()

	i.record(ctx, ActivityEvent{
		EventType: ActivityEventImpersonationStop,
		Actor:     actor,
		UserID:    target.ID,
	})

	return nil
}

// Clear drops the override without emitting events. Invoked on real
// sign-out.
func (i *ImpersonationContext) Clear() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.impersonated = nil
	i.original = nil
}

// IsImpersonating reports whether an override is active.
func (i *ImpersonationContext) IsImpersonating() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.impersonated != nil
}

// State returns the current override pair. ok is false when idle.
func (i *ImpersonationContext) State() (impersonated, original *User, ok bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.impersonated == nil {
		return nil, nil, false
	}
	return i.impersonated, i.original, true
}

func (i *ImpersonationContext) record(ctx context.Context, event ActivityEvent) {
	sink := normalizeActivitySink(i.sink)
	if err := sink.Record(ctx, event); err != nil {
		i.logger.Warn("impersonation activity sink error: %v", err)
	}
}

// Resolver merges the real auth identity with the impersonation override
// into the acting-as identity every data query must use. There is no
// storage: the answer is re-derived on each call, so it tracks both inputs
// automatically.
type Resolver struct {
	state *StateStore
	imp   *ImpersonationContext
}

// NewResolver binds a resolver to its two identity sources.
func NewResolver(state *StateStore, imp *ImpersonationContext) *Resolver {
	return &Resolver{state: state, imp: imp}
}

// EffectiveUser returns the impersonated identity while an override is
// active, otherwise the real authenticated user. ok is false when nobody
// is signed in.
func (r *Resolver) EffectiveUser() (*User, bool) {
	if r.imp != nil {
		if impersonated, _, ok := r.imp.State(); ok {
			return impersonated, true
		}
	}

	if r.state == nil {
		return nil, false
	}

	return r.state.CurrentUser()
}
