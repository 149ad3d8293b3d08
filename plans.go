package access

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// Human-readable reasons surfaced with blocked decisions.
const (
	ReasonAccessInactive = "Your access is inactive, contact support"
	ReasonLookupFailed   = "Unable to verify your account, try again later"
)

// ProfileLookup is the slice of the profiles repository the checker needs.
type ProfileLookup interface {
	GetByUserID(ctx context.Context, userID uuid.UUID, criteria ...repository.SelectCriteria) (*Profile, error)
}

// RoleLookup resolves role assignments for a user.
type RoleLookup interface {
	FindByUserID(ctx context.Context, userID uuid.UUID) ([]*RoleAssignment, error)
}

// PlanLookup resolves the subscription plan that covers a given instant.
type PlanLookup interface {
	FindCurrent(ctx context.Context, userID uuid.UUID, now time.Time) (*Plan, error)
}

// PlanChecker derives the access decision for a user from three independent
// facts: elevated role, profile active flag, and a currently valid plan.
// It performs lookups only, never writes, and is safe to call repeatedly.
type PlanChecker struct {
	profiles ProfileLookup
	roles    RoleLookup
	plans    PlanLookup
	now      func() time.Time
	logger   Logger
}

// PlanCheckerOption customizes checker construction.
type PlanCheckerOption func(*PlanChecker)

// WithPlanCheckerClock injects a custom clock (useful for tests).
func WithPlanCheckerClock(clock func() time.Time) PlanCheckerOption {
	return func(pc *PlanChecker) {
		if clock != nil {
			pc.now = clock
		}
	}
}

// WithPlanCheckerLogger overrides the logger.
func WithPlanCheckerLogger(logger Logger) PlanCheckerOption {
	return func(pc *PlanChecker) {
		if logger != nil {
			pc.logger = logger
		}
	}
}

// NewPlanChecker wires the checker to its lookups.
func NewPlanChecker(profiles ProfileLookup, roles RoleLookup, plans PlanLookup, opts ...PlanCheckerOption) *PlanChecker {
	pc := &PlanChecker{
		profiles: profiles,
		roles:    roles,
		plans:    plans,
		now:      time.Now,
		logger:   defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(pc)
		}
	}

	return pc
}

// CheckUserPlanStatus maps {elevated role, profile active, plan valid} to
// exactly one decision:
//
//	elevated                      -> allowed, no redirect
//	profile active                -> allowed, no redirect
//	profile inactive + valid plan -> blocked (inactive access)
//	profile inactive + no plan    -> redirect to subscription
//
// Elevated roles short-circuit the profile and plan lookups entirely. Any
// lookup failure blocks with a generic reason; access is never granted on
// missing data.
func (pc *PlanChecker) CheckUserPlanStatus(ctx context.Context, userID string) PlanStatus {
	uid, err := uuid.Parse(userID)
	if err != nil {
		pc.logger.Error("plan check received malformed user id", "user_id", userID, "error", err)
		return pc.failClosed()
	}

	elevated, err := pc.hasElevatedRole(ctx, uid)
	if err != nil {
		pc.logger.Error("plan check role lookup failed", "user_id", userID, "error", err)
		return pc.failClosed()
	}

	if elevated {
		return PlanStatus{}
	}

	profile, err := pc.profiles.GetByUserID(ctx, uid)
	if err != nil {
		// a missing profile row also lands here: no record, no access
		pc.logger.Error("plan check profile lookup failed", "user_id", userID, "error", err)
		return pc.failClosed()
	}

	if profile.Active {
		return PlanStatus{}
	}

	plan, err := pc.plans.FindCurrent(ctx, uid, pc.now())
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return PlanStatus{ShouldRedirect: true}
		}
		pc.logger.Error("plan check plan lookup failed", "user_id", userID, "error", err)
		return pc.failClosed()
	}

	if plan.IsCurrent(pc.now()) {
		return PlanStatus{IsBlocked: true, Reason: ReasonAccessInactive}
	}

	return PlanStatus{ShouldRedirect: true}
}

func (pc *PlanChecker) hasElevatedRole(ctx context.Context, userID uuid.UUID) (bool, error) {
	assignments, err := pc.roles.FindByUserID(ctx, userID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return false, nil
		}
		return false, err
	}

	for _, assignment := range assignments {
		if assignment != nil && IsElevated(assignment.Role) {
			return true, nil
		}
	}

	return false, nil
}

func (pc *PlanChecker) failClosed() PlanStatus {
	return PlanStatus{IsBlocked: true, Reason: ReasonLookupFailed}
}
