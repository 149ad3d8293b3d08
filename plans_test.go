package access_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/agrovia/go-access"
	"github.com/goliatone/go-repository-bun"
)

func newPlanCheckerFixture() (*MockProfileLookup, *MockRoleLookup, *MockPlanLookup, *access.PlanChecker, uuid.UUID) {
	profiles := new(MockProfileLookup)
	roles := new(MockRoleLookup)
	plans := new(MockPlanLookup)

	checker := access.NewPlanChecker(profiles, roles, plans,
		access.WithPlanCheckerClock(func() time.Time {
			return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		}),
	)

	return profiles, roles, plans, checker, uuid.New()
}

func TestPlanCheckElevatedRoleSkipsLookups(t *testing.T) {
	profiles, roles, _, checker, userID := newPlanCheckerFixture()

	roles.On("FindByUserID", mock.Anything, userID).Return([]*access.RoleAssignment{
		{UserID: userID, Role: access.RoleAdmin},
	}, nil)

	status := checker.CheckUserPlanStatus(context.Background(), userID.String())

	assert.False(t, status.IsBlocked)
	assert.False(t, status.ShouldRedirect)
	profiles.AssertNotCalled(t, "GetByUserID", mock.Anything, mock.Anything)
}

func TestPlanCheckActiveProfileAllows(t *testing.T) {
	profiles, roles, _, checker, userID := newPlanCheckerFixture()

	roles.On("FindByUserID", mock.Anything, userID).Return([]*access.RoleAssignment{
		{UserID: userID, Role: access.RoleProducer},
	}, nil)
	profiles.On("GetByUserID", mock.Anything, userID).Return(&access.Profile{
		UserID: userID,
		Active: true,
	}, nil)

	status := checker.CheckUserPlanStatus(context.Background(), userID.String())

	assert.Equal(t, access.PlanStatus{}, status)
}

func TestPlanCheckInactiveProfileWithCurrentPlanBlocks(t *testing.T) {
	profiles, roles, plans, checker, userID := newPlanCheckerFixture()

	ends := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	roles.On("FindByUserID", mock.Anything, userID).Return(nil, repository.NewRecordNotFound())
	profiles.On("GetByUserID", mock.Anything, userID).Return(&access.Profile{
		UserID: userID,
		Active: false,
	}, nil)
	plans.On("FindCurrent", mock.Anything, userID, mock.Anything).Return(&access.Plan{
		UserID: userID,
		Active: true,
		EndsAt: &ends,
	}, nil)

	status := checker.CheckUserPlanStatus(context.Background(), userID.String())

	assert.True(t, status.IsBlocked)
	assert.Equal(t, access.ReasonAccessInactive, status.Reason)
	assert.False(t, status.ShouldRedirect)
}

func TestPlanCheckInactiveProfileWithoutPlanRedirects(t *testing.T) {
	profiles, roles, plans, checker, userID := newPlanCheckerFixture()

	roles.On("FindByUserID", mock.Anything, userID).Return([]*access.RoleAssignment{}, nil)
	profiles.On("GetByUserID", mock.Anything, userID).Return(&access.Profile{
		UserID: userID,
		Active: false,
	}, nil)
	plans.On("FindCurrent", mock.Anything, userID, mock.Anything).Return(nil, repository.NewRecordNotFound())

	status := checker.CheckUserPlanStatus(context.Background(), userID.String())

	assert.False(t, status.IsBlocked)
	assert.True(t, status.ShouldRedirect)
}

func TestPlanCheckInactiveProfileWithLapsedPlanRedirects(t *testing.T) {
	profiles, roles, plans, checker, userID := newPlanCheckerFixture()

	ended := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	roles.On("FindByUserID", mock.Anything, userID).Return([]*access.RoleAssignment{}, nil)
	profiles.On("GetByUserID", mock.Anything, userID).Return(&access.Profile{
		UserID: userID,
		Active: false,
	}, nil)
	plans.On("FindCurrent", mock.Anything, userID, mock.Anything).Return(&access.Plan{
		UserID: userID,
		Active: true,
		EndsAt: &ended,
	}, nil)

	status := checker.CheckUserPlanStatus(context.Background(), userID.String())

	assert.False(t, status.IsBlocked)
	assert.True(t, status.ShouldRedirect)
}

func TestPlanCheckFailsClosed(t *testing.T) {
	t.Run("malformed user id", func(t *testing.T) {
		_, _, _, checker, _ := newPlanCheckerFixture()

		status := checker.CheckUserPlanStatus(context.Background(), "not-a-uuid")

		assert.True(t, status.IsBlocked)
		assert.Equal(t, access.ReasonLookupFailed, status.Reason)
	})

	t.Run("role lookup error", func(t *testing.T) {
		_, roles, _, checker, userID := newPlanCheckerFixture()

		roles.On("FindByUserID", mock.Anything, userID).Return(nil, errors.New("connection refused"))

		status := checker.CheckUserPlanStatus(context.Background(), userID.String())

		assert.True(t, status.IsBlocked)
		assert.Equal(t, access.ReasonLookupFailed, status.Reason)
	})

	t.Run("missing profile", func(t *testing.T) {
		profiles, roles, _, checker, userID := newPlanCheckerFixture()

		roles.On("FindByUserID", mock.Anything, userID).Return([]*access.RoleAssignment{}, nil)
		profiles.On("GetByUserID", mock.Anything, userID).Return(nil, repository.NewRecordNotFound())

		status := checker.CheckUserPlanStatus(context.Background(), userID.String())

		assert.True(t, status.IsBlocked)
		assert.Equal(t, access.ReasonLookupFailed, status.Reason)
	})

	t.Run("plan lookup error", func(t *testing.T) {
		profiles, roles, plans, checker, userID := newPlanCheckerFixture()

		roles.On("FindByUserID", mock.Anything, userID).Return([]*access.RoleAssignment{}, nil)
		profiles.On("GetByUserID", mock.Anything, userID).Return(&access.Profile{
			UserID: userID,
			Active: false,
		}, nil)
		plans.On("FindCurrent", mock.Anything, userID, mock.Anything).Return(nil, errors.New("connection refused"))

		status := checker.CheckUserPlanStatus(context.Background(), userID.String())

		assert.True(t, status.IsBlocked)
		assert.Equal(t, access.ReasonLookupFailed, status.Reason)
	})
}

func TestPlanCheckMissingRoleRowsDefaultToProducer(t *testing.T) {
	profiles, roles, _, checker, userID := newPlanCheckerFixture()

	roles.On("FindByUserID", mock.Anything, userID).Return(nil, repository.NewRecordNotFound())
	profiles.On("GetByUserID", mock.Anything, userID).Return(&access.Profile{
		UserID: userID,
		Active: true,
	}, nil)

	status := checker.CheckUserPlanStatus(context.Background(), userID.String())

	assert.Equal(t, access.PlanStatus{}, status)
}
