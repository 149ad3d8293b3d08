package access_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/agrovia/go-access"
	"github.com/goliatone/go-repository-bun"
)

type actionsFixture struct {
	client   *fakeAuthClient
	profiles *MockProfileLookup
	roles    *MockRoleLookup
	plans    *MockPlanLookup
	security *access.Coordinator
	sink     *recordingSink
	actions  *access.Actions
	userID   uuid.UUID
}

func newActionsFixture(t *testing.T) *actionsFixture {
	t.Helper()

	f := &actionsFixture{
		client:   &fakeAuthClient{},
		profiles: new(MockProfileLookup),
		roles:    new(MockRoleLookup),
		plans:    new(MockPlanLookup),
		sink:     &recordingSink{},
		userID:   uuid.New(),
	}

	f.client.signInSession = &access.ProviderSession{
		AccessToken: "token-abc",
		ExpiresAt:   time.Now().Add(time.Hour),
		User: access.User{
			ID:    f.userID.String(),
			Email: "farmer@example.com",
		},
	}

	checker := access.NewPlanChecker(f.profiles, f.roles, f.plans)

	limiter := access.NewLoginRateLimiter(
		access.WithRateLimiterThreshold(5, 15*time.Minute),
	)
	f.security = access.NewCoordinator(limiter, func() {})

	f.actions = access.NewActions(f.client, checker, f.security, testConfig{},
		access.WithActionsActivitySink(f.sink),
	)

	return f
}

func (f *actionsFixture) allowUser() {
	f.roles.On("FindByUserID", mock.Anything, f.userID).Return([]*access.RoleAssignment{}, nil)
	f.profiles.On("GetByUserID", mock.Anything, f.userID).Return(&access.Profile{
		UserID: f.userID,
		Active: true,
	}, nil)
}

func TestSignInSuccessLandsOnDashboard(t *testing.T) {
	f := newActionsFixture(t)
	f.allowUser()

	outcome, err := f.actions.SignIn(context.Background(), "farmer@example.com", "secret")

	require.NoError(t, err)
	assert.Equal(t, "/dashboard", outcome.Destination)
	assert.Contains(t, f.sink.EventTypes(), access.ActivityEventSignInSuccess)
}

func TestSignInElevatedUserSkipsPlanGate(t *testing.T) {
	f := newActionsFixture(t)
	f.roles.On("FindByUserID", mock.Anything, f.userID).Return([]*access.RoleAssignment{
		{UserID: f.userID, Role: access.RoleOwner},
	}, nil)

	outcome, err := f.actions.SignIn(context.Background(), "farmer@example.com", "secret")

	require.NoError(t, err)
	assert.Equal(t, "/dashboard", outcome.Destination)
	f.profiles.AssertNotCalled(t, "GetByUserID", mock.Anything, mock.Anything)
}

func TestSignInWithoutPlanRedirectsToSubscription(t *testing.T) {
	f := newActionsFixture(t)
	f.roles.On("FindByUserID", mock.Anything, f.userID).Return([]*access.RoleAssignment{}, nil)
	f.profiles.On("GetByUserID", mock.Anything, f.userID).Return(&access.Profile{
		UserID: f.userID,
		Active: false,
	}, nil)
	f.plans.On("FindCurrent", mock.Anything, f.userID, mock.Anything).Return(nil, repository.NewRecordNotFound())

	outcome, err := f.actions.SignIn(context.Background(), "farmer@example.com", "secret")

	require.NoError(t, err)
	assert.Equal(t, "/assinatura", outcome.Destination)
}

func TestSignInBlockedUserIsForcedOut(t *testing.T) {
	f := newActionsFixture(t)

	ends := time.Now().Add(365 * 24 * time.Hour)
	f.roles.On("FindByUserID", mock.Anything, f.userID).Return([]*access.RoleAssignment{}, nil)
	f.profiles.On("GetByUserID", mock.Anything, f.userID).Return(&access.Profile{
		UserID: f.userID,
		Active: false,
	}, nil)
	f.plans.On("FindCurrent", mock.Anything, f.userID, mock.Anything).Return(&access.Plan{
		UserID: f.userID,
		Active: true,
		EndsAt: &ends,
	}, nil)

	_, err := f.actions.SignIn(context.Background(), "farmer@example.com", "secret")

	require.Error(t, err)
	assert.True(t, access.IsUserBlockedError(err))

	// pre-login invalidation plus the forced sign-out after the block
	scopes := f.client.SignOutScopes()
	require.Len(t, scopes, 2)
	assert.Equal(t, access.SignOutScopeGlobal, scopes[1])

	assert.Contains(t, f.sink.EventTypes(), access.ActivityEventSignInBlocked)
}

func TestSignInRateLimitStopsBeforeProvider(t *testing.T) {
	f := newActionsFixture(t)
	f.client.signInErr = errors.New("invalid login credentials")

	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := f.actions.SignIn(ctx, "farmer@example.com", "wrong")
		require.Error(t, err)
		assert.False(t, access.IsRateLimitedError(err), "attempt %d should reach the provider", i+1)
	}

	require.Equal(t, 5, f.client.SignInCalls())

	_, err := f.actions.SignIn(ctx, "farmer@example.com", "wrong")
	require.Error(t, err)
	assert.True(t, access.IsRateLimitedError(err))
	assert.Equal(t, 5, f.client.SignInCalls(), "blocked attempt must never reach the provider")
	assert.True(t, f.security.State().IsBlocked)
}

func TestSignInSuccessResetsAttempts(t *testing.T) {
	f := newActionsFixture(t)
	f.allowUser()

	ctx := context.Background()

	f.security.RecordFailedAttempt(ctx, "farmer@example.com")
	f.security.RecordFailedAttempt(ctx, "farmer@example.com")
	require.Equal(t, 3, f.security.State().AttemptsRemaining)

	_, err := f.actions.SignIn(ctx, "farmer@example.com", "secret")
	require.NoError(t, err)

	assert.Equal(t, 5, f.security.State().AttemptsRemaining)
}

func TestSignInProviderErrorSurfacesVerbatim(t *testing.T) {
	f := newActionsFixture(t)
	providerErr := errors.New("invalid login credentials")
	f.client.signInErr = providerErr

	_, err := f.actions.SignIn(context.Background(), "farmer@example.com", "wrong")

	assert.ErrorIs(t, err, providerErr)
	assert.Contains(t, f.sink.EventTypes(), access.ActivityEventSignInFailure)
	assert.Equal(t, 4, f.security.State().AttemptsRemaining)
}

func TestSignUpDefaultsRedirect(t *testing.T) {
	f := newActionsFixture(t)
	f.client.signUpSession = &access.ProviderSession{
		User: access.User{ID: f.userID.String(), Email: "new@example.com"},
	}

	outcome, err := f.actions.SignUp(context.Background(), access.SignUpParams{
		Email:    "new@example.com",
		Password: "long-enough-secret",
	})

	require.NoError(t, err)
	assert.Equal(t, "/login", outcome.Destination)

	require.Len(t, f.client.signUpParams, 1)
	assert.Equal(t, "/login", f.client.signUpParams[0].RedirectTo)
	assert.Contains(t, f.sink.EventTypes(), access.ActivityEventSignUp)
}

func TestSignUpClassifiesCaptchaFailures(t *testing.T) {
	f := newActionsFixture(t)
	f.client.signUpErr = errors.New("captcha verification process failed")

	_, err := f.actions.SignUp(context.Background(), access.SignUpParams{
		Email:    "new@example.com",
		Password: "long-enough-secret",
	})

	require.Error(t, err)
	assert.True(t, access.IsCaptchaError(err))
}

func TestSignOutAlwaysResolvesToLogin(t *testing.T) {
	f := newActionsFixture(t)
	f.client.signOutErr = errors.New("backend unreachable")

	outcome, err := f.actions.SignOut(context.Background())

	require.NoError(t, err, "a failed backend call must not trap the user")
	assert.Equal(t, "/login", outcome.Destination)
	assert.Contains(t, f.sink.EventTypes(), access.ActivityEventSignOut)
}

func TestUpdateProfileForwardsToBackend(t *testing.T) {
	f := newActionsFixture(t)
	f.client.updateUser = &access.User{ID: f.userID.String(), Email: "farmer@example.com"}

	user, err := f.actions.UpdateProfile(context.Background(), access.UserAttributes{
		Data: map[string]any{"nome_fazenda": "Fazenda Boa Vista"},
	})

	require.NoError(t, err)
	assert.Equal(t, f.userID.String(), user.ID)
}
