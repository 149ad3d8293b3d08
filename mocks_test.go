package access_test

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/agrovia/go-access"
	"github.com/goliatone/go-repository-bun"
)

// fakeAuthClient is a scriptable AuthClient that also lets tests fire
// auth-state-change events the way the real backend would.
type fakeAuthClient struct {
	mu sync.Mutex

	signInSession *access.ProviderSession
	signInErr     error
	signInCalls   int

	signUpSession *access.ProviderSession
	signUpErr     error
	signUpParams  []access.SignUpParams

	signOutErr    error
	signOutScopes []access.SignOutScope

	session    *access.ProviderSession
	sessionErr error

	updateUser *access.User
	updateErr  error

	resetErr    error
	resetEmails []string

	handlers []access.AuthStateHandler
}

func (f *fakeAuthClient) SignInWithPassword(_ context.Context, email, password string) (*access.ProviderSession, error) {
	f.mu.Lock()
	f.signInCalls++
	session, err := f.signInSession, f.signInErr
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}

	f.Fire(access.AuthEventSignedIn, session)
	return session, nil
}

func (f *fakeAuthClient) SignUp(_ context.Context, params access.SignUpParams) (*access.ProviderSession, error) {
	f.mu.Lock()
	f.signUpParams = append(f.signUpParams, params)
	session, err := f.signUpSession, f.signUpErr
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return session, nil
}

func (f *fakeAuthClient) SignOut(_ context.Context, scope access.SignOutScope) error {
	f.mu.Lock()
	f.signOutScopes = append(f.signOutScopes, scope)
	err := f.signOutErr
	f.mu.Unlock()

	f.Fire(access.AuthEventSignedOut, nil)
	return err
}

func (f *fakeAuthClient) GetSession(_ context.Context) (*access.ProviderSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session, f.sessionErr
}

func (f *fakeAuthClient) OnAuthStateChange(handler access.AuthStateHandler) func() {
	f.mu.Lock()
	f.handlers = append(f.handlers, handler)
	idx := len(f.handlers) - 1
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		f.handlers[idx] = nil
		f.mu.Unlock()
	}
}

func (f *fakeAuthClient) UpdateUser(_ context.Context, _ access.UserAttributes) (*access.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.updateUser, f.updateErr
}

func (f *fakeAuthClient) ResetPasswordForEmail(_ context.Context, email, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resetEmails = append(f.resetEmails, email)
	return f.resetErr
}

// Fire delivers an event to every live subscriber.
func (f *fakeAuthClient) Fire(event access.AuthChangeEvent, session *access.ProviderSession) {
	f.mu.Lock()
	handlers := append([]access.AuthStateHandler{}, f.handlers...)
	f.mu.Unlock()

	for _, handler := range handlers {
		if handler != nil {
			handler(event, session)
		}
	}
}

func (f *fakeAuthClient) SignInCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signInCalls
}

func (f *fakeAuthClient) SignOutScopes() []access.SignOutScope {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]access.SignOutScope{}, f.signOutScopes...)
}

// recordingSink captures activity events for assertions.
type recordingSink struct {
	mu     sync.Mutex
	events []access.ActivityEvent
}

func (r *recordingSink) Record(_ context.Context, event access.ActivityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingSink) Events() []access.ActivityEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]access.ActivityEvent{}, r.events...)
}

func (r *recordingSink) EventTypes() []access.ActivityEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]access.ActivityEventType, 0, len(r.events))
	for _, event := range r.events {
		types = append(types, event.EventType)
	}
	return types
}

// MockProfileLookup implements access.ProfileLookup
type MockProfileLookup struct {
	mock.Mock
}

func (m *MockProfileLookup) GetByUserID(ctx context.Context, userID uuid.UUID, criteria ...repository.SelectCriteria) (*access.Profile, error) {
	args := m.Called(ctx, userID)
	profile, _ := args.Get(0).(*access.Profile)
	return profile, args.Error(1)
}

// MockRoleLookup implements access.RoleLookup
type MockRoleLookup struct {
	mock.Mock
}

func (m *MockRoleLookup) FindByUserID(ctx context.Context, userID uuid.UUID) ([]*access.RoleAssignment, error) {
	args := m.Called(ctx, userID)
	assignments, _ := args.Get(0).([]*access.RoleAssignment)
	return assignments, args.Error(1)
}

// MockPlanLookup implements access.PlanLookup
type MockPlanLookup struct {
	mock.Mock
}

func (m *MockPlanLookup) FindCurrent(ctx context.Context, userID uuid.UUID, now time.Time) (*access.Plan, error) {
	args := m.Called(ctx, userID, now)
	plan, _ := args.Get(0).(*access.Plan)
	return plan, args.Error(1)
}

// testConfig is a fixed-value access.Config
type testConfig struct{}

func (testConfig) GetDashboardRoute() string                { return "/dashboard" }
func (testConfig) GetSubscriptionRoute() string             { return "/assinatura" }
func (testConfig) GetLoginRoute() string                    { return "/login" }
func (testConfig) GetSignUpRedirectURL() string             { return "/login" }
func (testConfig) GetMaxLoginAttempts() int                 { return 5 }
func (testConfig) GetAttemptWindow() time.Duration          { return 15 * time.Minute }
func (testConfig) GetSessionTimeout() time.Duration         { return 30 * time.Minute }
func (testConfig) GetTimeoutWarningLead() time.Duration     { return 5 * time.Minute }
func (testConfig) GetActivityPollInterval() time.Duration   { return time.Minute }

// fakeClock is a settable clock for deterministic time-based tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
