package access_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrovia/go-access"
)

var (
	adminUser  = access.User{ID: "11111111-1111-4111-8111-111111111111", Email: "staff@agrovia.com"}
	targetUser = access.User{ID: "22222222-2222-4222-8222-222222222222", Email: "farmer@example.com"}
)

func TestImpersonationStartStop(t *testing.T) {
	ctx := context.Background()
	sink := &recordingSink{}

	imp := access.NewImpersonationContext(nil, access.WithImpersonationActivitySink(sink))

	assert.False(t, imp.IsImpersonating())

	imp.Start(ctx, targetUser, adminUser)
	require.True(t, imp.IsImpersonating())

	impersonated, original, ok := imp.State()
	require.True(t, ok)
	assert.Equal(t, targetUser.ID, impersonated.ID)
	assert.Equal(t, adminUser.ID, original.ID)

	require.NoError(t, imp.Stop(ctx))
	assert.False(t, imp.IsImpersonating())

	assert.Equal(t, []access.ActivityEventType{
		access.ActivityEventImpersonationStart,
		access.ActivityEventImpersonationStop,
	}, sink.EventTypes())
}

func TestImpersonationStopWhenIdle(t *testing.T) {
	imp := access.NewImpersonationContext(nil)

	err := imp.Stop(context.Background())
	assert.ErrorIs(t, err, access.ErrNotImpersonating)
}

func TestImpersonationClearedOnSignOut(t *testing.T) {
	client := &fakeAuthClient{session: activeSession(adminUser.Email)}
	store := access.NewStateStore(client)
	imp := access.NewImpersonationContext(store)

	store.Start(context.Background())
	defer store.Close()

	imp.Start(context.Background(), targetUser, adminUser)
	require.True(t, imp.IsImpersonating())

	client.Fire(access.AuthEventSignedOut, nil)

	assert.False(t, imp.IsImpersonating(), "override must not leak into the next session")
}

func TestResolverEffectiveUser(t *testing.T) {
	client := &fakeAuthClient{session: activeSession(adminUser.Email)}
	store := access.NewStateStore(client)
	imp := access.NewImpersonationContext(store)
	resolver := access.NewResolver(store, imp)

	store.Start(context.Background())
	defer store.Close()

	user, ok := resolver.EffectiveUser()
	require.True(t, ok)
	assert.Equal(t, adminUser.Email, user.Email)

	imp.Start(context.Background(), targetUser, adminUser)

	user, ok = resolver.EffectiveUser()
	require.True(t, ok)
	assert.Equal(t, targetUser.ID, user.ID)

	require.NoError(t, imp.Stop(context.Background()))

	user, ok = resolver.EffectiveUser()
	require.True(t, ok)
	assert.Equal(t, adminUser.Email, user.Email)
}

func TestResolverNobodySignedIn(t *testing.T) {
	client := &fakeAuthClient{}
	store := access.NewStateStore(client)
	resolver := access.NewResolver(store, access.NewImpersonationContext(store))

	store.Start(context.Background())
	defer store.Close()

	_, ok := resolver.EffectiveUser()
	assert.False(t, ok)
}
