package access_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agrovia/go-access"
)

func TestIsElevated(t *testing.T) {
	assert.True(t, access.IsElevated(access.RoleAdmin))
	assert.True(t, access.IsElevated(access.RoleOwner))
	assert.False(t, access.IsElevated(access.RoleProducer))
	assert.False(t, access.IsElevated(access.RoleViewer))
	assert.False(t, access.IsElevated("intruder"))
}

func TestRoleIsAtLeast(t *testing.T) {
	assert.True(t, access.RoleIsAtLeast(access.RoleOwner, access.RoleAdmin))
	assert.True(t, access.RoleIsAtLeast(access.RoleAdmin, access.RoleProducer))
	assert.True(t, access.RoleIsAtLeast(access.RoleProducer, access.RoleProducer))
	assert.False(t, access.RoleIsAtLeast(access.RoleViewer, access.RoleProducer))
	assert.False(t, access.RoleIsAtLeast("intruder", access.RoleViewer))
}

func TestParseRole(t *testing.T) {
	role, ok := access.ParseRole("admin")
	assert.True(t, ok)
	assert.Equal(t, access.RoleAdmin, role)

	_, ok = access.ParseRole("superhero")
	assert.False(t, ok)
}
