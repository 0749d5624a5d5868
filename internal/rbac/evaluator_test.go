package rbac_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-hr/meridian-hr/internal/rbac"
)

func permissionIDs(perms []rbac.Permission) map[string]struct{} {
	out := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		out[p.ID] = struct{}{}
	}
	return out
}

func TestHierarchyMonotonicity(t *testing.T) {
	e := rbac.NewEvaluator()
	for _, higher := range rbac.Roles() {
		for _, lower := range rbac.Roles() {
			if rbac.RoleLevel(higher) < rbac.RoleLevel(lower) {
				continue
			}
			higherSet := permissionIDs(e.EffectivePermissions(higher))
			for id := range permissionIDs(e.EffectivePermissions(lower)) {
				_, ok := higherSet[id]
				assert.True(t, ok, "%s should inherit %s from %s", higher, id, lower)
			}
		}
	}
}

func TestRoleLevelScenario(t *testing.T) {
	e := rbac.NewEvaluator()

	assert.Equal(t, 100, rbac.RoleLevel(rbac.RoleAdmin))
	assert.Equal(t, 80, rbac.RoleLevel(rbac.RoleManager))
	assert.Equal(t, 60, rbac.RoleLevel(rbac.RoleUser))

	assert.True(t, e.HasRoleLevel(rbac.RoleAdmin, rbac.RoleUser))
	assert.False(t, e.HasRoleLevel(rbac.RoleUser, rbac.RoleAdmin))
	assert.True(t, e.CanManageRole(rbac.RoleManager, rbac.RoleUser))
	assert.False(t, e.CanManageRole(rbac.RoleUser, rbac.RoleManager))
}

func TestHasRoleLevelReflexive(t *testing.T) {
	e := rbac.NewEvaluator()
	for _, role := range rbac.Roles() {
		assert.True(t, e.HasRoleLevel(role, role), "role %s", role)
	}
}

func TestCanManageRoleIrreflexive(t *testing.T) {
	e := rbac.NewEvaluator()
	for _, role := range rbac.Roles() {
		assert.False(t, e.CanManageRole(role, role), "role %s", role)
	}
}

func TestEffectivePermissionsInheritance(t *testing.T) {
	e := rbac.NewEvaluator()

	// contracts.approve is granted directly to manager only; admin inherits
	// it, user does not reach it.
	assert.True(t, e.HasPermission(rbac.RoleManager, "contracts.approve"))
	assert.True(t, e.HasPermission(rbac.RoleAdmin, "contracts.approve"))
	assert.False(t, e.HasPermission(rbac.RoleUser, "contracts.approve"))

	// dashboard.view is granted at guest level, so everyone holds it.
	for _, role := range rbac.Roles() {
		assert.True(t, e.HasPermission(role, "dashboard.view"), "role %s", role)
	}
}

func TestUnknownRoleDegradesToLeastPrivilege(t *testing.T) {
	e := rbac.NewEvaluator()
	unknown := rbac.Role("superuser")

	assert.Empty(t, e.EffectivePermissions(unknown))
	assert.False(t, e.HasPermission(unknown, "contracts.read"))
	assert.False(t, e.CanManageRole(unknown, rbac.RoleGuest))
	assert.True(t, e.HasRoleLevel(unknown, rbac.Role("other-unknown")))
}

func TestHasAnyAndAllPermissions(t *testing.T) {
	e := rbac.NewEvaluator()

	assert.True(t, e.HasAnyPermission(rbac.RoleUser, "users.edit", "contracts.read"))
	assert.False(t, e.HasAnyPermission(rbac.RoleGuest, "users.edit", "contracts.read"))

	assert.True(t, e.HasAllPermissions(rbac.RoleAdmin, "users.edit", "contracts.read"))
	assert.False(t, e.HasAllPermissions(rbac.RoleUser, "users.edit", "contracts.read"))
	assert.True(t, e.HasAllPermissions(rbac.RoleGuest), "empty requirement is vacuously satisfied")
}

func TestPermissionIDNormalization(t *testing.T) {
	e := rbac.NewEvaluator()
	require.True(t, e.HasPermission(rbac.RoleUser, "contracts.read"))
	assert.True(t, e.HasPermission(rbac.RoleUser, "  Contracts.Read "))
}
