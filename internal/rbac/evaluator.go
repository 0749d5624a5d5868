package rbac

import (
	"sort"
	"strings"
)

// Evaluator answers permission questions with hierarchy inheritance: a role
// at level N holds every permission granted directly to any role at level N
// or below. The effective sets are computed once at construction; the
// evaluator is immutable afterwards and safe for unsynchronized concurrent
// reads.
type Evaluator struct {
	effective map[Role]map[string]Permission
}

// NewEvaluator builds an Evaluator over the static catalog.
func NewEvaluator() *Evaluator {
	effective := make(map[Role]map[string]Permission, len(roleLevels))
	for role, level := range roleLevels {
		set := make(map[string]Permission)
		for _, p := range catalog {
			for _, granted := range p.Roles {
				if roleLevels[granted] <= level {
					set[p.ID] = p
					break
				}
			}
		}
		effective[role] = set
	}
	return &Evaluator{effective: effective}
}

// EffectivePermissions returns the full permission set for a role, inherited
// capabilities included, sorted by id. Unknown roles yield an empty set.
func (e *Evaluator) EffectivePermissions(role Role) []Permission {
	set := e.effective[role]
	out := make([]Permission, 0, len(set))
	for _, p := range set {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// HasPermission reports whether the role holds the permission, directly or
// by inheritance.
func (e *Evaluator) HasPermission(role Role, permissionID string) bool {
	_, ok := e.effective[role][normalizePermissionID(permissionID)]
	return ok
}

// HasAnyPermission reports whether the role holds at least one of the given
// permissions.
func (e *Evaluator) HasAnyPermission(role Role, permissionIDs ...string) bool {
	for _, id := range permissionIDs {
		if e.HasPermission(role, id) {
			return true
		}
	}
	return false
}

// HasAllPermissions reports whether the role holds every given permission.
// An empty list is vacuously satisfied.
func (e *Evaluator) HasAllPermissions(role Role, permissionIDs ...string) bool {
	for _, id := range permissionIDs {
		if !e.HasPermission(role, id) {
			return false
		}
	}
	return true
}

// HasRoleLevel reports whether role sits at or above the required role in
// the hierarchy. This is how an admin satisfies a "user" requirement without
// being listed separately.
func (e *Evaluator) HasRoleLevel(role, required Role) bool {
	return RoleLevel(role) >= RoleLevel(required)
}

// CanManageRole reports whether the acting role outranks the target role.
// Strictly greater: a role never manages a peer or a superior.
func (e *Evaluator) CanManageRole(acting, target Role) bool {
	return RoleLevel(acting) > RoleLevel(target)
}

func normalizePermissionID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
