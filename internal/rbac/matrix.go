package rbac

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Role levels establish a total order. A higher level inherits every
// capability granted at lower levels.
var roleLevels = map[Role]int{
	RoleAdmin:    100,
	RoleManager:  80,
	RoleUser:     60,
	RoleProvider: 40,
	RoleClient:   30,
	RoleGuest:    10,
}

// RoleLevel returns the configured level for a role. Unknown roles resolve to
// 0 so malformed input degrades to least privilege instead of failing the
// request pipeline.
func RoleLevel(role Role) int {
	return roleLevels[role]
}

var titler = cases.Title(language.English)

func permission(resource, action, description string, roles ...Role) Permission {
	id := resource + "." + action
	return Permission{
		ID:          id,
		Resource:    resource,
		Action:      action,
		Name:        titler.String(strings.ReplaceAll(id, ".", " ")),
		Description: description,
		Roles:       roles,
	}
}

// catalog is the single source of truth mapping permissions to the roles
// allowed to exercise them directly. It is reviewed as code; there is no
// runtime mutation path.
var catalog = []Permission{
	permission("contracts", "read", "View contracts and their status.", RoleUser, RoleProvider, RoleClient),
	permission("contracts", "create", "Draft new contracts.", RoleUser),
	permission("contracts", "edit", "Modify contract terms before approval.", RoleUser),
	permission("contracts", "delete", "Remove draft contracts.", RoleManager),
	permission("contracts", "approve", "Approve contracts for execution.", RoleManager),
	permission("contracts", "export", "Export contract data.", RoleManager),

	permission("promoters", "read", "View promoter profiles.", RoleUser, RoleProvider),
	permission("promoters", "create", "Register new promoters.", RoleUser),
	permission("promoters", "edit", "Update promoter details and documents.", RoleUser),
	permission("promoters", "delete", "Remove promoter records.", RoleManager),
	permission("promoters", "archive", "Archive inactive promoters.", RoleManager),

	permission("parties", "read", "View company parties.", RoleUser, RoleProvider, RoleClient),
	permission("parties", "create", "Register new parties.", RoleUser),
	permission("parties", "edit", "Update party registration details.", RoleUser),
	permission("parties", "delete", "Remove party records.", RoleManager),

	permission("documents", "read", "View uploaded documents.", RoleUser, RoleProvider, RoleClient),
	permission("documents", "upload", "Upload identity and contract documents.", RoleUser, RoleProvider),
	permission("documents", "delete", "Remove uploaded documents.", RoleManager),

	permission("dashboard", "view", "Access the role dashboard.", RoleGuest),
	permission("dashboard", "analytics", "View cross-tenant analytics.", RoleManager),

	permission("users", "view", "List user accounts.", RoleManager),
	permission("users", "edit", "Update user accounts.", RoleAdmin),
	permission("users", "assign_role", "Change a user's role.", RoleAdmin),

	permission("roles", "view", "View the role hierarchy.", RoleManager),
	permission("permissions", "view", "Inspect the permission catalog.", RoleManager),

	permission("webhooks", "manage", "Configure webhook endpoints and secrets.", RoleAdmin),
	permission("audit", "view", "Read the audit trail.", RoleAdmin),
}

// Catalog returns the full static permission catalog.
func Catalog() []Permission {
	out := make([]Permission, len(catalog))
	copy(out, catalog)
	return out
}

// PermissionsForRole returns the permissions whose role list contains the
// given role directly, without hierarchy inheritance. Unknown roles yield an
// empty set.
func PermissionsForRole(role Role) []Permission {
	var out []Permission
	for _, p := range catalog {
		for _, r := range p.Roles {
			if r == role {
				out = append(out, p)
				break
			}
		}
	}
	return out
}
