package rbac

// Role identifies a permission tier. The set is closed: roles are
// configuration, validated at the boundary with ParseRole, never created at
// runtime.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleUser     Role = "user"
	RoleProvider Role = "provider"
	RoleClient   Role = "client"
	RoleGuest    Role = "guest"
)

// Permission represents an atomic capability over a resource.
type Permission struct {
	ID          string
	Resource    string
	Action      string
	Name        string
	Description string
	Roles       []Role
}

// ParseRole validates a raw role string against the closed role set.
func ParseRole(raw string) (Role, bool) {
	switch Role(raw) {
	case RoleAdmin, RoleManager, RoleUser, RoleProvider, RoleClient, RoleGuest:
		return Role(raw), true
	}
	return "", false
}

// Roles lists every defined role, highest level first.
func Roles() []Role {
	return []Role{RoleAdmin, RoleManager, RoleUser, RoleProvider, RoleClient, RoleGuest}
}
