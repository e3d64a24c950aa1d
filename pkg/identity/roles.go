package identity

const (
	RoleViewer   = "viewer"
	RoleOperator = "operator"
	RoleAdmin    = "admin"
)

// DefaultRole is the least-privileged role given to new identities.
const DefaultRole = RoleViewer

// RolePermissions lists the permissions each role grants.
var RolePermissions = map[string][]string{
	RoleViewer: {
		"profiles:read:self",
	},
	RoleOperator: {
		"profiles:read",
		"profiles:write",
		"identities:read",
	},
	RoleAdmin: {
		"*",
	},
}

// IsKnownRole reports whether role has a permission set.
func IsKnownRole(role string) bool {
	_, ok := RolePermissions[role]
	return ok
}

// PermissionsFor returns a copy of the permissions granted by role.
func PermissionsFor(role string) []string {
	perms := RolePermissions[role]
	out := make([]string, len(perms))
	copy(out, perms)
	return out
}
