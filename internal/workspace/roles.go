package workspace

// Role is a user's role within an organization. The set is closed; parse
// through ParseRole so unknown strings never reach the predicates.
type Role string

const (
	RoleOwner      Role = "owner"
	RoleAdmin      Role = "admin"
	RoleMember     Role = "member"
	RoleViewer     Role = "viewer"
	RoleSuperadmin Role = "superadmin"
)

// ParseRole maps a string to a Role, or "" if it is not a known role.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleOwner, RoleAdmin, RoleMember, RoleViewer, RoleSuperadmin:
		return Role(s)
	}
	return ""
}

// IsOwner reports whether the role is owner.
func IsOwner(r Role) bool { return r == RoleOwner }

// IsAdmin reports whether the role is admin or above.
func IsAdmin(r Role) bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleSuperadmin:
		return true
	case RoleMember, RoleViewer:
		return false
	}
	return false
}

// IsSuperAdmin reports whether the role is the global superadmin role.
func IsSuperAdmin(r Role) bool { return r == RoleSuperadmin }

// CanManageOrganization reports whether the role may change org settings,
// members, and billing.
func CanManageOrganization(r Role) bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleSuperadmin:
		return true
	case RoleMember, RoleViewer:
		return false
	}
	return false
}

// CanEdit reports whether the role may create or modify business records.
// Only viewers are read-only.
func CanEdit(r Role) bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember, RoleSuperadmin:
		return true
	case RoleViewer:
		return false
	}
	return false
}

// CanUseApp reports whether the role grants any access at all to the
// organization's workspace.
func CanUseApp(r Role) bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember, RoleViewer, RoleSuperadmin:
		return true
	}
	return false
}
