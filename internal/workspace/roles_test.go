package workspace

import "testing"

func TestParseRole(t *testing.T) {
	for _, s := range []string{"owner", "admin", "member", "viewer", "superadmin"} {
		if got := ParseRole(s); got != Role(s) {
			t.Errorf("ParseRole(%q) = %q", s, got)
		}
	}
	for _, s := range []string{"", "root", "Owner", "administrator"} {
		if got := ParseRole(s); got != "" {
			t.Errorf("ParseRole(%q) = %q, want empty", s, got)
		}
	}
}

func TestRolePredicates(t *testing.T) {
	tests := []struct {
		role   Role
		admin  bool
		manage bool
		edit   bool
		useApp bool
	}{
		{RoleOwner, true, true, true, true},
		{RoleAdmin, true, true, true, true},
		{RoleMember, false, false, true, true},
		{RoleViewer, false, false, false, true},
		{RoleSuperadmin, true, true, true, true},
		{Role("unknown"), false, false, false, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			if got := IsAdmin(tt.role); got != tt.admin {
				t.Errorf("IsAdmin = %v, want %v", got, tt.admin)
			}
			if got := CanManageOrganization(tt.role); got != tt.manage {
				t.Errorf("CanManageOrganization = %v, want %v", got, tt.manage)
			}
			if got := CanEdit(tt.role); got != tt.edit {
				t.Errorf("CanEdit = %v, want %v", got, tt.edit)
			}
			if got := CanUseApp(tt.role); got != tt.useApp {
				t.Errorf("CanUseApp = %v, want %v", got, tt.useApp)
			}
		})
	}
	if !IsOwner(RoleOwner) || IsOwner(RoleAdmin) {
		t.Error("IsOwner must hold for owner only")
	}
	if !IsSuperAdmin(RoleSuperadmin) || IsSuperAdmin(RoleOwner) {
		t.Error("IsSuperAdmin must hold for superadmin only")
	}
}
