package rbac

import "testing"

func TestPolicyAllows(t *testing.T) {
	var (
		none     []string
		admin    = []string{GroupAdmin}
		analyst  = []string{GroupAnalyst}
		viewer   = []string{GroupViewer}
		unknown  = []string{"Auditors"}
		multiple = []string{GroupViewer, GroupAnalyst}
	)

	tests := []struct {
		name   string
		policy Policy
		groups []string
		want   bool
	}{
		{name: "Authenticated без групп", policy: Authenticated, groups: none, want: true},
		{name: "Authenticated с неизвестной группой", policy: Authenticated, groups: unknown, want: true},

		{name: "AdminOrAnalyst - admin", policy: AdminOrAnalyst, groups: admin, want: true},
		{name: "AdminOrAnalyst - analyst", policy: AdminOrAnalyst, groups: analyst, want: true},
		{name: "AdminOrAnalyst - viewer запрещён", policy: AdminOrAnalyst, groups: viewer, want: false},
		{name: "AdminOrAnalyst - без групп", policy: AdminOrAnalyst, groups: none, want: false},

		{name: "Viewer - viewer", policy: Viewer, groups: viewer, want: true},
		{name: "Viewer - admin запрещён", policy: Viewer, groups: admin, want: false},
		{name: "Viewer - analyst запрещён", policy: Viewer, groups: analyst, want: false},

		{name: "Admin - admin", policy: Admin, groups: admin, want: true},
		{name: "Admin - analyst запрещён", policy: Admin, groups: analyst, want: false},

		{name: "AnyGroup - viewer", policy: AnyGroup, groups: viewer, want: true},
		{name: "AnyGroup - неизвестная группа", policy: AnyGroup, groups: unknown, want: false},
		{name: "AnyGroup - без групп", policy: AnyGroup, groups: none, want: false},

		{name: "несколько групп", policy: AdminOrAnalyst, groups: multiple, want: true},
		{name: "регистр имени группы важен", policy: Admin, groups: []string{"admin"}, want: false},
		{name: "неизвестная политика", policy: Policy(99), groups: admin, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.Allows(tt.groups); got != tt.want {
				t.Errorf("%s.Allows(%v) = %v, хотели %v", tt.policy, tt.groups, got, tt.want)
			}
		})
	}
}

func TestRuleSelect(t *testing.T) {
	r := Rule{Default: Authenticated, Strict: AdminOrAnalyst}

	if got := r.Select(false); got != Authenticated {
		t.Errorf("Select(false) = %s, хотели Authenticated", got)
	}
	if got := r.Select(true); got != AdminOrAnalyst {
		t.Errorf("Select(true) = %s, хотели IsAdminOrAnalyst", got)
	}

	u := Uniform(Admin)
	if u.Select(false) != Admin || u.Select(true) != Admin {
		t.Error("Uniform(Admin) должен выбирать Admin в обоих режимах")
	}
}

func TestIsOwnerOrAdmin(t *testing.T) {
	tests := []struct {
		name    string
		userID  int64
		ownerID int64
		groups  []string
		want    bool
	}{
		{name: "владелец", userID: 1, ownerID: 1, want: true},
		{name: "чужой без групп", userID: 2, ownerID: 1, want: false},
		{name: "чужой analyst", userID: 2, ownerID: 1, groups: []string{GroupAnalyst}, want: false},
		{name: "чужой admin", userID: 2, ownerID: 1, groups: []string{GroupAdmin}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsOwnerOrAdmin(tt.userID, tt.ownerID, tt.groups); got != tt.want {
				t.Errorf("IsOwnerOrAdmin(%d, %d, %v) = %v, хотели %v",
					tt.userID, tt.ownerID, tt.groups, got, tt.want)
			}
		})
	}
}

func TestIsValidGroup(t *testing.T) {
	for _, g := range []string{GroupAdmin, GroupAnalyst, GroupViewer} {
		if !IsValidGroup(g) {
			t.Errorf("IsValidGroup(%q) = false, хотели true", g)
		}
	}
	for _, g := range []string{"", "admin", "Superuser"} {
		if IsValidGroup(g) {
			t.Errorf("IsValidGroup(%q) = true, хотели false", g)
		}
	}
}

func TestPolicyString(t *testing.T) {
	if Admin.String() != "IsAdmin" {
		t.Errorf("Admin.String() = %q", Admin.String())
	}
	if Policy(42).String() != "Policy(42)" {
		t.Errorf("Policy(42).String() = %q", Policy(42).String())
	}
}
