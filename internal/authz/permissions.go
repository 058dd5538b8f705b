// Package authz holds the static role -> permission table and the gate that
// every operation passes through before reaching business logic.
package authz

import (
	"golang.org/x/text/cases"

	"assetlend/internal/model"
)

// Permission is a single capability that a role may grant.
type Permission string

const (
	ManageUsers      Permission = "manage_users"
	ViewUsers        Permission = "view_users"
	ManageRoles      Permission = "manage_roles"
	ViewRoles        Permission = "view_roles"
	ManageAssets     Permission = "manage_assets"
	ViewAssets       Permission = "view_assets"
	ManageCategories Permission = "manage_categories"
	ViewCategories   Permission = "view_categories"
	ManageLoans      Permission = "manage_loans"
	ViewOwnLoans     Permission = "view_own_loans"
	CreateLoan       Permission = "create_loan"
	ReturnLoan       Permission = "return_loan"
	ViewAuditLogs    Permission = "view_audit_logs"
)

// AllPermissions in display order.
var AllPermissions = []Permission{
	ManageUsers, ViewUsers,
	ManageRoles, ViewRoles,
	ManageAssets, ViewAssets,
	ManageCategories, ViewCategories,
	ManageLoans, ViewOwnLoans, CreateLoan, ReturnLoan,
	ViewAuditLogs,
}

var userPermissions = []Permission{
	ViewAssets,
	ViewCategories,
	ViewOwnLoans,
	CreateLoan,
	ReturnLoan,
}

// AdminRoles are the role names treated as administrators.
var AdminRoles = []string{model.RoleSuperAdmin, model.RoleAdmin}

type permissionSet map[Permission]struct{}

// roleTable is built once at init and never mutated afterwards.
var roleTable = buildRoleTable()

func buildRoleTable() map[string]permissionSet {
	toSet := func(perms []Permission) permissionSet {
		set := make(permissionSet, len(perms))
		for _, p := range perms {
			set[p] = struct{}{}
		}
		return set
	}
	full := toSet(AllPermissions)
	return map[string]permissionSet{
		model.RoleSuperAdmin: full,
		model.RoleAdmin:      full,
		model.RoleUser:       toSet(userPermissions),
	}
}

// NormalizeRole folds a role name for case-insensitive comparison.
// A Caser is stateful, so each call gets its own.
func NormalizeRole(name string) string {
	return cases.Fold().String(name)
}

// PermissionsFor returns the permissions granted to roleName. Unknown roles get none.
func PermissionsFor(roleName string) []Permission {
	set, ok := roleTable[NormalizeRole(roleName)]
	if !ok {
		return []Permission{}
	}
	out := make([]Permission, 0, len(set))
	for _, p := range AllPermissions {
		if _, granted := set[p]; granted {
			out = append(out, p)
		}
	}
	return out
}

// Subject is anything carrying a role reference.
type Subject interface {
	RoleName() string
}

// HasPermission is false when the subject has no role; otherwise it is a
// membership test against the role's permission set.
func HasPermission(s Subject, p Permission) bool {
	if s == nil {
		return false
	}
	name := s.RoleName()
	if name == "" {
		return false
	}
	_, ok := roleTable[NormalizeRole(name)][p]
	return ok
}

// IsAdminRole reports whether roleName is one of AdminRoles.
func IsAdminRole(roleName string) bool {
	return roleIn(roleName, AdminRoles)
}

func roleIn(roleName string, roles []string) bool {
	if roleName == "" {
		return false
	}
	n := NormalizeRole(roleName)
	for _, r := range roles {
		if NormalizeRole(r) == n {
			return true
		}
	}
	return false
}
