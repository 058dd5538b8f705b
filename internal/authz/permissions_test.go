package authz

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"assetlend/internal/model"
)

func userWithRole(name string) *model.User {
	return &model.User{ID: uuid.New(), Role: &model.Role{Name: name}, IsActive: true}
}

func TestHasPermission(t *testing.T) {
	assert.False(t, HasPermission(userWithRole("user"), ManageAssets))
	assert.True(t, HasPermission(userWithRole("super_admin"), ManageAssets))
	assert.True(t, HasPermission(userWithRole("ADMIN"), ManageLoans))
	assert.True(t, HasPermission(userWithRole("User"), CreateLoan))

	for _, p := range AllPermissions {
		assert.False(t, HasPermission(userWithRole("unknown"), p), string(p))
	}
}

func TestHasPermission_NoRole(t *testing.T) {
	assert.False(t, HasPermission(&model.User{ID: uuid.New()}, ViewAssets))
	assert.False(t, HasPermission(nil, ViewAssets))
	var nilUser *model.User
	assert.False(t, HasPermission(nilUser, ViewAssets))
}

func TestPermissionsFor(t *testing.T) {
	assert.ElementsMatch(t, AllPermissions, PermissionsFor("super_admin"))
	assert.ElementsMatch(t, AllPermissions, PermissionsFor("Admin"))
	assert.ElementsMatch(t, []Permission{ViewAssets, ViewCategories, ViewOwnLoans, CreateLoan, ReturnLoan}, PermissionsFor("user"))
	assert.Empty(t, PermissionsFor("guest"))

	// Callers get a copy, the table stays intact.
	perms := PermissionsFor("user")
	perms[0] = ManageUsers
	assert.False(t, HasPermission(userWithRole("user"), ManageUsers))
}
