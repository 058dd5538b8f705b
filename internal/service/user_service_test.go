package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assetlend/internal/apperr"
	"assetlend/internal/database"
	"assetlend/internal/model"
)

func TestUser_CreateAndUniqueness(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	created, err := e.users.CreateUser(ctx, e.admin, CreateUserRequest{
		Username: "carol", Email: "carol@example.com", Password: "secret1", RoleID: database.UserRoleID.String(),
	})
	require.NoError(t, err)
	assert.Equal(t, model.RoleUser, created.Role)
	assert.True(t, created.IsActive)

	_, err = e.users.CreateUser(ctx, e.admin, CreateUserRequest{
		Username: "carol", Email: "carol2@example.com", Password: "secret1", RoleID: database.UserRoleID.String(),
	})
	assert.EqualError(t, err, "Username already exists")
	assert.Equal(t, map[string]string{"username": "already exists"}, apperr.FieldsOf(err))

	_, err = e.users.CreateUser(ctx, e.admin, CreateUserRequest{
		Username: "carol2", Email: "CAROL@example.com", Password: "secret1", RoleID: database.UserRoleID.String(),
	})
	assert.EqualError(t, err, "Email already exists")

	_, err = e.users.CreateUser(ctx, e.admin, CreateUserRequest{
		Username: "dave", Email: "dave@example.com", Password: "secret1", RoleID: "00000000-0000-0000-0000-0000000000ff",
	})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	assert.EqualValues(t, 1, e.auditCount(t, model.ActionCreate))
}

func TestUser_GetOwnerOrAdmin(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	_, err := e.users.GetUser(ctx, e.borrower, e.borrower.ID.String())
	assert.NoError(t, err)
	_, err = e.users.GetUser(ctx, e.admin, e.borrower.ID.String())
	assert.NoError(t, err)
	_, err = e.users.GetUser(ctx, e.other, e.borrower.ID.String())
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)
}

func TestUser_SelfUpdateLimits(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	res, err := e.users.UpdateUser(ctx, e.borrower, e.borrower.ID.String(), UpdateUserRequest{Username: strPtr("user-renamed")})
	require.NoError(t, err)
	assert.Equal(t, "user-renamed", res.Username)

	adminRole := database.SuperAdminRoleID.String()
	_, err = e.users.UpdateUser(ctx, e.borrower, e.borrower.ID.String(), UpdateUserRequest{RoleID: &adminRole})
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)

	inactive := false
	_, err = e.users.UpdateUser(ctx, e.borrower, e.borrower.ID.String(), UpdateUserRequest{IsActive: &inactive})
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)

	_, err = e.users.UpdateUser(ctx, e.other, e.borrower.ID.String(), UpdateUserRequest{Username: strPtr("hijack")})
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)

	res, err = e.users.UpdateUser(ctx, e.admin, e.borrower.ID.String(), UpdateUserRequest{RoleID: &adminRole})
	require.NoError(t, err)
	assert.Equal(t, model.RoleSuperAdmin, res.Role)
}

func TestUser_DeleteAndDeactivate(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	assert.Error(t, e.users.DeleteUser(ctx, e.admin, e.admin.ID.String()))
	_, err := e.users.SetActive(ctx, e.admin, e.admin.ID.String(), false)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	res, err := e.users.SetActive(ctx, e.admin, e.other.ID.String(), false)
	require.NoError(t, err)
	assert.False(t, res.IsActive)
	assert.EqualValues(t, 1, e.auditCount(t, model.ActionDeactivate))

	require.NoError(t, e.users.DeleteUser(ctx, e.admin, e.other.ID.String()))
	_, err = e.users.GetUser(ctx, e.admin, e.other.ID.String())
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	active := true
	list, total, err := e.users.ListUsers(ctx, UserListFilter{IsActive: &active}, 0, 100)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, list, 2)
}
