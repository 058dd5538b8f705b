package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	"golang.org/x/crypto/bcrypt"

	"assetlend/internal/config"
	"assetlend/internal/model"
	"assetlend/internal/security"
)

func TestNewConnection_SQLiteSeed(t *testing.T) {
	db, err := NewConnection(config.DatabaseConfig{Type: "sqlite", Path: ":memory:"}, zap.NewNop())
	require.NoError(t, err)

	hasher := security.NewBcryptHasher(bcrypt.MinCost)
	ctx := context.Background()
	require.NoError(t, Seed(ctx, db, hasher, zap.NewNop()))
	// second run is a no-op
	require.NoError(t, Seed(ctx, db, hasher, zap.NewNop()))

	var roles int64
	require.NoError(t, db.Model(&model.Role{}).Count(&roles).Error)
	assert.EqualValues(t, 2, roles)

	var admin model.User
	require.NoError(t, db.Preload("Role").First(&admin, "id = ?", SuperAdminUserID).Error)
	assert.Equal(t, "superadmin@example.com", admin.Email)
	assert.Equal(t, model.RoleSuperAdmin, admin.RoleName())
	assert.True(t, hasher.Verify("admin123", admin.PasswordHash))

	var user model.User
	require.NoError(t, db.Preload("Role").First(&user, "email = ?", "user@example.com").Error)
	assert.Equal(t, DefaultUserID, user.ID)
	assert.Equal(t, model.RoleUser, user.RoleName())
}

func TestNewConnection_Unsupported(t *testing.T) {
	_, err := NewConnection(config.DatabaseConfig{Type: "oracle"}, zap.NewNop())
	assert.Error(t, err)
}

func TestGormLogger_NotFoundIsSilent(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := zap.New(core)
	db, err := NewConnection(config.DatabaseConfig{Type: "sqlite", Path: ":memory:"}, log)
	require.NoError(t, err)
	require.NoError(t, Seed(context.Background(), db, security.NewBcryptHasher(bcrypt.MinCost), zap.NewNop()))

	var user model.User
	err = db.Where("LOWER(email) = ?", "nobody@example.com").First(&user).Error
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	assert.Zero(t, logs.FilterLevelExact(zapcore.ErrorLevel).Len())
	assert.Zero(t, logs.FilterMessageSnippet("nobody@example.com").Len())
	for _, entry := range logs.All() {
		for _, f := range entry.Context {
			assert.NotContains(t, f.String, "nobody@example.com")
		}
	}
}

func TestGormLogger_QueryErrorIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	db, err := NewConnection(config.DatabaseConfig{Type: "sqlite", Path: ":memory:"}, zap.New(core))
	require.NoError(t, err)

	require.Error(t, db.Exec("SELECT * FROM missing_table").Error)

	errs := logs.FilterLevelExact(zapcore.ErrorLevel).All()
	require.Len(t, errs, 1)
	assert.Equal(t, "gorm", errs[0].LoggerName)
	assert.Equal(t, "query failed", errs[0].Message)
}

func TestGormLogger_LogSQL(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	db, err := NewConnection(config.DatabaseConfig{Type: "sqlite", Path: ":memory:", LogSQL: true}, zap.New(core))
	require.NoError(t, err)

	require.NoError(t, db.Exec("SELECT 1").Error)
	assert.NotZero(t, logs.FilterMessage("query").FilterLevelExact(zapcore.DebugLevel).Len())
}
