package database

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"assetlend/internal/config"
	"assetlend/internal/model"
)

// Models lists every table the service owns, in migration order.
var Models = []interface{}{
	&model.Role{},
	&model.User{},
	&model.AssetCategory{},
	&model.Asset{},
	&model.Loan{},
	&model.AuditLog{},
}

// NewConnection opens the configured database and migrates the schema.
func NewConnection(cfg config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Type {
	case "postgres":
		dialector = postgres.Open(cfg.DSN())
	case "sqlite":
		dialector = sqlite.Open(cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported database type %q", cfg.Type)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: newGormLogger(log, cfg.LogSQL)})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Type, err)
	}

	if cfg.Type == "sqlite" {
		// sqlite serializes writers anyway; one connection keeps :memory: databases shared.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	log.Info("database ready", zap.String("type", cfg.Type))
	return db, nil
}

// Migrate auto-migrates all models.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models...); err != nil {
		return fmt.Errorf("failed to auto-migrate models: %w", err)
	}
	return nil
}
