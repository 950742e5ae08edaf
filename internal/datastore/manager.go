// Package datastore manages the database connection and schema for the
// event, rule, and alert tables.
package datastore

import (
	"context"
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gorm_logger "gorm.io/gorm/logger"

	"github.com/tkarvo/sentinel-go/internal/conf"
	"github.com/tkarvo/sentinel-go/internal/datastore/entities"
)

// Manager owns the GORM connection and knows which SQL dialect is in use.
// The dialect flag matters for JSON metadata filtering, where MySQL and
// SQLite need different extraction expressions.
type Manager struct {
	db      *gorm.DB
	isMySQL bool
}

// Open connects to the configured database backend.
func Open(cfg conf.DatabaseSettings) (*Manager, error) {
	gormCfg := &gorm.Config{
		Logger: gorm_logger.Default.LogMode(gorm_logger.Silent),
	}

	switch cfg.Type {
	case conf.DatabaseSQLite:
		db, err := gorm.Open(sqlite.Open(cfg.Path+"?_foreign_keys=ON"), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite database %s: %w", cfg.Path, err)
		}
		return &Manager{db: db}, nil
	case conf.DatabaseMySQL:
		db, err := gorm.Open(mysql.Open(cfg.DSN), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open mysql database: %w", err)
		}
		return &Manager{db: db, isMySQL: true}, nil
	default:
		return nil, fmt.Errorf("unsupported database type %q", cfg.Type)
	}
}

// Initialize migrates the schema.
func (m *Manager) Initialize() error {
	if err := m.db.AutoMigrate(
		&entities.Event{},
		&entities.Rule{},
		&entities.Alert{},
	); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// DB returns the underlying GORM handle.
func (m *Manager) DB() *gorm.DB {
	return m.db
}

// IsMySQL reports whether the MySQL dialect is in use.
func (m *Manager) IsMySQL() bool {
	return m.isMySQL
}

// Ping verifies database connectivity.
func (m *Manager) Ping(ctx context.Context) error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying connection pool.
func (m *Manager) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
