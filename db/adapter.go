// Package db opens the relationship store on SQLite or MySQL.
package db

import (
	"fmt"

	"github.com/gamegoo/socialgraph/config"
	dbmysql "github.com/gamegoo/socialgraph/db/mysql"
	dbsqlite "github.com/gamegoo/socialgraph/db/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	ModeSQLite = "sqlite"
	ModeMySQL  = "mysql"
)

// Open returns a *gorm.DB for the configured database mode. SQL is logged to
// log: failures and slow statements always, every statement when LogSQL is set.
func Open(cfg config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	level := gormlogger.Warn
	if cfg.LogSQL {
		level = gormlogger.Info
	}
	gcfg := &gorm.Config{
		Logger:         NewLogger(log, level, cfg.SlowQuery),
		TranslateError: true,
	}
	switch cfg.Mode {
	case ModeSQLite:
		return dbsqlite.Open(cfg.SQLitePath, gcfg)
	case ModeMySQL:
		return dbmysql.Open(cfg.MySQLDSN, gcfg, dbmysql.Pool{
			MaxOpen: cfg.MySQLMaxOpen,
			MaxIdle: cfg.MySQLMaxIdle,
			MaxLife: cfg.MySQLMaxLife,
		})
	default:
		return nil, fmt.Errorf("db: unknown mode %q", cfg.Mode)
	}
}
