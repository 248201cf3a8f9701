package sqlite

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const busyTimeoutMs = 5000

// DSN turns a file path or file: URI into a DSN with a busy timeout and
// foreign keys enabled. Existing query parameters are kept.
func DSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s_busy_timeout=%d&_foreign_keys=on", path, sep, busyTimeoutMs)
}

// Open creates a GORM *DB backed by SQLite, creating the parent directory of
// an on-disk database.
// SQLite has a single writer, so the pool is pinned to one connection and
// transactions queue instead of failing with "database is locked".
func Open(path string, gcfg *gorm.Config) (*gorm.DB, error) {
	if !strings.HasPrefix(path, "file:") && path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("sqlite data dir: %w", err)
			}
		}
	}
	db, err := gorm.Open(sqlite.Open(DSN(path)), gcfg)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	return db, nil
}
