package testutil

import (
	"fmt"
	"testing"

	"github.com/gamegoo/socialgraph/cache"
	"github.com/gamegoo/socialgraph/config"
	dbadapter "github.com/gamegoo/socialgraph/db"
	"github.com/gamegoo/socialgraph/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SetupTestDB opens a private in-memory SQLite database and runs AutoMigrate.
// Each call gets its own database, so parallel tests do not share rows.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := dbadapter.Open(config.DatabaseConfig{
		Mode:       dbadapter.ModeSQLite,
		SQLitePath: fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
	}, zap.NewNop())
	require.NoError(t, err, "SetupTestDB: Open")
	require.NoError(t, model.AutoMigrate(db), "SetupTestDB: AutoMigrate")
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// SetupTestCache creates LocalCache and LocalPubSub (no Redis required).
func SetupTestCache(t *testing.T) (cache.Cache, cache.PubSub) {
	t.Helper()
	c, ps, err := cache.Open(cache.CacheConfig{}) // empty RedisAddr → LocalCache
	require.NoError(t, err, "SetupTestCache: Open")
	return c, ps
}

// CreateMembers inserts active members with the given nicknames and returns
// their IDs in order.
func CreateMembers(t *testing.T, db *gorm.DB, nicknames ...string) []int64 {
	t.Helper()
	ids := make([]int64, 0, len(nicknames))
	for _, n := range nicknames {
		m := &model.Member{Nickname: n, Status: model.MemberStatusActive}
		require.NoError(t, db.Create(m).Error, "CreateMembers: %s", n)
		ids = append(ids, m.ID)
	}
	return ids
}
