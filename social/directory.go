package social

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gamegoo/socialgraph/cache"
	"github.com/gamegoo/socialgraph/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MemberDirectory answers whether a member exists and is active.
type MemberDirectory interface {
	IsActive(ctx context.Context, memberID int64) (bool, error)
}

// DBDirectory reads the members table.
type DBDirectory struct {
	db *gorm.DB
}

// NewDBDirectory creates a directory backed by db.
func NewDBDirectory(db *gorm.DB) *DBDirectory {
	return &DBDirectory{db: db}
}

func (d *DBDirectory) IsActive(ctx context.Context, memberID int64) (bool, error) {
	var m model.Member
	err := d.db.WithContext(ctx).Select("id", "status").Where("id = ?", memberID).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("member directory: %w", err)
	}
	return m.Status == model.MemberStatusActive, nil
}

// CachedDirectory fronts another directory with a short-TTL cache.
// Cache failures fall through to the underlying directory.
type CachedDirectory struct {
	next   MemberDirectory
	cache  cache.Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedDirectory wraps next. A non-positive ttl disables caching.
func NewCachedDirectory(next MemberDirectory, c cache.Cache, ttl time.Duration, logger *zap.Logger) *CachedDirectory {
	return &CachedDirectory{next: next, cache: c, ttl: ttl, logger: logger}
}

func memberCacheKey(id int64) string {
	return "member:active:" + strconv.FormatInt(id, 10)
}

func (d *CachedDirectory) IsActive(ctx context.Context, memberID int64) (bool, error) {
	if d.ttl <= 0 {
		return d.next.IsActive(ctx, memberID)
	}
	key := memberCacheKey(memberID)
	v, err := d.cache.Get(ctx, key)
	if err == nil {
		return v == "1", nil
	}
	if !cache.IsMiss(err) {
		d.logger.Warn("member cache get failed", zap.Int64("member_id", memberID), zap.Error(err))
	}
	active, err := d.next.IsActive(ctx, memberID)
	if err != nil {
		return false, err
	}
	val := "0"
	if active {
		val = "1"
	}
	if err := d.cache.Set(ctx, key, val, d.ttl); err != nil {
		d.logger.Warn("member cache set failed", zap.Int64("member_id", memberID), zap.Error(err))
	}
	return active, nil
}

// Invalidate drops the cached status so the next lookup reads through.
func (d *CachedDirectory) Invalidate(ctx context.Context, memberID int64) error {
	return d.cache.Del(ctx, memberCacheKey(memberID))
}
