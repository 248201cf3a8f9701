// Package notification keeps each member's inbox of relationship events and
// pushes new entries to the member's pub/sub channel.
package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gamegoo/socialgraph/cache"
	"github.com/gamegoo/socialgraph/event"
	"github.com/gamegoo/socialgraph/model"
	"github.com/gamegoo/socialgraph/pagination"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned when a notification does not exist or belongs to
// another member.
var ErrNotFound = errors.New("notification not found")

// Channel returns the pub/sub channel carrying a member's notifications.
func Channel(memberID int64) string {
	return "notify:" + strconv.FormatInt(memberID, 10)
}

// Service stores notifications and serves the inbox.
type Service struct {
	db     *gorm.DB
	ps     cache.PubSub
	logger *zap.Logger
}

// NewService creates a Service. ps may be nil to disable push.
func NewService(db *gorm.DB, ps cache.PubSub, logger *zap.Logger) *Service {
	return &Service{db: db, ps: ps, logger: logger}
}

// Name implements event.Sink.
func (svc *Service) Name() string { return "notification" }

// Deliver implements event.Sink. Redelivering the same event is a no-op.
func (svc *Service) Deliver(ctx context.Context, e event.Event) error {
	n := &model.Notification{
		MemberID:  e.Recipient(),
		ActorID:   e.Actor(),
		Type:      string(e.Type),
		RequestID: e.RequestID,
		EventID:   e.ID,
	}
	res := svc.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "event_id"}}, DoNothing: true}).
		Create(n)
	if res.Error != nil {
		return fmt.Errorf("store notification: %w", res.Error)
	}
	if res.RowsAffected == 0 || svc.ps == nil {
		return nil
	}
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	if err := svc.ps.Publish(ctx, Channel(n.MemberID), string(data)); err != nil {
		// The row is stored; the member sees it on the next inbox read.
		svc.logger.Warn("notification push failed",
			zap.Int64("member_id", n.MemberID), zap.String("event_id", e.ID), zap.Error(err))
	}
	return nil
}

// List pages a member's notifications, newest first.
func (svc *Service) List(ctx context.Context, memberID int64, cursor *int64, size int) (pagination.Page[model.Notification], error) {
	size = pagination.Size(size, 20, 100)
	var rows []model.Notification
	q := svc.db.WithContext(ctx).Where("member_id = ?", memberID)
	if cursor != nil {
		q = q.Where("id < ?", *cursor)
	}
	if err := q.Order("id DESC").Limit(size + 1).Find(&rows).Error; err != nil {
		return pagination.Page[model.Notification]{}, err
	}
	return pagination.Cut(rows, size, func(n model.Notification) int64 { return n.ID }), nil
}

// MarkRead marks one of the member's notifications as read.
func (svc *Service) MarkRead(ctx context.Context, memberID, id int64) error {
	res := svc.db.WithContext(ctx).Model(&model.Notification{}).
		Where("id = ? AND member_id = ?", id, memberID).
		Update("is_read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkAllRead marks every unread notification of the member as read.
func (svc *Service) MarkAllRead(ctx context.Context, memberID int64) (int64, error) {
	res := svc.db.WithContext(ctx).Model(&model.Notification{}).
		Where("member_id = ? AND is_read = ?", memberID, false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}

// UnreadCount returns the number of unread notifications.
func (svc *Service) UnreadCount(ctx context.Context, memberID int64) (int64, error) {
	var n int64
	err := svc.db.WithContext(ctx).Model(&model.Notification{}).
		Where("member_id = ? AND is_read = ?", memberID, false).
		Count(&n).Error
	return n, err
}

// Cleanup deletes notifications older than olderThan.
func (svc *Service) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, nil
	}
	res := svc.db.WithContext(ctx).
		Where("created_at < ?", time.Now().Add(-olderThan)).
		Delete(&model.Notification{})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		svc.logger.Info("old notifications removed", zap.Int64("count", res.RowsAffected))
	}
	return res.RowsAffected, nil
}
